package plugin

import (
	"crypto/tls"
	"strings"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"github.com/vearne/h2replay/protocol"
	slog "github.com/vearne/simplelog"
)

// KafkaInput reads records produced by a KafkaOutput on another host,
// one partition consumer per partition of the topic.
type KafkaInput struct {
	config    *InputKafkaConfig
	codec     protocol.Codec
	consumers []sarama.PartitionConsumer
	messages  chan *sarama.ConsumerMessage
	quit      chan struct{}
}

// NewKafkaInput creates instance of kafka consumer client with TLS config
func NewKafkaInput(codec string, config *InputKafkaConfig, tlsConfig *tls.Config) *KafkaInput {
	c := NewKafkaConfig(&config.SASLConfig, tlsConfig)

	con := config.consumer
	if con == nil {
		var err error
		con, err = sarama.NewConsumer(strings.Split(config.Host, ","), c)
		if err != nil {
			slog.Fatal("Failed to start Sarama(Kafka) consumer:%v", err)
		}
	}

	partitions, err := con.Partitions(config.Topic)
	if err != nil {
		slog.Fatal("Failed to collect Sarama(Kafka) partitions:%v", err)
	}

	var in KafkaInput
	in.config = config
	in.codec = protocol.GetCodec(codec)
	in.consumers = make([]sarama.PartitionConsumer, len(partitions))
	in.messages = make(chan *sarama.ConsumerMessage, 256)
	in.quit = make(chan struct{})

	for index, partition := range partitions {
		consumer, err := con.ConsumePartition(config.Topic, partition, sarama.OffsetNewest)
		if err != nil {
			slog.Fatal("Failed to start Sarama(Kafka) partition consumer:%v", err)
		}

		go func(consumer sarama.PartitionConsumer) {
			defer consumer.Close()
			for message := range consumer.Messages() {
				in.messages <- message
			}
		}(consumer)

		go func(consumer sarama.PartitionConsumer) {
			for err := range consumer.Errors() {
				slog.Error("Failed to read kafka message:%v", err)
			}
		}(consumer)

		in.consumers[index] = consumer
	}

	return &in
}

// Read reads a record from this plugin
func (in *KafkaInput) Read() (*protocol.Record, error) {
	var message *sarama.ConsumerMessage
	select {
	case <-in.quit:
		return nil, ErrorStopped
	case message = <-in.messages:
	}

	var rec protocol.Record
	if err := in.codec.Unmarshal(message.Value, &rec); err != nil {
		return nil, errors.Wrap(err, "kafka-input unmarshal")
	}
	return &rec, nil
}

func (in *KafkaInput) String() string {
	return "Kafka Input: " + in.config.Host + "/" + in.config.Topic
}

// Close closes this plugin
func (in *KafkaInput) Close() error {
	close(in.quit)
	return nil
}
