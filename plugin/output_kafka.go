package plugin

import (
	"crypto/tls"
	"strings"

	"github.com/Shopify/sarama"
	"github.com/vearne/h2replay/protocol"
	slog "github.com/vearne/simplelog"
)

// KafkaOutput ships marshaled records to a kafka topic, so another
// h2replay instance can replay them with --input-kafka-host.
type KafkaOutput struct {
	config   *OutputKafkaConfig
	codec    protocol.Codec
	producer sarama.AsyncProducer
}

// NewKafkaOutput creates instance of kafka producer client with TLS config
func NewKafkaOutput(codec string, config *OutputKafkaConfig, tlsConfig *tls.Config) *KafkaOutput {
	c := NewKafkaConfig(&config.SASLConfig, tlsConfig)

	producer := config.producer
	if producer == nil {
		var err error
		producer, err = sarama.NewAsyncProducer(strings.Split(config.Host, ","), c)
		if err != nil {
			slog.Fatal("Failed to start Sarama(Kafka) producer:%v", err)
		}
	}

	var o KafkaOutput
	o.config = config
	o.codec = protocol.GetCodec(codec)
	o.producer = producer

	// Start infinite loop for tracking errors for kafka producer.
	go o.ErrorHandler()

	return &o
}

// ErrorHandler should receive errors
func (o *KafkaOutput) ErrorHandler() {
	for err := range o.producer.Errors() {
		slog.Error("Error writing to kafka:%v", err)
	}
}

func (o *KafkaOutput) String() string {
	return "Kafka Output: " + o.config.Host + "/" + o.config.Topic
}

// Write marshals a record and sends it to the topic
func (o *KafkaOutput) Write(rec *protocol.Record) error {
	data, err := o.codec.Marshal(rec)
	if err != nil {
		return err
	}

	o.producer.Input() <- &sarama.ProducerMessage{
		Topic: o.config.Topic,
		Value: sarama.ByteEncoder(data),
	}
	return nil
}

// Close closes this plugin
func (o *KafkaOutput) Close() error {
	return o.producer.Close()
}
