package plugin

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/vearne/h2replay/protocol"
)

func TestKafkaOutput(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewAsyncProducer(t, config)
	producer.ExpectInputAndSucceed()

	output := NewKafkaOutput(protocol.CodecSimpleName, &OutputKafkaConfig{
		producer: producer,
		Topic:    "h2replay",
	}, nil)

	rec := testRecord("ka1", 1700000000000000000)
	assert.Nil(t, output.Write(rec))

	resp := <-producer.Successes()
	assert.Equal(t, "h2replay", resp.Topic)

	data, err := resp.Value.Encode()
	assert.Nil(t, err)

	var got protocol.Record
	codec := protocol.GetCodec(protocol.CodecSimpleName)
	assert.Nil(t, codec.Unmarshal(data, &got))
	assert.Equal(t, rec.Meta.UUID, got.Meta.UUID)
	assert.Equal(t, rec.Kind, got.Kind)
	assert.Equal(t, rec.Raw, got.Raw)
}

func TestKafkaInput(t *testing.T) {
	codec := protocol.GetCodec(protocol.CodecSimpleName)
	rec := testRecord("ki1", 1700000000000000000)
	data, err := codec.Marshal(rec)
	assert.Nil(t, err)

	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{"h2replay": {0}})
	consumer.ExpectConsumePartition("h2replay", 0, sarama.OffsetNewest).
		YieldMessage(&sarama.ConsumerMessage{Value: data})

	input := NewKafkaInput(protocol.CodecSimpleName, &InputKafkaConfig{
		consumer: consumer,
		Topic:    "h2replay",
	}, nil)
	defer input.Close()

	got, err := input.Read()
	assert.Nil(t, err)
	assert.Equal(t, "ki1", got.Meta.UUID)
	assert.Equal(t, rec.Raw, got.Raw)
}
