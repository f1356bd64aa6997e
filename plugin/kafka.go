package plugin

import (
	"crypto/tls"
	"time"

	"github.com/Shopify/sarama"
)

// InputKafkaConfig is the representation of kafka input configuration
type InputKafkaConfig struct {
	consumer   sarama.Consumer
	Host       string `json:"input-kafka-host"`
	Topic      string `json:"input-kafka-topic"`
	SASLConfig SASLKafkaConfig
}

// OutputKafkaConfig is the representation of kafka output configuration
type OutputKafkaConfig struct {
	producer   sarama.AsyncProducer
	Host       string `json:"output-kafka-host"`
	Topic      string `json:"output-kafka-topic"`
	SASLConfig SASLKafkaConfig
}

// SASLKafkaConfig SASL configuration
type SASLKafkaConfig struct {
	UseSASL   bool   `json:"kafka-use-sasl"`
	Mechanism string `json:"kafka-mechanism"`
	Username  string `json:"kafka-username"`
	Password  string `json:"kafka-password"`
}

// NewKafkaConfig returns a Kafka config with or without SASL/TLS,
// depending on the config
func NewKafkaConfig(config *SASLKafkaConfig, tlsConfig *tls.Config) *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V1_0_0_0
	c.ClientID = "h2replay"
	c.Producer.RequiredAcks = sarama.WaitForLocal
	c.Producer.Compression = sarama.CompressionSnappy
	c.Producer.Flush.Frequency = 500 * time.Millisecond

	if tlsConfig != nil {
		c.Net.TLS.Config = tlsConfig
		c.Net.TLS.Enable = true
	}

	if config != nil && config.UseSASL {
		c.Net.SASL.Enable = true
		c.Net.SASL.Mechanism = sarama.SASLMechanism(config.Mechanism)
		c.Net.SASL.User = config.Username
		c.Net.SASL.Password = config.Password
	}
	return c
}
