// Package config defines the application settings and the repeatable
// command line options that fill them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/buger/goreplay/size"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that parses "90s" both as a command
// line value and as a YAML value. A bare YAML integer means seconds.
type Duration time.Duration

func (d *Duration) Set(value string) error {
	v, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		v, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(v) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MultiStringOption allows to specify multiple flags with same name
// and collects all values into array
type MultiStringOption struct {
	Params *[]string
}

func (h *MultiStringOption) String() string {
	if h.Params == nil {
		return ""
	}
	return fmt.Sprint(*h.Params)
}

// Set gets called multiple times for each flag with same name
func (h *MultiStringOption) Set(value string) error {
	if h.Params == nil {
		return nil
	}

	*h.Params = append(*h.Params, value)
	return nil
}

// MultiIntOption allows to specify multiple flags with same name
// and collects all values into array
type MultiIntOption struct {
	Params *[]int
}

func (h *MultiIntOption) String() string {
	if h.Params == nil {
		return ""
	}

	return fmt.Sprint(*h.Params)
}

// Set gets called multiple times for each flag with same name
func (h *MultiIntOption) Set(value string) error {
	if h.Params == nil {
		return nil
	}

	val, _ := strconv.Atoi(value)
	*h.Params = append(*h.Params, val)
	return nil
}

// AppSettings is the struct of main configuration
type AppSettings struct {
	// Loaded over the flag values when --config is given.
	ConfigFile string `json:"config" yaml:"-"`

	ExitAfter Duration `json:"exit-after" yaml:"exit-after"`

	// ######################## input #######################
	InputRAW []string `json:"input-raw" yaml:"input-raw"`

	// --- input-raw knobs, passed through to the capture engine ---
	InputRAWEngine          string    `json:"input-raw-engine" yaml:"input-raw-engine"`
	InputRAWBufferTimeout   Duration  `json:"input-raw-buffer-timeout" yaml:"input-raw-buffer-timeout"`
	InputRAWBufferSize      size.Size `json:"input-raw-buffer-size" yaml:"input-raw-buffer-size"`
	InputRAWPromisc         bool      `json:"input-raw-promisc" yaml:"input-raw-promisc"`
	InputRAWMonitor         bool      `json:"input-raw-monitor" yaml:"input-raw-monitor"`
	InputRAWOverrideSnaplen bool      `json:"input-raw-override-snaplen" yaml:"input-raw-override-snaplen"`
	InputRAWBPFFilter       string    `json:"input-raw-bpf-filter" yaml:"input-raw-bpf-filter"`
	InputRAWTimestampType   string    `json:"input-raw-timestamp-type" yaml:"input-raw-timestamp-type"`
	InputRAWVLAN            bool      `json:"input-raw-vlan" yaml:"input-raw-vlan"`
	InputRAWVLANVID         []int     `json:"input-raw-vlan-vid" yaml:"input-raw-vlan-vid"`
	InputRAWStats           bool      `json:"input-raw-stats" yaml:"input-raw-stats"`
	InputRAWIgnoreInterface []string  `json:"input-raw-ignore-interface" yaml:"input-raw-ignore-interface"`

	// TrackResponse also captures the frames the service sends back.
	TrackResponse bool `json:"track-response" yaml:"track-response"`
	// DecodeHeaders attaches decoded hpack header fields to records.
	DecodeHeaders bool `json:"decode-headers" yaml:"decode-headers"`

	// --- input-file-directory ---
	InputFileDir         []string `json:"input-file-directory" yaml:"input-file-directory"`
	InputFileReadDepth   int      `json:"input-file-read-depth" yaml:"input-file-read-depth"`
	InputFileReplaySpeed float64  `json:"input-file-replay-speed" yaml:"input-file-replay-speed"`

	// --- input-kafka ---
	InputKafkaHost  string `json:"input-kafka-host" yaml:"input-kafka-host"`
	InputKafkaTopic string `json:"input-kafka-topic" yaml:"input-kafka-topic"`

	// SASL settings shared by kafka input and output
	KafkaUseSASL   bool   `json:"kafka-use-sasl" yaml:"kafka-use-sasl"`
	KafkaMechanism string `json:"kafka-mechanism" yaml:"kafka-mechanism"`
	KafkaUsername  string `json:"kafka-username" yaml:"kafka-username"`
	KafkaPassword  string `json:"kafka-password" yaml:"kafka-password"`

	// ######################## output ########################
	OutputStdout bool `json:"output-stdout" yaml:"output-stdout"`

	// --- output-tcp ---
	OutputTCP            []string `json:"output-tcp" yaml:"output-tcp"`
	OutputTCPDialTimeout Duration `json:"output-tcp-dial-timeout" yaml:"output-tcp-dial-timeout"`
	OutputTCPConnTTL     Duration `json:"output-tcp-conn-ttl" yaml:"output-tcp-conn-ttl"`

	// --- output-file-directory ---
	OutputFileDir []string `json:"output-file-directory" yaml:"output-file-directory"`
	// MaxSize is the maximum size in megabytes of the log file before it gets rotated.
	OutputFileMaxSize int `json:"output-file-max-size" yaml:"output-file-max-size"`
	// MaxBackups is the maximum number of old log files to retain.
	OutputFileMaxBackups int `json:"output-file-max-backups" yaml:"output-file-max-backups"`
	// MaxAge is the maximum number of days to retain old log files based on the
	// timestamp encoded in their filename.
	OutputFileMaxAge int `json:"output-file-max-age" yaml:"output-file-max-age"`

	// --- output-kafka ---
	OutputKafkaHost  string `json:"output-kafka-host" yaml:"output-kafka-host"`
	OutputKafkaTopic string `json:"output-kafka-topic" yaml:"output-kafka-topic"`

	// --- filter ---
	IncludeFilterKindMatch string   `json:"include-filter-kind-match" yaml:"include-filter-kind-match"`
	ExcludeKinds           []string `json:"exclude-kinds" yaml:"exclude-kinds"`
	ExcludeStreamZero      bool     `json:"exclude-stream-zero" yaml:"exclude-stream-zero"`

	// --- rate limit ---
	// Query per second
	RateLimitQPS int `json:"rate-limit-qps" yaml:"rate-limit-qps"`

	// --- other ---
	Codec string `json:"codec" yaml:"codec"`
}

// LoadFile overlays settings with the values of a YAML file. The file
// uses the flag names as keys.
func LoadFile(path string, settings *AppSettings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, settings)
}
