package biz

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/vearne/h2replay/capture"
	"github.com/vearne/h2replay/config"
	"github.com/vearne/h2replay/plugin"
	slog "github.com/vearne/simplelog"
)

// InOutPlugins struct for holding references to plugins
type InOutPlugins struct {
	Inputs  []PluginReader
	Outputs []PluginWriter
	All     []interface{}
}

// NewPlugins specify and initialize all available plugins
func NewPlugins(settings *config.AppSettings) *InOutPlugins {
	plugins := new(InOutPlugins)

	// kafka input and output share broker credentials
	saslConfig := plugin.SASLKafkaConfig{
		UseSASL:   settings.KafkaUseSASL,
		Mechanism: settings.KafkaMechanism,
		Username:  settings.KafkaUsername,
		Password:  settings.KafkaPassword,
	}
	var tlsConfig *tls.Config

	rawConfig := rawInputConfig(settings)
	for _, item := range settings.InputRAW {
		slog.Debug("options: %q", item)
		plugins.registerPlugin(plugin.NewRAWInput, item, rawConfig)
	}

	for _, path := range settings.InputFileDir {
		err := plugin.IsValidDir(path)
		if err != nil {
			slog.Fatal("%v", err)
		}
		slog.Debug("NewFileDirInput, path:%v", path)
		plugins.registerPlugin(plugin.NewFileDirInput, settings.Codec, path,
			settings.InputFileReadDepth, settings.InputFileReplaySpeed)
	}

	if len(settings.InputKafkaHost) > 0 {
		cf := &plugin.InputKafkaConfig{
			Host:       settings.InputKafkaHost,
			Topic:      settings.InputKafkaTopic,
			SASLConfig: saslConfig,
		}
		plugins.registerPlugin(plugin.NewKafkaInput, settings.Codec, cf, tlsConfig)
	}

	// ----------output----------
	if settings.OutputStdout {
		slog.Debug("NewStdOutput")
		plugins.registerPlugin(plugin.NewStdOutput, settings.Codec)
	}

	for _, item := range settings.OutputTCP {
		addr, err := extractAddr(item)
		if err != nil {
			slog.Fatal("OutputTCP addr error:%v", err)
		}
		cf := &plugin.TCPOutputConfig{
			DialTimeout: settings.OutputTCPDialTimeout.Duration(),
			ConnTTL:     settings.OutputTCPConnTTL.Duration(),
		}
		plugins.registerPlugin(plugin.NewTCPOutput, addr, cf)
	}

	for _, path := range settings.OutputFileDir {
		err := plugin.IsValidDir(path)
		if err != nil {
			slog.Fatal("%v", err)
		}
		cf := &plugin.FileDirOutputConfig{
			MaxSize:    settings.OutputFileMaxSize,
			MaxBackups: settings.OutputFileMaxBackups,
			MaxAge:     settings.OutputFileMaxAge,
		}
		plugins.registerPlugin(plugin.NewFileDirOutput, settings.Codec, path, cf)
	}

	if len(settings.OutputKafkaHost) > 0 {
		cf := &plugin.OutputKafkaConfig{
			Host:       settings.OutputKafkaHost,
			Topic:      settings.OutputKafkaTopic,
			SASLConfig: saslConfig,
		}
		plugins.registerPlugin(plugin.NewKafkaOutput, settings.Codec, cf, tlsConfig)
	}

	return plugins
}

func rawInputConfig(settings *config.AppSettings) plugin.RAWInputConfig {
	var engine capture.EngineType
	if len(settings.InputRAWEngine) > 0 {
		if err := engine.Set(settings.InputRAWEngine); err != nil {
			slog.Fatal("input-raw-engine:%v", err)
		}
	}
	return plugin.RAWInputConfig{
		PcapOptions: capture.PcapOptions{
			BufferTimeout:   settings.InputRAWBufferTimeout.Duration(),
			TimestampType:   settings.InputRAWTimestampType,
			BPFFilter:       settings.InputRAWBPFFilter,
			BufferSize:      settings.InputRAWBufferSize,
			Promiscuous:     settings.InputRAWPromisc,
			Monitor:         settings.InputRAWMonitor,
			Snaplen:         settings.InputRAWOverrideSnaplen,
			Engine:          engine,
			VLAN:            settings.InputRAWVLAN,
			VLANVIDs:        settings.InputRAWVLANVID,
			TrackResponse:   settings.TrackResponse,
			Stats:           settings.InputRAWStats,
			IgnoreInterface: settings.InputRAWIgnoreInterface,
		},
		DecodeHeaders: settings.DecodeHeaders,
	}
}

func extractAddr(outputTCP string) (string, error) {
	if !strings.Contains(outputTCP, "tcp://") {
		outputTCP = "tcp://" + outputTCP
	}
	u, err := url.Parse(outputTCP)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// Automatically detects type of plugin and initialize it
func (plugins *InOutPlugins) registerPlugin(constructor interface{}, options ...interface{}) {
	vc := reflect.ValueOf(constructor)

	// Pre-processing options to make it work with reflect
	vo := []reflect.Value{}
	for _, oi := range options {
		vo = append(vo, reflect.ValueOf(oi))
	}

	// Calling our constructor with list of given options
	plugin := vc.Call(vo)[0].Interface()

	// Some of the outputs can be Readers as well because return responses
	if r, ok := plugin.(PluginReader); ok {
		plugins.Inputs = append(plugins.Inputs, r)
	}

	if w, ok := plugin.(PluginWriter); ok {
		plugins.Outputs = append(plugins.Outputs, w)
	}
	plugins.All = append(plugins.All, plugin)
}

func (plugins *InOutPlugins) String() string {
	return fmt.Sprintf("#####  len(Inputs):%d, len(Outputs):%d, len(All):%d   #####",
		len(plugins.Inputs), len(plugins.Outputs), len(plugins.All))
}
