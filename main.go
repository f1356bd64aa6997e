package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vearne/h2replay/biz"
	"github.com/vearne/h2replay/config"
	"github.com/vearne/h2replay/consts"
	slog "github.com/vearne/simplelog"
)

const banner string = `
    __    ___
   / /_  |__ \ _____
  / __ \ __/ // ___/
 / / / // __// /
/_/ /_//____//_/
`

var settings config.AppSettings
var version bool

func init() {
	flag.BoolVar(&version, "version", false,
		"print version")

	flag.StringVar(&settings.ConfigFile, "config", "",
		"load settings from a YAML file; its keys are these flag names")

	flag.Var(&settings.ExitAfter, "exit-after", "exit after specified duration")

	// #################### input ######################
	flag.Var(&config.MultiStringOption{Params: &settings.InputRAW}, "input-raw",
		`Capture HTTP/2 frames of the given address (requires *sudo* access):
                # Capture frames sent to port 35001
                h2r --input-raw="0.0.0.0:35001" --output-stdout
                # Replay them against another server
                h2r --input-raw="0.0.0.0:35001" --output-tcp="tcp://xx.xx.xx.xx:35001"
                # Read a tcpdump file instead of a live interface
                h2r --input-raw="./dump.pcap:35001" --output-stdout
               `)

	flag.StringVar(&settings.InputRAWEngine, "input-raw-engine", "libpcap",
		"Intercept traffic using one of the engines: libpcap, pcap_file, raw_socket")

	flag.Var(&settings.InputRAWBufferTimeout, "input-raw-buffer-timeout",
		"set the pcap timeout. for immediate mode don't set this flag")

	flag.Var(&settings.InputRAWBufferSize, "input-raw-buffer-size",
		"Controls size of the OS buffer which holds packets until they dispatched. Default value depends by system: in Linux around 2MB. If you see big package drop, increase this value.")

	flag.BoolVar(&settings.InputRAWPromisc, "input-raw-promisc", false,
		"enable promiscuous mode")

	flag.BoolVar(&settings.InputRAWMonitor, "input-raw-monitor", false,
		"enable RF monitor mode")

	flag.BoolVar(&settings.InputRAWOverrideSnaplen, "input-raw-override-snaplen", false,
		"Override the capture snaplen to be 64k. Required for some Virtualized environments")

	flag.StringVar(&settings.InputRAWBPFFilter, "input-raw-bpf-filter", "",
		"BPF filter to write custom expressions. Can be useful in case of non standard network interfaces like tunneling or SPAN port. Example: --input-raw-bpf-filter 'dst port 80'")

	flag.StringVar(&settings.InputRAWTimestampType, "input-raw-timestamp-type", "",
		"Possible values: PCAP_TSTAMP_HOST, PCAP_TSTAMP_HOST_LOWPREC, PCAP_TSTAMP_HOST_HIPREC, PCAP_TSTAMP_ADAPTER, PCAP_TSTAMP_ADAPTER_UNSYNCED. Not supported on all systems; on a wrong value libpcap reports the available ones.")

	flag.BoolVar(&settings.InputRAWVLAN, "input-raw-vlan", false,
		"capture traffic on the given set of VLANs")

	flag.Var(&config.MultiIntOption{Params: &settings.InputRAWVLANVID}, "input-raw-vlan-vid",
		"capture only the traffic of the given VLAN VIDs")

	flag.BoolVar(&settings.InputRAWStats, "input-raw-stats", false,
		"report the capture engine counters every 5 seconds")

	flag.Var(&config.MultiStringOption{Params: &settings.InputRAWIgnoreInterface}, "input-raw-ignore-interface",
		"list of interfaces the capture skips when listening on all devices")

	flag.BoolVar(&settings.TrackResponse, "track-response", false,
		"also capture the frames the service sends back to its clients")

	flag.BoolVar(&settings.DecodeHeaders, "decode-headers", false,
		"decode header block fragments and attach the header fields to records")

	// input-file-directory
	flag.Var(&config.MultiStringOption{Params: &settings.InputFileDir}, "input-file-directory",
		`h2r --input-file-directory="/tmp/mycapture" --output-tcp="tcp://xx.xx.xx.xx:35001"`)

	flag.IntVar(&settings.InputFileReadDepth, "input-file-read-depth", 100, "")
	/*
		Replay at 2x speed
		--input-file-replay-speed=2
	*/
	flag.Float64Var(&settings.InputFileReplaySpeed, "input-file-replay-speed", 1, "")

	// input-kafka
	flag.StringVar(&settings.InputKafkaHost, "input-kafka-host", "",
		`h2r --input-kafka-host="192.168.0.1:9092,192.168.0.2:9092" --output-tcp="tcp://xx.xx.xx.xx:35001"`)

	flag.StringVar(&settings.InputKafkaTopic, "input-kafka-topic", "h2replay", "")

	flag.BoolVar(&settings.KafkaUseSASL, "kafka-use-sasl", false,
		"connect the kafka brokers with SASL, both for input and output")

	flag.StringVar(&settings.KafkaMechanism, "kafka-mechanism", "", "")

	flag.StringVar(&settings.KafkaUsername, "kafka-username", "", "")

	flag.StringVar(&settings.KafkaPassword, "kafka-password", "", "")

	// #################### output ######################
	flag.BoolVar(&settings.OutputStdout, "output-stdout", false,
		"Just prints data to console")

	flag.Var(&config.MultiStringOption{Params: &settings.OutputTCP}, "output-tcp",
		`Replays captured frames against the given address over cleartext TCP:
                h2r --input-raw="0.0.0.0:35001" --output-tcp="tcp://xx.xx.xx.xx:35001"`)

	settings.OutputTCPDialTimeout = config.Duration(3 * time.Second)
	flag.Var(&settings.OutputTCPDialTimeout, "output-tcp-dial-timeout",
		"give up dialing the replay target after this long")

	settings.OutputTCPConnTTL = config.Duration(2 * time.Minute)
	flag.Var(&settings.OutputTCPConnTTL, "output-tcp-conn-ttl",
		"close a replay connection after it carried no frame for this long")

	flag.Var(&config.MultiStringOption{Params: &settings.OutputFileDir},
		"output-file-directory",
		`Write captured frames to file:
		        h2r --input-raw="0.0.0.0:35001" --output-file-directory="/tmp/mycapture"`)

	flag.IntVar(&settings.OutputFileMaxSize, "output-file-max-size", 500,
		"MaxSize is the maximum size in megabytes of the log file before it gets rotated.")

	flag.IntVar(&settings.OutputFileMaxBackups, "output-file-max-backups", 10,
		"MaxBackups is the maximum number of old log files to retain.")

	flag.IntVar(&settings.OutputFileMaxAge, "output-file-max-age", 30,
		`MaxAge is the maximum number of days to retain old log files
				based on the timestamp encoded in their filename`)

	// output-kafka
	flag.StringVar(&settings.OutputKafkaHost, "output-kafka-host", "",
		`h2r --input-raw="0.0.0.0:35001" --output-kafka-host="192.168.0.1:9092"`)

	flag.StringVar(&settings.OutputKafkaTopic, "output-kafka-topic", "h2replay", "")

	flag.StringVar(&settings.Codec, "codec", "simple", "")

	flag.StringVar(&settings.IncludeFilterKindMatch, "include-filter-kind-match", "",
		`only pass frames whose kind matches the specified regular expression, e.g. "HEADERS|DATA"`)

	flag.Var(&config.MultiStringOption{Params: &settings.ExcludeKinds}, "exclude-kinds",
		`drop frames of this kind, e.g. --exclude-kinds="PING" --exclude-kinds="WINDOW_UPDATE"`)

	flag.BoolVar(&settings.ExcludeStreamZero, "exclude-stream-zero", false,
		"drop connection-level frames (stream 0): SETTINGS, PING, GOAWAY ...")

	flag.IntVar(&settings.RateLimitQPS, "rate-limit-qps", 0,
		"pass at most this many frames per second to the outputs")
}

func main() {
	fmt.Print(banner)

	adjustLogLevel()

	flag.Parse()
	if version {
		fmt.Println("service: h2replay")
		fmt.Println("Version", consts.Version)
		fmt.Println("BuildTime", consts.BuildTime)
		fmt.Println("GitTag", consts.GitTag)
		return
	}

	if len(settings.ConfigFile) > 0 {
		err := config.LoadFile(settings.ConfigFile, &settings)
		if err != nil {
			slog.Fatal("load config file:%v", err)
		}
	}

	printSettings(&settings)

	filterChain, err := biz.NewFilterChain(&settings)
	if err != nil {
		slog.Fatal("create FilterChain error:%v", err)
	}
	emitter := biz.NewEmitter(filterChain, biz.NewRateLimit(&settings))
	plugins := biz.NewPlugins(&settings)

	slog.Info("plugins:%v", plugins)

	go emitter.Start(plugins)

	closeCh := make(chan int)
	if settings.ExitAfter > 0 {
		slog.Info("Running h2r for a duration of %s\n", settings.ExitAfter)

		time.AfterFunc(settings.ExitAfter.Duration(), func() {
			slog.Info("run timeout %s\n", settings.ExitAfter)
			close(closeCh)
		})
	}
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
	exit := 0
	select {
	case <-c:
		exit = 1
	case <-closeCh:
		exit = 0
	}
	emitter.Close()
	os.Exit(exit)
}

func printSettings(settings *config.AppSettings) {
	slog.Info("input-raw, %v", settings.InputRAW)
	slog.Info("input-file-directory, %v", settings.InputFileDir)
	slog.Info("input-file-replay-speed, %v", settings.InputFileReplaySpeed)
	slog.Info("input-kafka-host, %v", settings.InputKafkaHost)
	slog.Info("input-kafka-topic, %v", settings.InputKafkaTopic)

	slog.Info("track-response, %v", settings.TrackResponse)
	slog.Info("decode-headers, %v", settings.DecodeHeaders)
	slog.Info("codec, %v", settings.Codec)

	slog.Info("output-stdout, %v", settings.OutputStdout)
	slog.Info("output-tcp, %v", settings.OutputTCP)
	slog.Info("output-file-directory, %v", settings.OutputFileDir)
	slog.Info("output-kafka-host, %v", settings.OutputKafkaHost)
	slog.Info("output-kafka-topic, %v", settings.OutputKafkaTopic)
}

func adjustLogLevel() {
	logLevel := os.Getenv("SIMPLE_LOG_LEVEL")
	if len(logLevel) > 0 {
		return
	}
	slog.SetLevel(slog.InfoLevel)
}
