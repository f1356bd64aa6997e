package plugin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/gopacket"
	"github.com/vearne/h2replay/capture"
	"github.com/vearne/h2replay/dissect"
	"github.com/vearne/h2replay/protocol"
	"github.com/vearne/h2replay/util"
	slog "github.com/vearne/simplelog"
)

// ErrorStopped is the error returned when the go routines reading the input is stopped.
var ErrorStopped = errors.New("reading stopped")

// RAWInputConfig represents configuration that can be applied on raw input
type RAWInputConfig struct {
	capture.PcapOptions
	// DecodeHeaders attaches decoded header fields to HEADERS,
	// PUSH_PROMISE and CONTINUATION records.
	DecodeHeaders bool
}

// RAWInput intercepts traffic of the given address and emits one record
// per captured HTTP/2 frame.
type RAWInput struct {
	sync.Mutex
	config         RAWInputConfig
	listener       *capture.Listener
	processor      *dissect.Processor
	cancelListener context.CancelFunc
	closed         bool

	quit  chan bool // Channel used only to indicate goroutine should shutdown
	host  string
	ports []uint16
}

// NewRAWInput constructor for RAWInput. Accepts raw input config as arguments.
func NewRAWInput(address string, config RAWInputConfig) (i *RAWInput) {
	slog.Debug("address:%q", address)
	i = new(RAWInput)
	i.config = config
	i.quit = make(chan bool)

	host, _ports, err := net.SplitHostPort(address)
	if err != nil {
		// If we are reading pcap file, no port needed
		if strings.HasSuffix(address, "pcap") {
			host = address
			_ports = "0"
			err = nil
		} else if strings.HasPrefix(address, "k8s://") {
			portIndex := strings.LastIndex(address, ":")
			host = address[:portIndex]
			_ports = address[portIndex+1:]
		} else {
			log.Fatalf("input-raw: error while parsing address: %s", err)
		}
	}

	if strings.HasSuffix(host, "pcap") {
		i.config.Engine = capture.EnginePcapFile
	}

	var ports []uint16
	if _ports != "" {
		portsStr := strings.Split(_ports, ",")

		for _, portStr := range portsStr {
			port, err := strconv.Atoi(strings.TrimSpace(portStr))
			if err != nil {
				log.Fatalf("parsing port error: %v", err)
			}
			ports = append(ports, uint16(port))
		}
	}

	i.host = host
	i.ports = ports

	i.listen()
	return
}

// Read reads a record from this plugin
func (i *RAWInput) Read() (*protocol.Record, error) {
	select {
	case <-i.quit:
		return nil, ErrorStopped
	case rec := <-i.processor.OutputChan:
		return rec, nil
	}
}

func (i *RAWInput) listen() {
	var err error
	i.listener, err = capture.NewListener(i.host, i.ports, i.config.PcapOptions)
	if err != nil {
		log.Fatal(err)
	}

	err = i.listener.Activate()
	if err != nil {
		log.Fatal(err)
	}

	// Direction of a segment is decided against the captured addresses.
	ipSet := util.NewStringSet()
	ipSet.AddAll(i.listener.CapturedIPs())
	slog.Debug("captured addresses:%v", ipSet.ToArray())

	i.processor = dissect.NewProcessor(make(chan *dissect.NetPkg, 1000), dissect.Options{
		TrackResponse: i.config.TrackResponse,
		DecodeHeaders: i.config.DecodeHeaders,
	})
	go i.processor.ProcessTCPPkg()

	var ctx context.Context
	ctx, i.cancelListener = context.WithCancel(context.Background())
	errCh := i.listener.ListenBackground(ctx, func(packet gopacket.Packet) {
		pkg, err := dissect.ProcessPacket(packet, ipSet, i.ports)
		if err != nil {
			slog.Debug("ProcessPacket:%v", err)
			return
		}
		i.processor.InputChan <- pkg
	})
	<-i.listener.Reading

	slog.Debug("RAWInput.listen")
	go func() {
		<-errCh // the listener closed voluntarily
		i.Close()
	}()
}

func (i *RAWInput) String() string {
	return fmt.Sprintf("Intercepting traffic from: %s:%s",
		i.host, strings.Join(strings.Fields(fmt.Sprint(i.ports)), ","))
}

// Close closes the input raw listener
func (i *RAWInput) Close() error {
	i.Lock()
	defer i.Unlock()
	if i.closed {
		return nil
	}
	i.cancelListener()
	close(i.quit)
	i.closed = true
	return nil
}
