package plugin

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/vearne/h2replay/dissect"
	"github.com/vearne/h2replay/frame"
	"github.com/vearne/h2replay/protocol"
	slog "github.com/vearne/simplelog"
)

type TCPOutputConfig struct {
	DialTimeout time.Duration `json:"output-tcp-dial-timeout"`
	// ConnTTL closes a replay connection after it carried no record
	// for this long.
	ConnTTL time.Duration `json:"output-tcp-conn-ttl"`
}

// TCPOutput replays captured frames against another HTTP/2 server
// over cleartext TCP. Each captured client connection gets a replay
// connection of its own: stream identifiers and hpack state only make
// sense relative to the connection that carried them.
type TCPOutput struct {
	sync.Mutex
	addr  string
	cf    *TCPOutputConfig
	conns *cache.Cache
}

func NewTCPOutput(addr string, cf *TCPOutputConfig) *TCPOutput {
	var o TCPOutput
	o.addr = addr
	o.cf = cf
	o.conns = cache.New(cf.ConnTTL, 30*time.Second)
	o.conns.OnEvicted(func(key string, item interface{}) {
		slog.Debug("close replay connection for %v", key)
		item.(net.Conn).Close()
	})
	slog.Info("NewTCPOutput, addr:%v", addr)
	return &o
}

func (o *TCPOutput) String() string {
	return "TCP Output: " + o.addr
}

// Write replays one captured frame. Frames that traveled from the
// captured service toward its clients are dropped: responses come from
// the replay target now.
func (o *TCPOutput) Write(rec *protocol.Record) error {
	if rec.Meta.Direction == protocol.DirOutgoing {
		return nil
	}

	o.Lock()
	defer o.Unlock()

	key := rec.Meta.Src + "->" + rec.Meta.Dst
	var conn net.Conn
	if item, ok := o.conns.Get(key); ok {
		conn = item.(net.Conn)
	} else {
		var err error
		conn, err = o.connect()
		if err != nil {
			return err
		}
	}

	if _, err := conn.Write(rec.Raw); err != nil {
		// the eviction handler closes the connection
		o.conns.Delete(key)
		return errors.Wrapf(err, "write frame to %v", o.addr)
	}
	o.conns.Set(key, conn, cache.DefaultExpiration)
	return nil
}

// connect opens a replay connection and performs the client side of
// the HTTP/2 opening: the preface followed by an empty SETTINGS frame.
func (o *TCPOutput) connect() (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", o.addr, o.cf.DialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %v", o.addr)
	}

	f := frame.NewFrame(0, 0, frame.SettingsPayload{})
	buf := make([]byte, len(dissect.PrefaceSTD)+f.EncodedLen())
	copy(buf, dissect.PrefaceSTD)
	f.Encode(buf[len(dissect.PrefaceSTD):])
	if _, err = conn.Write(buf); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "send preface to %v", o.addr)
	}

	// Drain whatever the target answers, otherwise its flow control
	// windows fill up and the replay stalls.
	go func() {
		_, _ = io.Copy(io.Discard, conn)
	}()
	return conn, nil
}

// Close closes this plugin
func (o *TCPOutput) Close() error {
	o.Lock()
	defer o.Unlock()
	for _, item := range o.conns.Items() {
		item.Object.(net.Conn).Close()
	}
	o.conns.Flush()
	return nil
}
