package plugin

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vearne/h2replay/dissect"
	"github.com/vearne/h2replay/frame"
	"github.com/vearne/h2replay/protocol"
)

func TestTCPOutputReplay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	defer ln.Close()

	ping := frame.NewFrame(0, 0, frame.PingPayload{Value: 7})
	raw := make([]byte, ping.EncodedLen())
	ping.Encode(raw)

	// preface, empty SETTINGS, then the replayed PING
	want := len(dissect.PrefaceSTD) + frame.HeaderLen + len(raw)
	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, want)
		total := 0
		for total < want {
			n, err := conn.Read(buf[total:])
			if err != nil {
				break
			}
			total += n
		}
		received <- buf[:total]
	}()

	out := NewTCPOutput(ln.Addr().String(), &TCPOutputConfig{
		DialTimeout: time.Second,
		ConnTTL:     time.Minute,
	})
	defer out.Close()

	rec := testRecord("t1", time.Now().UnixNano())
	rec.Raw = raw
	assert.Nil(t, out.Write(rec))

	select {
	case data := <-received:
		prefaceLen := len(dissect.PrefaceSTD)
		assert.Equal(t, []byte(dissect.PrefaceSTD), data[:prefaceLen])

		settings := data[prefaceLen : prefaceLen+frame.HeaderLen]
		head, err := frame.ParseHeader(settings)
		assert.Nil(t, err)
		assert.Equal(t, frame.KindSettings, head.Kind)
		assert.Equal(t, uint32(0), head.Length)

		assert.Equal(t, raw, data[prefaceLen+frame.HeaderLen:])
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for replayed bytes")
	}
}

func TestTCPOutputReusesConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	defer ln.Close()

	conns := make(chan net.Conn, 2)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns <- conn
		}
	}()

	out := NewTCPOutput(ln.Addr().String(), &TCPOutputConfig{
		DialTimeout: time.Second,
		ConnTTL:     time.Minute,
	})
	defer out.Close()

	rec := testRecord("t2", time.Now().UnixNano())
	assert.Nil(t, out.Write(rec))
	assert.Nil(t, out.Write(rec))

	select {
	case conn := <-conns:
		defer conn.Close()
	case <-time.After(3 * time.Second):
		t.Fatal("no replay connection")
	}
	select {
	case conn := <-conns:
		conn.Close()
		t.Fatal("frames of one captured connection must share a replay connection")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTCPOutputSkipsResponses(t *testing.T) {
	// port 1 is never dialed: response records are dropped up front
	out := NewTCPOutput("127.0.0.1:1", &TCPOutputConfig{
		DialTimeout: 100 * time.Millisecond,
		ConnTTL:     time.Minute,
	})
	defer out.Close()

	rec := testRecord("t3", time.Now().UnixNano())
	rec.Meta.Direction = protocol.DirOutgoing
	assert.Nil(t, out.Write(rec))
}
