package dissect

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/vearne/h2replay/frame"
	"github.com/vearne/h2replay/protocol"
	"github.com/vearne/h2replay/util"
	slog "github.com/vearne/simplelog"
	"golang.org/x/net/http2/hpack"
)

// FrameScanner holds the per-direction reassembly buffer and, when
// header decoding is on, the hpack state for blocks traveling in that
// direction.
type FrameScanner struct {
	TCPBuffer           *TCPBuffer
	MaxDynamicTableSize uint32
	HeaderDecoder       *hpack.Decoder
}

func NewFrameScanner(maxDynamicTableSize uint32, decodeHeaders bool) *FrameScanner {
	var s FrameScanner
	s.MaxDynamicTableSize = maxDynamicTableSize
	if decodeHeaders {
		s.HeaderDecoder = hpack.NewDecoder(maxDynamicTableSize, nil)
	}
	s.TCPBuffer = NewTCPBuffer()
	return &s
}

// H2Conn is the framing context of one captured connection.
type H2Conn struct {
	DirectConn DirectConn

	// ###### client -> server ######
	Input *FrameScanner
	// ###### server -> client ######
	Output *FrameScanner

	processor     *Processor
	trackResponse bool
}

func NewH2Conn(dc DirectConn, maxDynamicTableSize uint32, p *Processor) *H2Conn {
	var hc H2Conn
	hc.DirectConn = dc
	hc.Input = NewFrameScanner(maxDynamicTableSize, p.opts.DecodeHeaders)
	hc.Output = NewFrameScanner(maxDynamicTableSize, p.opts.DecodeHeaders)
	hc.processor = p
	hc.trackResponse = p.opts.TrackResponse

	slog.Info("create H2Conn, MaxDynamicTableSize:%v", maxDynamicTableSize)

	go hc.DealInput()
	if hc.trackResponse {
		go hc.DealOutput()
	}
	return &hc
}

// Close releases both reassembly buffers, which ends the frame loops.
func (hc *H2Conn) Close() {
	hc.Input.TCPBuffer.Close()
	hc.Output.TCPBuffer.Close()
}

// IsConnPreface reports whether payload starts with a client connection
// preface, standard or early.
func IsConnPreface(payload []byte) bool {
	if len(payload) < ConnectionPrefaceSize {
		return false
	}
	head := string(payload[:ConnectionPrefaceSize])
	return head == PrefaceSTD || head == PrefaceEarly
}

func (hc *H2Conn) DealInput() {
	slog.Debug("[start]H2Conn.DealInput, Connection:%v", hc.DirectConn.String())

	// The preface is not a frame; consume it before scanning. A client
	// may send the early form ahead of the standard one.
	br := bufio.NewReader(hc.Input.TCPBuffer)
	for {
		head, err := br.Peek(ConnectionPrefaceSize)
		if err != nil {
			slog.Warn("H2Conn.DealInput, Connection:%v, read preface:%v",
				hc.DirectConn.String(), err)
			return
		}
		if !IsConnPreface(head) {
			break
		}
		// nolint: errcheck
		br.Discard(ConnectionPrefaceSize)
	}

	hc.scanFrames(br, hc.Input, DirIncoming)
	slog.Debug("[end]H2Conn.DealInput, Connection:%v", hc.DirectConn.String())
}

func (hc *H2Conn) DealOutput() {
	dc := hc.DirectConn.Reverse()
	slog.Debug("[start]H2Conn.DealOutput, Connection:%v", dc.String())

	hc.scanFrames(hc.Output.TCPBuffer, hc.Output, DirOutgoing)
	slog.Debug("[end]H2Conn.DealOutput, Connection:%v", dc.String())
}

// scanFrames reads the reassembled byte stream frame by frame and emits
// one record per frame. A header that cannot be parsed means the stream
// offset is no longer trustworthy, so the loop stops for this direction.
func (hc *H2Conn) scanFrames(r io.Reader, scanner *FrameScanner, dir Dir) {
	dc := hc.DirectConn
	if dir == DirOutgoing {
		dc = dc.Reverse()
	}

	head := make([]byte, frame.HeaderLen)
	for {
		if _, err := io.ReadFull(r, head); err != nil {
			slog.Debug("H2Conn.scanFrames, Connection:%v, read frame header:%v", dc.String(), err)
			return
		}
		h, err := frame.ParseHeader(head)
		if err != nil {
			slog.Error("H2Conn.scanFrames, Connection:%v, parse frame header:%v", dc.String(), err)
			return
		}
		slog.Debug("Connection:%v, Kind:%v, streamID:%v, length:%v",
			dc.String(), h.Kind.String(), h.StreamID, h.Length)

		payload := make([]byte, h.Length)
		if h.Length > 0 {
			if _, err = io.ReadFull(r, payload); err != nil {
				slog.Debug("H2Conn.scanFrames, Connection:%v, read payload:%v", dc.String(), err)
				return
			}
		}

		rec := buildRecord(h, head, payload, dir, dc)
		hc.handleFrame(scanner, h, payload, rec)
		hc.processor.OutputChan <- rec
	}
}

// handleFrame reacts to the frames that carry connection state: table
// size settings and header blocks. Payloads that fail to parse are
// still emitted raw; the record keeps what the wire carried.
func (hc *H2Conn) handleFrame(scanner *FrameScanner, h frame.Header, payload []byte, rec *protocol.Record) {
	p, err := frame.ParsePayload(h, payload)
	if err != nil {
		slog.Warn("H2Conn.handleFrame, Connection:%v, Kind:%v, parse payload:%v",
			hc.DirectConn.String(), h.Kind.String(), err)
		return
	}

	switch pl := p.(type) {
	case frame.SettingsPayload:
		if h.Flags.IsAck(h.Kind) {
			return
		}
		for _, s := range pl.Settings {
			if s.ID == frame.SettingHeaderTableSize {
				hc.adjustTableSize(scanner, s.Value)
			}
		}
	case frame.HeadersPayload:
		hc.decodeBlock(scanner, pl.Block, rec)
	case frame.PushPromisePayload:
		hc.decodeBlock(scanner, pl.Block, rec)
	case frame.ContinuationPayload:
		hc.decodeBlock(scanner, pl.Block, rec)
	}
}

// adjustTableSize applies an announced HeaderTableSize. The announcing
// peer uses the table to decode blocks sent to it, so the value governs
// the opposite direction's decoder.
func (hc *H2Conn) adjustTableSize(scanner *FrameScanner, value uint32) {
	peer := hc.Output
	if scanner == hc.Output {
		peer = hc.Input
	}
	slog.Warn("adjust HeaderTableSize:%v, Connection:%v", value, hc.DirectConn.String())
	peer.MaxDynamicTableSize = value
	if peer.HeaderDecoder != nil {
		peer.HeaderDecoder.SetMaxDynamicTableSize(value)
	}
}

func (hc *H2Conn) decodeBlock(scanner *FrameScanner, block []byte, rec *protocol.Record) {
	if scanner.HeaderDecoder == nil {
		return
	}
	fields, err := scanner.HeaderDecoder.DecodeFull(block)
	if err != nil {
		slog.Error("H2Conn.decodeBlock, Connection:%v, error:%v", hc.DirectConn.String(), err)
		return
	}
	rec.Headers = make(map[string]string, len(fields))
	for _, field := range fields {
		rec.Headers[field.Name] = field.Value
		slog.Debug(field.String())
	}
}

func buildRecord(h frame.Header, head, payload []byte, dir Dir, dc DirectConn) *protocol.Record {
	raw := make([]byte, 0, len(head)+len(payload))
	raw = append(raw, head...)
	raw = append(raw, payload...)

	var rec protocol.Record
	id := uuid.Must(uuid.NewUUID())
	rec.Meta.Version = protocol.RecordVersion
	rec.Meta.UUID = id.String()
	rec.Meta.CaptureTime = time.Now().UnixNano()
	rec.Meta.Direction = dir.String()
	rec.Meta.Src = addrString(dc.SrcAddr.IP, dc.SrcAddr.Port)
	rec.Meta.Dst = addrString(dc.DstAddr.IP, dc.DstAddr.Port)
	rec.Kind = h.Kind.String()
	rec.Flags = uint8(h.Flags)
	rec.StreamID = uint32(h.StreamID)
	rec.Length = h.Length
	rec.Raw = raw
	return &rec
}

func addrString(ip string, port uint32) string {
	if util.IsIPv6(ip) {
		return fmt.Sprintf("[%v]:%v", ip, port)
	}
	return fmt.Sprintf("%v:%v", ip, port)
}
