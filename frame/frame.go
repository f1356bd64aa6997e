// Package frame implements the HTTP/2 framing layer: the fixed 9-byte
// frame header and the ten registered payload kinds, parsed from and
// encoded into caller-owned buffers.
//
// Parsing is zero copy. Variable-length payload fields (data, header
// block fragments, debug data) are sub-slices of the buffer handed to
// ParsePayload, so a parsed Frame must not outlive that buffer, and the
// buffer must not be modified while the Frame is in use. The package
// holds no state and performs no I/O; concurrent calls are safe as long
// as each call works on its own buffer.
package frame

import "encoding/binary"

// HeaderLen is the wire size of a frame header.
const HeaderLen = 9

// streamIDMask clears the reserved top bit of a 4-byte stream field.
const streamIDMask = 1<<31 - 1

// StreamID identifies a logical stream. Only the low 31 bits are
// significant; the top bit is reserved, cleared on parse and never set
// on encode.
type StreamID uint32

// ParseStreamID reads a stream identifier from the first 4 bytes of buf,
// ignoring the reserved bit.
func ParseStreamID(buf []byte) StreamID {
	return StreamID(binary.BigEndian.Uint32(buf)) & streamIDMask
}

// Encode writes the identifier into the first 4 bytes of buf with the
// reserved bit cleared, whatever the receiver's top bit holds.
func (id StreamID) Encode(buf []byte) {
	binary.BigEndian.PutUint32(buf, uint32(id)&streamIDMask)
}

// Header is the fixed 9-byte prefix of every frame.
//
// Length counts the payload bytes that follow the header on the wire,
// including any padding and priority sub-fields nested in that span.
type Header struct {
	Length   uint32
	Kind     Kind
	Flags    Flags
	StreamID StreamID
}

// ParseHeader reads the frame header at the start of buf. It fails with
// ErrShort when buf holds fewer than HeaderLen bytes and with a
// BadFlagError when the flag byte carries bits outside FlagMask.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, ErrShort
	}
	flags, err := ParseFlags(buf[4])
	if err != nil {
		return Header{}, err
	}
	return Header{
		Length:   uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]),
		Kind:     ParseKind(buf[3]),
		Flags:    flags,
		StreamID: ParseStreamID(buf[5:HeaderLen]),
	}, nil
}

// Encode writes the header into the first HeaderLen bytes of buf and
// reports the bytes written. Bits of Length above 24 are dropped; the
// caller keeps Length in range.
func (h Header) Encode(buf []byte) int {
	_ = buf[HeaderLen-1]
	buf[0] = byte(h.Length >> 16)
	buf[1] = byte(h.Length >> 8)
	buf[2] = byte(h.Length)
	buf[3] = h.Kind.Encode()
	buf[4] = byte(h.Flags)
	h.StreamID.Encode(buf[5:HeaderLen])
	return HeaderLen
}

// Frame pairs a header with its decoded payload. The payload's kind must
// match the header's, and the header length must equal the payload's
// encoded length, for Encode output to reparse to the same frame.
type Frame struct {
	Header  Header
	Payload Payload
}

// ParseFrame decodes the payload bytes that follow an already-parsed
// header. buf starts at the first payload byte; bytes beyond
// header.Length belong to the next frame and are ignored.
func ParseFrame(h Header, buf []byte) (Frame, error) {
	p, err := ParsePayload(h, buf)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Header: h, Payload: p}, nil
}

// NewFrame builds a frame around p, deriving the header's length and
// kind from the payload. The priority flag is added when p carries
// priority fields in front of a header block.
func NewFrame(flags Flags, id StreamID, p Payload) Frame {
	if hp, ok := p.(HeadersPayload); ok && hp.Priority != nil {
		flags |= FlagPriority
	}
	return Frame{
		Header: Header{
			Length:   uint32(p.EncodedLen()),
			Kind:     p.Kind(),
			Flags:    flags,
			StreamID: id,
		},
		Payload: p,
	}
}

// Encode writes the header and payload into buf and reports the bytes
// written. buf must hold at least EncodedLen bytes. Padding is never
// re-emitted: a frame parsed with the padded flag encodes to its
// unpadded content.
func (f Frame) Encode(buf []byte) int {
	n := f.Header.Encode(buf)
	return n + f.Payload.Encode(buf[n:])
}

// EncodedLen reports how many bytes Encode writes.
func (f Frame) EncodedLen() int {
	return HeaderLen + f.Payload.EncodedLen()
}
