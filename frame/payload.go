package frame

import "encoding/binary"

// paddingLen is the wire size of the pad-length prefix.
const paddingLen = 1

// Payload is the kind-specific content of a frame.
//
// Implementations hold read-only views into the buffer they were parsed
// from; see the package documentation for the aliasing contract. Encode
// writes exactly EncodedLen bytes into a caller-provided buffer of at
// least that size and reports the count.
type Payload interface {
	Kind() Kind
	EncodedLen() int
	Encode(buf []byte) int
}

// ParsePayload decodes the payload described by h from the start of buf.
// buf may extend past the frame; bytes beyond h.Length are ignored.
//
// The padded and priority flags determine how many bytes of fixed
// framing the payload must at least contain. A declared length below
// that floor fails with ErrPayloadLengthTooShort before kind dispatch,
// so the per-kind parsers never index past their input.
func ParsePayload(h Header, buf []byte) (Payload, error) {
	if int64(len(buf)) < int64(h.Length) {
		return nil, ErrShort
	}

	padded := h.Flags.Padded()
	priority := h.Flags.HasPriority()

	var min uint32
	switch {
	case padded && priority:
		min = PriorityLen + paddingLen
	case priority:
		min = PriorityLen
	case padded:
		min = paddingLen
	}
	if h.Length < min {
		return nil, ErrPayloadLengthTooShort
	}

	buf = buf[:h.Length]

	switch h.Kind {
	case KindData:
		data, err := trimPadding(padded, h, buf)
		if err != nil {
			return nil, err
		}
		return DataPayload{Data: data}, nil

	case KindHeaders:
		rest, err := trimPadding(padded, h, buf)
		if err != nil {
			return nil, err
		}
		prio, block, err := parsePriority(priority, rest)
		if err != nil {
			return nil, err
		}
		return HeadersPayload{Priority: prio, Block: block}, nil

	case KindPriority:
		// Priority fields are mandatory for this kind, flag or no flag.
		prio, _, err := parsePriority(true, buf)
		if err != nil {
			return nil, err
		}
		return PriorityPayload{Priority: *prio}, nil

	case KindReset:
		if h.Length < 4 {
			return nil, ErrPayloadLengthTooShort
		}
		return ResetPayload{Code: ErrCode(binary.BigEndian.Uint32(buf))}, nil

	case KindSettings:
		settings, err := parseSettings(buf)
		if err != nil {
			return nil, err
		}
		return SettingsPayload{Settings: settings}, nil

	case KindPushPromise:
		rest, err := trimPadding(padded, h, buf)
		if err != nil {
			return nil, err
		}
		if len(rest) < 4 {
			return nil, ErrPayloadLengthTooShort
		}
		return PushPromisePayload{
			Promised: ParseStreamID(rest),
			Block:    rest[4:],
		}, nil

	case KindPing:
		if h.Length != 8 {
			return nil, ErrInvalidPayloadLength
		}
		return PingPayload{Value: binary.BigEndian.Uint64(buf)}, nil

	case KindGoAway:
		if h.Length < 8 {
			return nil, ErrPayloadLengthTooShort
		}
		return GoAwayPayload{
			Last:  ParseStreamID(buf),
			Code:  ErrCode(binary.BigEndian.Uint32(buf[4:])),
			Debug: buf[8:],
		}, nil

	case KindWindowUpdate:
		if h.Length != 4 {
			return nil, ErrInvalidPayloadLength
		}
		// The increment's top bit is reserved like a stream id's and is
		// masked the same way.
		return WindowUpdatePayload{Increment: binary.BigEndian.Uint32(buf) & streamIDMask}, nil

	case KindContinuation:
		return ContinuationPayload{Block: buf}, nil
	}

	return UnregisteredPayload{Block: buf}, nil
}

// trimPadding strips the pad-length prefix and the trailing padding it
// declares. A pad length leaving an empty or negative content range
// (pad >= declared length) is rejected rather than sliced.
func trimPadding(padded bool, h Header, buf []byte) ([]byte, error) {
	if !padded {
		return buf, nil
	}
	pad := buf[0]
	if uint32(pad) >= h.Length {
		return nil, &TooMuchPaddingError{PadLength: pad}
	}
	return buf[paddingLen : h.Length-uint32(pad)], nil
}

// DataPayload carries opaque application bytes.
type DataPayload struct {
	Data []byte
}

func (p DataPayload) Kind() Kind      { return KindData }
func (p DataPayload) EncodedLen() int { return len(p.Data) }

// Encode writes the data bytes. Padding stripped at parse time is not
// re-created.
func (p DataPayload) Encode(buf []byte) int {
	return copy(buf, p.Data)
}

// HeadersPayload carries a header block fragment, optionally preceded by
// priority fields.
type HeadersPayload struct {
	Priority *Priority
	Block    []byte
}

func (p HeadersPayload) Kind() Kind { return KindHeaders }

func (p HeadersPayload) EncodedLen() int {
	if p.Priority != nil {
		return PriorityLen + len(p.Block)
	}
	return len(p.Block)
}

func (p HeadersPayload) Encode(buf []byte) int {
	n := 0
	if p.Priority != nil {
		n = p.Priority.Encode(buf)
	}
	return n + copy(buf[n:], p.Block)
}

// PriorityPayload reprioritizes a stream.
type PriorityPayload struct {
	Priority Priority
}

func (p PriorityPayload) Kind() Kind      { return KindPriority }
func (p PriorityPayload) EncodedLen() int { return PriorityLen }

func (p PriorityPayload) Encode(buf []byte) int {
	return p.Priority.Encode(buf)
}

// ResetPayload terminates a stream with an error code.
type ResetPayload struct {
	Code ErrCode
}

func (p ResetPayload) Kind() Kind      { return KindReset }
func (p ResetPayload) EncodedLen() int { return 4 }

func (p ResetPayload) Encode(buf []byte) int {
	binary.BigEndian.PutUint32(buf, uint32(p.Code))
	return 4
}

// SettingsPayload carries configuration records. An empty record list is
// valid; acknowledgements are empty Settings frames with the ack bit.
type SettingsPayload struct {
	Settings []Setting
}

func (p SettingsPayload) Kind() Kind      { return KindSettings }
func (p SettingsPayload) EncodedLen() int { return len(p.Settings) * SettingLen }

func (p SettingsPayload) Encode(buf []byte) int {
	return encodeSettings(p.Settings, buf)
}

// PushPromisePayload announces a reserved stream together with the
// header block fragment describing it.
type PushPromisePayload struct {
	Promised StreamID
	Block    []byte
}

func (p PushPromisePayload) Kind() Kind      { return KindPushPromise }
func (p PushPromisePayload) EncodedLen() int { return 4 + len(p.Block) }

func (p PushPromisePayload) Encode(buf []byte) int {
	p.Promised.Encode(buf)
	return 4 + copy(buf[4:], p.Block)
}

// PingPayload carries an 8-byte opaque value the peer echoes back in its
// acknowledgement.
type PingPayload struct {
	Value uint64
}

func (p PingPayload) Kind() Kind      { return KindPing }
func (p PingPayload) EncodedLen() int { return 8 }

func (p PingPayload) Encode(buf []byte) int {
	binary.BigEndian.PutUint64(buf, p.Value)
	return 8
}

// GoAwayPayload shuts a connection down, naming the last stream the
// sender may have acted on plus optional opaque debug data.
type GoAwayPayload struct {
	Last  StreamID
	Code  ErrCode
	Debug []byte
}

func (p GoAwayPayload) Kind() Kind      { return KindGoAway }
func (p GoAwayPayload) EncodedLen() int { return 8 + len(p.Debug) }

func (p GoAwayPayload) Encode(buf []byte) int {
	p.Last.Encode(buf)
	binary.BigEndian.PutUint32(buf[4:], uint32(p.Code))
	return 8 + copy(buf[8:], p.Debug)
}

// WindowUpdatePayload grants flow-control credit. The wire field's top
// bit is reserved and cleared on both parse and encode.
type WindowUpdatePayload struct {
	Increment uint32
}

func (p WindowUpdatePayload) Kind() Kind      { return KindWindowUpdate }
func (p WindowUpdatePayload) EncodedLen() int { return 4 }

func (p WindowUpdatePayload) Encode(buf []byte) int {
	binary.BigEndian.PutUint32(buf, p.Increment&streamIDMask)
	return 4
}

// ContinuationPayload carries the remainder of a header block that did
// not fit into its Headers or PushPromise frame.
type ContinuationPayload struct {
	Block []byte
}

func (p ContinuationPayload) Kind() Kind      { return KindContinuation }
func (p ContinuationPayload) EncodedLen() int { return len(p.Block) }

func (p ContinuationPayload) Encode(buf []byte) int {
	return copy(buf, p.Block)
}

// UnregisteredPayload preserves the raw bytes of a frame whose kind is
// outside the registry.
type UnregisteredPayload struct {
	Block []byte
}

func (p UnregisteredPayload) Kind() Kind      { return KindUnregistered }
func (p UnregisteredPayload) EncodedLen() int { return len(p.Block) }

func (p UnregisteredPayload) Encode(buf []byte) int {
	return copy(buf, p.Block)
}
