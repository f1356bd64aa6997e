package frame

import "fmt"

// Kind identifies a frame's payload layout.
type Kind uint8

const (
	KindData         Kind = 0x0
	KindHeaders      Kind = 0x1
	KindPriority     Kind = 0x2
	KindReset        Kind = 0x3
	KindSettings     Kind = 0x4
	KindPushPromise  Kind = 0x5
	KindPing         Kind = 0x6
	KindGoAway       Kind = 0x7
	KindWindowUpdate Kind = 0x8
	KindContinuation Kind = 0x9

	// KindUnregistered stands in for any kind byte outside the registry.
	// Unknown kinds are carried, not rejected, so frames defined by
	// protocol extensions pass through unharmed.
	KindUnregistered Kind = 0xFF
)

// ParseKind maps a wire byte to its kind. It never fails: bytes outside
// the registry map to KindUnregistered.
func ParseKind(b byte) Kind {
	if b <= byte(KindContinuation) {
		return Kind(b)
	}
	return KindUnregistered
}

// Encode returns the wire byte for the kind. KindUnregistered encodes to
// the 0xFF sentinel: the byte that produced it at parse time is not
// preserved, so this direction is lossy for unregistered kinds.
func (k Kind) Encode() byte {
	return byte(k)
}

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindHeaders:
		return "HEADERS"
	case KindPriority:
		return "PRIORITY"
	case KindReset:
		return "RESET"
	case KindSettings:
		return "SETTINGS"
	case KindPushPromise:
		return "PUSH_PROMISE"
	case KindPing:
		return "PING"
	case KindGoAway:
		return "GOAWAY"
	case KindWindowUpdate:
		return "WINDOW_UPDATE"
	case KindContinuation:
		return "CONTINUATION"
	case KindUnregistered:
		return "UNREGISTERED"
	}
	return fmt.Sprintf("UNKNOWN_FRAME_KIND_%d", uint8(k))
}
