package frame

import "encoding/binary"

// PriorityLen is the wire size of the priority fields.
const PriorityLen = 5

// Priority is the 5-byte stream priority block carried by Priority
// frames and, when the priority flag is set, at the front of Headers
// frames. Weight is the raw wire byte; peers interpret Weight+1 as the
// effective 1..256 weight.
type Priority struct {
	Exclusive  bool
	Dependency StreamID
	Weight     uint8
}

// parsePriority reads the priority fields at the start of buf when
// present and returns the bytes after them. With present false the
// buffer passes through untouched.
func parsePriority(present bool, buf []byte) (*Priority, []byte, error) {
	if !present {
		return nil, buf, nil
	}
	if len(buf) < PriorityLen {
		return nil, nil, ErrShort
	}
	raw := binary.BigEndian.Uint32(buf)
	p := Priority{
		Exclusive:  raw>>31 != 0,
		Dependency: StreamID(raw) & streamIDMask,
		Weight:     buf[4],
	}
	return &p, buf[PriorityLen:], nil
}

// Encode writes the priority fields into the first PriorityLen bytes of
// buf, folding the exclusivity bit into the dependency's top bit.
func (p Priority) Encode(buf []byte) int {
	dep := uint32(p.Dependency) & streamIDMask
	if p.Exclusive {
		dep |= 1 << 31
	}
	binary.BigEndian.PutUint32(buf, dep)
	buf[4] = p.Weight
	return PriorityLen
}

// EncodedLen reports the wire size of the priority fields.
func (p Priority) EncodedLen() int { return PriorityLen }
