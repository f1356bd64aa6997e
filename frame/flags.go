package frame

// Flags is the 8-bit flag field of a frame header. Only the four bits in
// FlagMask are assigned; ParseFlags rejects anything else.
type Flags uint8

const (
	// FlagEndStreamOrAck is end-of-stream on Data and Headers frames and
	// acknowledgement on Settings and Ping frames. The bitset stores the
	// bit as-is; IsEndStream and IsAck disambiguate by kind.
	FlagEndStreamOrAck Flags = 0x1

	FlagEndHeaders Flags = 0x4
	FlagPadded     Flags = 0x8
	FlagPriority   Flags = 0x20
)

// FlagMask is the union of all assigned flag bits.
const FlagMask = FlagEndStreamOrAck | FlagEndHeaders | FlagPadded | FlagPriority

// ParseFlags validates a wire flag byte. A byte with bits outside
// FlagMask fails with a BadFlagError carrying the offending byte.
func ParseFlags(b byte) (Flags, error) {
	if Flags(b)&^FlagMask != 0 {
		return 0, &BadFlagError{Byte: b}
	}
	return Flags(b), nil
}

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

func (f Flags) EndHeaders() bool  { return f.Has(FlagEndHeaders) }
func (f Flags) Padded() bool      { return f.Has(FlagPadded) }
func (f Flags) HasPriority() bool { return f.Has(FlagPriority) }

// IsEndStream reports whether the shared 0x1 bit is set and means
// end-of-stream for the given kind.
func (f Flags) IsEndStream(k Kind) bool {
	return (k == KindData || k == KindHeaders) && f.Has(FlagEndStreamOrAck)
}

// IsAck reports whether the shared 0x1 bit is set and means
// acknowledgement for the given kind.
func (f Flags) IsAck(k Kind) bool {
	return (k == KindSettings || k == KindPing) && f.Has(FlagEndStreamOrAck)
}
