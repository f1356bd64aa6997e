package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadLengthValidation(t *testing.T) {
	tests := []struct {
		name    string
		h       Header
		payload []byte
		wantErr error
	}{
		{
			name:    "buffer shorter than declared length",
			h:       Header{Length: 10, Kind: KindData},
			payload: make([]byte, 9),
			wantErr: ErrShort,
		},
		{
			name:    "padded but no room for pad length byte",
			h:       Header{Length: 0, Kind: KindData, Flags: FlagPadded},
			payload: nil,
			wantErr: ErrPayloadLengthTooShort,
		},
		{
			name:    "priority flag but no room for priority fields",
			h:       Header{Length: 4, Kind: KindHeaders, Flags: FlagPriority},
			payload: make([]byte, 4),
			wantErr: ErrPayloadLengthTooShort,
		},
		{
			name:    "both flags but room for only one",
			h:       Header{Length: 5, Kind: KindHeaders, Flags: FlagPadded | FlagPriority},
			payload: make([]byte, 5),
			wantErr: ErrPayloadLengthTooShort,
		},
		{
			name:    "reset of 3 bytes",
			h:       Header{Length: 3, Kind: KindReset},
			payload: make([]byte, 3),
			wantErr: ErrPayloadLengthTooShort,
		},
		{
			name:    "goaway of 7 bytes",
			h:       Header{Length: 7, Kind: KindGoAway},
			payload: make([]byte, 7),
			wantErr: ErrPayloadLengthTooShort,
		},
		{
			name:    "push promise of 3 bytes",
			h:       Header{Length: 3, Kind: KindPushPromise},
			payload: make([]byte, 3),
			wantErr: ErrPayloadLengthTooShort,
		},
		{
			name:    "priority frame of 4 bytes",
			h:       Header{Length: 4, Kind: KindPriority},
			payload: make([]byte, 4),
			wantErr: ErrShort,
		},
		{
			name:    "ping of 7 bytes",
			h:       Header{Length: 7, Kind: KindPing},
			payload: make([]byte, 7),
			wantErr: ErrInvalidPayloadLength,
		},
		{
			name:    "ping of 9 bytes",
			h:       Header{Length: 9, Kind: KindPing},
			payload: make([]byte, 9),
			wantErr: ErrInvalidPayloadLength,
		},
		{
			name:    "window update of 3 bytes",
			h:       Header{Length: 3, Kind: KindWindowUpdate},
			payload: make([]byte, 3),
			wantErr: ErrInvalidPayloadLength,
		},
		{
			name:    "window update of 5 bytes",
			h:       Header{Length: 5, Kind: KindWindowUpdate},
			payload: make([]byte, 5),
			wantErr: ErrInvalidPayloadLength,
		},
		{
			name:    "settings of 7 bytes",
			h:       Header{Length: 7, Kind: KindSettings},
			payload: make([]byte, 7),
			wantErr: ErrPartialSettingLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload(tt.h, tt.payload)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestPaddingStripped(t *testing.T) {
	// pad length 2: one prefix byte, three content bytes, two pad bytes
	h := Header{Length: 6, Kind: KindData, Flags: FlagPadded, StreamID: 1}
	p, err := ParsePayload(h, []byte{2, 'a', 'b', 'c', 0, 0})
	assert.Nil(t, err)
	assert.Equal(t, DataPayload{Data: []byte("abc")}, p)
}

// A pad length equal to the declared payload length must be rejected,
// not sliced: the prefix byte itself already occupies one of the
// declared bytes.
func TestPaddingConsumingWholePayload(t *testing.T) {
	h := Header{Length: 4, Kind: KindData, Flags: FlagPadded, StreamID: 1}
	buf := []byte{4, 0, 0, 0}

	var tooMuch *TooMuchPaddingError
	_, err := ParsePayload(h, buf)
	assert.ErrorAs(t, err, &tooMuch)
	assert.Equal(t, uint8(4), tooMuch.PadLength)

	buf[0] = 5
	_, err = ParsePayload(h, buf)
	assert.ErrorAs(t, err, &tooMuch)
	assert.Equal(t, uint8(5), tooMuch.PadLength)

	// pad length one below the declared length leaves exactly zero
	// content bytes, which is fine
	buf[0] = 3
	p, err := ParsePayload(h, buf)
	assert.Nil(t, err)
	assert.Len(t, p.(DataPayload).Data, 0)
}

func TestHeadersPaddedWithPriority(t *testing.T) {
	// pad length 2, exclusive dependency on stream 5 with weight 31, a
	// single block byte, then two pad bytes
	h := Header{Length: 9, Kind: KindHeaders, Flags: FlagPadded | FlagPriority, StreamID: 7}
	p, err := ParsePayload(h, []byte{2, 0x80, 0x00, 0x00, 0x05, 31, 0x99, 0, 0})
	assert.Nil(t, err)

	hp, ok := p.(HeadersPayload)
	assert.True(t, ok)
	assert.Equal(t, &Priority{Exclusive: true, Dependency: 5, Weight: 31}, hp.Priority)
	assert.Equal(t, []byte{0x99}, hp.Block)
}

func TestHeadersWithoutPriorityFlag(t *testing.T) {
	h := Header{Length: 3, Kind: KindHeaders, Flags: FlagEndHeaders, StreamID: 7}
	p, err := ParsePayload(h, []byte{0x82, 0x86, 0x84})
	assert.Nil(t, err)

	hp := p.(HeadersPayload)
	assert.Nil(t, hp.Priority)
	assert.Equal(t, []byte{0x82, 0x86, 0x84}, hp.Block)
}

// Priority frames carry their fields with or without the priority flag.
func TestPriorityFrameIgnoresFlagBit(t *testing.T) {
	h := Header{Length: 5, Kind: KindPriority, StreamID: 3}
	p, err := ParsePayload(h, []byte{0x80, 0x00, 0x00, 0x07, 0x0A})
	assert.Nil(t, err)
	assert.Equal(t, PriorityPayload{
		Priority: Priority{Exclusive: true, Dependency: 7, Weight: 10},
	}, p)
}

func TestResetPayload(t *testing.T) {
	h := Header{Length: 4, Kind: KindReset, StreamID: 3}
	p, err := ParsePayload(h, []byte{0x0, 0x0, 0x0, 0x8})
	assert.Nil(t, err)
	assert.Equal(t, ResetPayload{Code: ErrCodeCancel}, p)
	assert.Equal(t, "CANCEL", ErrCodeCancel.String())
}

func TestGoAwayFields(t *testing.T) {
	h := Header{Length: 11, Kind: KindGoAway, StreamID: 0}
	buf := []byte{
		0xFF, 0xFF, 0xFF, 0xFF, // last stream id, reserved bit set
		0x0, 0x0, 0x0, 0xB, // ENHANCE_YOUR_CALM
		'b', 'y', 'e',
	}
	p, err := ParsePayload(h, buf)
	assert.Nil(t, err)

	ga := p.(GoAwayPayload)
	assert.Equal(t, StreamID(1<<31-1), ga.Last)
	assert.Equal(t, ErrCodeEnhanceYourCalm, ga.Code)
	assert.Equal(t, []byte("bye"), ga.Debug)
}

func TestWindowUpdateReservedBitMasked(t *testing.T) {
	h := Header{Length: 4, Kind: KindWindowUpdate, StreamID: 1}
	p, err := ParsePayload(h, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	assert.Nil(t, err)
	assert.Equal(t, WindowUpdatePayload{Increment: 1<<31 - 1}, p)

	buf := make([]byte, 4)
	WindowUpdatePayload{Increment: 1<<31 | 9}.Encode(buf)
	assert.Equal(t, []byte{0x0, 0x0, 0x0, 0x9}, buf)
}

func TestPushPromisePayload(t *testing.T) {
	h := Header{Length: 6, Kind: KindPushPromise, Flags: FlagEndHeaders, StreamID: 1}
	p, err := ParsePayload(h, []byte{0x0, 0x0, 0x0, 0x8, 0x82, 0x84})
	assert.Nil(t, err)

	pp := p.(PushPromisePayload)
	assert.Equal(t, StreamID(8), pp.Promised)
	assert.Equal(t, []byte{0x82, 0x84}, pp.Block)
}

// Frames with a kind byte outside the registry are carried verbatim.
func TestUnregisteredKindPassthrough(t *testing.T) {
	raw := []byte{
		0x0, 0x0, 0x3, // length
		200,                // kind
		0x0,                // flags
		0x0, 0x0, 0x0, 0x0, // stream id
		0xDE, 0xAD, 0xBE,
	}
	h, err := ParseHeader(raw)
	assert.Nil(t, err)
	assert.Equal(t, KindUnregistered, h.Kind)

	p, err := ParsePayload(h, raw[HeaderLen:])
	assert.Nil(t, err)
	assert.Equal(t, UnregisteredPayload{Block: []byte{0xDE, 0xAD, 0xBE}}, p)
}

// Bytes past the declared length belong to the next frame and must not
// leak into the payload.
func TestTrailingBytesIgnored(t *testing.T) {
	h := Header{Length: 2, Kind: KindData, StreamID: 1}
	p, err := ParsePayload(h, []byte{'h', 'i', 9, 9, 9})
	assert.Nil(t, err)
	assert.Equal(t, DataPayload{Data: []byte("hi")}, p)
}

// Parsed payload fields are views into the caller's buffer, not copies.
func TestParseSharesBuffer(t *testing.T) {
	h := Header{Length: 3, Kind: KindData, StreamID: 1}
	buf := []byte{'x', 'y', 'z'}
	p, err := ParsePayload(h, buf)
	assert.Nil(t, err)

	buf[0] = 'X'
	assert.Equal(t, []byte("Xyz"), p.(DataPayload).Data)
}
