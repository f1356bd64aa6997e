package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKindTotality(t *testing.T) {
	named := []Kind{
		KindData, KindHeaders, KindPriority, KindReset, KindSettings,
		KindPushPromise, KindPing, KindGoAway, KindWindowUpdate,
		KindContinuation,
	}
	for b := 0; b < 256; b++ {
		k := ParseKind(byte(b))
		if b < len(named) {
			assert.Equal(t, named[b], k)
			assert.Equal(t, byte(b), k.Encode())
		} else {
			assert.Equal(t, KindUnregistered, k)
		}
	}
}

// Encoding an unregistered kind writes the sentinel byte, not whatever
// byte produced it: the parse direction is total, the encode direction
// is lossy.
func TestUnregisteredKindEncodeIsLossy(t *testing.T) {
	k := ParseKind(200)
	assert.Equal(t, KindUnregistered, k)
	assert.Equal(t, byte(0xFF), k.Encode())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "DATA", KindData.String())
	assert.Equal(t, "PUSH_PROMISE", KindPushPromise.String())
	assert.Equal(t, "GOAWAY", KindGoAway.String())
	assert.Equal(t, "UNREGISTERED", KindUnregistered.String())
}

func TestParseFlagsValidity(t *testing.T) {
	for b := 0; b < 256; b++ {
		f, err := ParseFlags(byte(b))
		if byte(b)&^byte(FlagMask) == 0 {
			assert.Nil(t, err)
			assert.Equal(t, Flags(b), f)
		} else {
			var bad *BadFlagError
			assert.ErrorAs(t, err, &bad)
			assert.Equal(t, byte(b), bad.Byte)
		}
	}
}

func TestFlagAccessors(t *testing.T) {
	f := FlagEndStreamOrAck | FlagEndHeaders | FlagPadded | FlagPriority
	assert.True(t, f.EndHeaders())
	assert.True(t, f.Padded())
	assert.True(t, f.HasPriority())

	assert.True(t, f.IsEndStream(KindData))
	assert.True(t, f.IsEndStream(KindHeaders))
	assert.False(t, f.IsEndStream(KindSettings))

	assert.True(t, f.IsAck(KindSettings))
	assert.True(t, f.IsAck(KindPing))
	assert.False(t, f.IsAck(KindData))

	assert.False(t, Flags(0).IsAck(KindSettings))
	assert.False(t, Flags(0).IsEndStream(KindData))
}
