package frame

import (
	"errors"
	"fmt"
)

// Parse errors. Each one aborts the single parse call that produced it;
// the caller decides whether the connection survives. Nothing here is
// retried or logged by the codec itself.
var (
	// ErrShort means fewer bytes were available than the declared or
	// required length.
	ErrShort = errors.New("frame: buffer shorter than required")

	// ErrPayloadLengthTooShort means the declared payload length cannot
	// hold the fixed fields its flags and kind require.
	ErrPayloadLengthTooShort = errors.New("frame: payload length too short for kind and flags")

	// ErrPartialSettingLength means a settings payload length is not a
	// multiple of the 6-byte record size.
	ErrPartialSettingLength = errors.New("frame: settings payload is not a whole number of records")

	// ErrInvalidPayloadLength means the payload length is not the exact
	// size the kind demands (Ping: 8, WindowUpdate: 4).
	ErrInvalidPayloadLength = errors.New("frame: payload length invalid for frame kind")
)

// BadFlagError reports a flag byte with bits outside FlagMask.
type BadFlagError struct {
	Byte byte
}

func (e *BadFlagError) Error() string {
	return fmt.Sprintf("frame: bad flag byte 0x%02x", e.Byte)
}

// TooMuchPaddingError reports a declared pad length that leaves no room
// for payload content.
type TooMuchPaddingError struct {
	PadLength uint8
}

func (e *TooMuchPaddingError) Error() string {
	return fmt.Sprintf("frame: pad length %d consumes the whole payload", e.PadLength)
}

// ErrCode is the 4-byte wire code carried by Reset and GoAway payloads.
// Unlike StreamID its top bit is meaningful and never masked.
type ErrCode uint32

const (
	ErrCodeNo                 ErrCode = 0x0
	ErrCodeProtocol           ErrCode = 0x1
	ErrCodeInternal           ErrCode = 0x2
	ErrCodeFlowControl        ErrCode = 0x3
	ErrCodeSettingsTimeout    ErrCode = 0x4
	ErrCodeStreamClosed       ErrCode = 0x5
	ErrCodeFrameSize          ErrCode = 0x6
	ErrCodeRefusedStream      ErrCode = 0x7
	ErrCodeCancel             ErrCode = 0x8
	ErrCodeCompression        ErrCode = 0x9
	ErrCodeConnect            ErrCode = 0xA
	ErrCodeEnhanceYourCalm    ErrCode = 0xB
	ErrCodeInadequateSecurity ErrCode = 0xC
	ErrCodeHTTP11Required     ErrCode = 0xD
)

var errCodeNames = map[ErrCode]string{
	ErrCodeNo:                 "NO_ERROR",
	ErrCodeProtocol:           "PROTOCOL_ERROR",
	ErrCodeInternal:           "INTERNAL_ERROR",
	ErrCodeFlowControl:        "FLOW_CONTROL_ERROR",
	ErrCodeSettingsTimeout:    "SETTINGS_TIMEOUT",
	ErrCodeStreamClosed:       "STREAM_CLOSED",
	ErrCodeFrameSize:          "FRAME_SIZE_ERROR",
	ErrCodeRefusedStream:      "REFUSED_STREAM",
	ErrCodeCancel:             "CANCEL",
	ErrCodeCompression:        "COMPRESSION_ERROR",
	ErrCodeConnect:            "CONNECT_ERROR",
	ErrCodeEnhanceYourCalm:    "ENHANCE_YOUR_CALM",
	ErrCodeInadequateSecurity: "INADEQUATE_SECURITY",
	ErrCodeHTTP11Required:     "HTTP_1_1_REQUIRED",
}

func (c ErrCode) String() string {
	if name, ok := errCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown error code 0x%x", uint32(c))
}
