package consts

import "errors"

// Filled in by the linker (-ldflags "-X ...") for release builds.
var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitTag    = "unknown"
)

var (
	// ErrBadRecord reports record bytes that do not follow the codec's
	// documented line layout.
	ErrBadRecord = errors.New("malformed record")

	// ErrUnknownCodec reports a codec name nothing was registered under.
	ErrUnknownCodec = errors.New("unknown codec")
)
