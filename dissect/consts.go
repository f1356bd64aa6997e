package dissect

import "github.com/vearne/h2replay/protocol"

const (
	// Every client connection opens with a 24-byte preface that is not a
	// frame. Some older clients send the early form first.
	PrefaceEarly = "FOO * HTTP/2.0\r\n\r\nBA\r\n\r\n"
	PrefaceSTD   = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

	ConnectionPrefaceSize = 24
)

const (
	// http://http2.github.io/http2-spec/#SettingValues
	initialHeaderTableSize = 4096
)

type Dir uint8

const (
	DirUnknown Dir = iota
	DirIncoming
	DirOutgoing
)

func (d Dir) String() string {
	switch d {
	case DirIncoming:
		return protocol.DirIncoming
	case DirOutgoing:
		return protocol.DirOutgoing
	}
	return protocol.DirUnknown
}
