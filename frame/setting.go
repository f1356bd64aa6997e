package frame

import (
	"encoding/binary"
	"fmt"
)

// SettingLen is the wire size of one setting record.
const SettingLen = 6

// SettingID names a settings parameter. Identifiers outside the
// registered range are preserved and classified unregistered, mirroring
// the treatment of unknown frame kinds.
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
)

// Registered reports whether the identifier is in the known registry.
func (id SettingID) Registered() bool {
	return id >= SettingHeaderTableSize && id <= SettingMaxFrameSize
}

func (id SettingID) String() string {
	switch id {
	case SettingHeaderTableSize:
		return "HEADER_TABLE_SIZE"
	case SettingEnablePush:
		return "ENABLE_PUSH"
	case SettingMaxConcurrentStreams:
		return "MAX_CONCURRENT_STREAMS"
	case SettingInitialWindowSize:
		return "INITIAL_WINDOW_SIZE"
	case SettingMaxFrameSize:
		return "MAX_FRAME_SIZE"
	}
	return fmt.Sprintf("UNKNOWN_SETTING_%d", uint16(id))
}

// Setting is one 6-byte (identifier, value) record of a Settings
// payload.
type Setting struct {
	ID    SettingID
	Value uint32
}

// parseSettings decodes buf as a sequence of 6-byte big-endian records.
// Unlike the variable payload fields the records are materialized, not
// aliased, so they stay valid after the source buffer is recycled.
func parseSettings(buf []byte) ([]Setting, error) {
	if len(buf)%SettingLen != 0 {
		return nil, ErrPartialSettingLength
	}
	settings := make([]Setting, 0, len(buf)/SettingLen)
	for i := 0; i < len(buf); i += SettingLen {
		settings = append(settings, Setting{
			ID:    SettingID(binary.BigEndian.Uint16(buf[i:])),
			Value: binary.BigEndian.Uint32(buf[i+2:]),
		})
	}
	return settings, nil
}

func encodeSettings(settings []Setting, buf []byte) int {
	for i, s := range settings {
		binary.BigEndian.PutUint16(buf[i*SettingLen:], uint16(s.ID))
		binary.BigEndian.PutUint32(buf[i*SettingLen+2:], s.Value)
	}
	return len(settings) * SettingLen
}
