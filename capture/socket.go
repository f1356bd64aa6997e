package capture

import (
	"github.com/google/gopacket"
)

// Socket is the part of a raw packet socket the listener drives.
type Socket interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	SetBPFFilter(string) error
	SetPromiscuous(bool) error
	SetSnapLen(int) error
	SetLoopbackIndex(i int32)
	Close() error
}
