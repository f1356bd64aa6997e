package dissect

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/vearne/h2replay/util"
)

type DirectConn struct {
	SrcAddr psnet.Addr
	DstAddr psnet.Addr
}

func (d *DirectConn) String() string {
	return fmt.Sprintf("%v:%v -> %v:%v", d.SrcAddr.IP,
		d.SrcAddr.Port, d.DstAddr.IP, d.DstAddr.Port)
}

func (d DirectConn) Reverse() DirectConn {
	return DirectConn{SrcAddr: d.DstAddr, DstAddr: d.SrcAddr}
}

type NetPkg struct {
	SrcIP string
	DstIP string

	Ethernet  *layers.Ethernet
	IPv4      *layers.IPv4
	IPv6      *layers.IPv6
	TCP       *layers.TCP
	Direction Dir
}

// ProcessPacket extracts the TCP segment from a captured packet and
// classifies its direction against the captured addresses: segments
// sent by ip:port are outgoing, segments toward it are incoming.
// When ipSet is empty (pcap files carry no interface addresses) the
// port alone decides the direction.
func ProcessPacket(packet gopacket.Packet, ipSet *util.StringSet, ports []uint16) (*NetPkg, error) {
	var p NetPkg

	ethernet := packet.Layer(layers.LayerTypeEthernet)
	ipLayerIPv4 := packet.Layer(layers.LayerTypeIPv4)
	ipLayerIPv6 := packet.Layer(layers.LayerTypeIPv6)
	if ethernet == nil || (ipLayerIPv4 == nil && ipLayerIPv6 == nil) {
		return nil, errors.New("invalid IP package")
	}

	p.Ethernet = ethernet.(*layers.Ethernet)
	if ipLayerIPv4 != nil {
		p.IPv4 = ipLayerIPv4.(*layers.IPv4)
		p.SrcIP = p.IPv4.SrcIP.String()
		p.DstIP = p.IPv4.DstIP.String()
	}
	if ipLayerIPv6 != nil {
		p.IPv6 = ipLayerIPv6.(*layers.IPv6)
		p.SrcIP = p.IPv6.SrcIP.String()
		p.DstIP = p.IPv6.DstIP.String()
	}

	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return nil, errors.New("invalid TCP package")
	}
	p.TCP = tcpLayer.(*layers.TCP)
	srcCaptured := ipSet.Size() == 0 || ipSet.Has(p.SrcIP)
	dstCaptured := ipSet.Size() == 0 || ipSet.Has(p.DstIP)
	if srcCaptured && matchPort(ports, p.TCP.SrcPort) {
		p.Direction = DirOutgoing
	} else if dstCaptured && matchPort(ports, p.TCP.DstPort) {
		p.Direction = DirIncoming
	} else {
		p.Direction = DirUnknown
	}
	return &p, nil
}

// matchPort reports whether p is one of the captured ports. Port 0
// stands for all ports.
func matchPort(ports []uint16, p layers.TCPPort) bool {
	for _, port := range ports {
		if port == 0 || port == uint16(p) {
			return true
		}
	}
	return false
}

func (p *NetPkg) TCPFlags() []string {
	flags := make([]string, 0)
	if p.TCP.FIN {
		flags = append(flags, "FIN")
	}
	if p.TCP.SYN {
		flags = append(flags, "SYN")
	}
	if p.TCP.RST {
		flags = append(flags, "RST")
	}
	if p.TCP.PSH {
		flags = append(flags, "PSH")
	}
	if p.TCP.ACK {
		flags = append(flags, "ACK")
	}
	if p.TCP.URG {
		flags = append(flags, "URG")
	}
	return flags
}

func (p *NetPkg) DirectConn() DirectConn {
	var c DirectConn
	c.SrcAddr.IP = p.SrcIP
	c.DstAddr.IP = p.DstIP
	c.SrcAddr.Port = uint32(p.TCP.SrcPort)
	c.DstAddr.Port = uint32(p.TCP.DstPort)
	return c
}

// FSMEvents maps the segment's TCP flags to state machine events, seen
// from the server's side: incoming segments "receive", outgoing ones
// "send". A FIN or SYN suppresses the plain ACK event the same segment
// would otherwise produce.
func (p *NetPkg) FSMEvents() []string {
	events := make([]string, 0, 1)
	if p.TCP.RST {
		return append(events, EventReceiveRST)
	}
	switch p.Direction {
	case DirIncoming:
		if p.TCP.SYN && !p.TCP.ACK {
			events = append(events, EventReceiveSYN)
		}
		if p.TCP.FIN {
			events = append(events, EventReceiveFIN)
		}
		if p.TCP.ACK && !p.TCP.SYN && !p.TCP.FIN {
			events = append(events, EventReceiveACK)
		}
	case DirOutgoing:
		if p.TCP.SYN && p.TCP.ACK {
			events = append(events, EventSendSYNACK)
		}
		if p.TCP.FIN {
			events = append(events, EventSendFIN)
		}
		if p.TCP.ACK && !p.TCP.SYN && !p.TCP.FIN {
			events = append(events, EventSendACK)
		}
	}
	return events
}
