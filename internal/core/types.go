// Package core defines core types with zero external dependencies.
package core

import (
	"net"
	"net/netip"
	"strconv"
)

// MAC is a 48-bit hardware address.
type MAC [6]byte

func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

func (m MAC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// EthernetFrame represents the L2 Ethernet II header.
type EthernetFrame struct {
	DstMAC    MAC
	SrcMAC    MAC
	EtherType EtherType
}

// ARPMessage represents an Ethernet/IPv4 ARP message.
// HardwareAddrLen and ProtocolAddrLen are reported as declared on the wire;
// the layout always assumes 6-byte MACs and 4-byte IPv4 addresses.
type ARPMessage struct {
	HardwareType    ARPHardwareType
	ProtocolType    ARPProtocolType
	HardwareAddrLen uint8
	ProtocolAddrLen uint8
	Operation       ARPOperation
	SenderMAC       MAC
	SenderIP        netip.Addr
	TargetMAC       MAC
	TargetIP        netip.Addr
}

// IPv4Header represents the fixed 20-byte IPv4 header.
type IPv4Header struct {
	Version        uint8
	HeaderLength   uint8 // In 32-bit words
	TOS            uint8
	TotalLength    uint16
	ID             uint16
	Flags          uint8  // Top 3 bits of bytes 6-7
	FragmentOffset uint16 // Low 13 bits of bytes 6-7
	TTL            uint8
	Protocol       IPProtocol
	Checksum       uint16
	SrcIP          netip.Addr
	DstIP          netip.Addr
}

// HeaderBytes returns the header size claimed by the header length field.
func (h *IPv4Header) HeaderBytes() int {
	return int(h.HeaderLength) * 4
}

// IPv4 flag bits as they appear in IPv4Header.Flags.
const (
	IPv4FlagMoreFragments uint8 = 0x1
	IPv4FlagDontFragment  uint8 = 0x2
	IPv4FlagEvil          uint8 = 0x4
)

// ICMPMessage represents the ICMP type/code/checksum prefix.
type ICMPMessage struct {
	Class    ICMPClass
	Checksum uint16
}

// TCPSegment represents a TCP header and its options.
type TCPSegment struct {
	SrcPort       uint16
	DstPort       uint16
	Seq           uint32
	Ack           uint32
	HeaderLength  uint8 // In 32-bit words
	Reserved      uint8
	URG           bool
	ACK           bool
	PSH           bool
	RST           bool
	SYN           bool
	FIN           bool
	Window        uint16
	Checksum      uint16
	UrgentPointer uint16
	Options       []TCPOption // nil when the header carries no option bytes
}

// TCPOption is one entry of a TCP options list. Only the fields matching
// Kind are set.
type TCPOption struct {
	Kind        TCPOptionKind
	Length      uint8 // Declared length byte, 0 for single-byte kinds
	MSS         uint16
	WindowShift uint8
	TSVal       uint32
	TSEcr       uint32
}

// EncodedLen returns the number of option bytes the decoder consumed for o.
func (o TCPOption) EncodedLen() int {
	switch o.Kind {
	case TCPOptionSACKPermitted:
		return 2
	case TCPOptionWindowScale:
		return 3
	case TCPOptionMSS:
		return 4
	case TCPOptionTimestamp:
		return 10
	default:
		// End of list, no-op and unrecognized kinds consume only the kind byte.
		return 1
	}
}

func (o TCPOption) String() string {
	switch o.Kind {
	case TCPOptionMSS:
		return "MaximumSegmentSize(" + strconv.Itoa(int(o.MSS)) + ")"
	case TCPOptionWindowScale:
		return "WindowScale(" + strconv.Itoa(int(o.WindowShift)) + ")"
	case TCPOptionTimestamp:
		return "Timestamp(" + strconv.FormatUint(uint64(o.TSVal), 10) + "," + strconv.FormatUint(uint64(o.TSEcr), 10) + ")"
	}
	return o.Kind.String()
}

// UDPDatagram represents the 8-byte UDP header.
type UDPDatagram struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}
