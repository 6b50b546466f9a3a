package core

import "fmt"

// Layer identifies one stage of the dissection pipeline.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerEthernet
	LayerARP
	LayerIPv4
	LayerICMP
	LayerTCP
	LayerUDP
)

var layerNames = [...]string{
	LayerNone:     "none",
	LayerEthernet: "ethernet",
	LayerARP:      "arp",
	LayerIPv4:     "ipv4",
	LayerICMP:     "icmp",
	LayerTCP:      "tcp",
	LayerUDP:      "udp",
}

func (l Layer) String() string {
	if int(l) < len(layerNames) {
		return layerNames[l]
	}
	return fmt.Sprintf("layer(%d)", uint8(l))
}

// Classification tags below hold the raw wire value. Values without a named
// constant are the unrecognized arm: Known reports false and the raw value is
// kept as-is for the caller.

// EtherType classifies the payload of an Ethernet frame.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
	EtherTypeIPv6 EtherType = 0x86DD
)

func (t EtherType) Known() bool {
	switch t {
	case EtherTypeIPv4, EtherTypeARP, EtherTypeIPv6:
		return true
	}
	return false
}

func (t EtherType) String() string {
	switch t {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	case EtherTypeIPv6:
		return "IPv6"
	}
	return fmt.Sprintf("Unrecognized(0x%04x)", uint16(t))
}

// ARPHardwareType is the ARP hardware address space.
type ARPHardwareType uint16

const ARPHardwareEthernet ARPHardwareType = 0x0001

func (t ARPHardwareType) Known() bool { return t == ARPHardwareEthernet }

func (t ARPHardwareType) String() string {
	if t == ARPHardwareEthernet {
		return "Ethernet"
	}
	return fmt.Sprintf("Unrecognized(0x%04x)", uint16(t))
}

// ARPProtocolType is the ARP protocol address space.
type ARPProtocolType uint16

const ARPProtocolIPv4 ARPProtocolType = 0x0800

func (t ARPProtocolType) Known() bool { return t == ARPProtocolIPv4 }

func (t ARPProtocolType) String() string {
	if t == ARPProtocolIPv4 {
		return "IPv4"
	}
	return fmt.Sprintf("Unrecognized(0x%04x)", uint16(t))
}

// ARPOperation is the ARP opcode.
type ARPOperation uint16

const (
	ARPRequest ARPOperation = 1
	ARPReply   ARPOperation = 2
)

func (o ARPOperation) Known() bool { return o == ARPRequest || o == ARPReply }

func (o ARPOperation) String() string {
	switch o {
	case ARPRequest:
		return "Request"
	case ARPReply:
		return "Reply"
	}
	return fmt.Sprintf("Unrecognized(0x%04x)", uint16(o))
}

// IPProtocol classifies the transport carried by an IPv4 datagram.
type IPProtocol uint8

const (
	IPProtocolICMP IPProtocol = 1
	IPProtocolTCP  IPProtocol = 6
	IPProtocolUDP  IPProtocol = 17
)

func (p IPProtocol) Known() bool {
	switch p {
	case IPProtocolICMP, IPProtocolTCP, IPProtocolUDP:
		return true
	}
	return false
}

func (p IPProtocol) String() string {
	switch p {
	case IPProtocolICMP:
		return "ICMP"
	case IPProtocolTCP:
		return "TCP"
	case IPProtocolUDP:
		return "UDP"
	}
	return fmt.Sprintf("Unrecognized(%d)", uint8(p))
}

// TCPOptionKind is the kind byte of a TCP option.
type TCPOptionKind uint8

const (
	TCPOptionEndOfList     TCPOptionKind = 0
	TCPOptionNoOperation   TCPOptionKind = 1
	TCPOptionMSS           TCPOptionKind = 2
	TCPOptionWindowScale   TCPOptionKind = 3
	TCPOptionSACKPermitted TCPOptionKind = 4
	TCPOptionTimestamp     TCPOptionKind = 8
)

func (k TCPOptionKind) Known() bool {
	switch k {
	case TCPOptionEndOfList, TCPOptionNoOperation, TCPOptionMSS,
		TCPOptionWindowScale, TCPOptionSACKPermitted, TCPOptionTimestamp:
		return true
	}
	return false
}

func (k TCPOptionKind) String() string {
	switch k {
	case TCPOptionEndOfList:
		return "EndOfOptionList"
	case TCPOptionNoOperation:
		return "NoOperation"
	case TCPOptionMSS:
		return "MaximumSegmentSize"
	case TCPOptionWindowScale:
		return "WindowScale"
	case TCPOptionSACKPermitted:
		return "SACKPermitted"
	case TCPOptionTimestamp:
		return "Timestamp"
	}
	return fmt.Sprintf("Unrecognized(%d)", uint8(k))
}
