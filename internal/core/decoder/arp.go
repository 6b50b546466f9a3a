package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/dissector/internal/core"
)

// Ethernet/IPv4 ARP: 8 fixed bytes + 2 * (6-byte MAC + 4-byte IPv4).
const arpMessageLen = 28

// decodeARP decodes an ARP message using the fixed Ethernet/IPv4 layout.
// The declared address lengths are recorded but do not change the layout.
func decodeARP(data []byte) (core.ARPMessage, []byte, error) {
	if len(data) < arpMessageLen {
		return core.ARPMessage{}, nil, shortErr(arpMessageLen, len(data))
	}

	arp := core.ARPMessage{
		HardwareType:    core.ARPHardwareType(binary.BigEndian.Uint16(data[0:2])),
		ProtocolType:    core.ARPProtocolType(binary.BigEndian.Uint16(data[2:4])),
		HardwareAddrLen: data[4],
		ProtocolAddrLen: data[5],
		Operation:       core.ARPOperation(binary.BigEndian.Uint16(data[6:8])),
		SenderIP:        netip.AddrFrom4([4]byte(data[14:18])),
		TargetIP:        netip.AddrFrom4([4]byte(data[24:28])),
	}
	copy(arp.SenderMAC[:], data[8:14])
	copy(arp.TargetMAC[:], data[18:24])

	return arp, data[arpMessageLen:], nil
}
