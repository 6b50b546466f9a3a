package decoder

import (
	"encoding/binary"

	"firestige.xyz/dissector/internal/core"
)

const udpHeaderLen = 8

// decodeUDP decodes the UDP header. Like every other layer it returns the
// payload after its own 8 bytes.
func decodeUDP(data []byte) (core.UDPDatagram, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.UDPDatagram{}, nil, shortErr(udpHeaderLen, len(data))
	}

	udp := core.UDPDatagram{
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		Length:   binary.BigEndian.Uint16(data[4:6]), // Header and data
		Checksum: binary.BigEndian.Uint16(data[6:8]),
	}

	return udp, data[udpHeaderLen:], nil
}
