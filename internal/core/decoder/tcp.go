package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/dissector/internal/core"
)

const (
	tcpHeaderMinLen = 20
	tcpMinWords     = 5

	// Bytes 12-13: | header length (4) | reserved (6) | flags (6) |
	tcpHeaderLenShift = 12
	tcpReservedShift  = 6
	tcpReservedMask   = 0x3F
	tcpFlagsMask      = 0x3F

	tcpFlagURG = 0x20
	tcpFlagACK = 0x10
	tcpFlagPSH = 0x08
	tcpFlagRST = 0x04
	tcpFlagSYN = 0x02
	tcpFlagFIN = 0x01
)

// decodeTCP decodes the fixed TCP header and, when the header length
// announces them, the options that follow it. The returned payload starts
// after the whole declared options region, whatever the option decoder
// actually consumed.
func decodeTCP(data []byte) (core.TCPSegment, []byte, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TCPSegment{}, nil, shortErr(tcpHeaderMinLen, len(data))
	}

	hlenResFlags := binary.BigEndian.Uint16(data[12:14])
	flags := hlenResFlags & tcpFlagsMask

	seg := core.TCPSegment{
		SrcPort:       binary.BigEndian.Uint16(data[0:2]),
		DstPort:       binary.BigEndian.Uint16(data[2:4]),
		Seq:           binary.BigEndian.Uint32(data[4:8]),
		Ack:           binary.BigEndian.Uint32(data[8:12]),
		HeaderLength:  uint8(hlenResFlags >> tcpHeaderLenShift),
		Reserved:      uint8((hlenResFlags >> tcpReservedShift) & tcpReservedMask),
		URG:           flags&tcpFlagURG != 0,
		ACK:           flags&tcpFlagACK != 0,
		PSH:           flags&tcpFlagPSH != 0,
		RST:           flags&tcpFlagRST != 0,
		SYN:           flags&tcpFlagSYN != 0,
		FIN:           flags&tcpFlagFIN != 0,
		Window:        binary.BigEndian.Uint16(data[14:16]),
		Checksum:      binary.BigEndian.Uint16(data[16:18]),
		UrgentPointer: binary.BigEndian.Uint16(data[18:20]),
	}

	rest := data[tcpHeaderMinLen:]
	if seg.HeaderLength <= tcpMinWords {
		return seg, rest, nil
	}

	n := int(seg.HeaderLength-tcpMinWords) * 4
	if n > len(rest) {
		return seg, nil, optionsErr(n, len(rest))
	}

	opts, _, err := decodeTCPOptions(rest[:n])
	if err != nil {
		return seg, nil, err
	}
	seg.Options = opts

	return seg, rest[n:], nil
}

// optionsErr wraps ErrMalformedOptions with the sizes involved.
func optionsErr(declared, have int) error {
	return fmt.Errorf("%w: options region of %d bytes, %d available", core.ErrMalformedOptions, declared, have)
}
