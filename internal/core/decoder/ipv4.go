package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/dissector/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv4MinWords     = 5

	// Byte 0: | version (4) | header length in words (4) |
	ipv4VersionShift = 4
	ipv4IHLMask      = 0x0F

	// Bytes 6-7: | flags (3) | fragment offset (13) |
	ipv4FlagsShift     = 13
	ipv4FragOffsetMask = 0x1FFF
)

// decodeIPv4 decodes the fixed IPv4 header.
// Exactly 20 bytes are consumed whatever the header length field says;
// option bytes, if any, stay at the front of the returned payload.
func decodeIPv4(data []byte) (core.IPv4Header, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPv4Header{}, nil, shortErr(ipv4HeaderMinLen, len(data))
	}

	verIHL := data[0]
	flagsFrag := binary.BigEndian.Uint16(data[6:8])

	ip := core.IPv4Header{
		Version:        verIHL >> ipv4VersionShift,
		HeaderLength:   verIHL & ipv4IHLMask,
		TOS:            data[1],
		TotalLength:    binary.BigEndian.Uint16(data[2:4]),
		ID:             binary.BigEndian.Uint16(data[4:6]),
		Flags:          uint8(flagsFrag >> ipv4FlagsShift),
		FragmentOffset: flagsFrag & ipv4FragOffsetMask,
		TTL:            data[8],
		Protocol:       core.IPProtocol(data[9]),
		Checksum:       binary.BigEndian.Uint16(data[10:12]),
		SrcIP:          netip.AddrFrom4([4]byte(data[12:16])),
		DstIP:          netip.AddrFrom4([4]byte(data[16:20])),
	}

	return ip, data[ipv4HeaderMinLen:], nil
}

// skipIPv4Options advances past the option bytes announced by ip.HeaderLength.
// A header length below 5 is treated as 5.
func skipIPv4Options(ip *core.IPv4Header, payload []byte) ([]byte, error) {
	if ip.HeaderLength <= ipv4MinWords {
		return payload, nil
	}
	n := int(ip.HeaderLength-ipv4MinWords) * 4
	if n > len(payload) {
		return nil, optionsErr(n, len(payload))
	}
	return payload[n:], nil
}
