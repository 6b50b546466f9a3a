// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/dissector/internal/core"
)

const (
	// Ethernet constants
	ethernetHeaderLen = 14
)

// decodeEthernet decodes an Ethernet II header.
// Returns EthernetFrame and remaining payload starting at byte 14.
func decodeEthernet(data []byte) (core.EthernetFrame, []byte, error) {
	if len(data) < ethernetHeaderLen {
		return core.EthernetFrame{}, nil, shortErr(ethernetHeaderLen, len(data))
	}

	eth := core.EthernetFrame{}

	// Destination MAC (6 bytes)
	copy(eth.DstMAC[:], data[0:6])

	// Source MAC (6 bytes)
	copy(eth.SrcMAC[:], data[6:12])

	// EtherType (2 bytes); unknown values are kept as-is
	eth.EtherType = core.EtherType(binary.BigEndian.Uint16(data[12:14]))

	return eth, data[ethernetHeaderLen:], nil
}

// shortErr wraps ErrInsufficientData with the sizes involved.
func shortErr(need, have int) error {
	return fmt.Errorf("%w: need %d bytes, have %d", core.ErrInsufficientData, need, have)
}
