// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawFrame is one link-layer frame handed over by a capture source.
// Data is borrowed: decoders never retain or modify it.
type RawFrame struct {
	Data           []byte    // Raw frame data
	Timestamp      time.Time // Capture timestamp
	CaptureLen     uint32    // Actual captured length
	OrigLen        uint32    // Original frame length on the wire
	InterfaceIndex int       // Network interface index
}

// Dissection is the result of running a frame through the layer pipeline.
// Only the layers listed in Layers are populated, except that TCP also holds
// the fixed header when the options region failed to decode.
type Dissection struct {
	Timestamp  time.Time
	CaptureLen uint32
	OrigLen    uint32

	Layers []Layer // Decoded layers, outermost first

	Ethernet EthernetFrame
	ARP      *ARPMessage
	IPv4     *IPv4Header
	ICMP     *ICMPMessage
	TCP      *TCPSegment
	UDP      *UDPDatagram

	// Payload is the undissected remainder after the deepest decoded layer.
	// It aliases the input buffer.
	Payload []byte

	// Unsupported is set when the pipeline stopped at a classification tag it
	// does not descend into. StoppedAt names the layer that carried that tag.
	Unsupported bool
	StoppedAt   Layer
}

// Has reports whether layer l was decoded.
func (d *Dissection) Has(l Layer) bool {
	for _, x := range d.Layers {
		if x == l {
			return true
		}
	}
	return false
}

// Deepest returns the innermost decoded layer, or LayerNone.
func (d *Dissection) Deepest() Layer {
	if len(d.Layers) == 0 {
		return LayerNone
	}
	return d.Layers[len(d.Layers)-1]
}
