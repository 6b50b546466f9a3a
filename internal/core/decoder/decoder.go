// Package decoder implements L2-L4 protocol stack decoding.
package decoder

import (
	"errors"

	"firestige.xyz/dissector/internal/core"
)

// Decoder decodes raw frames into structured format.
type Decoder interface {
	Decode(raw core.RawFrame) (core.Dissection, error)
}

// Config tunes the dispatch pipeline.
type Config struct {
	// SkipIPv4Options makes the pipeline step over IPv4 option bytes before
	// handing the payload to the transport decoder. When false the IPv4
	// layer consumes exactly 20 bytes.
	SkipIPv4Options bool
}

// StandardDecoder runs Ethernet -> (IPv4 -> ICMP|TCP|UDP) | ARP.
// It keeps no per-frame state and is safe for concurrent use.
type StandardDecoder struct {
	cfg Config
}

// NewStandardDecoder creates a decoder with the given configuration.
func NewStandardDecoder(cfg Config) *StandardDecoder {
	return &StandardDecoder{cfg: cfg}
}

// Dissect decodes data with the default configuration.
func Dissect(data []byte) (core.Dissection, error) {
	return NewStandardDecoder(Config{}).Decode(core.RawFrame{
		Data:       data,
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
	})
}

// Decode descends the stack as far as the classification tags allow.
// On error the layers decoded so far are returned with a *core.LayerError
// naming the layer that failed.
func (d *StandardDecoder) Decode(raw core.RawFrame) (core.Dissection, error) {
	out := core.Dissection{
		Timestamp:  raw.Timestamp,
		CaptureLen: raw.CaptureLen,
		OrigLen:    raw.OrigLen,
		Layers:     make([]core.Layer, 0, 3),
	}

	eth, payload, err := decodeEthernet(raw.Data)
	if err != nil {
		return out, &core.LayerError{Layer: core.LayerEthernet, Err: err}
	}
	out.Ethernet = eth
	out.Layers = append(out.Layers, core.LayerEthernet)
	out.Payload = payload

	switch eth.EtherType {
	case core.EtherTypeIPv4:
		return d.decodeNetwork(out, payload)
	case core.EtherTypeARP:
		arp, rest, err := decodeARP(payload)
		if err != nil {
			return out, &core.LayerError{Layer: core.LayerARP, Err: err}
		}
		out.ARP = &arp
		out.Layers = append(out.Layers, core.LayerARP)
		out.Payload = rest
		return out, nil
	default:
		return stop(out, core.LayerEthernet), nil
	}
}

func (d *StandardDecoder) decodeNetwork(out core.Dissection, data []byte) (core.Dissection, error) {
	ip, payload, err := decodeIPv4(data)
	if err != nil {
		return out, &core.LayerError{Layer: core.LayerIPv4, Err: err}
	}
	if d.cfg.SkipIPv4Options {
		if payload, err = skipIPv4Options(&ip, payload); err != nil {
			return out, &core.LayerError{Layer: core.LayerIPv4, Err: err}
		}
	}
	out.IPv4 = &ip
	out.Layers = append(out.Layers, core.LayerIPv4)
	out.Payload = payload

	switch ip.Protocol {
	case core.IPProtocolICMP:
		msg, rest, err := decodeICMP(payload)
		if err != nil {
			return out, &core.LayerError{Layer: core.LayerICMP, Err: err}
		}
		out.ICMP = &msg
		out.Layers = append(out.Layers, core.LayerICMP)
		out.Payload = rest
	case core.IPProtocolTCP:
		seg, rest, err := decodeTCP(payload)
		if err != nil {
			if !errors.Is(err, core.ErrInsufficientData) {
				// fixed header decoded, options did not
				out.TCP = &seg
			}
			return out, &core.LayerError{Layer: core.LayerTCP, Err: err}
		}
		out.TCP = &seg
		out.Layers = append(out.Layers, core.LayerTCP)
		out.Payload = rest
	case core.IPProtocolUDP:
		udp, rest, err := decodeUDP(payload)
		if err != nil {
			return out, &core.LayerError{Layer: core.LayerUDP, Err: err}
		}
		out.UDP = &udp
		out.Layers = append(out.Layers, core.LayerUDP)
		out.Payload = rest
	default:
		return stop(out, core.LayerIPv4), nil
	}
	return out, nil
}

// stop marks a deliberate halt at a tag the pipeline does not descend into.
func stop(out core.Dissection, at core.Layer) core.Dissection {
	out.Unsupported = true
	out.StoppedAt = at
	return out
}
