// Package sink holds the serialized form of a dissection shared by all sinks.
package sink

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/service"
)

// FrameView is the serialized form of one dissection.
type FrameView struct {
	Seq         uint64        `json:"seq" yaml:"seq"`
	Timestamp   string        `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	CaptureLen  uint32        `json:"capture_len" yaml:"capture_len"`
	OrigLen     uint32        `json:"orig_len" yaml:"orig_len"`
	Layers      []string      `json:"layers" yaml:"layers"`
	Ethernet    *EthernetView `json:"ethernet,omitempty" yaml:"ethernet,omitempty"`
	ARP         *ARPView      `json:"arp,omitempty" yaml:"arp,omitempty"`
	IPv4        *IPv4View     `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	ICMP        *ICMPView     `json:"icmp,omitempty" yaml:"icmp,omitempty"`
	TCP         *TCPView      `json:"tcp,omitempty" yaml:"tcp,omitempty"`
	UDP         *UDPView      `json:"udp,omitempty" yaml:"udp,omitempty"`
	Service     string        `json:"service,omitempty" yaml:"service,omitempty"`
	PayloadLen  int           `json:"payload_len" yaml:"payload_len"`
	Payload     string        `json:"payload,omitempty" yaml:"payload,omitempty"`
	Unsupported bool          `json:"unsupported,omitempty" yaml:"unsupported,omitempty"`
	StoppedAt   string        `json:"stopped_at,omitempty" yaml:"stopped_at,omitempty"`
	Error       *ErrorView    `json:"error,omitempty" yaml:"error,omitempty"`
}

type EthernetView struct {
	Src       string `json:"src" yaml:"src"`
	Dst       string `json:"dst" yaml:"dst"`
	EtherType string `json:"ethertype" yaml:"ethertype"`
}

type ARPView struct {
	HardwareType string `json:"hardware_type" yaml:"hardware_type"`
	ProtocolType string `json:"protocol_type" yaml:"protocol_type"`
	HardwareLen  uint8  `json:"hardware_len" yaml:"hardware_len"`
	ProtocolLen  uint8  `json:"protocol_len" yaml:"protocol_len"`
	Operation    string `json:"operation" yaml:"operation"`
	SenderMAC    string `json:"sender_mac" yaml:"sender_mac"`
	SenderIP     string `json:"sender_ip" yaml:"sender_ip"`
	TargetMAC    string `json:"target_mac" yaml:"target_mac"`
	TargetIP     string `json:"target_ip" yaml:"target_ip"`
}

type IPv4View struct {
	Src            string `json:"src" yaml:"src"`
	Dst            string `json:"dst" yaml:"dst"`
	Version        uint8  `json:"version" yaml:"version"`
	HeaderLength   uint8  `json:"header_length" yaml:"header_length"`
	TOS            uint8  `json:"tos" yaml:"tos"`
	TotalLength    uint16 `json:"total_length" yaml:"total_length"`
	ID             uint16 `json:"id" yaml:"id"`
	Flags          uint8  `json:"flags" yaml:"flags"`
	FlagNames      string `json:"flag_names" yaml:"flag_names"`
	FragmentOffset uint16 `json:"fragment_offset" yaml:"fragment_offset"`
	TTL            uint8  `json:"ttl" yaml:"ttl"`
	Protocol       string `json:"protocol" yaml:"protocol"`
	Checksum       uint16 `json:"checksum" yaml:"checksum"`
}

type ICMPView struct {
	Class    string `json:"class" yaml:"class"`
	Type     uint8  `json:"type" yaml:"type"`
	Code     uint8  `json:"code" yaml:"code"`
	Checksum uint16 `json:"checksum" yaml:"checksum"`
}

type TCPView struct {
	SrcPort       uint16   `json:"src_port" yaml:"src_port"`
	DstPort       uint16   `json:"dst_port" yaml:"dst_port"`
	Seq           uint32   `json:"seq" yaml:"seq"`
	Ack           uint32   `json:"ack" yaml:"ack"`
	HeaderLength  uint8    `json:"header_length" yaml:"header_length"`
	Reserved      uint8    `json:"reserved" yaml:"reserved"`
	Flags         string   `json:"flags" yaml:"flags"`
	Window        uint16   `json:"window" yaml:"window"`
	Checksum      uint16   `json:"checksum" yaml:"checksum"`
	UrgentPointer uint16   `json:"urgent_pointer" yaml:"urgent_pointer"`
	Options       []string `json:"options,omitempty" yaml:"options,omitempty"`
}

type UDPView struct {
	SrcPort  uint16 `json:"src_port" yaml:"src_port"`
	DstPort  uint16 `json:"dst_port" yaml:"dst_port"`
	Length   uint16 `json:"length" yaml:"length"`
	Checksum uint16 `json:"checksum" yaml:"checksum"`
}

type ErrorView struct {
	Layer   string `json:"layer,omitempty" yaml:"layer,omitempty"`
	Reason  string `json:"reason" yaml:"reason"`
	Message string `json:"message" yaml:"message"`
}

// NewFrameView flattens d into its serialized form. err is the decode error
// for the frame, if any.
func NewFrameView(seq uint64, d *core.Dissection, err error, payloadHex bool) FrameView {
	v := FrameView{
		Seq:        seq,
		CaptureLen: d.CaptureLen,
		OrigLen:    d.OrigLen,
		Layers:     make([]string, 0, len(d.Layers)),
		Service:    service.Lookup(d),
		PayloadLen: len(d.Payload),
	}
	if !d.Timestamp.IsZero() {
		v.Timestamp = d.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	for _, l := range d.Layers {
		v.Layers = append(v.Layers, l.String())
	}
	if payloadHex && len(d.Payload) > 0 {
		v.Payload = hex.EncodeToString(d.Payload)
	}
	if d.Unsupported {
		v.Unsupported = true
		v.StoppedAt = d.StoppedAt.String()
	}

	if d.Has(core.LayerEthernet) {
		v.Ethernet = &EthernetView{
			Src:       d.Ethernet.SrcMAC.String(),
			Dst:       d.Ethernet.DstMAC.String(),
			EtherType: d.Ethernet.EtherType.String(),
		}
	}
	if a := d.ARP; a != nil {
		v.ARP = &ARPView{
			HardwareType: a.HardwareType.String(),
			ProtocolType: a.ProtocolType.String(),
			HardwareLen:  a.HardwareAddrLen,
			ProtocolLen:  a.ProtocolAddrLen,
			Operation:    a.Operation.String(),
			SenderMAC:    a.SenderMAC.String(),
			SenderIP:     a.SenderIP.String(),
			TargetMAC:    a.TargetMAC.String(),
			TargetIP:     a.TargetIP.String(),
		}
	}
	if ip := d.IPv4; ip != nil {
		v.IPv4 = &IPv4View{
			Src:            ip.SrcIP.String(),
			Dst:            ip.DstIP.String(),
			Version:        ip.Version,
			HeaderLength:   ip.HeaderLength,
			TOS:            ip.TOS,
			TotalLength:    ip.TotalLength,
			ID:             ip.ID,
			Flags:          ip.Flags,
			FlagNames:      IPv4Flags(ip.Flags),
			FragmentOffset: ip.FragmentOffset,
			TTL:            ip.TTL,
			Protocol:       ip.Protocol.String(),
			Checksum:       ip.Checksum,
		}
	}
	if m := d.ICMP; m != nil {
		v.ICMP = &ICMPView{
			Class:    m.Class.String(),
			Type:     m.Class.Type(),
			Code:     m.Class.Code(),
			Checksum: m.Checksum,
		}
	}
	if s := d.TCP; s != nil {
		tv := &TCPView{
			SrcPort:       s.SrcPort,
			DstPort:       s.DstPort,
			Seq:           s.Seq,
			Ack:           s.Ack,
			HeaderLength:  s.HeaderLength,
			Reserved:      s.Reserved,
			Flags:         TCPFlags(s),
			Window:        s.Window,
			Checksum:      s.Checksum,
			UrgentPointer: s.UrgentPointer,
		}
		for _, o := range s.Options {
			tv.Options = append(tv.Options, o.String())
		}
		v.TCP = tv
	}
	if u := d.UDP; u != nil {
		v.UDP = &UDPView{
			SrcPort:  u.SrcPort,
			DstPort:  u.DstPort,
			Length:   u.Length,
			Checksum: u.Checksum,
		}
	}

	if err != nil {
		ev := &ErrorView{Reason: "other", Message: err.Error()}
		var le *core.LayerError
		if errors.As(err, &le) {
			ev.Layer = le.Layer.String()
			ev.Reason = le.Reason()
		}
		v.Error = ev
	}

	return v
}

// TCPFlags renders the set flags tcpdump style, ACK as ".".
func TCPFlags(s *core.TCPSegment) string {
	var b []byte
	for _, f := range []struct {
		set bool
		c   byte
	}{
		{s.SYN, 'S'},
		{s.FIN, 'F'},
		{s.RST, 'R'},
		{s.PSH, 'P'},
		{s.ACK, '.'},
		{s.URG, 'U'},
	} {
		if f.set {
			b = append(b, f.c)
		}
	}
	if len(b) == 0 {
		return "none"
	}
	return string(b)
}

// IPv4Flags renders the three IPv4 flag bits as "DF|MF|EVIL", or "none".
func IPv4Flags(flags uint8) string {
	var names []string
	if flags&core.IPv4FlagDontFragment != 0 {
		names = append(names, "DF")
	}
	if flags&core.IPv4FlagMoreFragments != 0 {
		names = append(names, "MF")
	}
	if flags&core.IPv4FlagEvil != 0 {
		names = append(names, "EVIL")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
