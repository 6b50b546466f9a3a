// Package console prints dissections to a writer.
package console

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/sink"
)

// Sink writes one record per frame in the configured format.
// Write is safe for concurrent use; records are never interleaved.
type Sink struct {
	format     string
	payloadHex bool

	mu  sync.Mutex
	w   *bufio.Writer
	yml *yaml.Encoder

	written atomic.Uint64
}

// NewSink creates a sink writing to w.
func NewSink(w io.Writer, cfg config.OutputConfig) (*Sink, error) {
	s := &Sink{
		format:     cfg.Format,
		payloadHex: cfg.PayloadHex,
		w:          bufio.NewWriter(w),
	}
	switch s.format {
	case "", config.FormatText:
		s.format = config.FormatText
	case config.FormatJSON:
	case config.FormatYAML:
		s.yml = yaml.NewEncoder(s.w)
		s.yml.SetIndent(2)
	default:
		return nil, fmt.Errorf("%w: invalid format %q, must be text, json or yaml", core.ErrConfigInvalid, cfg.Format)
	}
	return s, nil
}

// Format returns the output format in use.
func (s *Sink) Format() string {
	return s.format
}

// Write prints frame seq. err is the decode error, if any; the layers
// decoded before it are still printed.
func (s *Sink) Write(seq uint64, d *core.Dissection, err error) error {
	if d == nil {
		return fmt.Errorf("nil dissection")
	}
	v := sink.NewFrameView(seq, d, err, s.payloadHex)

	s.mu.Lock()
	defer s.mu.Unlock()

	var werr error
	switch s.format {
	case config.FormatJSON:
		werr = s.writeJSON(&v)
	case config.FormatYAML:
		werr = s.yml.Encode(&v)
	default:
		werr = s.writeText(&v)
	}
	if werr != nil {
		return fmt.Errorf("console write failed: %w", werr)
	}

	s.written.Add(1)
	return nil
}

// Written returns the number of frames written.
func (s *Sink) Written() uint64 {
	return s.written.Load()
}

// Flush pushes buffered output to the underlying writer.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.yml != nil {
		// Close ends the YAML stream; a fresh encoder keeps the sink usable.
		if err := s.yml.Close(); err != nil {
			return err
		}
		s.yml = yaml.NewEncoder(s.w)
		s.yml.SetIndent(2)
	}
	return s.w.Flush()
}

func (s *Sink) writeJSON(v *sink.FrameView) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

// writeText prints a header line and one indented line per layer.
func (s *Sink) writeText(v *sink.FrameView) error {
	var b strings.Builder

	fmt.Fprintf(&b, "#%d", v.Seq)
	if v.Timestamp != "" {
		fmt.Fprintf(&b, " %s", v.Timestamp)
	}
	fmt.Fprintf(&b, " len=%d/%d", v.CaptureLen, v.OrigLen)
	if v.Service != "" {
		fmt.Fprintf(&b, " service=%s", v.Service)
	}
	b.WriteByte('\n')

	if e := v.Ethernet; e != nil {
		fmt.Fprintf(&b, "  ethernet %s > %s type=%s\n", e.Src, e.Dst, e.EtherType)
	}
	if a := v.ARP; a != nil {
		fmt.Fprintf(&b, "  arp      %s hw=%s proto=%s sender=%s/%s target=%s/%s\n",
			a.Operation, a.HardwareType, a.ProtocolType, a.SenderMAC, a.SenderIP, a.TargetMAC, a.TargetIP)
	}
	if ip := v.IPv4; ip != nil {
		fmt.Fprintf(&b, "  ipv4     %s > %s proto=%s ttl=%d id=0x%04x len=%d flags=%s frag=%d\n",
			ip.Src, ip.Dst, ip.Protocol, ip.TTL, ip.ID, ip.TotalLength, ip.FlagNames, ip.FragmentOffset)
	}
	if m := v.ICMP; m != nil {
		fmt.Fprintf(&b, "  icmp     %s type=%d code=%d\n", m.Class, m.Type, m.Code)
	}
	if t := v.TCP; t != nil {
		fmt.Fprintf(&b, "  tcp      %d > %d [%s] seq=%d ack=%d win=%d",
			t.SrcPort, t.DstPort, t.Flags, t.Seq, t.Ack, t.Window)
		if len(t.Options) > 0 {
			fmt.Fprintf(&b, " options=[%s]", strings.Join(t.Options, " "))
		}
		b.WriteByte('\n')
	}
	if u := v.UDP; u != nil {
		fmt.Fprintf(&b, "  udp      %d > %d len=%d\n", u.SrcPort, u.DstPort, u.Length)
	}

	if v.Unsupported {
		fmt.Fprintf(&b, "  unsupported next protocol after %s\n", v.StoppedAt)
	}
	if v.Error != nil {
		fmt.Fprintf(&b, "  error    %s\n", v.Error.Message)
	}
	if v.PayloadLen > 0 {
		fmt.Fprintf(&b, "  payload  %d bytes", v.PayloadLen)
		if v.Payload != "" {
			fmt.Fprintf(&b, " %s", v.Payload)
		}
		b.WriteByte('\n')
	}

	_, err := s.w.WriteString(b.String())
	return err
}
