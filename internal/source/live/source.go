// Package live captures frames from a network interface through libpcap.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/log"
)

// DefaultTimeout bounds how long a read blocks before the context is rechecked.
const DefaultTimeout = 500 * time.Millisecond

// Options are the pcap-specific settings of the source options block.
type Options struct {
	BufferSizeMB int  `mapstructure:"buffer_size_mb"`
	Immediate    bool `mapstructure:"immediate"`
}

// Config describes one live capture.
type Config struct {
	Device      string
	SnapLen     int
	Promiscuous bool
	Timeout     time.Duration
	BPFFilter   string
	Options     Options
}

// Source reads frames from a pcap handle.
type Source struct {
	device string
	handle *pcap.Handle
}

// Open activates a capture handle on cfg.Device and installs the filter.
func Open(cfg Config) (*Source, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("%w: pcap source requires a device", core.ErrConfigInvalid)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	inactive, err := pcap.NewInactiveHandle(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcap handle on %s: %w", cfg.Device, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(cfg.SnapLen); err != nil {
		return nil, fmt.Errorf("failed to set snap_len: %w", err)
	}
	if err := inactive.SetPromisc(cfg.Promiscuous); err != nil {
		return nil, fmt.Errorf("failed to set promiscuous mode: %w", err)
	}
	if err := inactive.SetTimeout(cfg.Timeout); err != nil {
		return nil, fmt.Errorf("failed to set timeout: %w", err)
	}
	if cfg.Options.BufferSizeMB > 0 {
		if err := inactive.SetBufferSize(cfg.Options.BufferSizeMB * 1024 * 1024); err != nil {
			return nil, fmt.Errorf("failed to set buffer size: %w", err)
		}
	}
	if cfg.Options.Immediate {
		if err := inactive.SetImmediateMode(true); err != nil {
			return nil, fmt.Errorf("failed to set immediate mode: %w", err)
		}
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("failed to activate pcap handle on %s: %w", cfg.Device, err)
	}

	if cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(cfg.BPFFilter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to apply BPF filter %q: %w", cfg.BPFFilter, err)
		}
	}

	log.WithComponent("source").
		WithField("device", cfg.Device).
		WithField("bpf_filter", cfg.BPFFilter).
		Info("pcap capture started")

	return &Source{device: cfg.Device, handle: handle}, nil
}

// ReadFrame blocks until a frame arrives, retrying read timeouts until ctx is done.
func (s *Source) ReadFrame(ctx context.Context) (core.RawFrame, error) {
	if s.handle == nil {
		return core.RawFrame{}, core.ErrSourceClosed
	}

	for {
		if err := ctx.Err(); err != nil {
			return core.RawFrame{}, err
		}

		data, ci, err := s.handle.ReadPacketData()
		switch {
		case err == nil:
			return core.RawFrame{
				Data:           data,
				Timestamp:      ci.Timestamp,
				CaptureLen:     uint32(ci.CaptureLength),
				OrigLen:        uint32(ci.Length),
				InterfaceIndex: ci.InterfaceIndex,
			}, nil
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF), errors.Is(err, pcap.NextErrorNoMorePackets):
			return core.RawFrame{}, io.EOF
		default:
			return core.RawFrame{}, fmt.Errorf("pcap read on %s: %w", s.device, err)
		}
	}
}

func (s *Source) LinkType() layers.LinkType {
	if s.handle == nil {
		return layers.LinkTypeEthernet
	}
	return s.handle.LinkType()
}

// Stats returns the kernel counters of the handle.
func (s *Source) Stats() (*pcap.Stats, error) {
	if s.handle == nil {
		return nil, core.ErrSourceClosed
	}
	return s.handle.Stats()
}

func (s *Source) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}
