//go:build linux

package afpacket

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/log"
	"firestige.xyz/dissector/internal/utils"
)

// Source reads frames from a TPACKET_V3 ring.
type Source struct {
	device string
	handle *afpacket.TPacket
}

// Open creates the ring on cfg.Device, joins the fanout group and
// attaches the BPF program.
func Open(cfg Config) (*Source, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("%w: afpacket source requires a device", core.ErrConfigInvalid)
	}
	cfg.applyDefaults()
	if err := validFanout(cfg.Options.FanoutType); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}

	frameSize, blockSize, numBlocks, err := ringSize(cfg.Options.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}

	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Device),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(cfg.Timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create TPacket handle on %s: %w", cfg.Device, err)
	}

	logger := log.WithComponent("source").WithField("device", cfg.Device)

	if cfg.Options.FanoutID > 0 {
		if err := handle.SetFanout(fanoutType(cfg.Options.FanoutType), cfg.Options.FanoutID); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set fanout: %w", err)
		}
		logger.WithField("fanout_id", cfg.Options.FanoutID).
			WithField("fanout_type", cfg.Options.FanoutType).
			Info("afpacket fanout configured")
	}

	if cfg.BPFFilter != "" {
		raw, err := utils.CompileBPF(layers.LinkTypeEthernet, cfg.SnapLen, cfg.BPFFilter)
		if err != nil {
			handle.Close()
			return nil, err
		}
		if err := handle.SetBPF(raw); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF: %w", err)
		}
		logger.WithField("filter", cfg.BPFFilter).Debug("BPF filter applied")
	}

	logger.WithField("frame_size", frameSize).
		WithField("block_size", blockSize).
		WithField("num_blocks", numBlocks).
		Info("afpacket capture started")

	return &Source{device: cfg.Device, handle: handle}, nil
}

// ReadFrame copies the next frame out of the ring. Poll timeouts are
// retried until ctx is done.
func (s *Source) ReadFrame(ctx context.Context) (core.RawFrame, error) {
	if s.handle == nil {
		return core.RawFrame{}, core.ErrSourceClosed
	}

	for {
		if err := ctx.Err(); err != nil {
			return core.RawFrame{}, err
		}

		data, ci, err := s.handle.ReadPacketData()
		if err != nil {
			if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
				continue
			}
			return core.RawFrame{}, fmt.Errorf("afpacket read on %s: %w", s.device, err)
		}

		return core.RawFrame{
			Data:           data,
			Timestamp:      ci.Timestamp,
			CaptureLen:     uint32(ci.CaptureLength),
			OrigLen:        uint32(ci.Length),
			InterfaceIndex: ci.InterfaceIndex,
		}, nil
	}
}

func (s *Source) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

// Drops returns the kernel drop counter of the socket.
func (s *Source) Drops() (uint, error) {
	if s.handle == nil {
		return 0, core.ErrSourceClosed
	}
	_, v3, err := s.handle.SocketStats()
	if err != nil {
		return 0, err
	}
	return v3.Drops(), nil
}

func (s *Source) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}

func fanoutType(ft string) afpacket.FanoutType {
	switch ft {
	case "hash_defrag":
		return afpacket.FanoutHashWithDefrag
	case "lb":
		return afpacket.FanoutLoadBalance
	case "cpu":
		return afpacket.FanoutCPU
	default:
		return afpacket.FanoutHash
	}
}
