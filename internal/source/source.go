// Package source opens the frame sources a dissection run reads from.
package source

import (
	"context"
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/mitchellh/mapstructure"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/source/afpacket"
	"firestige.xyz/dissector/internal/source/file"
	"firestige.xyz/dissector/internal/source/live"
)

// Source yields link-layer frames one at a time.
type Source interface {
	// ReadFrame blocks until a frame is available. It returns io.EOF when
	// the source is exhausted and ctx.Err() once ctx is done.
	ReadFrame(ctx context.Context) (core.RawFrame, error)
	LinkType() layers.LinkType
	Close() error
}

// Open creates the source selected by cfg.Type.
func Open(cfg config.SourceConfig) (Source, error) {
	switch cfg.Type {
	case config.SourceFile:
		return file.Open(cfg.Path)

	case config.SourcePcap:
		var opts live.Options
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		return live.Open(live.Config{
			Device:      cfg.Device,
			SnapLen:     cfg.SnapLen,
			Promiscuous: cfg.Promiscuous,
			Timeout:     cfg.ReadTimeout(live.DefaultTimeout),
			BPFFilter:   cfg.BPFFilter,
			Options:     opts,
		})

	case config.SourceAFPacket:
		var opts afpacket.Options
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		return afpacket.Open(afpacket.Config{
			Device:    cfg.Device,
			SnapLen:   cfg.SnapLen,
			Timeout:   cfg.ReadTimeout(afpacket.DefaultTimeout),
			BPFFilter: cfg.BPFFilter,
			Options:   opts,
		})
	}

	return nil, fmt.Errorf("%w: unknown source type %q", core.ErrConfigInvalid, cfg.Type)
}

// decodeOptions maps the free-form options block onto a typed struct.
// Numbers may arrive as strings from environment overrides.
func decodeOptions(in map[string]any, out any) error {
	if len(in) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("%w: source options: %v", core.ErrConfigInvalid, err)
	}
	return nil
}
