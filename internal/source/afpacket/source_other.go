//go:build !linux

package afpacket

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gopacket/layers"

	"firestige.xyz/dissector/internal/core"
)

var errUnsupportedPlatform = errors.New("afpacket capture is only available on linux")

// Source is unavailable outside linux.
type Source struct{}

// Open always fails on this platform.
func Open(cfg Config) (*Source, error) {
	return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, errUnsupportedPlatform)
}

func (s *Source) ReadFrame(ctx context.Context) (core.RawFrame, error) {
	return core.RawFrame{}, core.ErrSourceClosed
}

func (s *Source) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (s *Source) Close() error { return nil }
