// Package afpacket captures frames through a Linux TPACKET_V3 ring.
package afpacket

import (
	"fmt"
	"time"
)

// DefaultTimeout is the ring poll timeout.
const DefaultTimeout = 100 * time.Millisecond

const defaultBufferSizeMB = 8

// Options are the afpacket-specific settings of the source options block.
type Options struct {
	BufferSizeMB int    `mapstructure:"buffer_size_mb"`
	FanoutID     uint16 `mapstructure:"fanout_id"`   // 0 = no fanout group
	FanoutType   string `mapstructure:"fanout_type"` // hash / hash_defrag / lb / cpu
}

// Config describes one afpacket capture.
type Config struct {
	Device    string
	SnapLen   int
	Timeout   time.Duration
	BPFFilter string
	Options   Options
}

func (c *Config) applyDefaults() {
	if c.Options.BufferSizeMB <= 0 {
		c.Options.BufferSizeMB = defaultBufferSizeMB
	}
	if c.Options.FanoutType == "" {
		c.Options.FanoutType = "hash"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.SnapLen <= 0 {
		c.SnapLen = 65535
	}
}

func validFanout(ft string) error {
	switch ft {
	case "hash", "hash_defrag", "lb", "cpu":
		return nil
	}
	return fmt.Errorf("unknown fanout type: %q (must be hash/hash_defrag/lb/cpu)", ft)
}
