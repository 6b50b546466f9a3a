package pipeline

import "sync/atomic"

// Stats holds per-run frame counters.
type Stats struct {
	Received     atomic.Uint64
	Decoded      atomic.Uint64
	Unsupported  atomic.Uint64
	DecodeErrors atomic.Uint64
	Written      atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Received     uint64 `json:"received"`
	Decoded      uint64 `json:"decoded"`
	Unsupported  uint64 `json:"unsupported"`
	DecodeErrors uint64 `json:"decode_errors"`
	Written      uint64 `json:"written"`
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Received:     s.Received.Load(),
		Decoded:      s.Decoded.Load(),
		Unsupported:  s.Unsupported.Load(),
		DecodeErrors: s.DecodeErrors.Load(),
		Written:      s.Written.Load(),
	}
}

// Reset resets all counters to zero.
func (s *Stats) Reset() {
	s.Received.Store(0)
	s.Decoded.Store(0)
	s.Unsupported.Store(0)
	s.DecodeErrors.Store(0)
	s.Written.Store(0)
}
