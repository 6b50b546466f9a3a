package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/dissector/internal/core"
)

// ErrorLogLimiter caps how many decode failures per layer are logged in a
// window, so a capture full of malformed frames cannot flood the log.
// Counts are kept per window and reset when the window rotates.
type ErrorLogLimiter struct {
	mu           sync.Mutex
	current      map[core.Layer]*atomic.Int64 // layer → failures logged in current window
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int64

	suppressed atomic.Int64 // total suppressed log lines
}

// ErrorLogLimiterConfig configures per-layer log limiting.
type ErrorLogLimiterConfig struct {
	MaxPerLayer int           // Max log lines per layer per window (0 = unlimited)
	Window      time.Duration // Window size (default 10s)
}

// NewErrorLogLimiter creates a limiter. Returns nil if disabled (MaxPerLayer <= 0);
// a nil limiter allows everything.
func NewErrorLogLimiter(cfg ErrorLogLimiterConfig) *ErrorLogLimiter {
	if cfg.MaxPerLayer <= 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Second
	}
	return &ErrorLogLimiter{
		current:      make(map[core.Layer]*atomic.Int64),
		windowStart:  time.Now(),
		windowSize:   cfg.Window,
		maxPerWindow: int64(cfg.MaxPerLayer),
	}
}

// Allow reports whether a failure at layer may be logged.
func (l *ErrorLogLimiter) Allow(layer core.Layer, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	if now.Sub(l.windowStart) >= l.windowSize {
		l.current = make(map[core.Layer]*atomic.Int64)
		l.windowStart = now
	}

	counter, exists := l.current[layer]
	if !exists {
		counter = &atomic.Int64{}
		l.current[layer] = counter
	}
	l.mu.Unlock()

	if counter.Add(1) > l.maxPerWindow {
		l.suppressed.Add(1)
		return false
	}
	return true
}

// Suppressed returns the total number of suppressed log lines.
func (l *ErrorLogLimiter) Suppressed() int64 {
	if l == nil {
		return 0
	}
	return l.suppressed.Load()
}

// ActiveLayers returns the number of layers with failures in the current window.
func (l *ErrorLogLimiter) ActiveLayers() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.current)
}
