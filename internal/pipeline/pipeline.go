// Package pipeline drives frames from a capture source through the decoder
// into a sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"

	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/core/decoder"
	"firestige.xyz/dissector/internal/log"
	"firestige.xyz/dissector/internal/metrics"
	"firestige.xyz/dissector/internal/source"
)

// Sink receives every frame read by the pipeline, decoded or not.
type Sink interface {
	Write(seq uint64, d *core.Dissection, err error) error
	Flush() error
}

// Pipeline is a single-threaded read, decode, write loop.
type Pipeline struct {
	source  source.Source
	decoder decoder.Decoder
	sink    Sink
	limit   uint64
	stats   *Stats
	limiter *ErrorLogLimiter
	logger  *logrus.Entry
}

// Config contains pipeline configuration.
type Config struct {
	Source  source.Source
	Decoder decoder.Decoder
	Sink    Sink
	Limit   uint64 // Stop after this many frames (0 = unlimited)

	// MaxErrorLogsPerLayer caps decode failure log lines per layer per
	// ErrorLogWindow (0 = unlimited).
	MaxErrorLogsPerLayer int
	ErrorLogWindow       time.Duration
}

// New creates a new pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: pipeline requires a source", core.ErrConfigInvalid)
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("%w: pipeline requires a sink", core.ErrConfigInvalid)
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.NewStandardDecoder(decoder.Config{})
	}
	return &Pipeline{
		source:  cfg.Source,
		decoder: cfg.Decoder,
		sink:    cfg.Sink,
		limit:   cfg.Limit,
		stats:   &Stats{},
		limiter: NewErrorLogLimiter(ErrorLogLimiterConfig{
			MaxPerLayer: cfg.MaxErrorLogsPerLayer,
			Window:      cfg.ErrorLogWindow,
		}),
		logger: log.WithComponent("pipeline"),
	}, nil
}

// Stats returns the live counters of this pipeline.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// Run reads frames until the source is exhausted, ctx is cancelled or the
// frame limit is reached. Decode errors are counted and the run continues;
// source and sink errors end it. Cancellation is a clean stop.
func (p *Pipeline) Run(ctx context.Context) error {
	if lt := p.source.LinkType(); lt != layers.LinkTypeEthernet {
		return fmt.Errorf("%w: %s", core.ErrUnsupportedLinkType, lt)
	}

	p.logger.Debug("pipeline started")
	defer func() {
		if s := p.limiter.Suppressed(); s > 0 {
			p.logger.WithField("suppressed", s).Info("decode error logs suppressed")
		}
	}()

	var seq uint64
	for p.limit == 0 || seq < p.limit {
		raw, err := p.source.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				break
			}
			return fmt.Errorf("read frame: %w", err)
		}
		seq++
		p.stats.Received.Add(1)

		if err := p.process(seq, raw); err != nil {
			return err
		}
	}

	if err := p.sink.Flush(); err != nil {
		return fmt.Errorf("flush sink: %w", err)
	}
	p.logger.Debug("pipeline stopped")
	return nil
}

func (p *Pipeline) process(seq uint64, raw core.RawFrame) error {
	start := time.Now()
	d, err := p.decoder.Decode(raw)
	metrics.Observe(&d, err, time.Since(start))

	switch {
	case err != nil:
		p.stats.DecodeErrors.Add(1)
		p.logDecodeError(seq, err)
	case d.Unsupported:
		p.stats.Unsupported.Add(1)
		p.stats.Decoded.Add(1)
	default:
		p.stats.Decoded.Add(1)
	}

	if werr := p.sink.Write(seq, &d, err); werr != nil {
		return fmt.Errorf("write frame %d: %w", seq, werr)
	}
	p.stats.Written.Add(1)
	return nil
}

func (p *Pipeline) logDecodeError(seq uint64, err error) {
	layer := core.LayerNone
	var le *core.LayerError
	if errors.As(err, &le) {
		layer = le.Layer
	}
	if !p.limiter.Allow(layer, time.Now()) {
		return
	}
	p.logger.WithFields(logrus.Fields{
		"seq":   seq,
		"layer": layer.String(),
	}).WithError(err).Debug("decode failed")
}
