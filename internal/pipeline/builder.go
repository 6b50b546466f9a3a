package pipeline

import (
	"time"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/core/decoder"
	"firestige.xyz/dissector/internal/source"
)

// Builder assembles a Pipeline step by step.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder with the standard decoder preselected.
func NewBuilder() *Builder {
	return &Builder{cfg: Config{
		Decoder: decoder.NewStandardDecoder(decoder.Config{}),
	}}
}

// WithSource sets the capture source.
func (b *Builder) WithSource(src source.Source) *Builder {
	b.cfg.Source = src
	return b
}

// WithDecoder replaces the decoder.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.cfg.Decoder = d
	return b
}

// WithDecoderConfig installs a standard decoder built from the config section.
func (b *Builder) WithDecoderConfig(cfg config.DecoderConfig) *Builder {
	b.cfg.Decoder = decoder.NewStandardDecoder(decoder.Config{
		SkipIPv4Options: cfg.SkipIPv4Options,
	})
	return b
}

// WithSink sets the output sink.
func (b *Builder) WithSink(s Sink) *Builder {
	b.cfg.Sink = s
	return b
}

// WithLimit stops the run after n frames (0 = unlimited).
func (b *Builder) WithLimit(n uint64) *Builder {
	b.cfg.Limit = n
	return b
}

// WithErrorLogLimit caps decode failure logging per layer.
func (b *Builder) WithErrorLogLimit(maxPerLayer int, window time.Duration) *Builder {
	b.cfg.MaxErrorLogsPerLayer = maxPerLayer
	b.cfg.ErrorLogWindow = window
	return b
}

// Build validates the collected parts and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	return New(b.cfg)
}
