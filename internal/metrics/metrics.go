// Package metrics implements Prometheus metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/dissector/internal/core"
)

// Registry holds every dissector metric plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// FramesTotal counts frames handed to the decoder
	FramesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "dissector_frames_total",
			Help: "Total number of frames read from the source",
		},
	)

	// LayersDecodedTotal counts successfully decoded headers by layer
	LayersDecodedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissector_layers_decoded_total",
			Help: "Total number of decoded protocol headers",
		},
		[]string{"layer"},
	)

	// DecodeErrorsTotal counts frames whose decoding failed, by failing layer and reason
	DecodeErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissector_decode_errors_total",
			Help: "Total number of frames that failed to decode",
		},
		[]string{"layer", "reason"},
	)

	// UnsupportedTotal counts frames that stopped at a tag the decoder does not descend into
	UnsupportedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissector_unsupported_total",
			Help: "Total number of frames carrying an unsupported next protocol",
		},
		[]string{"layer"},
	)

	// DecodeDurationSeconds measures per-frame decode latency
	DecodeDurationSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dissector_decode_duration_seconds",
			Help:    "Latency of decoding one frame in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 20), // 100ns to ~50ms
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Observe records the outcome of decoding one frame.
func Observe(d *core.Dissection, err error, took time.Duration) {
	FramesTotal.Inc()
	DecodeDurationSeconds.Observe(took.Seconds())

	for _, l := range d.Layers {
		LayersDecodedTotal.WithLabelValues(l.String()).Inc()
	}

	var le *core.LayerError
	if errors.As(err, &le) {
		DecodeErrorsTotal.WithLabelValues(le.Layer.String(), le.Reason()).Inc()
	} else if err != nil {
		DecodeErrorsTotal.WithLabelValues(core.LayerNone.String(), "other").Inc()
	}

	if d.Unsupported {
		UnsupportedTotal.WithLabelValues(d.StoppedAt.String()).Inc()
	}
}
