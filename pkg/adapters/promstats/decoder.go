package promstats

import (
	"context"
	"image"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/framecache/pkg/ports"
)

// DecoderMetrics records how long frame decodes take.
type DecoderMetrics struct {
	decodesTotal   *prometheus.CounterVec
	decodeDuration *prometheus.HistogramVec
}

// NewDecoderMetrics creates decode metrics whose names start with namespace.
func NewDecoderMetrics(namespace string) *DecoderMetrics {
	return &DecoderMetrics{
		decodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decoder",
				Name:      "decodes_total",
				Help:      "Frame decodes by result.",
			},
			[]string{"result"},
		),
		decodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "decoder",
				Name:      "decode_duration_seconds",
				Help:      "Time spent decoding a single frame.",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"result"},
		),
	}
}

// Collectors returns the collectors to register.
func (m *DecoderMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.decodesTotal, m.decodeDuration}
}

// Instrument wraps dec so that every decode is counted and timed.
func (m *DecoderMetrics) Instrument(dec ports.FrameDecoder) ports.FrameDecoder {
	return ports.FrameDecoderFunc(func(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
		start := time.Now()

		img, err := dec.DecodeFrame(ctx, source, timestampMs)

		result := "ok"
		switch {
		case ctx.Err() != nil:
			result = "cancelled"
		case err != nil:
			result = "error"
		}
		m.decodesTotal.WithLabelValues(result).Inc()
		m.decodeDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
		return img, err
	})
}
