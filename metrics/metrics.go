// Package metrics exposes transcription counters for the /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	Submissions    *prometheus.CounterVec
	Results        *prometheus.CounterVec
	Rejections     *prometheus.CounterVec
	Latency        prometheus.Histogram
	AudioBytes     prometheus.Histogram
	RecordingSecs  prometheus.Histogram
	InFlight       prometheus.Gauge
	ClipboardCopy  *prometheus.CounterVec
	TranscriptSave *prometheus.CounterVec
}

// New registers every collector on a fresh registry, so tests and multiple
// servers in one process do not collide.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicenote",
			Name:      "submissions_total",
			Help:      "Audio objects accepted for transcription, by source.",
		}, []string{"source"}),
		Results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicenote",
			Name:      "transcriptions_total",
			Help:      "Finished transcriptions, by outcome.",
		}, []string{"status"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicenote",
			Name:      "rejections_total",
			Help:      "Inputs refused before transcription, by reason.",
		}, []string{"reason"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voicenote",
			Name:      "transcription_seconds",
			Help:      "Wall time of one transcription request.",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 160},
		}),
		AudioBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voicenote",
			Name:      "audio_bytes",
			Help:      "Size of submitted audio payloads.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 6),
		}),
		RecordingSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voicenote",
			Name:      "recording_seconds",
			Help:      "Length of microphone recordings.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voicenote",
			Name:      "transcriptions_in_flight",
			Help:      "1 while a transcription request is outstanding.",
		}),
		ClipboardCopy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicenote",
			Name:      "clipboard_copies_total",
			Help:      "Transcript copies, by outcome.",
		}, []string{"status"}),
		TranscriptSave: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicenote",
			Name:      "transcript_saves_total",
			Help:      "Transcript file saves, by outcome.",
		}, []string{"status"}),
	}
	m.Registry.MustRegister(
		m.Submissions, m.Results, m.Rejections, m.Latency, m.AudioBytes,
		m.RecordingSecs, m.InFlight, m.ClipboardCopy, m.TranscriptSave,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Submitted(source string, size int64) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(source).Inc()
	m.AudioBytes.Observe(float64(size))
	m.InFlight.Set(1)
}

func (m *Metrics) Finished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Results.WithLabelValues(status).Inc()
	m.Latency.Observe(elapsed.Seconds())
	m.InFlight.Set(0)
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Recorded(seconds int) {
	if m == nil {
		return
	}
	m.RecordingSecs.Observe(float64(seconds))
}

func (m *Metrics) Copied(err error) {
	if m == nil {
		return
	}
	m.ClipboardCopy.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) Saved(err error) {
	if m == nil {
		return
	}
	m.TranscriptSave.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
