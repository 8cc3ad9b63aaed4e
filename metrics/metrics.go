package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the recording pipeline instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Recordings        prometheus.Counter
	RecordingDuration prometheus.Histogram
	Intervals         prometheus.Counter
	IntervalAudio     prometheus.Histogram

	TranscriptionDuration prometheus.Histogram
	TranscriptionFailures prometheus.Counter
	SummaryDuration       prometheus.Histogram
	ModelPulls            *prometheus.CounterVec
	ServerStartDuration   prometheus.Histogram

	PipelineRuns *prometheus.CounterVec
	State        *prometheus.GaugeVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recordings: f.NewCounter(prometheus.CounterOpts{
			Name: "localnotes_recordings_total",
			Help: "Recordings started",
		}),
		RecordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "localnotes_recording_duration_seconds",
			Help:    "Wall time between start and stop of a recording",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5s to ~42 minutes
		}),
		Intervals: f.NewCounter(prometheus.CounterOpts{
			Name: "localnotes_intervals_total",
			Help: "Incremental flushes that produced audio",
		}),
		IntervalAudio: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "localnotes_interval_audio_seconds",
			Help:    "Audio length of each drained interval",
			Buckets: prometheus.LinearBuckets(0, 2.5, 9),
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "localnotes_transcription_duration_seconds",
			Help:    "Time spent transcribing one artifact",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "localnotes_transcription_failures_total",
			Help: "Transcription requests that returned an error",
		}),
		SummaryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "localnotes_summary_duration_seconds",
			Help:    "Time spent generating a summary",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9),
		}),
		ModelPulls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "localnotes_model_pulls_total",
			Help: "Model fetches by result",
		}, []string{"result"}),
		ServerStartDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "localnotes_server_start_duration_seconds",
			Help:    "Time for a managed inference server to become healthy",
			Buckets: prometheus.LinearBuckets(0.5, 0.5, 12),
		}),
		PipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "localnotes_pipeline_runs_total",
			Help: "Processing pipeline runs by outcome",
		}, []string{"outcome"}),
		State: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "localnotes_state",
			Help: "1 for the current application state",
		}, []string{"state"}),
	}
}

func (m *Metrics) RecordingStarted() {
	if m == nil {
		return
	}
	m.Recordings.Inc()
}

func (m *Metrics) RecordingStopped(d time.Duration) {
	if m == nil {
		return
	}
	m.RecordingDuration.Observe(d.Seconds())
}

func (m *Metrics) Interval(audio time.Duration) {
	if m == nil {
		return
	}
	m.Intervals.Inc()
	m.IntervalAudio.Observe(audio.Seconds())
}

func (m *Metrics) Transcription(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.TranscriptionFailures.Inc()
		return
	}
	m.TranscriptionDuration.Observe(d.Seconds())
}

func (m *Metrics) Summary(d time.Duration) {
	if m == nil {
		return
	}
	m.SummaryDuration.Observe(d.Seconds())
}

func (m *Metrics) ModelPull(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ModelPulls.WithLabelValues(result).Inc()
}

func (m *Metrics) ServerStarted(d time.Duration) {
	if m == nil {
		return
	}
	m.ServerStartDuration.Observe(d.Seconds())
}

// Pipeline counts one processing run. outcome is "ok", "no_speech" or "error".
func (m *Metrics) Pipeline(outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetState(current string, all ...string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
