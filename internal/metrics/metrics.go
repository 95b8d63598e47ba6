package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds encoder metrics registered on one registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	JobsTotal         *prometheus.CounterVec
	JobsRejected      *prometheus.CounterVec
	ChunksEncoded     *prometheus.CounterVec
	AudioSecondsTotal *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	JobsInProgress    prometheus.Gauge
}

// NewRecorder registers the encoder metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encodec_jobs_total",
				Help: "Encoding jobs by terminal outcome",
			},
			[]string{"variant", "outcome"},
		),
		JobsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encodec_jobs_rejected_total",
				Help: "Submissions refused before a job started, by error kind",
			},
			[]string{"variant", "reason"},
		),
		ChunksEncoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encodec_chunks_encoded_total",
				Help: "Audio windows passed through the codec engine",
			},
			[]string{"variant"},
		),
		AudioSecondsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encodec_audio_seconds_total",
				Help: "Seconds of audio encoded",
			},
			[]string{"variant"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "encodec_job_duration_seconds",
				Help:    "Wall time from job start to terminal state",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~68 min
			},
			[]string{"variant"},
		),
		JobsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "encodec_jobs_in_progress",
				Help: "Encoding jobs currently running",
			},
		),
	}
}

// JobStarted marks a job as running.
func (r *Recorder) JobStarted() {
	if r == nil {
		return
	}
	r.JobsInProgress.Inc()
}

// ChunkEncoded counts one window and its audio length.
func (r *Recorder) ChunkEncoded(variant string, audioSeconds float64) {
	if r == nil {
		return
	}
	r.ChunksEncoded.WithLabelValues(variant).Inc()
	r.AudioSecondsTotal.WithLabelValues(variant).Add(audioSeconds)
}

// JobFinished records the outcome ("done" or an error kind) and duration.
func (r *Recorder) JobFinished(variant, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.JobsInProgress.Dec()
	r.JobsTotal.WithLabelValues(variant, outcome).Inc()
	r.JobDuration.WithLabelValues(variant).Observe(elapsed.Seconds())
}

// Rejected counts a job refused before it started. Rejections stay out of
// encodec_jobs_total so failures of started jobs are counted on their own.
func (r *Recorder) Rejected(variant, reason string) {
	if r == nil {
		return
	}
	r.JobsRejected.WithLabelValues(variant, reason).Inc()
}
