package metrics

import (
	apperrors "wikimind/internal/common/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the session counters.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
)

var (
	TopicResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimind_topic_resolutions_total",
			Help: "Topic resolutions by retrieval language and outcome code",
		},
		[]string{"language", "outcome"},
	)

	Answers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimind_answers_total",
			Help: "Questions answered by outcome",
		},
		[]string{"outcome"},
	)

	AnswerConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikimind_answer_confidence",
			Help:    "Confidence of non-empty answers",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	Suggestions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimind_suggestion_requests_total",
			Help: "Suggestion requests by outcome",
		},
		[]string{"outcome"},
	)

	EngineLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimind_engine_loads_total",
			Help: "Inference model constructions by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	VoiceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikimind_voice_operations_total",
			Help: "Voice recognitions and syntheses by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Outcome labels err by its error code, or OutcomeOK when err is nil.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(apperrors.CodeOf(err))
}
