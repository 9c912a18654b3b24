package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepvoice", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepvoice", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	CallsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepvoice", Name: "calls_started_total", Help: "Number of voice calls started by mode."},
		[]string{"mode"},
	)
	CallsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepvoice", Name: "calls_finished_total", Help: "Number of voice calls finished by reason."},
		[]string{"reason"},
	)
	CallsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "prepvoice", Name: "calls_failed_total", Help: "Number of voice calls that ended in an error."},
	)
	ActiveCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "prepvoice", Name: "active_calls", Help: "Number of voice calls currently active."},
	)
	FeedbackCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "prepvoice", Name: "feedback_created_total", Help: "Number of feedback documents written."},
	)
	QuestionsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "prepvoice", Name: "questions_generated_total", Help: "Number of interview question sets generated."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(CallsStarted)
	reg.MustRegister(CallsFinished)
	reg.MustRegister(CallsFailed)
	reg.MustRegister(ActiveCalls)
	reg.MustRegister(FeedbackCreated)
	reg.MustRegister(QuestionsGenerated)
}
