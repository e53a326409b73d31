package ticket

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gigconnect",
		Subsystem: "tickets",
		Name:      "transitions_total",
		Help:      "Ticket operations by outcome.",
	}, []string{"operation", "result"})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gigconnect",
		Subsystem: "tickets",
		Name:      "messages_total",
		Help:      "Messages appended to tickets by channel.",
	}, []string{"channel"})

	aiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gigconnect",
		Subsystem: "tickets",
		Name:      "ai_request_duration_seconds",
		Help:      "Latency of AI responder calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	saveConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gigconnect",
		Subsystem: "tickets",
		Name:      "save_conflicts_total",
		Help:      "Ticket saves rejected because of a stale version.",
	})
)

func resultLabel(err error) string {
	var verr *ValidationError
	var uerr *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.As(err, &uerr):
		return "upstream"
	}
	return "error"
}
