package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "microfin"

var (
	// LoansApplied counts accepted loan applications
	LoansApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loans_applied_total",
		Help:      "Loan applications accepted.",
	})

	// StatusTransitions counts loan status changes by target status
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loan_status_transitions_total",
		Help:      "Loan status changes by target status.",
	}, []string{"to"})

	// PaymentsResolved counts payments by outcome
	PaymentsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_resolved_total",
		Help:      "Payments approved or rejected.",
	}, []string{"status"})

	// PenaltiesApplied counts penalty postings
	PenaltiesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "penalties_applied_total",
		Help:      "Penalty amounts posted to repayments.",
	})

	// CronRuns counts scheduler job runs by job and result
	CronRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cron_runs_total",
		Help:      "Scheduled job runs by job and result.",
	}, []string{"job", "result"})
)

// Handler serves the Prometheus exposition format
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
