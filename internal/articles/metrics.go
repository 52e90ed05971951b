package articles

import "github.com/prometheus/client_golang/prometheus"

var (
	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "articles_submitted_total",
		Help: "Accepted manuscript submissions.",
	}, []string{"origin"})

	reviewActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "articles_review_actions_total",
		Help: "Admin review actions applied.",
	}, []string{"action"})

	validationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "articles_validation_failures_total",
		Help: "Rejected submissions and edits by reason.",
	}, []string{"kind"})

	orphanedPDFs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "articles_orphaned_pdfs_total",
		Help: "PDF objects that could not be removed after their article went away.",
	})
)

// RegisterMetrics регистрирует счётчики пакета.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(submissions, reviewActions, validationFailures, orphanedPDFs)
}

func countValidation(err error) {
	if ve, ok := AsValidation(err); ok {
		validationFailures.WithLabelValues(string(ve.Kind)).Inc()
	}
}
