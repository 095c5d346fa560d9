package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger operation counters, labelled by outcome ("ok" or "rejected").
var (
	SignIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "internlog_sign_ins_total",
		Help: "Sign-in attempts by outcome.",
	}, []string{"outcome"})

	SignOuts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "internlog_sign_outs_total",
		Help: "Sign-out attempts by outcome.",
	}, []string{"outcome"})

	Approvals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "internlog_approvals_total",
		Help: "Pending requests approved.",
	})

	Rejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "internlog_rejections_total",
		Help: "Pending requests rejected.",
	})
)

// Outcome converts an operation error into a counter label.
func Outcome(err error) string {
	if err != nil {
		return "rejected"
	}
	return "ok"
}
