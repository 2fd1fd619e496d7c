package sweeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m5chat_sweep_runs_total",
		Help: "Expiry sweep passes, labelled by outcome.",
	}, []string{"outcome"})
	filesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "m5chat_sweep_files_removed_total",
		Help: "Attachment files deleted by the sweeper.",
	})
)
