package obs

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finbook.org/internal/notify"
)

// Ledger metrics.
var (
	ledgerMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finbook_ledger_mutations_total",
			Help: "Total number of ledger mutations by operation.",
		},
		[]string{"op"},
	)

	balanceRecalculationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finbook_balance_recalculations_total",
		Help: "Total number of account balance recalculations.",
	})

	mergeConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finbook_merge_conflicts_total",
		Help: "Total number of optimistic-concurrency conflicts on save.",
	})
)

// Init registers the metrics in the default registry.
func Init() {
	prometheus.MustRegister(ledgerMutationsTotal, balanceRecalculationsTotal, mergeConflictsTotal)
}

// Handler returns the Prometheus scrape handler for embedding collaborators.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncMergeConflict counts a failed optimistic save.
func IncMergeConflict() {
	mergeConflictsTotal.Inc()
}

// ObserveEvents consumes ledger mutation events and updates the counters
// until the context ends.
func ObserveEvents(ctx context.Context, stream *notify.Stream) {
	events := stream.Subscribe(ctx)
	go func() {
		for evt := range events {
			ledgerMutationsTotal.WithLabelValues(evt.Op).Inc()
			if evt.Op == notify.OpBalanceRecalculate {
				balanceRecalculationsTotal.Inc()
			}
		}
	}()
}
