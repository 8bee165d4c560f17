package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricScopeDenials = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "scope_denials_total",
		Help:      "Number of agent-emitted paths denied by the scope guardrail.",
	})
	metricPatchesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "patches_extracted_total",
		Help:      "Number of valid patches extracted from agent output.",
	})
	metricPatchesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "patches_skipped_total",
		Help:      "Number of candidate patches dropped for failing validation.",
	})
	metricRefinementRounds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "refinement_rounds_total",
		Help:      "Number of structure refinement rounds executed.",
	})
	metricPhasesDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "phases_degraded_total",
		Help:      "Number of workflow phases that timed out or fell back to heuristics.",
	})
)

func recordScopeDenial() {
	metricScopeDenials.Inc()
}

func recordExtraction(extracted, skipped int) {
	if extracted > 0 {
		metricPatchesExtracted.Add(float64(extracted))
	}
	if skipped > 0 {
		metricPatchesSkipped.Add(float64(skipped))
	}
}

func recordRefinementRounds(rounds int) {
	if rounds > 0 {
		metricRefinementRounds.Add(float64(rounds))
	}
}

func recordPhaseDegraded() {
	metricPhasesDegraded.Inc()
}
