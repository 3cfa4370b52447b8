package update

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/deploy2ecs/pkg/metrics"
)

var decisions = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
	Namespace: "deploy2ecs",
	Subsystem: "update",
	Name:      "decisions_total",
	Help:      "Count of decisions made, by kind of resource and action.",
}, []string{metrics.LabelKind, metrics.LabelAction})

func observeDecision(kind string, action Action) {
	decisions.With(metrics.LabelKind, kind, metrics.LabelAction, string(action)).Add(1)
}
