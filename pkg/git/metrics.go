package git

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	fluxmetrics "github.com/fluxcd/deploy2ecs/pkg/metrics"
)

var (
	commandDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "deploy2ecs",
		Subsystem: "git",
		Name:      "command_duration_seconds",
		Help:      "Duration of git commands, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{fluxmetrics.LabelMethod, fluxmetrics.LabelSuccess})
)
