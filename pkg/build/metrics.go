package build

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/deploy2ecs/pkg/metrics"
)

var (
	commandDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "deploy2ecs",
		Subsystem: "build",
		Name:      "command_duration_seconds",
		Help:      "Duration of image build, tag, pull and push operations, in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{metrics.LabelMethod, metrics.LabelSuccess})
)
