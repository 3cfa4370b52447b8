package release

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/deploy2ecs/pkg/metrics"
)

var (
	releaseDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "deploy2ecs",
		Subsystem: "release",
		Name:      "duration_seconds",
		Help:      "Release duration in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{metrics.LabelSuccess})
	phaseDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "deploy2ecs",
		Subsystem: "release",
		Name:      "phase_duration_seconds",
		Help:      "Duration in seconds of each phase of a release, including dry-runs.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{metrics.LabelPhase, metrics.LabelSuccess})
)

func observeRelease(start time.Time, success bool) {
	releaseDuration.With(
		metrics.LabelSuccess, fmt.Sprint(success),
	).Observe(time.Since(start).Seconds())
}

func observePhase(start time.Time, phase Phase, success bool) {
	phaseDuration.With(
		metrics.LabelPhase, string(phase),
		metrics.LabelSuccess, fmt.Sprint(success),
	).Observe(time.Since(start).Seconds())
}
