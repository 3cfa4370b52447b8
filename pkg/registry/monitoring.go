package registry

// Monitoring middleware for the registry interface

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/deploy2ecs/pkg/metrics"
)

const (
	RequestKindAuth   = "authorization-token"
	RequestKindImages = "images"
)

var requestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
	Namespace: "deploy2ecs",
	Subsystem: "registry",
	Name:      "request_duration_seconds",
	Help:      "Duration of artifact registry requests, in seconds.",
	Buckets:   stdprometheus.DefBuckets,
}, []string{metrics.LabelMethod, metrics.LabelSuccess})

type instrumentedRegistry struct {
	next Registry
}

func NewInstrumentedRegistry(next Registry) Registry {
	return &instrumentedRegistry{
		next: next,
	}
}

func (m *instrumentedRegistry) AuthorizationToken(ctx context.Context) (res Credentials, err error) {
	defer func(start time.Time) {
		requestDuration.With(
			metrics.LabelMethod, RequestKindAuth,
			metrics.LabelSuccess, strconv.FormatBool(err == nil),
		).Observe(time.Since(start).Seconds())
	}(time.Now())
	return m.next.AuthorizationToken(ctx)
}

func (m *instrumentedRegistry) Images(ctx context.Context, repository string) (res Images, err error) {
	defer func(start time.Time) {
		requestDuration.With(
			metrics.LabelMethod, RequestKindImages,
			metrics.LabelSuccess, strconv.FormatBool(err == nil),
		).Observe(time.Since(start).Seconds())
	}(time.Now())
	return m.next.Images(ctx, repository)
}
