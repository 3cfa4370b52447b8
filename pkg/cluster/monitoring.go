package cluster

// Monitoring middleware for the cluster interface

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/deploy2ecs/pkg/metrics"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

var requestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
	Namespace: "deploy2ecs",
	Subsystem: "cluster",
	Name:      "request_duration_seconds",
	Help:      "Duration of cluster API requests, in seconds.",
	Buckets:   stdprometheus.DefBuckets,
}, []string{metrics.LabelMethod, metrics.LabelSuccess})

func observe(method string, start time.Time, err error) {
	requestDuration.With(
		metrics.LabelMethod, method,
		metrics.LabelSuccess, strconv.FormatBool(err == nil),
	).Observe(time.Since(start).Seconds())
}

type instrumentedCluster struct {
	next Cluster
}

func NewInstrumented(next Cluster) Cluster {
	return &instrumentedCluster{next: next}
}

func (m *instrumentedCluster) DescribeTaskDefinition(ctx context.Context, family string, includeTags bool) (res resource.TaskDefinition, err error) {
	defer func(start time.Time) { observe("DescribeTaskDefinition", start, err) }(time.Now())
	return m.next.DescribeTaskDefinition(ctx, family, includeTags)
}

func (m *instrumentedCluster) RegisterTaskDefinition(ctx context.Context, def resource.Document) (res resource.TaskDefinition, err error) {
	defer func(start time.Time) { observe("RegisterTaskDefinition", start, err) }(time.Now())
	return m.next.RegisterTaskDefinition(ctx, def)
}

func (m *instrumentedCluster) DescribeServices(ctx context.Context, cluster string, names []string, includeTags bool) (res []resource.Service, err error) {
	defer func(start time.Time) { observe("DescribeServices", start, err) }(time.Now())
	return m.next.DescribeServices(ctx, cluster, names, includeTags)
}

func (m *instrumentedCluster) CreateService(ctx context.Context, def resource.Document) (res resource.Service, err error) {
	defer func(start time.Time) { observe("CreateService", start, err) }(time.Now())
	return m.next.CreateService(ctx, def)
}

func (m *instrumentedCluster) UpdateService(ctx context.Context, arn string, def resource.Document, force bool) (res resource.Service, err error) {
	defer func(start time.Time) { observe("UpdateService", start, err) }(time.Now())
	return m.next.UpdateService(ctx, arn, def, force)
}

func (m *instrumentedCluster) TagResource(ctx context.Context, arn string, tags resource.Tags) (err error) {
	defer func(start time.Time) { observe("TagResource", start, err) }(time.Now())
	return m.next.TagResource(ctx, arn, tags)
}

func (m *instrumentedCluster) RunTask(ctx context.Context, def resource.Document) (res resource.Task, err error) {
	defer func(start time.Time) { observe("RunTask", start, err) }(time.Now())
	return m.next.RunTask(ctx, def)
}

func (m *instrumentedCluster) DescribeTasks(ctx context.Context, cluster string, arns []string) (res []resource.Task, err error) {
	defer func(start time.Time) { observe("DescribeTasks", start, err) }(time.Now())
	return m.next.DescribeTasks(ctx, cluster, arns)
}

func (m *instrumentedCluster) WaitTasksStopped(ctx context.Context, cluster string, arns []string) (err error) {
	defer func(start time.Time) { observe("WaitTasksStopped", start, err) }(time.Now())
	return m.next.WaitTasksStopped(ctx, cluster, arns)
}
