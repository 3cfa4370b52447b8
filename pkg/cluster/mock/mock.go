package mock

import (
	"context"

	"github.com/fluxcd/deploy2ecs/pkg/cluster"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

type Mock struct {
	DescribeTaskDefinitionFunc func(ctx context.Context, family string, includeTags bool) (resource.TaskDefinition, error)
	RegisterTaskDefinitionFunc func(ctx context.Context, def resource.Document) (resource.TaskDefinition, error)
	DescribeServicesFunc       func(ctx context.Context, cluster string, names []string, includeTags bool) ([]resource.Service, error)
	CreateServiceFunc          func(ctx context.Context, def resource.Document) (resource.Service, error)
	UpdateServiceFunc          func(ctx context.Context, arn string, def resource.Document, force bool) (resource.Service, error)
	TagResourceFunc            func(ctx context.Context, arn string, tags resource.Tags) error
	RunTaskFunc                func(ctx context.Context, def resource.Document) (resource.Task, error)
	DescribeTasksFunc          func(ctx context.Context, cluster string, arns []string) ([]resource.Task, error)
	WaitTasksStoppedFunc       func(ctx context.Context, cluster string, arns []string) error
}

var _ cluster.Cluster = &Mock{}

func (m *Mock) DescribeTaskDefinition(ctx context.Context, family string, includeTags bool) (resource.TaskDefinition, error) {
	return m.DescribeTaskDefinitionFunc(ctx, family, includeTags)
}

func (m *Mock) RegisterTaskDefinition(ctx context.Context, def resource.Document) (resource.TaskDefinition, error) {
	return m.RegisterTaskDefinitionFunc(ctx, def)
}

func (m *Mock) DescribeServices(ctx context.Context, cluster string, names []string, includeTags bool) ([]resource.Service, error) {
	return m.DescribeServicesFunc(ctx, cluster, names, includeTags)
}

func (m *Mock) CreateService(ctx context.Context, def resource.Document) (resource.Service, error) {
	return m.CreateServiceFunc(ctx, def)
}

func (m *Mock) UpdateService(ctx context.Context, arn string, def resource.Document, force bool) (resource.Service, error) {
	return m.UpdateServiceFunc(ctx, arn, def, force)
}

func (m *Mock) TagResource(ctx context.Context, arn string, tags resource.Tags) error {
	return m.TagResourceFunc(ctx, arn, tags)
}

func (m *Mock) RunTask(ctx context.Context, def resource.Document) (resource.Task, error) {
	return m.RunTaskFunc(ctx, def)
}

func (m *Mock) DescribeTasks(ctx context.Context, cluster string, arns []string) ([]resource.Task, error) {
	return m.DescribeTasksFunc(ctx, cluster, arns)
}

func (m *Mock) WaitTasksStopped(ctx context.Context, cluster string, arns []string) error {
	return m.WaitTasksStoppedFunc(ctx, cluster, arns)
}
