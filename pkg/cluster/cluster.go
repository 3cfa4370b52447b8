package cluster

import (
	"context"

	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

// Cluster is the container orchestration API deployments are made
// to. Documents given to it are rendered request bodies, in the JSON
// shape of the corresponding API request.
type Cluster interface {
	// DescribeTaskDefinition returns the latest active revision of
	// family; an error of kind Missing means there is none.
	DescribeTaskDefinition(ctx context.Context, family string, includeTags bool) (resource.TaskDefinition, error)
	RegisterTaskDefinition(ctx context.Context, def resource.Document) (resource.TaskDefinition, error)
	// DescribeServices returns the services named. Services that are
	// simply missing are left out; any other failure is an error of
	// kind DescribeFailed.
	DescribeServices(ctx context.Context, cluster string, names []string, includeTags bool) ([]resource.Service, error)
	CreateService(ctx context.Context, def resource.Document) (resource.Service, error)
	// UpdateService applies def to the service identified by arn. When
	// force is true, a new deployment is started even if nothing
	// changed.
	UpdateService(ctx context.Context, arn string, def resource.Document, force bool) (resource.Service, error)
	TagResource(ctx context.Context, arn string, tags resource.Tags) error
	RunTask(ctx context.Context, def resource.Document) (resource.Task, error)
	// DescribeTasks fails with kind DescribeFailed if any task could
	// not be described.
	DescribeTasks(ctx context.Context, cluster string, arns []string) ([]resource.Task, error)
	// WaitTasksStopped blocks until the tasks have stopped, or until
	// the wait gives up; either way, callers should describe the
	// tasks again to find out where they are.
	WaitTasksStopped(ctx context.Context, cluster string, arns []string) error
}
