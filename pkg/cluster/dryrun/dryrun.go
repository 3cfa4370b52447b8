// Package dryrun simulates the write side of a cluster. Reads go to
// the real cluster; writes are logged and echoed back as though they
// had succeeded, and one-shot tasks step through their lifecycle,
// one status per describe, to exit cleanly.
package dryrun

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/fluxcd/deploy2ecs/pkg/cluster"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

const arnPrefix = "arn:dry-run:"

type Cluster struct {
	next   cluster.Cluster
	logger log.Logger

	mu         sync.Mutex
	registered map[string]resource.TaskDefinition
	tasks      map[string]int
	taskCount  int
}

var _ cluster.Cluster = &Cluster{}

func New(next cluster.Cluster, logger log.Logger) *Cluster {
	return &Cluster{
		next:       next,
		logger:     log.With(logger, "dry-run", true),
		registered: map[string]resource.TaskDefinition{},
		tasks:      map[string]int{},
	}
}

// DescribeTaskDefinition returns a definition registered earlier in
// the run, if there is one, so later phases see what would have been
// registered.
func (c *Cluster) DescribeTaskDefinition(ctx context.Context, family string, includeTags bool) (resource.TaskDefinition, error) {
	c.mu.Lock()
	td, ok := c.registered[family]
	c.mu.Unlock()
	if ok {
		return td, nil
	}
	return c.next.DescribeTaskDefinition(ctx, family, includeTags)
}

func (c *Cluster) RegisterTaskDefinition(ctx context.Context, def resource.Document) (resource.TaskDefinition, error) {
	td := def.AsTaskDefinition()
	td.ARN = arnPrefix + "task-definition/" + td.Family
	c.mu.Lock()
	c.registered[td.Family] = td
	c.mu.Unlock()
	level.Info(c.logger).Log("skipped", "register-task-definition", "family", td.Family)
	level.Debug(c.logger).Log("document", def.String())
	return td, nil
}

func (c *Cluster) DescribeServices(ctx context.Context, clusterName string, names []string, includeTags bool) ([]resource.Service, error) {
	return c.next.DescribeServices(ctx, clusterName, names, includeTags)
}

func (c *Cluster) CreateService(ctx context.Context, def resource.Document) (resource.Service, error) {
	svc := def.AsService()
	svc.ARN = arnPrefix + "service/" + svc.Name
	svc.Status = resource.ActiveStatus
	level.Info(c.logger).Log("skipped", "create-service", "service", svc.Name)
	level.Debug(c.logger).Log("document", def.String())
	return svc, nil
}

func (c *Cluster) UpdateService(ctx context.Context, arn string, def resource.Document, force bool) (resource.Service, error) {
	svc := def.AsService()
	svc.ARN = arn
	svc.Status = resource.ActiveStatus
	level.Info(c.logger).Log("skipped", "update-service", "service", arn, "force", force)
	level.Debug(c.logger).Log("document", def.String())
	return svc, nil
}

func (c *Cluster) TagResource(ctx context.Context, arn string, tags resource.Tags) error {
	level.Info(c.logger).Log("skipped", "tag-resource", "resource", arn, "tags", len(tags))
	return nil
}

func (c *Cluster) RunTask(ctx context.Context, def resource.Document) (resource.Task, error) {
	c.mu.Lock()
	c.taskCount++
	arn := fmt.Sprintf("%stask/%d", arnPrefix, c.taskCount)
	c.tasks[arn] = 0
	c.mu.Unlock()
	level.Info(c.logger).Log("skipped", "run-task", "task", arn)
	level.Debug(c.logger).Log("document", def.String())
	return simulated(arn, resource.TaskLifecycle[0]), nil
}

// DescribeTasks moves each simulated task on by one status. Tasks not
// started by this simulation are described by the real cluster.
func (c *Cluster) DescribeTasks(ctx context.Context, clusterName string, arns []string) ([]resource.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var tasks []resource.Task
	for _, arn := range arns {
		step, ok := c.tasks[arn]
		if !ok {
			return c.next.DescribeTasks(ctx, clusterName, arns)
		}
		if step < len(resource.TaskLifecycle)-1 {
			step++
			c.tasks[arn] = step
		}
		tasks = append(tasks, simulated(arn, resource.TaskLifecycle[step]))
	}
	return tasks, nil
}

func (c *Cluster) WaitTasksStopped(ctx context.Context, clusterName string, arns []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, arn := range arns {
		if _, ok := c.tasks[arn]; !ok {
			return c.next.WaitTasksStopped(ctx, clusterName, arns)
		}
	}
	return ctx.Err()
}

func simulated(arn string, status resource.TaskStatus) resource.Task {
	exit := int64(0)
	return resource.Task{
		ARN:        arn,
		LastStatus: status,
		Containers: []resource.Container{{Name: "dry-run", ExitCode: &exit}},
	}
}
