package taskrun

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/cluster"
	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

// FailedError is returned when a task stopped with at least one
// container that did not exit cleanly.
type FailedError struct {
	Family     string
	ARN        string
	Containers []resource.Container
}

func (e *FailedError) Error() string {
	names := make([]string, len(e.Containers))
	for i, c := range e.Containers {
		names[i] = c.String()
	}
	return fmt.Sprintf("task %s (%s) failed: %s", e.Family, e.ARN, strings.Join(names, "; "))
}

// Monitor runs one-shot tasks and waits for them to stop.
type Monitor struct {
	Cluster cluster.Cluster
	Logger  log.Logger
}

// Run submits the task described by def, waits until it has stopped,
// and reports an error if any of its containers failed. It waits for
// as long as ctx allows.
func (m *Monitor) Run(ctx context.Context, family, clusterName string, def resource.Document) (resource.Task, error) {
	logger := log.With(m.Logger, "task-family", family, "cluster", clusterName)

	submitted := resource.Task{LastStatus: resource.TaskSubmitted}
	level.Debug(logger).Log("status", submitted.LastStatus)
	task, err := m.Cluster.RunTask(ctx, def)
	if err != nil {
		return submitted, errors.Wrapf(err, "running task %s", family)
	}
	logger = log.With(logger, "task", task.ARN)
	level.Info(logger).Log("info", "task running, waiting for it to stop", "status", task.LastStatus)

	for !task.LastStatus.Stopped() {
		level.Debug(logger).Log("info", "task not stopped yet", "status", task.LastStatus)
		if err := m.Cluster.WaitTasksStopped(ctx, clusterName, []string{task.ARN}); err != nil {
			return task, errors.Wrapf(err, "waiting for task %s", task.ARN)
		}
		tasks, err := m.Cluster.DescribeTasks(ctx, clusterName, []string{task.ARN})
		if err != nil {
			return task, errors.Wrapf(err, "describing task %s", task.ARN)
		}
		if len(tasks) == 0 {
			return task, cluster.DescribeFailedError("tasks", []cluster.Failure{{ARN: task.ARN, Reason: cluster.ReasonMissing}})
		}
		if tasks[0].LastStatus.Ordinal() > task.LastStatus.Ordinal() {
			level.Info(logger).Log("status", tasks[0].LastStatus)
		}
		task = tasks[0]
	}

	if failed := task.FailedContainers(); len(failed) > 0 {
		err := &FailedError{Family: family, ARN: task.ARN, Containers: failed}
		for _, c := range failed {
			level.Error(logger).Log("container", c.Name, "err", c.String())
		}
		return task, err
	}
	level.Info(logger).Log("info", "task completed")
	return task, nil
}

// Help explains a FailedError to the user.
func Help(err *FailedError) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  err,
		Help: `The task ` + err.Family + ` stopped with failing containers:

    ` + containerList(err.Containers) + `

Tasks run before a deployment must succeed for the deployment to go
ahead. Check the task's logs, fix the cause, and run again.
`,
	}
}

func containerList(cs []resource.Container) string {
	lines := make([]string, len(cs))
	for i, c := range cs {
		lines[i] = c.String()
	}
	return strings.Join(lines, "\n    ")
}
