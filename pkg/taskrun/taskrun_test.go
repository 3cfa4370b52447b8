package taskrun

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/deploy2ecs/pkg/cluster/mock"
	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

func exit(code int64) *int64 {
	return &code
}

// lifecycle returns a cluster whose task goes through every status,
// one per describe, ending with the containers given.
func lifecycle(containers []resource.Container) (*mock.Mock, *int) {
	step := 0
	waits := 0
	m := &mock.Mock{
		RunTaskFunc: func(ctx context.Context, def resource.Document) (resource.Task, error) {
			return resource.Task{ARN: "arn:task/1", LastStatus: resource.TaskLifecycle[0]}, nil
		},
		WaitTasksStoppedFunc: func(ctx context.Context, cluster string, arns []string) error {
			waits++
			return nil
		},
		DescribeTasksFunc: func(ctx context.Context, cluster string, arns []string) ([]resource.Task, error) {
			step++
			task := resource.Task{ARN: arns[0], LastStatus: resource.TaskLifecycle[step]}
			if task.LastStatus.Stopped() {
				task.Containers = containers
			}
			return []resource.Task{task}, nil
		},
	}
	return m, &waits
}

func document(t *testing.T) resource.Document {
	doc, err := resource.ParseDocument([]byte(`{"cluster": "prod", "taskDefinition": "migrate"}`))
	require.NoError(t, err)
	return doc
}

func TestRun_OneContainerFails(t *testing.T) {
	c, waits := lifecycle([]resource.Container{
		{Name: "migrate", ExitCode: exit(1), Reason: "migration failed"},
		{Name: "sidecar", ExitCode: exit(0)},
	})
	m := &Monitor{Cluster: c, Logger: log.NewNopLogger()}

	task, err := m.Run(context.Background(), "migrate", "prod", document(t))
	require.Error(t, err)
	failed, ok := errors.Cause(err).(*FailedError)
	require.True(t, ok)
	assert.Len(t, failed.Containers, 1)
	assert.Equal(t, "migrate", failed.Containers[0].Name)
	assert.Equal(t, resource.TaskStopped, task.LastStatus)
	assert.Equal(t, len(resource.TaskLifecycle)-1, *waits)

	help := Help(failed)
	assert.Equal(t, fluxerr.User, help.Type)
	assert.Contains(t, help.Help, "migrate (exit code: 1, reason: migration failed)")
}

func TestRun_LogsStatusProgress(t *testing.T) {
	c, _ := lifecycle([]resource.Container{{Name: "migrate", ExitCode: exit(0)}})
	describe := c.DescribeTasksFunc
	calls := 0
	c.DescribeTasksFunc = func(ctx context.Context, cluster string, arns []string) ([]resource.Task, error) {
		calls++
		if calls == 2 {
			// a repeated status is not logged again
			return []resource.Task{{ARN: arns[0], LastStatus: resource.TaskLifecycle[1]}}, nil
		}
		return describe(ctx, cluster, arns)
	}
	var out bytes.Buffer
	m := &Monitor{Cluster: c, Logger: log.NewJSONLogger(&out)}
	_, err := m.Run(context.Background(), "migrate", "prod", document(t))
	require.NoError(t, err)

	var progress []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if _, ok := entry["info"]; ok || entry["level"] != "info" {
			continue
		}
		progress = append(progress, entry["status"].(string))
	}
	var want []string
	for _, status := range resource.TaskLifecycle[1:] {
		want = append(want, string(status))
	}
	assert.Equal(t, want, progress)
}

func TestRun_Succeeds(t *testing.T) {
	c, _ := lifecycle([]resource.Container{{Name: "migrate", ExitCode: exit(0)}})
	m := &Monitor{Cluster: c, Logger: log.NewNopLogger()}
	task, err := m.Run(context.Background(), "migrate", "prod", document(t))
	require.NoError(t, err)
	assert.True(t, task.LastStatus.Stopped())
}

func TestRun_MissingExitCodeFails(t *testing.T) {
	c, _ := lifecycle([]resource.Container{{Name: "migrate", Reason: "CannotPullContainerError"}})
	m := &Monitor{Cluster: c, Logger: log.NewNopLogger()}
	_, err := m.Run(context.Background(), "migrate", "prod", document(t))
	failed, ok := err.(*FailedError)
	require.True(t, ok)
	assert.Nil(t, failed.Containers[0].ExitCode)
}

func TestRun_AlreadyStopped(t *testing.T) {
	m := &Monitor{Logger: log.NewNopLogger(), Cluster: &mock.Mock{
		RunTaskFunc: func(ctx context.Context, def resource.Document) (resource.Task, error) {
			return resource.Task{ARN: "arn:task/1", LastStatus: resource.TaskStopped, Containers: []resource.Container{{Name: "a", ExitCode: exit(0)}}}, nil
		},
	}}
	_, err := m.Run(context.Background(), "migrate", "prod", document(t))
	assert.NoError(t, err)
}

func TestRun_DescribeFails(t *testing.T) {
	c, _ := lifecycle(nil)
	c.DescribeTasksFunc = func(ctx context.Context, cluster string, arns []string) ([]resource.Task, error) {
		return nil, errors.New("describe failed")
	}
	m := &Monitor{Cluster: c, Logger: log.NewNopLogger()}
	_, err := m.Run(context.Background(), "migrate", "prod", document(t))
	require.Error(t, err)
	_, isFailed := errors.Cause(err).(*FailedError)
	assert.False(t, isFailed)
}

func TestRun_BoundedByContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	m := &Monitor{Logger: log.NewNopLogger(), Cluster: &mock.Mock{
		RunTaskFunc: func(ctx context.Context, def resource.Document) (resource.Task, error) {
			return resource.Task{ARN: "arn:task/1", LastStatus: resource.TaskRunning}, nil
		},
		WaitTasksStoppedFunc: func(ctx context.Context, cluster string, arns []string) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	_, err := m.Run(ctx, "migrate", "prod", document(t))
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
}
