package resource

import (
	"fmt"
	"strings"
)

// TaskStatus is the lifecycle status of a one-shot task. The ECS
// statuses are ordered; Submitted is only ever assigned locally, to
// a task that has been asked for but not yet described.
type TaskStatus string

const (
	TaskSubmitted      TaskStatus = "SUBMITTED"
	TaskProvisioning   TaskStatus = "PROVISIONING"
	TaskPending        TaskStatus = "PENDING"
	TaskActivating     TaskStatus = "ACTIVATING"
	TaskRunning        TaskStatus = "RUNNING"
	TaskDeactivating   TaskStatus = "DEACTIVATING"
	TaskStopping       TaskStatus = "STOPPING"
	TaskDeprovisioning TaskStatus = "DEPROVISIONING"
	TaskStopped        TaskStatus = "STOPPED"
)

// TaskLifecycle lists the statuses a task goes through, in order.
var TaskLifecycle = []TaskStatus{
	TaskProvisioning,
	TaskPending,
	TaskActivating,
	TaskRunning,
	TaskDeactivating,
	TaskStopping,
	TaskDeprovisioning,
	TaskStopped,
}

// Ordinal returns the position of the status in the lifecycle, with
// Submitted before everything else, and -1 for unknown statuses.
func (s TaskStatus) Ordinal() int {
	if s == TaskSubmitted {
		return 0
	}
	for i, t := range TaskLifecycle {
		if strings.EqualFold(string(s), string(t)) {
			return i + 1
		}
	}
	return -1
}

func (s TaskStatus) Stopped() bool {
	return strings.EqualFold(string(s), string(TaskStopped))
}

type Task struct {
	ARN        string
	LastStatus TaskStatus
	Containers []Container
}

type Container struct {
	Name string
	// ExitCode is nil when the container never reported one; e.g.,
	// because it could not be started.
	ExitCode *int64
	Reason   string
}

func (c Container) Failed() bool {
	return c.ExitCode == nil || *c.ExitCode != 0
}

func (c Container) String() string {
	code := "none"
	if c.ExitCode != nil {
		code = fmt.Sprintf("%d", *c.ExitCode)
	}
	if c.Reason == "" {
		return fmt.Sprintf("%s (exit code: %s)", c.Name, code)
	}
	return fmt.Sprintf("%s (exit code: %s, reason: %s)", c.Name, code, c.Reason)
}

// FailedContainers returns every container that exited non-zero, or
// did not exit with a code at all.
func (t Task) FailedContainers() []Container {
	var failed []Container
	for _, c := range t.Containers {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	return failed
}
