package cluster

import (
	"fmt"
	"strings"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
)

// ReasonMissing is the failure reason ECS gives for resources that do
// not exist.
const ReasonMissing = "MISSING"

// Failure is one entry of the failures reported by a describe call.
type Failure struct {
	ARN    string
	Reason string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.ARN, f.Reason)
}

// Missing says whether the failure just means the resource isn't there.
func (f Failure) Missing() bool {
	return strings.EqualFold(f.Reason, ReasonMissing)
}

// DescribeFailedError reports failures from describing the resources
// of the kind given.
func DescribeFailedError(kind string, failures []Failure) *fluxerr.Error {
	reasons := make([]string, len(failures))
	for i, f := range failures {
		reasons[i] = f.String()
	}
	return &fluxerr.Error{
		Type: fluxerr.DescribeFailed,
		Err:  fmt.Errorf("describing %s failed: %s", kind, strings.Join(reasons, "; ")),
		Help: `Describing ` + kind + ` returned failures:

    ` + strings.Join(reasons, "\n    ") + `

Check that the cluster named in the configuration exists, and that
the credentials in use may describe ` + kind + ` in it.`,
	}
}

// NoTaskDefinitionError is returned when a task family has no active
// revision.
func NoTaskDefinitionError(family string, err error) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Err:  err,
		Help: `There is no active revision of the task definition family "` + family + `".

A service can only be deployed once its task definition has been
registered; run the register-task-definition phase first.`,
	}
}
