package release

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/config"
	"github.com/fluxcd/deploy2ecs/pkg/update"
)

// Phase is one step of a release. Phases always run in the order
// images, task definitions, services.
type Phase string

const (
	BuildImages             Phase = "build-image"
	RegisterTaskDefinitions Phase = "register-task-definition"
	RegisterServices        Phase = "register-service"
)

// AllPhases in the order they run.
var AllPhases = []Phase{BuildImages, RegisterTaskDefinitions, RegisterServices}

// ParsePhase accepts the name of a phase.
func ParsePhase(s string) (Phase, error) {
	for _, p := range AllPhases {
		if string(p) == s {
			return p, nil
		}
	}
	return "", errors.Errorf("unknown phase %q", s)
}

type Options struct {
	// Force rebuilds every image, registers every task definition and
	// redeploys every service
	Force bool
	// ExtraTags are added to every image
	ExtraTags []string
	// Phases to run; empty means all of them
	Phases []Phase
	// RunID identifies the release in logs; one is made up if empty
	RunID string
	// TaskTimeout bounds each task run before a deployment, if
	// positive
	TaskTimeout time.Duration
}

func (o Options) runs(p Phase) bool {
	if len(o.Phases) == 0 {
		return true
	}
	for _, q := range o.Phases {
		if q == p {
			return true
		}
	}
	return false
}

// Result is what a release decided, per resource.
type Result struct {
	RunID           string
	Images          []update.ImageDecision
	TaskDefinitions []update.TaskDefinitionDecision
	Services        []update.ServiceDecision
}

// Release runs the phases asked for, over the resources in app, in
// the order they are declared. It stops at the first error; whatever
// was done before then stays done.
func Release(ctx context.Context, rc *ReleaseContext, app config.Application, opts Options, logger log.Logger) (result Result, err error) {
	defer func(start time.Time) {
		observeRelease(start, err == nil)
	}(time.Now())

	result.RunID = opts.RunID
	if result.RunID == "" {
		result.RunID = uuid.New().String()
	}
	logger = log.With(logger, "run", result.RunID)
	level.Info(logger).Log("info", "starting release", "section", app.Pattern, "force", opts.Force)

	phase := func(p Phase, run func(log.Logger) error) error {
		if !opts.runs(p) {
			return nil
		}
		start := time.Now()
		plog := log.With(logger, "phase", p)
		level.Info(plog).Log("info", "phase started")
		err := run(plog)
		observePhase(start, p, err == nil)
		if err != nil {
			return errors.Wrapf(err, "%s", p)
		}
		level.Info(plog).Log("info", "phase finished", "took", time.Since(start))
		return nil
	}

	if err = phase(BuildImages, func(l log.Logger) (err error) {
		result.Images, err = rc.BuildImages(ctx, app.Images, opts, l)
		return err
	}); err != nil {
		return result, err
	}
	if err = phase(RegisterTaskDefinitions, func(l log.Logger) (err error) {
		result.TaskDefinitions, err = rc.RegisterTaskDefinitions(ctx, app.TaskDefinitions, opts, l)
		return err
	}); err != nil {
		return result, err
	}
	if err = phase(RegisterServices, func(l log.Logger) (err error) {
		result.Services, err = rc.RegisterServices(ctx, app.Services, opts, l)
		return err
	}); err != nil {
		return result, err
	}
	return result, nil
}
