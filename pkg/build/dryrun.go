package build

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/fluxcd/deploy2ecs/pkg/registry"
)

// DryRun is an Executor that logs what it would do, and does nothing.
type DryRun struct {
	logger log.Logger
}

var _ Executor = &DryRun{}

func NewDryRun(logger log.Logger) *DryRun {
	return &DryRun{logger: log.With(logger, "dry-run", true)}
}

type dryRunImage struct {
	logger log.Logger
	ref    string
}

func (i *dryRunImage) Ref() string {
	return i.ref
}

func (i *dryRunImage) Tag(ctx context.Context, ref string) error {
	level.Info(i.logger).Log("skipped", "tag", "from", i.ref, "tag", ref)
	return nil
}

func (d *DryRun) Build(ctx context.Context, opts Options) (Image, []string, error) {
	level.Info(d.logger).Log("skipped", "build", "tag", opts.Tag, "context", opts.Context, "file", opts.BuildFile, "no-cache", opts.NoCache)
	return &dryRunImage{logger: d.logger, ref: opts.Tag}, nil, nil
}

func (d *DryRun) Pull(ctx context.Context, ref string, creds registry.Credentials) (Image, error) {
	level.Info(d.logger).Log("skipped", "pull", "ref", ref)
	return &dryRunImage{logger: d.logger, ref: ref}, nil
}

func (d *DryRun) Push(ctx context.Context, ref string, creds registry.Credentials) error {
	level.Info(d.logger).Log("skipped", "push", "ref", ref)
	return nil
}
