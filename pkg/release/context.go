package release

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/build"
	"github.com/fluxcd/deploy2ecs/pkg/cluster"
	"github.com/fluxcd/deploy2ecs/pkg/config"
	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/git"
	"github.com/fluxcd/deploy2ecs/pkg/image"
	"github.com/fluxcd/deploy2ecs/pkg/registry"
	"github.com/fluxcd/deploy2ecs/pkg/taskrun"
	"github.com/fluxcd/deploy2ecs/pkg/update"
)

// Repo is the version control a release consults.
type Repo interface {
	update.VersionControl
	HeadObject(ctx context.Context) (string, error)
	Diff(ctx context.Context, a, b string, paths, excludes []string) ([]git.FileStat, error)
}

// ReleaseContext holds everything a release talks to.
type ReleaseContext struct {
	repo     Repo
	registry registry.Registry
	cluster  cluster.Cluster
	builder  build.Executor
	renderer config.Renderer
	monitor  *taskrun.Monitor
}

func NewReleaseContext(repo Repo, reg registry.Registry, c cluster.Cluster, builder build.Executor, renderer config.Renderer, logger log.Logger) *ReleaseContext {
	return &ReleaseContext{
		repo:     repo,
		registry: reg,
		cluster:  c,
		builder:  builder,
		renderer: renderer,
		monitor:  &taskrun.Monitor{Cluster: c, Logger: log.With(logger, "component", "taskrun")},
	}
}

// contentHash is the commit a rendered resource is tagged with: the
// latest commit touching its template, or HEAD if there is none.
func (rc *ReleaseContext) contentHash(ctx context.Context, template string) (string, error) {
	rev, err := rc.repo.LatestObject(ctx, []string{template}, nil)
	if err == nil {
		return rev, nil
	}
	if !fluxerr.IsMissing(err) {
		return "", errors.Wrapf(err, "finding latest commit for %s", template)
	}
	head, err := rc.repo.HeadObject(ctx)
	if err != nil {
		return "", errors.Wrap(err, "finding HEAD")
	}
	return head, nil
}

// imageRef is the reference a task definition uses for an image: the
// image tagged with the latest commit of its dependencies.
func (rc *ReleaseContext) imageRef(ctx context.Context, cfg image.Config) (string, error) {
	rev, err := rc.repo.LatestObject(ctx, cfg.Dependencies, cfg.Excludes)
	if err != nil {
		return "", errors.Wrapf(err, "finding latest commit for dependencies of %s", cfg.Name)
	}
	return cfg.TaggedURI(rev), nil
}

// logDiff summarises the changes between two commits, for
// diagnostics; failure to do so is not an error.
func (rc *ReleaseContext) logDiff(ctx context.Context, a, b string, paths, excludes []string, logger log.Logger) {
	if a == "" || b == "" || a == b {
		return
	}
	stats, err := rc.repo.Diff(ctx, a, b, paths, excludes)
	if err != nil {
		level.Debug(logger).Log("info", "could not summarise changes", "from", a, "to", b, "err", err)
		return
	}
	for _, s := range stats {
		level.Info(logger).Log("changed", s.Path, "added", s.Added, "deleted", s.Deleted)
	}
}
