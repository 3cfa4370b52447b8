package release

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/build"
	"github.com/fluxcd/deploy2ecs/pkg/image"
	"github.com/fluxcd/deploy2ecs/pkg/registry"
	"github.com/fluxcd/deploy2ecs/pkg/update"
)

// BuildImages decides about each image in turn, builds or retags
// those that need it, and then pushes every new tag.
func (rc *ReleaseContext) BuildImages(ctx context.Context, images []image.Config, opts Options, logger log.Logger) ([]update.ImageDecision, error) {
	head, err := rc.repo.HeadObject(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "finding HEAD")
	}

	var creds *registry.Credentials
	credentials := func() (registry.Credentials, error) {
		if creds == nil {
			c, err := rc.registry.AuthorizationToken(ctx)
			if err != nil {
				return c, errors.Wrap(err, "getting registry credentials")
			}
			creds = &c
		}
		return *creds, nil
	}

	var decisions []update.ImageDecision
	var toPush []string
	for _, cfg := range images {
		ilog := log.With(logger, "image", cfg.Name, "repository", cfg.RepositoryName())
		d, err := update.DecideImage(ctx, rc.repo, rc.registry, update.ImageRequest{
			Image:     cfg,
			Head:      head,
			Force:     opts.Force,
			ExtraTags: opts.ExtraTags,
		}, ilog)
		if err != nil {
			return decisions, err
		}
		decisions = append(decisions, d)
		level.Info(ilog).Log("action", d.Action, "reason", d.Reason, "baseline", d.Baseline, "dependency-commit", d.DependencyCommit)

		switch d.Action {
		case update.Rebuild:
			for _, f := range d.ChangedFiles {
				level.Info(ilog).Log("changed", f)
			}
			if len(d.ChangedFiles) > 0 {
				rc.logDiff(ctx, d.Baseline, head, cfg.Dependencies, cfg.Excludes, ilog)
			}
			refs, err := rc.build(ctx, d, opts.Force, ilog)
			if err != nil {
				return decisions, err
			}
			toPush = append(toPush, refs...)
		case update.Retag:
			c, err := credentials()
			if err != nil {
				return decisions, err
			}
			refs, err := rc.retag(ctx, d, c, ilog)
			if err != nil {
				return decisions, err
			}
			toPush = append(toPush, refs...)
		}
	}

	if len(toPush) == 0 {
		level.Info(logger).Log("info", "no images to push")
		return decisions, nil
	}
	c, err := credentials()
	if err != nil {
		return decisions, err
	}
	for _, ref := range toPush {
		level.Info(logger).Log("pushing", ref)
		if err := rc.builder.Push(ctx, ref, c); err != nil {
			return decisions, errors.Wrapf(err, "pushing %s", ref)
		}
	}
	return decisions, nil
}

// build builds the image with its first tag, then gives it the rest.
func (rc *ReleaseContext) build(ctx context.Context, d update.ImageDecision, noCache bool, logger log.Logger) ([]string, error) {
	refs := d.Refs()
	img, output, err := rc.builder.Build(ctx, build.Options{
		Context:   d.Image.Context,
		BuildFile: d.Image.BuildFile,
		Tag:       refs[0],
		NoCache:   noCache,
	})
	for _, line := range output {
		level.Debug(logger).Log("build", line)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "building %s", d.Image.Name)
	}
	for _, ref := range refs[1:] {
		if err := img.Tag(ctx, ref); err != nil {
			return nil, errors.Wrapf(err, "tagging %s", ref)
		}
	}
	return refs, nil
}

// retag pulls the published image and gives it the missing tags.
func (rc *ReleaseContext) retag(ctx context.Context, d update.ImageDecision, creds registry.Credentials, logger log.Logger) ([]string, error) {
	refs := d.Refs()
	for _, ref := range refs {
		level.Info(logger).Log("missing-tag", ref)
	}
	img, err := rc.builder.Pull(ctx, d.BaselineRef(), creds)
	if err != nil {
		return nil, errors.Wrapf(err, "pulling %s", d.BaselineRef())
	}
	for _, ref := range refs {
		if err := img.Tag(ctx, ref); err != nil {
			return nil, errors.Wrapf(err, "tagging %s", ref)
		}
	}
	return refs, nil
}
