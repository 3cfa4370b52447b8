package update

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/image"
	"github.com/fluxcd/deploy2ecs/pkg/registry"
)

// ImageDecision says what to do about one image.
type ImageDecision struct {
	Image  image.Config
	Action Action
	Reason string
	// DependencyCommit is the latest commit touching the image's
	// dependencies
	DependencyCommit string
	// Baseline is the commit the published image was built from, when
	// it could be established
	Baseline string
	// Tags are the tags to apply: for a rebuild, every tag to push;
	// for a retag, those missing from the baseline image
	Tags []string
	// ChangedFiles lists dependency files changed since the baseline
	ChangedFiles []string
}

// Refs returns the full references for the decision's tags.
func (d ImageDecision) Refs() []string {
	refs := make([]string, len(d.Tags))
	for i, t := range d.Tags {
		refs[i] = d.Image.TaggedURI(t)
	}
	return refs
}

// BaselineRef is the reference to the published image a retag starts
// from.
func (d ImageDecision) BaselineRef() string {
	return d.Image.TaggedURI(d.Baseline)
}

// ImageRequest is the input to DecideImage.
type ImageRequest struct {
	Image image.Config
	// Head is the commit being deployed
	Head  string
	Force bool
	// ExtraTags are added to every image
	ExtraTags []string
}

// DecideImage works out whether an image needs to be rebuilt, just
// given more tags, or left alone. It trusts only the history in vc and
// the tags already published in reg.
func DecideImage(ctx context.Context, vc VersionControl, reg registry.Registry, req ImageRequest, logger log.Logger) (ImageDecision, error) {
	cfg := req.Image
	d := ImageDecision{Image: cfg}

	dep, err := vc.LatestObject(ctx, cfg.Dependencies, cfg.Excludes)
	if err != nil {
		if fluxerr.IsMissing(err) {
			return d, noDependencyHistoryError(cfg, err)
		}
		return d, errors.Wrapf(err, "finding latest commit for dependencies of %s", cfg.Name)
	}
	d.DependencyCommit = dep

	rebuild := func(reason string) (ImageDecision, error) {
		d.Action = Rebuild
		d.Reason = reason
		d.Tags = uniq([]string{image.LatestTag, dep}, req.ExtraTags)
		observeDecision(KindImage, d.Action)
		return d, nil
	}

	if req.Force {
		return rebuild("forced")
	}

	images, err := reg.Images(ctx, cfg.RepositoryName())
	if err != nil {
		return d, errors.Wrapf(err, "listing published images of %s", cfg.RepositoryName())
	}

	var baseline registry.Image
	if published, ok := images.FindByTag(dep); ok {
		baseline = published
		d.Baseline = dep
		level.Debug(logger).Log("image", cfg.Name, "info", "image for latest dependency commit already published", "commit", dep)
	} else {
		latest, ok := images.Latest()
		if !ok {
			return rebuild("no image tagged " + image.LatestTag)
		}
		hashTagged, ok := images.DigestIs(latest.Digest).FirstCommitHash()
		if !ok {
			return rebuild("no commit hash tag on the " + image.LatestTag + " image")
		}
		baseline = hashTagged
		d.Baseline = hashTagged.Tag

		if _, err := vc.LatestLog(ctx, d.Baseline); err != nil {
			if ctx.Err() != nil {
				return d, ctx.Err()
			}
			level.Debug(logger).Log("image", cfg.Name, "baseline", d.Baseline, "err", err)
			return rebuild("baseline commit not found in history")
		}

		changed, err := vc.DiffFiles(ctx, d.Baseline, req.Head, cfg.Dependencies, cfg.Excludes)
		if err != nil {
			return d, errors.Wrapf(err, "comparing dependencies of %s since %s", cfg.Name, d.Baseline)
		}
		if len(changed) > 0 {
			d.ChangedFiles = changed
			return rebuild("dependencies changed")
		}
	}

	existing := images.DigestIs(baseline.Digest).Tags()
	var missing []string
	for _, t := range uniq(req.ExtraTags) {
		if !contains(existing, t) {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		d.Action = Retag
		d.Reason = "tags missing from published image"
		d.Tags = missing
	} else {
		d.Action = Skip
		d.Reason = "up to date"
	}
	observeDecision(KindImage, d.Action)
	return d, nil
}

func noDependencyHistoryError(cfg image.Config, err error) error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  err,
		Help: `No commit touches the dependencies of the image "` + cfg.Name + `":

    ` + joinOr(cfg.Dependencies, "(none)") + `

An image is tagged with the latest commit of its dependencies, so
they must name paths that are tracked in the repository. Check the
dependencies and excludes given for the image in the configuration.
`,
	}
}
