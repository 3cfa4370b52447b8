package registry

import (
	"context"

	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/image"
)

// Registry is the artifact registry images are published to.
type Registry interface {
	// AuthorizationToken returns credentials to push and pull images
	// with.
	AuthorizationToken(ctx context.Context) (Credentials, error)
	// Images lists the tagged images in a repository, in the order
	// the registry returns them.
	Images(ctx context.Context, repository string) (Images, error)
}

// Image is one tag in a repository. Many tags may refer to the same
// digest.
type Image struct {
	Tag    string
	Digest digest.Digest
}

// NewImage validates the digest given; a malformed digest is an
// error of kind Invalid.
func NewImage(tag, dgst string) (Image, error) {
	d, err := digest.Parse(dgst)
	if err != nil {
		return Image{}, &fluxerr.Error{Type: fluxerr.Invalid, Err: errors.Wrapf(err, "parsing digest of tag %q", tag)}
	}
	return Image{Tag: tag, Digest: d}, nil
}

// Images is the tag collection of a repository. Registry order is
// significant: where more than one entry would do, the first wins.
type Images []Image

// Latest returns the entry tagged `latest`.
func (is Images) Latest() (Image, bool) {
	return is.FindByTag(image.LatestTag)
}

func (is Images) FindByTag(tag string) (Image, bool) {
	for _, i := range is {
		if i.Tag == tag {
			return i, true
		}
	}
	return Image{}, false
}

// DigestIs returns every entry with the digest given.
func (is Images) DigestIs(d digest.Digest) Images {
	var res Images
	for _, i := range is {
		if i.Digest == d {
			res = append(res, i)
		}
	}
	return res
}

// Tags returns the tag of every entry.
func (is Images) Tags() []string {
	tags := make([]string, len(is))
	for i := range is {
		tags[i] = is[i].Tag
	}
	return tags
}

// FirstCommitHash returns the first entry whose tag looks like a
// commit hash.
func (is Images) FirstCommitHash() (Image, bool) {
	for _, i := range is {
		if image.IsCommitHash(i.Tag) {
			return i, true
		}
	}
	return Image{}, false
}
