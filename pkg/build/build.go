package build

import (
	"context"

	"github.com/fluxcd/deploy2ecs/pkg/registry"
)

// Options for building an image.
type Options struct {
	// Context is the build context directory
	Context string
	// BuildFile is the Dockerfile, relative to the context
	BuildFile string
	// Tag is the full reference the built image is tagged with
	Tag string
	// NoCache disables the build cache
	NoCache bool
}

// Image is a local image that can be given more tags.
type Image interface {
	Ref() string
	Tag(ctx context.Context, ref string) error
}

// Executor builds, pulls and pushes container images.
type Executor interface {
	// Build builds an image, returning it and the build output.
	Build(ctx context.Context, opts Options) (Image, []string, error)
	Pull(ctx context.Context, ref string, creds registry.Credentials) (Image, error)
	Push(ctx context.Context, ref string, creds registry.Credentials) error
}
