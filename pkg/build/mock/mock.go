package mock

import (
	"context"

	"github.com/fluxcd/deploy2ecs/pkg/build"
	"github.com/fluxcd/deploy2ecs/pkg/registry"
)

// Executor records everything asked of it. Local images are tracked
// by reference, so tests can check which tags ended up where.
type Executor struct {
	BuildFunc func(opts build.Options) ([]string, error)
	PullFunc  func(ref string) error
	PushFunc  func(ref string) error

	Builds []build.Options
	Pulls  []string
	Pushes []string
	// Tagged maps each tag given to a local image to the image's
	// original reference.
	Tagged map[string]string
}

var _ build.Executor = &Executor{}

type Image struct {
	e   *Executor
	ref string
}

func (i *Image) Ref() string {
	return i.ref
}

func (i *Image) Tag(_ context.Context, ref string) error {
	if i.e.Tagged == nil {
		i.e.Tagged = map[string]string{}
	}
	i.e.Tagged[ref] = i.ref
	return nil
}

func (e *Executor) Build(_ context.Context, opts build.Options) (build.Image, []string, error) {
	e.Builds = append(e.Builds, opts)
	var lines []string
	if e.BuildFunc != nil {
		var err error
		if lines, err = e.BuildFunc(opts); err != nil {
			return nil, lines, err
		}
	}
	return &Image{e: e, ref: opts.Tag}, lines, nil
}

func (e *Executor) Pull(_ context.Context, ref string, _ registry.Credentials) (build.Image, error) {
	e.Pulls = append(e.Pulls, ref)
	if e.PullFunc != nil {
		if err := e.PullFunc(ref); err != nil {
			return nil, err
		}
	}
	return &Image{e: e, ref: ref}, nil
}

func (e *Executor) Push(_ context.Context, ref string, _ registry.Credentials) error {
	e.Pushes = append(e.Pushes, ref)
	if e.PushFunc != nil {
		return e.PushFunc(ref)
	}
	return nil
}
