package mock

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/registry"
)

// Registry is a registry.Image list per repository. Requests for a
// repository with no entry fail, unless ImagesFunc is set.
type Registry struct {
	Credentials  registry.Credentials
	AuthErr      error
	Repositories map[string]registry.Images
	ImagesFunc   func(repository string) (registry.Images, error)

	// Requested records the repositories listed, in order.
	Requested []string
}

func (m *Registry) AuthorizationToken(context.Context) (registry.Credentials, error) {
	return m.Credentials, m.AuthErr
}

func (m *Registry) Images(_ context.Context, repository string) (registry.Images, error) {
	m.Requested = append(m.Requested, repository)
	if m.ImagesFunc != nil {
		return m.ImagesFunc(repository)
	}
	if images, ok := m.Repositories[repository]; ok {
		return images, nil
	}
	return nil, errors.Errorf("repository %s not found", repository)
}

var _ registry.Registry = &Registry{}
