package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ecrURI = "123456789012.dkr.ecr.ap-northeast-1.amazonaws.com/team/web"

func TestIsCommitHash(t *testing.T) {
	for _, v := range []struct {
		s  string
		ok bool
	}{
		{"deadbeef", true},
		{"3f786850e387550fdab836ed7e6dc881de23001b", true},
		{"abcde", true},
		{"abcd", false},
		{"3f786850e387550fdab836ed7e6dc881de23001b0", false},
		{"latest", false},
		{"DEADBEEF", false},
		{"deadbeef-hotfix", false},
		{"", false},
	} {
		assert.Equal(t, v.ok, IsCommitHash(v.s), v.s)
	}
}

func TestParseName(t *testing.T) {
	name, err := ParseName(ecrURI)
	require.NoError(t, err)
	assert.Equal(t, "123456789012.dkr.ecr.ap-northeast-1.amazonaws.com", name.Domain)
	assert.Equal(t, "team/web", name.Image)
	assert.Equal(t, ecrURI, name.String())
	assert.Equal(t, ecrURI+":latest", name.ToRef(LatestTag))

	for _, bad := range []string{"", "web", ecrURI + ":v1", "/web", "host/"} {
		_, err := ParseName(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewConfig_Normalises(t *testing.T) {
	for _, v := range []struct {
		context, buildFile         string
		wantContext, wantBuildFile string
	}{
		{".", "./Dockerfile", "./", "./Dockerfile"},
		{"./app", "./app/Dockerfile", "./app/", "./Dockerfile"},
		{"app/", "app/docker/Dockerfile", "app/", "./docker/Dockerfile"},
		{`app\web`, `app\web\Dockerfile`, "app/web/", "./Dockerfile"},
		{"app", "Dockerfile.app", "app/", "Dockerfile.app"},
	} {
		c, err := NewConfig("web", ecrURI, v.context, v.buildFile, []string{"app"}, nil)
		require.NoError(t, err)
		assert.Equal(t, v.wantContext, c.Context)
		assert.Equal(t, v.wantBuildFile, c.BuildFile)
	}
}

func TestConfig_TaggedURI(t *testing.T) {
	c, err := NewConfig("web", ecrURI, ".", "Dockerfile", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "team/web", c.RepositoryName())
	assert.Equal(t, ecrURI+":deadbeef", c.TaggedURI("deadbeef"))
}
