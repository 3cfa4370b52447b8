package git

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/git/gittest"
)

var content = gittest.Content

func TestOpen_NotARepository(t *testing.T) {
	dir, err := ioutil.TempDir("", "deploy2ecs-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	_, err = Open(context.Background(), dir)
	require.Error(t, err)
	assert.Equal(t, fluxerr.User, fluxerr.KindOf(err))
}

func TestLatestObject_ScopedToPaths(t *testing.T) {
	r, cleanup := gittest.NewRepo(t)
	defer cleanup()

	appCommit := r.Commit("app", map[string]*string{
		"app/main.go": content("package main"),
	})
	docsCommit := r.Commit("docs", map[string]*string{
		"docs/README.md": content("# docs"),
	})

	repo, err := Open(context.Background(), r.Dir)
	require.NoError(t, err)
	assert.Equal(t, r.Dir, repo.Dir())

	latest, err := repo.LatestObject(context.Background(), []string{"app"}, nil)
	require.NoError(t, err)
	assert.Equal(t, appCommit, latest)

	latest, err = repo.LatestObject(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, docsCommit, latest)

	head, err := repo.HeadObject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, docsCommit, head)
}

func TestLatestObject_Excludes(t *testing.T) {
	r, cleanup := gittest.NewRepo(t)
	defer cleanup()

	codeCommit := r.Commit("code", map[string]*string{
		"app/main.go": content("package main"),
	})
	r.Commit("generated", map[string]*string{
		"app/generated/zz.go": content("package generated"),
	})

	repo, err := Open(context.Background(), r.Dir)
	require.NoError(t, err)

	latest, err := repo.LatestObject(context.Background(), []string{"app"}, []string{"app/generated"})
	require.NoError(t, err)
	assert.Equal(t, codeCommit, latest)
}

func TestLatestObject_NoHistory(t *testing.T) {
	r, cleanup := gittest.NewRepo(t)
	defer cleanup()
	r.Commit("app", map[string]*string{
		"app/main.go": content("package main"),
	})

	repo, err := Open(context.Background(), r.Dir)
	require.NoError(t, err)

	_, err = repo.LatestObject(context.Background(), []string{"nowhere"}, nil)
	assert.True(t, fluxerr.IsMissing(err))
}

func TestLatestLog_UnknownRevision(t *testing.T) {
	r, cleanup := gittest.NewRepo(t)
	defer cleanup()
	head := r.Commit("app", map[string]*string{
		"app/main.go": content("package main"),
	})

	repo, err := Open(context.Background(), r.Dir)
	require.NoError(t, err)

	entry, err := repo.LatestLog(context.Background(), head)
	require.NoError(t, err)
	assert.Contains(t, entry, head)

	_, err = repo.LatestLog(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	assert.True(t, fluxerr.IsMissing(err))
}

func TestDiffFiles(t *testing.T) {
	r, cleanup := gittest.NewRepo(t)
	defer cleanup()

	first := r.Commit("first", map[string]*string{
		"app/main.go":   content("package main"),
		"app/README.md": content("readme"),
		"web/index.js":  content("//"),
	})
	second := r.Commit("second", map[string]*string{
		"app/main.go":   content("package main\n\nfunc main() {}\n"),
		"app/README.md": content("readme, updated"),
		"web/index.js":  content("// updated"),
	})

	repo, err := Open(context.Background(), r.Dir)
	require.NoError(t, err)

	files, err := repo.DiffFiles(context.Background(), first, second, []string{"app"}, []string{"app/README.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"app/main.go"}, files)

	files, err = repo.DiffFiles(context.Background(), second, second, []string{"app"}, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiff_Stats(t *testing.T) {
	r, cleanup := gittest.NewRepo(t)
	defer cleanup()

	first := r.Commit("first", map[string]*string{
		"task.json": content("{\n  \"cpu\": \"256\"\n}\n"),
	})
	second := r.Commit("second", map[string]*string{
		"task.json": content("{\n  \"cpu\": \"512\",\n  \"memory\": \"1024\"\n}\n"),
	})

	repo, err := Open(context.Background(), r.Dir)
	require.NoError(t, err)

	stats, err := repo.Diff(context.Background(), first, second, []string{"task.json"}, nil)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "task.json", stats[0].Path)
	assert.True(t, stats[0].Added > 0)
	assert.True(t, stats[0].Deleted > 0)
}

func TestCurrentBranch(t *testing.T) {
	r, cleanup := gittest.NewRepo(t)
	defer cleanup()
	r.Commit("app", map[string]*string{
		"app/main.go": content("package main"),
	})
	r.Checkout("release/1.0")
	r.Commit("release", map[string]*string{
		"VERSION": content("1.0"),
	})

	repo, err := Open(context.Background(), r.Dir)
	require.NoError(t, err)

	branch, err := repo.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "release/1.0", branch)
}

func TestPathspec(t *testing.T) {
	assert.Equal(t, []string{"--"}, pathspec(nil, nil))
	assert.Equal(t,
		[]string{"--", "app", "lib", ":(exclude)app/tmp"},
		pathspec([]string{"app", "lib"}, []string{"app/tmp"}))
}
