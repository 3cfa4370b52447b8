package gittest

import (
	"bytes"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Repo is a throwaway git working tree for tests.
type Repo struct {
	t   *testing.T
	Dir string
}

// NewRepo creates an empty git repository in a temporary directory,
// with a committer identity configured. Also returns a cleanup func to
// clean up after.
func NewRepo(t *testing.T) (*Repo, func()) {
	dir, err := ioutil.TempDir("", "deploy2ecs-test")
	if err != nil {
		t.Fatal(err)
	}
	cleanup := func() {
		os.RemoveAll(dir)
	}

	for _, args := range [][]string{
		{"init", "--quiet"},
		{"config", "--local", "user.email", "example@example.com"},
		{"config", "--local", "user.name", "example"},
		{"config", "--local", "commit.gpgsign", "false"},
	} {
		if _, err := execCommand(dir, "git", args...); err != nil {
			cleanup()
			t.Fatal(err)
		}
	}
	return &Repo{t: t, Dir: dir}, cleanup
}

// Commit writes the files given (path relative to the repo -> content),
// commits everything, and returns the new commit hash. A nil content
// removes the file.
func (r *Repo) Commit(message string, files map[string]*string) string {
	for path, content := range files {
		full := filepath.Join(r.Dir, path)
		if content == nil {
			if err := os.Remove(full); err != nil {
				r.t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			r.t.Fatal(err)
		}
		if err := ioutil.WriteFile(full, []byte(*content), 0644); err != nil {
			r.t.Fatal(err)
		}
	}
	if _, err := execCommand(r.Dir, "git", "add", "--all"); err != nil {
		r.t.Fatal(err)
	}
	if _, err := execCommand(r.Dir, "git", "commit", "--quiet", "--allow-empty", "-m", message); err != nil {
		r.t.Fatal(err)
	}
	return r.Head()
}

// Head returns the commit hash of HEAD.
func (r *Repo) Head() string {
	out, err := execCommand(r.Dir, "git", "rev-parse", "HEAD")
	if err != nil {
		r.t.Fatal(err)
	}
	return strings.TrimSpace(out)
}

// Checkout creates (if need be) and switches to the branch given.
func (r *Repo) Checkout(branch string) {
	if _, err := execCommand(r.Dir, "git", "checkout", "--quiet", "-B", branch); err != nil {
		r.t.Fatal(err)
	}
}

// Content is a shortcut for taking the address of a string literal.
func Content(s string) *string {
	return &s
}

func execCommand(dir, cmd string, args ...string) (string, error) {
	c := exec.Command(cmd, args...)
	c.Dir = dir
	out := &bytes.Buffer{}
	c.Stdout = out
	c.Stderr = ioutil.Discard
	err := c.Run()
	return out.String(), err
}
