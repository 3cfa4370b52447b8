package git

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTraceGitCommand(t *testing.T) {
	type input struct {
		args   []string
		config gitCmdConfig
		out    string
	}
	examples := []struct {
		name     string
		input    input
		expected string
	}{
		{
			name: "git log",
			input: input{
				args: []string{"log", "-n", "1", "--pretty=format:%H", "--", "app", ":(exclude)app/docs"},
				out:  "b9d6a543acf8085ff6bed23fac17f8dc71bfcb66\n",
				config: gitCmdConfig{
					dir: "/src/project",
				},
			},
			expected: `TRACE: command="git log -n 1 --pretty=format:%H -- app :(exclude)app/docs" out="b9d6a543acf8085ff6bed23fac17f8dc71bfcb66" dir="/src/project" env=""`,
		},
		{
			name: "git name-rev",
			input: input{
				args: []string{"name-rev", "--name-only", "HEAD"},
				out:  "release/1.0",
				config: gitCmdConfig{
					dir: "/src/project",
					env: []string{"GIT_DIR=/src/project/.git"},
				},
			},
			expected: `TRACE: command="git name-rev --name-only HEAD" out="release/1.0" dir="/src/project" env="GIT_DIR=/src/project/.git"`,
		},
		{
			name: "git diff",
			input: input{
				args: []string{"diff", "--name-only", "abc12..def34", "--"},
				out:  "app/main.go\napp/go.mod\n",
				config: gitCmdConfig{
					dir: "/src/project",
				},
			},
			expected: `TRACE: command="git diff --name-only abc12..def34 --" out="app/main.go\\napp/go.mod" dir="/src/project" env=""`,
		},
	}
	for _, example := range examples {
		actual := traceGitCommand(
			example.input.args,
			example.input.config,
			example.input.out,
		)
		assert.Equal(t, example.expected, actual, example.name)
	}
}

func TestFindErrorMessage(t *testing.T) {
	for _, v := range []struct {
		output, msg string
	}{
		{"fatal: bad revision 'abc12'\n", "fatal: bad revision 'abc12'"},
		{"warning: something\nerror: pathspec 'x' did not match\n", "pathspec 'x' did not match"},
		{"ERROR fatal: not a git repository\n", "ERROR fatal: not a git repository"},
		{"all good\n", ""},
	} {
		assert.Equal(t, v.msg, findErrorMessage(strings.NewReader(v.output)))
	}
}

func TestSubcommand(t *testing.T) {
	assert.Equal(t, "rev-parse", subcommand([]string{"--no-pager", "rev-parse", "HEAD"}))
	assert.Equal(t, "log", subcommand([]string{"log", "-n", "1"}))
	assert.Equal(t, "unknown", subcommand([]string{"--version"}))
}

func TestSplitList(t *testing.T) {
	assert.Empty(t, splitList(""))
	assert.Empty(t, splitList("\n\n"))
	assert.Equal(t, []string{"a", "b/c"}, splitList("a\nb/c\n"))
}

// TestMutexBuffer tests that the threadsafe buffer used to capture
// stdout and stderr does not give rise to races or deadlocks.
func TestMutexBuffer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := &bytes.Buffer{}
	err := execGitCmd(ctx, []string{"version"}, gitCmdConfig{out: out})
	if err != nil {
		t.Fatal(err)
	}
	assert.Contains(t, out.String(), "git version")
}
