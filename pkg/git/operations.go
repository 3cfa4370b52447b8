package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	fluxmetrics "github.com/fluxcd/deploy2ecs/pkg/metrics"
)

// If true, every git invocation will be echoed to stdout (with the exception of those added to `exemptedTraceCommands`)
const trace = false

// Whilst debugging or developing, you may wish to filter certain git commands out of the logs when tracing is on.
var exemptedTraceCommands = []string{
	// To filter out a certain git subcommand add it here, e.g.:
	// "diff",
}

// Env vars that are allowed to be inherited from the OS
var allowedEnvVars = []string{
	// these are for people using (no) proxies. Git follows the curl conventions, so HTTP_PROXY
	// is intentionally missing
	"http_proxy", "https_proxy", "no_proxy", "HTTPS_PROXY", "NO_PROXY", "GIT_PROXY_COMMAND",
	// git looks here for the user's config, e.g. safe.directory
	"HOME", "XDG_CONFIG_HOME",
	// CI runners commonly point git at a worktree or object store this way
	"GIT_DIR", "GIT_WORK_TREE", "GIT_CEILING_DIRECTORIES",
}

type gitCmdConfig struct {
	dir string
	env []string
	out io.Writer
}

func isInsideWorkTree(ctx context.Context, workingDir string) error {
	args := []string{"rev-parse", "--is-inside-work-tree"}
	return execGitCmd(ctx, args, gitCmdConfig{dir: workingDir})
}

// Get the commit hash for a reference
func refRevision(ctx context.Context, workingDir, ref string) (string, error) {
	out := &bytes.Buffer{}
	args := []string{"--no-pager", "rev-parse", ref}
	if err := execGitCmd(ctx, args, gitCmdConfig{dir: workingDir, out: out}); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// Get a symbolic name for a reference, e.g., the branch HEAD is on.
func refName(ctx context.Context, workingDir, ref string) (string, error) {
	out := &bytes.Buffer{}
	args := []string{"--no-pager", "name-rev", "--name-only", ref}
	if err := execGitCmd(ctx, args, gitCmdConfig{dir: workingDir, out: out}); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// latestRevision returns the hash of the most recent commit touching
// any of the paths given (and none of the excludes only), or the
// empty string if there is no such commit.
func latestRevision(ctx context.Context, workingDir string, paths, excludes []string) (string, error) {
	out := &bytes.Buffer{}
	args := []string{"--no-pager", "log", "-n", "1", "--pretty=format:%H"}
	args = append(args, pathspec(paths, excludes)...)
	if err := execGitCmd(ctx, args, gitCmdConfig{dir: workingDir, out: out}); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// Return the log entry for the revision given. This fails if the
// revision is not known to the repository.
func revisionLog(ctx context.Context, workingDir, rev string) (string, error) {
	out := &bytes.Buffer{}
	args := []string{"--no-pager", "log", "-n", "1", rev, "--"}
	if err := execGitCmd(ctx, args, gitCmdConfig{dir: workingDir, out: out}); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// changedBetween lists the files that differ between the two
// revisions, restricted to the pathspec given.
func changedBetween(ctx context.Context, workingDir, a, b string, paths, excludes []string) ([]string, error) {
	out := &bytes.Buffer{}
	args := []string{"--no-pager", "diff", "--name-only", a + ".." + b}
	args = append(args, pathspec(paths, excludes)...)
	if err := execGitCmd(ctx, args, gitCmdConfig{dir: workingDir, out: out}); err != nil {
		return nil, err
	}
	return splitList(out.String()), nil
}

// unifiedDiff returns the patch between the two revisions, restricted
// to the pathspec given.
func unifiedDiff(ctx context.Context, workingDir, a, b string, paths, excludes []string) ([]byte, error) {
	out := &bytes.Buffer{}
	args := []string{"--no-pager", "diff", "--no-color", "--no-ext-diff", a + ".." + b}
	args = append(args, pathspec(paths, excludes)...)
	if err := execGitCmd(ctx, args, gitCmdConfig{dir: workingDir, out: out}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// pathspec builds the trailing `-- <paths> <excludes>` part of a
// command line. Excludes use git's `:(exclude)` magic.
func pathspec(paths, excludes []string) []string {
	args := []string{"--"}
	args = append(args, paths...)
	for _, x := range excludes {
		args = append(args, ":(exclude)"+x)
	}
	return args
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	outStr := strings.TrimSuffix(s, "\n")
	return strings.Split(outStr, "\n")
}

// traceGitCommand returns a log line that can be useful when debugging and developing git activity
func traceGitCommand(args []string, config gitCmdConfig, stdOutAndStdErr string) string {
	for _, exemptedCommand := range exemptedTraceCommands {
		if exemptedCommand == args[0] {
			return ""
		}
	}

	prepare := func(input string) string {
		output := strings.Trim(input, "\x00")
		output = strings.TrimSuffix(output, "\n")
		output = strings.Replace(output, "\n", "\\n", -1)
		return output
	}

	command := `git ` + strings.Join(args, " ")
	out := prepare(stdOutAndStdErr)

	return fmt.Sprintf(
		"TRACE: command=%q out=%q dir=%q env=%q",
		command,
		out,
		config.dir,
		strings.Join(config.env, ","),
	)
}

type threadSafeBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *threadSafeBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *threadSafeBuffer) Read(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}

func (b *threadSafeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Bytes()
}

func (b *threadSafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// execGitCmd runs a `git` command with the supplied arguments.
func execGitCmd(ctx context.Context, args []string, config gitCmdConfig) (err error) {
	defer func(start time.Time) {
		commandDuration.With(
			fluxmetrics.LabelMethod, subcommand(args),
			fluxmetrics.LabelSuccess, strconv.FormatBool(err == nil),
		).Observe(time.Since(start).Seconds())
	}(time.Now())

	c := exec.CommandContext(ctx, "git", args...)

	if config.dir != "" {
		c.Dir = config.dir
	}
	c.Env = append(env(), config.env...)
	stdOutAndStdErr := &threadSafeBuffer{}
	c.Stdout = stdOutAndStdErr
	c.Stderr = stdOutAndStdErr
	if config.out != nil {
		// keep stderr out of the result, so it can be parsed
		c.Stdout = config.out
	}

	err = c.Run()
	if err != nil {
		if len(stdOutAndStdErr.Bytes()) > 0 {
			err = errors.New(stdOutAndStdErr.String())
			msg := findErrorMessage(stdOutAndStdErr)
			if msg != "" {
				err = fmt.Errorf("%s, full output:\n %s", msg, err.Error())
			}
		}
	}

	if trace {
		if traceCommand := traceGitCommand(args, config, stdOutAndStdErr.String()); traceCommand != "" {
			println(traceCommand)
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(ctx.Err(), fmt.Sprintf("running git command: %s %v", "git", args))
	} else if ctx.Err() == context.Canceled {
		return errors.Wrap(ctx.Err(), fmt.Sprintf("context was unexpectedly cancelled when running git command: %s %v", "git", args))
	}
	return err
}

// subcommand picks the git subcommand out of an argument list, for
// labelling metrics.
func subcommand(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return "unknown"
}

func env() []string {
	env := []string{"GIT_TERMINAL_PROMPT=0"}

	// include allowed env vars from os
	for _, k := range allowedEnvVars {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}

	return env
}

func findErrorMessage(output io.Reader) string {
	sc := bufio.NewScanner(output)
	for sc.Scan() {
		switch {
		case strings.HasPrefix(sc.Text(), "fatal: "):
			return sc.Text()
		case strings.HasPrefix(sc.Text(), "ERROR fatal: "): // Saw this error on ubuntu systems
			return sc.Text()
		case strings.HasPrefix(sc.Text(), "error:"):
			return strings.TrimPrefix(sc.Text(), "error: ")
		}
	}
	return ""
}
