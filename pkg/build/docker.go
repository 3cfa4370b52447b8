package build

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/daemon"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/metrics"
	"github.com/fluxcd/deploy2ecs/pkg/registry"
)

// Docker builds and tags with the docker CLI, and moves images between
// the local daemon and the registry with go-containerregistry.
type Docker struct {
	logger log.Logger
	// relative build contexts are resolved from dir
	dir string

	nameOpts []name.Option
	load     func(ctx context.Context, ref name.Reference) (v1.Image, error)
	save     func(ctx context.Context, tag name.Tag, img v1.Image) error
	command  func(ctx context.Context, args []string, out io.Writer) error
}

var _ Executor = &Docker{}

func NewDocker(dir string, logger log.Logger) *Docker {
	return &Docker{
		logger: logger,
		dir:    dir,
		load: func(ctx context.Context, ref name.Reference) (v1.Image, error) {
			return daemon.Image(ref, daemon.WithContext(ctx))
		},
		save: func(ctx context.Context, tag name.Tag, img v1.Image) error {
			_, err := daemon.Write(tag, img, daemon.WithContext(ctx))
			return err
		},
		command: func(ctx context.Context, args []string, out io.Writer) error {
			return execDocker(ctx, dir, args, out)
		},
	}
}

type dockerImage struct {
	d   *Docker
	ref string
}

func (i *dockerImage) Ref() string {
	return i.ref
}

func (i *dockerImage) Tag(ctx context.Context, ref string) (err error) {
	defer observe("tag", time.Now(), &err)
	if _, err := name.NewTag(ref, i.d.nameOpts...); err != nil {
		return errors.Wrapf(err, "parsing tag %s", ref)
	}
	if err := i.d.command(ctx, []string{"tag", i.ref, ref}, nil); err != nil {
		return errors.Wrapf(err, "tagging %s as %s", i.ref, ref)
	}
	level.Debug(i.d.logger).Log("tagged", ref, "from", i.ref)
	return nil
}

func (d *Docker) Build(ctx context.Context, opts Options) (_ Image, _ []string, err error) {
	defer observe("build", time.Now(), &err)
	if _, err := name.NewTag(opts.Tag, d.nameOpts...); err != nil {
		return nil, nil, errors.Wrapf(err, "parsing tag %s", opts.Tag)
	}
	args := []string{"build", "--file", buildFilePath(opts), "--tag", opts.Tag}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	args = append(args, opts.Context)

	out := &bytes.Buffer{}
	if err := d.command(ctx, args, out); err != nil {
		return nil, outputLines(out), errors.Wrapf(err, "building %s", opts.Tag)
	}
	lines := outputLines(out)
	for _, line := range lines {
		level.Debug(d.logger).Log("build", opts.Tag, "output", line)
	}
	return &dockerImage{d: d, ref: opts.Tag}, lines, nil
}

// buildFilePath gives the build file as the docker CLI wants it:
// relative to the working directory, not to the context.
func buildFilePath(opts Options) string {
	if path.IsAbs(opts.BuildFile) {
		return opts.BuildFile
	}
	return path.Join(opts.Context, opts.BuildFile)
}

func (d *Docker) Pull(ctx context.Context, ref string, creds registry.Credentials) (_ Image, err error) {
	defer observe("pull", time.Now(), &err)
	tag, err := name.NewTag(ref, d.nameOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing tag %s", ref)
	}
	img, err := remote.Image(tag, remote.WithAuth(authenticator(creds)), remote.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "pulling %s", ref)
	}
	if err := d.save(ctx, tag, img); err != nil {
		return nil, errors.Wrapf(err, "loading %s into the local daemon", ref)
	}
	level.Debug(d.logger).Log("pulled", ref)
	return &dockerImage{d: d, ref: ref}, nil
}

func (d *Docker) Push(ctx context.Context, ref string, creds registry.Credentials) (err error) {
	defer observe("push", time.Now(), &err)
	tag, err := name.NewTag(ref, d.nameOpts...)
	if err != nil {
		return errors.Wrapf(err, "parsing tag %s", ref)
	}
	img, err := d.load(ctx, tag)
	if err != nil {
		return errors.Wrapf(err, "reading %s from the local daemon", ref)
	}
	if err := remote.Write(tag, img, remote.WithAuth(authenticator(creds)), remote.WithContext(ctx)); err != nil {
		return errors.Wrapf(err, "pushing %s", ref)
	}
	level.Debug(d.logger).Log("pushed", ref)
	return nil
}

func authenticator(creds registry.Credentials) authn.Authenticator {
	if creds.Username == "" && creds.Password == "" {
		return authn.Anonymous
	}
	return &authn.Basic{Username: creds.Username, Password: creds.Password}
}

func observe(method string, start time.Time, err *error) {
	commandDuration.With(
		metrics.LabelMethod, method,
		metrics.LabelSuccess, strconv.FormatBool(*err == nil),
	).Observe(time.Since(start).Seconds())
}

func outputLines(out *bytes.Buffer) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(out.Bytes()))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
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

func (b *threadSafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// execDocker runs the docker CLI. Combined output goes to out, if
// given; it is also used as the error message on failure.
func execDocker(ctx context.Context, dir string, args []string, out io.Writer) error {
	c := exec.CommandContext(ctx, "docker", args...)
	c.Dir = dir
	c.Env = os.Environ()
	combined := &threadSafeBuffer{}
	if out != nil {
		// one writer for both, so exec copies them in one goroutine
		w := io.MultiWriter(combined, out)
		c.Stdout = w
		c.Stderr = w
	} else {
		c.Stdout = combined
		c.Stderr = combined
	}
	err := c.Run()
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), fmt.Sprintf("running docker command: docker %v", args))
	}
	if err != nil && combined.String() != "" {
		return errors.New(strings.TrimSpace(combined.String()))
	}
	return err
}
