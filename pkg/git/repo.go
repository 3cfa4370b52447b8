package git

import (
	"context"
	"strings"
	"time"
)

const (
	defaultTimeout = 20 * time.Second
)

// Repo gives read access to the history of a local working tree. It
// never writes to the repository.
type Repo struct {
	dir     string
	timeout time.Duration
}

type Option interface {
	apply(*Repo)
}

type Timeout time.Duration

func (t Timeout) apply(r *Repo) {
	r.timeout = time.Duration(t)
}

// Open checks that dir is inside a git working tree, and returns a
// Repo for it.
func Open(ctx context.Context, dir string, opts ...Option) (*Repo, error) {
	r := &Repo{
		dir:     dir,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt.apply(r)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := isInsideWorkTree(ctx, dir); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), notGitRepositoryMessage) {
			return nil, NotGitRepositoryError(dir, err)
		}
		return nil, err
	}
	return r, nil
}

// Dir returns the directory the repo was opened at.
func (r *Repo) Dir() string {
	return r.dir
}

// CurrentBranch returns the symbolic name of HEAD, e.g., `master`.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return refName(ctx, r.dir, "HEAD")
}

// HeadObject returns the commit hash of HEAD.
func (r *Repo) HeadObject(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return refRevision(ctx, r.dir, "HEAD")
}

// LatestObject returns the hash of the most recent commit that
// touched the paths given, not counting changes to the excludes. With
// no paths, that is the most recent commit of all. If no commit
// qualifies, the error will be of the Missing kind.
func (r *Repo) LatestObject(ctx context.Context, paths, excludes []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	rev, err := latestRevision(ctx, r.dir, paths, excludes)
	if err != nil {
		return "", err
	}
	if rev == "" {
		return "", NoHistoryError(paths)
	}
	return rev, nil
}

// LatestLog returns the log entry for rev. It fails with a Missing
// kind of error if the revision is unknown.
func (r *Repo) LatestLog(ctx context.Context, rev string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	entry, err := revisionLog(ctx, r.dir, rev)
	if err != nil {
		if isUnknownRevision(err) {
			return "", UnknownRevisionError(rev, err)
		}
		return "", err
	}
	return entry, nil
}

// DiffFiles lists the files, among the paths given and not among the
// excludes, that differ between revisions a and b.
func (r *Repo) DiffFiles(ctx context.Context, a, b string, paths, excludes []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	files, err := changedBetween(ctx, r.dir, a, b, paths, excludes)
	if err != nil && isUnknownRevision(err) {
		return nil, UnknownRevisionError(a+".."+b, err)
	}
	return files, err
}

// Diff returns a summary of the changes between revisions a and b,
// restricted like DiffFiles.
func (r *Repo) Diff(ctx context.Context, a, b string, paths, excludes []string) ([]FileStat, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	patch, err := unifiedDiff(ctx, r.dir, a, b, paths, excludes)
	if err != nil {
		if isUnknownRevision(err) {
			return nil, UnknownRevisionError(a+".."+b, err)
		}
		return nil, err
	}
	return DiffStat(patch)
}
