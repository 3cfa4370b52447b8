package git

import (
	"strings"

	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
)

const notGitRepositoryMessage = "not a git repository"

func NotGitRepositoryError(dir string, actual error) error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  actual,
		Help: `Not a git repository

deploy2ecs decides what to build and deploy by looking at the history
of a git repository, and the directory it was run in,

    ` + dir + `

is not inside one (or any of its parents).

Please run deploy2ecs from within the checkout of the repository that
holds the configuration file.
`,
	}
}

// UnknownRevisionError is returned when a revision (usually a commit
// hash read from an image tag or a resource tag) cannot be found in
// the repository; e.g., because history was rewritten since.
func UnknownRevisionError(rev string, actual error) error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Err:  errors.Wrapf(actual, "unknown revision %s", rev),
	}
}

// NoHistoryError is returned when no commit touches the paths asked
// about.
func NoHistoryError(paths []string) error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Err:  errors.Errorf("no commits found for paths %v", paths),
	}
}

func isUnknownRevision(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"bad revision",
		"bad object",
		"unknown revision",
		"invalid object name",
		"not a valid object name",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
