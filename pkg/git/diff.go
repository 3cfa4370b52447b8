package git

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sourcegraph/go-diff/diff"
)

// FileStat is the number of lines added and deleted in one file.
type FileStat struct {
	Path    string
	Added   int
	Deleted int
}

// DiffStat parses a unified, multi-file patch as produced by `git
// diff` and summarises it per file.
func DiffStat(patch []byte) ([]FileStat, error) {
	if len(strings.TrimSpace(string(patch))) == 0 {
		return nil, nil
	}
	fileDiffs, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return nil, errors.Wrap(err, "parsing diff")
	}
	stats := make([]FileStat, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		s := fd.Stat()
		stats = append(stats, FileStat{
			Path: diffPath(fd),
			// a changed line is one deleted and one added
			Added:   int(s.Added + s.Changed),
			Deleted: int(s.Deleted + s.Changed),
		})
	}
	return stats, nil
}

func diffPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}
