package update

import (
	"context"
	"strings"

	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

// Action is the outcome of a decision.
type Action string

const (
	Skip     Action = "skip"
	Retag    Action = "retag"
	Rebuild  Action = "rebuild"
	Register Action = "register"
	Create   Action = "create"
	Update   Action = "update"
)

// Kinds of resource decided upon, for labelling metrics and logs.
const (
	KindImage          = "image"
	KindTaskDefinition = "task-definition"
	KindService        = "service"
)

// VersionControl is what the decisions need to know about the
// history of the repository.
type VersionControl interface {
	LatestObject(ctx context.Context, paths, excludes []string) (string, error)
	LatestLog(ctx context.Context, rev string) (string, error)
	DiffFiles(ctx context.Context, a, b string, paths, excludes []string) ([]string, error)
}

// hashComparison is the result of comparing the content hash of a
// deployed resource with that of a candidate.
type hashComparison struct {
	changed       bool
	reason        string
	before, after string
}

// compareContentHash treats a deployed hash that can't be trusted as
// a change; otherwise only a different hash is.
func compareContentHash(deployed, candidate resource.Tags) hashComparison {
	after, _ := candidate.Get(resource.ContentHashKey)
	before, ok := deployed.ContentHash()
	if !ok {
		return hashComparison{changed: true, reason: "deployed content hash missing or invalid", after: after}
	}
	if before != after {
		return hashComparison{changed: true, reason: "configuration changed", before: before, after: after}
	}
	return hashComparison{reason: "up to date", before: before, after: after}
}

// uniq drops empty strings and repeats, keeping the first occurrence.
func uniq(ss ...[]string) []string {
	seen := map[string]bool{}
	var res []string
	for _, s := range ss {
		for _, v := range s {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			res = append(res, v)
		}
	}
	return res
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func joinOr(ss []string, none string) string {
	if len(ss) == 0 {
		return none
	}
	return strings.Join(ss, ",")
}
