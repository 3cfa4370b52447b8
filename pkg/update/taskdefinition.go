package update

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/fluxcd/deploy2ecs/pkg/cluster"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

// TaskDefinitionDecision says whether to register a new revision of a
// task definition.
type TaskDefinitionDecision struct {
	Family string
	Action Action
	Reason string
	// Deployed is the latest registered revision, if there is one
	Deployed  *resource.TaskDefinition
	Candidate resource.TaskDefinition
	Document  resource.Document
	// ContentHash before and after, when they were compared
	HashBefore, HashAfter string
}

// DecideTaskDefinition compares a rendered task definition with the
// latest revision registered for its family.
func DecideTaskDefinition(ctx context.Context, c cluster.Cluster, doc resource.Document, force bool, logger log.Logger) (TaskDefinitionDecision, error) {
	candidate := doc.AsTaskDefinition()
	d := TaskDefinitionDecision{
		Family:    candidate.Family,
		Candidate: candidate,
		Document:  doc,
	}
	decide := func(action Action, reason string) (TaskDefinitionDecision, error) {
		d.Action = action
		d.Reason = reason
		observeDecision(KindTaskDefinition, action)
		return d, nil
	}

	if force {
		return decide(Register, "forced")
	}

	deployed, err := c.DescribeTaskDefinition(ctx, candidate.Family, true)
	if err != nil {
		if ctx.Err() != nil {
			return d, ctx.Err()
		}
		level.Debug(logger).Log("family", candidate.Family, "info", "could not describe registered task definition", "err", err)
		return decide(Register, "no registered task definition")
	}
	d.Deployed = &deployed
	level.Debug(logger).Log("family", candidate.Family, "revision", deployed.Revision)

	if !resource.SameImages(deployed, candidate) {
		before, after := deployed.SortedImages(), candidate.SortedImages()
		level.Info(logger).Log("family", candidate.Family, "images-before", joinOr(before, "none"), "images-after", joinOr(after, "none"))
		logChange(log.With(logger, "family", candidate.Family), taskDefinitionOutline(deployed), taskDefinitionOutline(candidate))
		return decide(Register, "image references changed")
	}

	cmp := compareContentHash(deployed.Tags, candidate.Tags)
	d.HashBefore, d.HashAfter = cmp.before, cmp.after
	if cmp.changed {
		logChange(log.With(logger, "family", candidate.Family), taskDefinitionOutline(deployed), taskDefinitionOutline(candidate))
		return decide(Register, cmp.reason)
	}
	return decide(Skip, cmp.reason)
}
