package release

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/config"
	"github.com/fluxcd/deploy2ecs/pkg/update"
)

// RegisterTaskDefinitions renders each task definition and registers
// a new revision of those that differ from what is registered.
func (rc *ReleaseContext) RegisterTaskDefinitions(ctx context.Context, defs []config.TaskDefinition, opts Options, logger log.Logger) ([]update.TaskDefinitionDecision, error) {
	var decisions []update.TaskDefinitionDecision
	for _, td := range defs {
		tlog := log.With(logger, "template", td.JSONTemplate)

		hash, err := rc.contentHash(ctx, td.JSONTemplate)
		if err != nil {
			return decisions, err
		}
		refs := map[string]string{}
		for _, bound := range td.Images {
			ref, err := rc.imageRef(ctx, bound.Config)
			if err != nil {
				return decisions, err
			}
			if bound.BindVariable != "" {
				refs[bound.BindVariable] = ref
			}
		}
		doc, err := rc.renderer.TaskDefinition(td, hash, refs)
		if err != nil {
			return decisions, err
		}

		d, err := update.DecideTaskDefinition(ctx, rc.cluster, doc, opts.Force, tlog)
		if err != nil {
			return decisions, err
		}
		decisions = append(decisions, d)
		tlog = log.With(tlog, "family", d.Family)
		level.Info(tlog).Log("action", d.Action, "reason", d.Reason, "hash-before", d.HashBefore, "hash-after", d.HashAfter)
		if d.Action != update.Register {
			continue
		}
		rc.logDiff(ctx, d.HashBefore, d.HashAfter, []string{td.JSONTemplate}, nil, tlog)

		registered, err := rc.cluster.RegisterTaskDefinition(ctx, doc)
		if err != nil {
			return decisions, errors.Wrapf(err, "registering task definition %s", d.Family)
		}
		level.Info(tlog).Log("info", "registered task definition", "revision", registered.Revision, "arn", registered.ARN)
		for _, t := range registered.Tags {
			level.Debug(tlog).Log("tag", t.Key, "value", t.Value)
		}
	}
	return decisions, nil
}
