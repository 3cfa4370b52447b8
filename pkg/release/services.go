package release

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/config"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
	"github.com/fluxcd/deploy2ecs/pkg/update"
)

// RegisterServices renders each service against the latest revision
// of its task definition, and creates or updates it if it differs
// from the active service. Any tasks to run before deploying must all
// succeed first.
func (rc *ReleaseContext) RegisterServices(ctx context.Context, services []config.Service, opts Options, logger log.Logger) ([]update.ServiceDecision, error) {
	var decisions []update.ServiceDecision
	for _, s := range services {
		svclog := log.With(logger, "service", s.Name, "cluster", s.Cluster)

		latest, err := rc.cluster.DescribeTaskDefinition(ctx, s.TaskFamily, false)
		if err != nil {
			return decisions, errors.Wrapf(err, "describing task definition %s for service %s", s.TaskFamily, s.Name)
		}
		hash, err := rc.contentHash(ctx, s.JSONTemplate)
		if err != nil {
			return decisions, err
		}
		doc, err := rc.renderer.Service(s, hash, latest.ARN)
		if err != nil {
			return decisions, err
		}

		d, err := update.DecideService(ctx, rc.cluster, update.ServiceRequest{
			Name:     s.Name,
			Cluster:  s.Cluster,
			Document: doc,
			Force:    opts.Force,
		}, svclog)
		if err != nil {
			return decisions, err
		}
		decisions = append(decisions, d)
		level.Info(svclog).Log("action", d.Action, "reason", d.Reason, "hash-before", d.HashBefore, "hash-after", d.HashAfter)
		if d.Action == update.Skip {
			continue
		}
		rc.logDiff(ctx, d.HashBefore, d.HashAfter, []string{s.JSONTemplate}, nil, svclog)

		if err := rc.runBeforeDeploy(ctx, s, opts.TaskTimeout, svclog); err != nil {
			return decisions, err
		}

		level.Info(svclog).Log("info", "deploying", "task-definition", latest.ARN, "content-hash", hash)
		switch d.Action {
		case update.Create:
			if _, err := rc.cluster.CreateService(ctx, doc); err != nil {
				return decisions, errors.Wrapf(err, "creating service %s", s.Name)
			}
		case update.Update:
			arn := d.Active.ARN
			if _, err := rc.cluster.UpdateService(ctx, arn, doc, opts.Force); err != nil {
				return decisions, errors.Wrapf(err, "updating service %s", s.Name)
			}
			if doc.HasTags() {
				if err := rc.cluster.TagResource(ctx, arn, doc.Tags()); err != nil {
					return decisions, errors.Wrapf(err, "tagging service %s", s.Name)
				}
			}
		}
		level.Info(svclog).Log("info", "deployed")
	}
	return decisions, nil
}

func (rc *ReleaseContext) runBeforeDeploy(ctx context.Context, s config.Service, timeout time.Duration, logger log.Logger) error {
	for _, t := range s.BeforeDeploy {
		doc, err := rc.renderer.Task(t)
		if err != nil {
			return err
		}
		level.Info(logger).Log("info", "running task before deploying", "task-family", t.TaskFamily)
		if err := rc.runTask(ctx, t, doc, timeout); err != nil {
			return err
		}
	}
	return nil
}

func (rc *ReleaseContext) runTask(ctx context.Context, t config.Task, doc resource.Document, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := rc.monitor.Run(ctx, t.TaskFamily, t.Cluster, doc)
	return err
}
