package update

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/cluster"
	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

// ServiceDecision says whether to create a service, update the active
// one, or leave it be.
type ServiceDecision struct {
	Name    string
	Cluster string
	Action  Action
	Reason  string
	// Active is the service currently running, if there is one
	Active    *resource.Service
	Candidate resource.Service
	Document  resource.Document
	// ContentHash before and after, when they were compared
	HashBefore, HashAfter string
}

// ServiceRequest is the input to DecideService.
type ServiceRequest struct {
	Name     string
	Cluster  string
	Document resource.Document
	Force    bool
}

// DecideService compares a rendered service with the active service
// of the same name.
func DecideService(ctx context.Context, c cluster.Cluster, req ServiceRequest, logger log.Logger) (ServiceDecision, error) {
	candidate := req.Document.AsService()
	d := ServiceDecision{
		Name:      req.Name,
		Cluster:   req.Cluster,
		Candidate: candidate,
		Document:  req.Document,
	}
	decide := func(action Action, reason string) (ServiceDecision, error) {
		d.Action = action
		d.Reason = reason
		observeDecision(KindService, action)
		return d, nil
	}

	services, err := c.DescribeServices(ctx, req.Cluster, []string{req.Name}, true)
	if err != nil {
		if fluxerr.IsDescribeFailed(err) {
			level.Warn(logger).Log("service", req.Name, "cluster", req.Cluster, "info", "describe reported failures", "err", err)
		}
		return d, errors.Wrapf(err, "describing service %s", req.Name)
	}
	active, ok := resource.FirstActive(services)
	if !ok {
		return decide(Create, "no active service")
	}
	d.Active = &active

	if req.Force {
		return decide(Update, "forced")
	}

	if active.TaskDefinition != candidate.TaskDefinition {
		level.Info(logger).Log("service", req.Name, "task-definition-before", active.TaskDefinition, "task-definition-after", candidate.TaskDefinition)
		logChange(log.With(logger, "service", req.Name), serviceOutline(active), serviceOutline(candidate))
		return decide(Update, "task definition revision changed")
	}

	cmp := compareContentHash(active.Tags, candidate.Tags)
	d.HashBefore, d.HashAfter = cmp.before, cmp.after
	if cmp.changed {
		logChange(log.With(logger, "service", req.Name), serviceOutline(active), serviceOutline(candidate))
		return decide(Update, cmp.reason)
	}
	return decide(Skip, cmp.reason)
}
