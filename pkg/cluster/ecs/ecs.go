package ecs

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/aws/aws-sdk-go/service/ecs/ecsiface"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/cluster"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

const includeTags = "TAGS"

// updateServiceKeys are the fields of a rendered service document
// that UpdateService accepts; the rest only make sense on creation.
var updateServiceKeys = []string{
	"cluster",
	"service",
	"desiredCount",
	"taskDefinition",
	"deploymentConfiguration",
	"networkConfiguration",
	"platformVersion",
	"forceNewDeployment",
	"healthCheckGracePeriodSeconds",
}

// Cluster is a cluster.Cluster backed by the ECS API.
type Cluster struct {
	client ecsiface.ECSAPI
	logger log.Logger
	// StartedBy is given to tasks that don't say otherwise
	StartedBy string
}

var _ cluster.Cluster = &Cluster{}

func NewCluster(client ecsiface.ECSAPI, logger log.Logger) *Cluster {
	return &Cluster{client: client, logger: logger}
}

// decode converts a rendered document into an API input struct. The
// SDK structs carry no JSON tags, and their field names are the API
// field names capitalised, so the case-insensitive field matching of
// encoding/json lines them up.
func decode(def []byte, into interface{}) error {
	return errors.Wrap(json.Unmarshal(def, into), "decoding rendered document")
}

func (c *Cluster) dump(op string, keyvals ...interface{}) {
	level.Debug(c.logger).Log(append([]interface{}{"request", op}, keyvals...)...)
}

func (c *Cluster) DescribeTaskDefinition(ctx context.Context, family string, withTags bool) (resource.TaskDefinition, error) {
	input := &ecs.DescribeTaskDefinitionInput{TaskDefinition: aws.String(family)}
	if withTags {
		input.Include = aws.StringSlice([]string{includeTags})
	}
	out, err := c.client.DescribeTaskDefinitionWithContext(ctx, input)
	c.dump("describe-task-definition", "family", family, "err", err)
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == ecs.ErrCodeClientException {
			return resource.TaskDefinition{}, cluster.NoTaskDefinitionError(family, err)
		}
		return resource.TaskDefinition{}, errors.Wrapf(err, "describing task definition %s", family)
	}
	return taskDefinitionFrom(out.TaskDefinition, out.Tags), nil
}

func (c *Cluster) RegisterTaskDefinition(ctx context.Context, def resource.Document) (resource.TaskDefinition, error) {
	var input ecs.RegisterTaskDefinitionInput
	if err := decode(def.Bytes(), &input); err != nil {
		return resource.TaskDefinition{}, err
	}
	out, err := c.client.RegisterTaskDefinitionWithContext(ctx, &input)
	c.dump("register-task-definition", "family", def.Family(), "err", err)
	if err != nil {
		return resource.TaskDefinition{}, errors.Wrapf(err, "registering task definition %s", def.Family())
	}
	return taskDefinitionFrom(out.TaskDefinition, out.Tags), nil
}

func (c *Cluster) DescribeServices(ctx context.Context, clusterName string, names []string, withTags bool) ([]resource.Service, error) {
	input := &ecs.DescribeServicesInput{Services: aws.StringSlice(names)}
	if clusterName != "" {
		input.Cluster = aws.String(clusterName)
	}
	if withTags {
		input.Include = aws.StringSlice([]string{includeTags})
	}
	out, err := c.client.DescribeServicesWithContext(ctx, input)
	c.dump("describe-services", "cluster", clusterName, "services", strings.Join(names, ","), "err", err)
	if err != nil {
		return nil, errors.Wrapf(err, "describing services %s", strings.Join(names, ", "))
	}
	var failures []cluster.Failure
	for _, f := range failuresFrom(out.Failures) {
		if !f.Missing() {
			failures = append(failures, f)
		}
	}
	if len(failures) > 0 {
		return nil, cluster.DescribeFailedError("services", failures)
	}
	services := make([]resource.Service, 0, len(out.Services))
	for _, s := range out.Services {
		services = append(services, serviceFrom(s))
	}
	return services, nil
}

func (c *Cluster) CreateService(ctx context.Context, def resource.Document) (resource.Service, error) {
	var input ecs.CreateServiceInput
	if err := decode(def.Bytes(), &input); err != nil {
		return resource.Service{}, err
	}
	out, err := c.client.CreateServiceWithContext(ctx, &input)
	c.dump("create-service", "service", def.ServiceName(), "err", err)
	if err != nil {
		return resource.Service{}, errors.Wrapf(err, "creating service %s", def.ServiceName())
	}
	return serviceFrom(out.Service), nil
}

func (c *Cluster) UpdateService(ctx context.Context, arn string, def resource.Document, force bool) (resource.Service, error) {
	var fields map[string]json.RawMessage
	if err := decode(def.Bytes(), &fields); err != nil {
		return resource.Service{}, err
	}
	accepted := map[string]interface{}{}
	for _, k := range updateServiceKeys {
		if v, ok := fields[k]; ok {
			accepted[k] = v
		}
	}
	accepted["service"] = arn
	if force {
		accepted["forceNewDeployment"] = true
	}
	body, err := json.Marshal(accepted)
	if err != nil {
		return resource.Service{}, errors.Wrap(err, "encoding service update")
	}
	var input ecs.UpdateServiceInput
	if err := decode(body, &input); err != nil {
		return resource.Service{}, err
	}
	out, err := c.client.UpdateServiceWithContext(ctx, &input)
	c.dump("update-service", "service", arn, "force", force, "err", err)
	if err != nil {
		return resource.Service{}, errors.Wrapf(err, "updating service %s", arn)
	}
	return serviceFrom(out.Service), nil
}

func (c *Cluster) TagResource(ctx context.Context, arn string, tags resource.Tags) error {
	input := &ecs.TagResourceInput{ResourceArn: aws.String(arn)}
	for _, t := range tags {
		input.Tags = append(input.Tags, &ecs.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	_, err := c.client.TagResourceWithContext(ctx, input)
	c.dump("tag-resource", "resource", arn, "tags", len(tags), "err", err)
	return errors.Wrapf(err, "tagging %s", arn)
}

func (c *Cluster) RunTask(ctx context.Context, def resource.Document) (resource.Task, error) {
	var input ecs.RunTaskInput
	if err := decode(def.Bytes(), &input); err != nil {
		return resource.Task{}, err
	}
	if input.StartedBy == nil && c.StartedBy != "" {
		input.StartedBy = aws.String(c.StartedBy)
	}
	out, err := c.client.RunTaskWithContext(ctx, &input)
	c.dump("run-task", "task-definition", aws.StringValue(input.TaskDefinition), "err", err)
	if err != nil {
		return resource.Task{}, errors.Wrapf(err, "running task %s", aws.StringValue(input.TaskDefinition))
	}
	if len(out.Tasks) == 0 {
		return resource.Task{}, cluster.DescribeFailedError("tasks", failuresFrom(out.Failures))
	}
	return taskFrom(out.Tasks[0]), nil
}

func (c *Cluster) DescribeTasks(ctx context.Context, clusterName string, arns []string) ([]resource.Task, error) {
	input := &ecs.DescribeTasksInput{Tasks: aws.StringSlice(arns)}
	if clusterName != "" {
		input.Cluster = aws.String(clusterName)
	}
	out, err := c.client.DescribeTasksWithContext(ctx, input)
	c.dump("describe-tasks", "cluster", clusterName, "tasks", strings.Join(arns, ","), "err", err)
	if err != nil {
		return nil, errors.Wrapf(err, "describing tasks %s", strings.Join(arns, ", "))
	}
	if len(out.Failures) > 0 {
		return nil, cluster.DescribeFailedError("tasks", failuresFrom(out.Failures))
	}
	tasks := make([]resource.Task, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		tasks = append(tasks, taskFrom(t))
	}
	return tasks, nil
}

func (c *Cluster) WaitTasksStopped(ctx context.Context, clusterName string, arns []string) error {
	input := &ecs.DescribeTasksInput{Tasks: aws.StringSlice(arns)}
	if clusterName != "" {
		input.Cluster = aws.String(clusterName)
	}
	c.dump("wait-tasks-stopped", "cluster", clusterName, "tasks", strings.Join(arns, ","))
	err := c.client.WaitUntilTasksStoppedWithContext(ctx, input)
	if err != nil {
		// The waiter giving up is not fatal; the caller will describe
		// the tasks and wait again.
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == request.WaiterResourceNotReadyErrorCode {
			level.Debug(c.logger).Log("info", "tasks not stopped yet", "tasks", strings.Join(arns, ","))
			return nil
		}
		return errors.Wrap(err, "waiting for tasks to stop")
	}
	return nil
}

func failuresFrom(fs []*ecs.Failure) []cluster.Failure {
	failures := make([]cluster.Failure, 0, len(fs))
	for _, f := range fs {
		failures = append(failures, cluster.Failure{
			ARN:    aws.StringValue(f.Arn),
			Reason: aws.StringValue(f.Reason),
		})
	}
	return failures
}

func tagsFrom(ts []*ecs.Tag) resource.Tags {
	var tags resource.Tags
	for _, t := range ts {
		tags = append(tags, resource.Tag{Key: aws.StringValue(t.Key), Value: aws.StringValue(t.Value)})
	}
	return tags
}

func taskDefinitionFrom(td *ecs.TaskDefinition, tags []*ecs.Tag) resource.TaskDefinition {
	if td == nil {
		return resource.TaskDefinition{Tags: tagsFrom(tags)}
	}
	def := resource.TaskDefinition{
		Family:   aws.StringValue(td.Family),
		Revision: aws.Int64Value(td.Revision),
		ARN:      aws.StringValue(td.TaskDefinitionArn),
		Tags:     tagsFrom(tags),
	}
	for _, c := range td.ContainerDefinitions {
		def.Images = append(def.Images, aws.StringValue(c.Image))
	}
	return def
}

func serviceFrom(s *ecs.Service) resource.Service {
	if s == nil {
		return resource.Service{}
	}
	return resource.Service{
		Name:           aws.StringValue(s.ServiceName),
		ARN:            aws.StringValue(s.ServiceArn),
		Cluster:        aws.StringValue(s.ClusterArn),
		Status:         aws.StringValue(s.Status),
		TaskDefinition: aws.StringValue(s.TaskDefinition),
		DesiredCount:   aws.Int64Value(s.DesiredCount),
		Tags:           tagsFrom(s.Tags),
	}
}

func taskFrom(t *ecs.Task) resource.Task {
	task := resource.Task{
		ARN:        aws.StringValue(t.TaskArn),
		LastStatus: resource.TaskStatus(aws.StringValue(t.LastStatus)),
	}
	for _, c := range t.Containers {
		task.Containers = append(task.Containers, resource.Container{
			Name:     aws.StringValue(c.Name),
			ExitCode: c.ExitCode,
			Reason:   aws.StringValue(c.Reason),
		})
	}
	return task
}
