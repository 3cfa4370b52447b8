package ecs

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/aws/aws-sdk-go/service/ecs/ecsiface"
	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

type mockECS struct {
	ecsiface.ECSAPI

	describeTaskDefinition func(*ecs.DescribeTaskDefinitionInput) (*ecs.DescribeTaskDefinitionOutput, error)
	registerTaskDefinition func(*ecs.RegisterTaskDefinitionInput) (*ecs.RegisterTaskDefinitionOutput, error)
	describeServices       func(*ecs.DescribeServicesInput) (*ecs.DescribeServicesOutput, error)
	updateService          func(*ecs.UpdateServiceInput) (*ecs.UpdateServiceOutput, error)
	runTask                func(*ecs.RunTaskInput) (*ecs.RunTaskOutput, error)
	describeTasks          func(*ecs.DescribeTasksInput) (*ecs.DescribeTasksOutput, error)
	waitErr                error
}

func (m *mockECS) DescribeTaskDefinitionWithContext(_ aws.Context, in *ecs.DescribeTaskDefinitionInput, _ ...request.Option) (*ecs.DescribeTaskDefinitionOutput, error) {
	return m.describeTaskDefinition(in)
}

func (m *mockECS) RegisterTaskDefinitionWithContext(_ aws.Context, in *ecs.RegisterTaskDefinitionInput, _ ...request.Option) (*ecs.RegisterTaskDefinitionOutput, error) {
	return m.registerTaskDefinition(in)
}

func (m *mockECS) DescribeServicesWithContext(_ aws.Context, in *ecs.DescribeServicesInput, _ ...request.Option) (*ecs.DescribeServicesOutput, error) {
	return m.describeServices(in)
}

func (m *mockECS) UpdateServiceWithContext(_ aws.Context, in *ecs.UpdateServiceInput, _ ...request.Option) (*ecs.UpdateServiceOutput, error) {
	return m.updateService(in)
}

func (m *mockECS) RunTaskWithContext(_ aws.Context, in *ecs.RunTaskInput, _ ...request.Option) (*ecs.RunTaskOutput, error) {
	return m.runTask(in)
}

func (m *mockECS) DescribeTasksWithContext(_ aws.Context, in *ecs.DescribeTasksInput, _ ...request.Option) (*ecs.DescribeTasksOutput, error) {
	return m.describeTasks(in)
}

func (m *mockECS) WaitUntilTasksStoppedWithContext(aws.Context, *ecs.DescribeTasksInput, ...request.WaiterOption) error {
	return m.waitErr
}

func mustDocument(t *testing.T, s string) resource.Document {
	doc, err := resource.ParseDocument([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestDescribeTaskDefinition(t *testing.T) {
	client := &mockECS{describeTaskDefinition: func(in *ecs.DescribeTaskDefinitionInput) (*ecs.DescribeTaskDefinitionOutput, error) {
		assert.Equal(t, "web", aws.StringValue(in.TaskDefinition))
		assert.Equal(t, []string{"TAGS"}, aws.StringValueSlice(in.Include))
		return &ecs.DescribeTaskDefinitionOutput{
			TaskDefinition: &ecs.TaskDefinition{
				Family:            aws.String("web"),
				Revision:          aws.Int64(7),
				TaskDefinitionArn: aws.String("arn:aws:ecs:task-definition/web:7"),
				ContainerDefinitions: []*ecs.ContainerDefinition{
					{Image: aws.String("repo/app:abc12")},
				},
			},
			Tags: []*ecs.Tag{{Key: aws.String(resource.ContentHashKey), Value: aws.String("1234abc")}},
		}, nil
	}}
	c := NewCluster(client, log.NewNopLogger())
	td, err := c.DescribeTaskDefinition(context.Background(), "web", true)
	require.NoError(t, err)
	assert.Equal(t, int64(7), td.Revision)
	assert.Equal(t, []string{"repo/app:abc12"}, td.Images)
	hash, ok := td.Tags.ContentHash()
	assert.True(t, ok)
	assert.Equal(t, "1234abc", hash)
}

func TestDescribeTaskDefinition_Missing(t *testing.T) {
	client := &mockECS{describeTaskDefinition: func(*ecs.DescribeTaskDefinitionInput) (*ecs.DescribeTaskDefinitionOutput, error) {
		return nil, awserr.New(ecs.ErrCodeClientException, "Unable to describe task definition.", nil)
	}}
	c := NewCluster(client, log.NewNopLogger())
	_, err := c.DescribeTaskDefinition(context.Background(), "web", false)
	assert.True(t, fluxerr.IsMissing(err))
}

func TestRegisterTaskDefinition_DecodesDocument(t *testing.T) {
	client := &mockECS{registerTaskDefinition: func(in *ecs.RegisterTaskDefinitionInput) (*ecs.RegisterTaskDefinitionOutput, error) {
		assert.Equal(t, "web", aws.StringValue(in.Family))
		require.Len(t, in.ContainerDefinitions, 1)
		assert.Equal(t, "repo/app:abc12", aws.StringValue(in.ContainerDefinitions[0].Image))
		assert.Equal(t, int64(256), aws.Int64Value(in.ContainerDefinitions[0].Memory))
		require.Len(t, in.Tags, 1)
		return &ecs.RegisterTaskDefinitionOutput{
			TaskDefinition: &ecs.TaskDefinition{
				Family:               in.Family,
				Revision:             aws.Int64(8),
				TaskDefinitionArn:    aws.String("arn:aws:ecs:task-definition/web:8"),
				ContainerDefinitions: in.ContainerDefinitions,
			},
			Tags: in.Tags,
		}, nil
	}}
	c := NewCluster(client, log.NewNopLogger())
	td, err := c.RegisterTaskDefinition(context.Background(), mustDocument(t, `{
		"family": "web",
		"containerDefinitions": [{"name": "app", "image": "repo/app:abc12", "memory": 256}],
		"tags": [{"key": "JSON_COMMIT_HASH", "value": "1234abc"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:ecs:task-definition/web:8", td.ARN)
}

func TestDescribeServices_Failures(t *testing.T) {
	for _, v := range []struct {
		failures []*ecs.Failure
		failed   bool
	}{
		{nil, false},
		{[]*ecs.Failure{{Arn: aws.String("web"), Reason: aws.String("MISSING")}}, false},
		{[]*ecs.Failure{{Arn: aws.String("web"), Reason: aws.String("missing")}}, false},
		{[]*ecs.Failure{{Arn: aws.String("web"), Reason: aws.String("MISSING")}, {Arn: aws.String("api"), Reason: aws.String("ACCESS_DENIED")}}, true},
	} {
		client := &mockECS{describeServices: func(in *ecs.DescribeServicesInput) (*ecs.DescribeServicesOutput, error) {
			return &ecs.DescribeServicesOutput{Failures: v.failures}, nil
		}}
		c := NewCluster(client, log.NewNopLogger())
		services, err := c.DescribeServices(context.Background(), "prod", []string{"web"}, true)
		if v.failed {
			assert.True(t, fluxerr.IsDescribeFailed(err))
			continue
		}
		require.NoError(t, err)
		assert.Empty(t, services)
	}
}

func TestUpdateService_OnlyAcceptedKeys(t *testing.T) {
	client := &mockECS{updateService: func(in *ecs.UpdateServiceInput) (*ecs.UpdateServiceOutput, error) {
		assert.Equal(t, "arn:aws:ecs:service/prod/web", aws.StringValue(in.Service))
		assert.Equal(t, "prod", aws.StringValue(in.Cluster))
		assert.Equal(t, "arn:td:8", aws.StringValue(in.TaskDefinition))
		assert.Equal(t, int64(3), aws.Int64Value(in.DesiredCount))
		assert.True(t, aws.BoolValue(in.ForceNewDeployment))
		return &ecs.UpdateServiceOutput{Service: &ecs.Service{
			ServiceArn:     in.Service,
			TaskDefinition: in.TaskDefinition,
			Status:         aws.String("ACTIVE"),
		}}, nil
	}}
	c := NewCluster(client, log.NewNopLogger())
	svc, err := c.UpdateService(context.Background(), "arn:aws:ecs:service/prod/web", mustDocument(t, `{
		"serviceName": "web",
		"cluster": "prod",
		"taskDefinition": "arn:td:8",
		"desiredCount": 3,
		"launchType": "FARGATE",
		"tags": [{"key": "JSON_COMMIT_HASH", "value": "1234abc"}]
	}`), true)
	require.NoError(t, err)
	assert.True(t, svc.IsActive())
}

func TestRunTask_StartedBy(t *testing.T) {
	exit := int64(0)
	client := &mockECS{runTask: func(in *ecs.RunTaskInput) (*ecs.RunTaskOutput, error) {
		assert.Equal(t, "deploy2ecs", aws.StringValue(in.StartedBy))
		return &ecs.RunTaskOutput{Tasks: []*ecs.Task{{
			TaskArn:    aws.String("arn:task/1"),
			LastStatus: aws.String("PROVISIONING"),
			Containers: []*ecs.Container{{Name: aws.String("migrate"), ExitCode: &exit}},
		}}}, nil
	}}
	c := NewCluster(client, log.NewNopLogger())
	c.StartedBy = "deploy2ecs"
	task, err := c.RunTask(context.Background(), mustDocument(t, `{"cluster": "prod", "taskDefinition": "migrate"}`))
	require.NoError(t, err)
	assert.Equal(t, resource.TaskProvisioning, task.LastStatus)
	require.Len(t, task.Containers, 1)
	assert.False(t, task.Containers[0].Failed())
}

func TestRunTask_NoTasks(t *testing.T) {
	client := &mockECS{runTask: func(in *ecs.RunTaskInput) (*ecs.RunTaskOutput, error) {
		return &ecs.RunTaskOutput{Failures: []*ecs.Failure{{Reason: aws.String("RESOURCE:MEMORY")}}}, nil
	}}
	c := NewCluster(client, log.NewNopLogger())
	_, err := c.RunTask(context.Background(), mustDocument(t, `{"taskDefinition": "migrate"}`))
	assert.True(t, fluxerr.IsDescribeFailed(err))
}

func TestDescribeTasks_AnyFailure(t *testing.T) {
	client := &mockECS{describeTasks: func(in *ecs.DescribeTasksInput) (*ecs.DescribeTasksOutput, error) {
		return &ecs.DescribeTasksOutput{Failures: []*ecs.Failure{{Arn: aws.String("arn:task/1"), Reason: aws.String("MISSING")}}}, nil
	}}
	c := NewCluster(client, log.NewNopLogger())
	_, err := c.DescribeTasks(context.Background(), "prod", []string{"arn:task/1"})
	assert.True(t, fluxerr.IsDescribeFailed(err))
}

func TestWaitTasksStopped_GivingUpIsNotAnError(t *testing.T) {
	client := &mockECS{waitErr: awserr.New(request.WaiterResourceNotReadyErrorCode, "exceeded wait attempts", nil)}
	c := NewCluster(client, log.NewNopLogger())
	assert.NoError(t, c.WaitTasksStopped(context.Background(), "prod", []string{"arn:task/1"}))

	client.waitErr = awserr.New("AccessDeniedException", "nope", nil)
	assert.Error(t, c.WaitTasksStopped(context.Background(), "prod", []string{"arn:task/1"}))
}
