package update

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/deploy2ecs/pkg/cluster"
	"github.com/fluxcd/deploy2ecs/pkg/cluster/mock"
	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

func document(t *testing.T, s string) resource.Document {
	doc, err := resource.ParseDocument([]byte(s))
	require.NoError(t, err)
	return doc
}

const candidateTaskDefinition = `{
  "family": "web",
  "containerDefinitions": [
    {"name": "proxy", "image": "repo/proxy:bbbbbbb"},
    {"name": "app", "image": "repo/app:aaaaaaa"}
  ],
  "tags": [{"key": "JSON_COMMIT_HASH", "value": "1234abc"}]
}`

func registered(images []string, hash string) *mock.Mock {
	return &mock.Mock{
		DescribeTaskDefinitionFunc: func(ctx context.Context, family string, includeTags bool) (resource.TaskDefinition, error) {
			td := resource.TaskDefinition{Family: family, Revision: 3, ARN: "arn:td/" + family + ":3", Images: images}
			if hash != "" {
				td.Tags = resource.Tags{{Key: resource.ContentHashKey, Value: hash}}
			}
			return td, nil
		},
	}
}

func TestDecideTaskDefinition(t *testing.T) {
	images := []string{"repo/app:aaaaaaa", "repo/proxy:bbbbbbb"}
	for _, v := range []struct {
		name   string
		c      cluster.Cluster
		force  bool
		action Action
	}{
		{"same images and hash", registered(images, "1234abc"), false, Skip},
		{"forced", registered(images, "1234abc"), true, Register},
		{"different hash", registered(images, "9876fed"), false, Register},
		{"missing hash", registered(images, ""), false, Register},
		{"untrustworthy hash", registered(images, "HEAD"), false, Register},
		{"image changed", registered([]string{"repo/app:ccccccc", "repo/proxy:bbbbbbb"}, "1234abc"), false, Register},
		{"image added", registered(append([]string{"repo/app:aaaaaaa"}, images...), "1234abc"), false, Register},
		{"not registered", &mock.Mock{
			DescribeTaskDefinitionFunc: func(ctx context.Context, family string, includeTags bool) (resource.TaskDefinition, error) {
				return resource.TaskDefinition{}, cluster.NoTaskDefinitionError(family, errors.New("unable to describe"))
			},
		}, false, Register},
		{"describe failed", &mock.Mock{
			DescribeTaskDefinitionFunc: func(ctx context.Context, family string, includeTags bool) (resource.TaskDefinition, error) {
				return resource.TaskDefinition{}, errors.New("throttled")
			},
		}, false, Register},
	} {
		d, err := DecideTaskDefinition(context.Background(), v.c, document(t, candidateTaskDefinition), v.force, log.NewNopLogger())
		require.NoError(t, err, v.name)
		assert.Equal(t, v.action, d.Action, v.name)
		assert.Equal(t, "web", d.Family, v.name)
	}
}

func TestDecideTaskDefinition_RecordsHashes(t *testing.T) {
	d, err := DecideTaskDefinition(context.Background(), registered([]string{"repo/app:aaaaaaa", "repo/proxy:bbbbbbb"}, "9876fed"), document(t, candidateTaskDefinition), false, log.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "9876fed", d.HashBefore)
	assert.Equal(t, "1234abc", d.HashAfter)
	require.NotNil(t, d.Deployed)
	assert.Equal(t, int64(3), d.Deployed.Revision)
}

const candidateService = `{
  "serviceName": "web",
  "cluster": "prod",
  "taskDefinition": "arn:td/web:4",
  "tags": [{"key": "JSON_COMMIT_HASH", "value": "1234abc"}]
}`

func running(services ...resource.Service) *mock.Mock {
	return &mock.Mock{
		DescribeServicesFunc: func(ctx context.Context, cluster string, names []string, includeTags bool) ([]resource.Service, error) {
			return services, nil
		},
	}
}

func TestDecideService(t *testing.T) {
	hash := resource.Tags{{Key: resource.ContentHashKey, Value: "1234abc"}}
	for _, v := range []struct {
		name   string
		c      cluster.Cluster
		force  bool
		action Action
	}{
		{"no services", running(), false, Create},
		{"only draining", running(resource.Service{Name: "web", Status: "DRAINING", TaskDefinition: "arn:td/web:4", Tags: hash}), false, Create},
		{"forced create", running(), true, Create},
		{"up to date", running(resource.Service{Name: "web", Status: "ACTIVE", TaskDefinition: "arn:td/web:4", Tags: hash}), false, Skip},
		{"forced update", running(resource.Service{Name: "web", Status: "ACTIVE", TaskDefinition: "arn:td/web:4", Tags: hash}), true, Update},
		{"older revision", running(resource.Service{Name: "web", Status: "ACTIVE", TaskDefinition: "arn:td/web:3", Tags: hash}), false, Update},
		{"no hash", running(resource.Service{Name: "web", Status: "ACTIVE", TaskDefinition: "arn:td/web:4"}), false, Update},
		{"empty hash", running(resource.Service{Name: "web", Status: "ACTIVE", TaskDefinition: "arn:td/web:4", Tags: resource.Tags{{Key: resource.ContentHashKey}}}), false, Update},
		{"changed hash", running(resource.Service{Name: "web", Status: "ACTIVE", TaskDefinition: "arn:td/web:4", Tags: resource.Tags{{Key: resource.ContentHashKey, Value: "9876fed"}}}), false, Update},
	} {
		d, err := DecideService(context.Background(), v.c, ServiceRequest{
			Name:     "web",
			Cluster:  "prod",
			Document: document(t, candidateService),
			Force:    v.force,
		}, log.NewNopLogger())
		require.NoError(t, err, v.name)
		assert.Equal(t, v.action, d.Action, v.name)
		if v.action == Create {
			assert.Nil(t, d.Active, v.name)
		} else {
			require.NotNil(t, d.Active, v.name)
		}
	}
}

func TestDecideService_DescribeFailed(t *testing.T) {
	c := &mock.Mock{
		DescribeServicesFunc: func(ctx context.Context, clusterName string, names []string, includeTags bool) ([]resource.Service, error) {
			return nil, cluster.DescribeFailedError("services", []cluster.Failure{{ARN: "web", Reason: "ACCESS_DENIED"}})
		},
	}
	_, err := DecideService(context.Background(), c, ServiceRequest{Name: "web", Cluster: "prod", Document: document(t, candidateService)}, log.NewNopLogger())
	require.Error(t, err)
	assert.True(t, fluxerr.IsDescribeFailed(err))
}

func TestCompareContentHash(t *testing.T) {
	tags := func(v string) resource.Tags { return resource.Tags{{Key: resource.ContentHashKey, Value: v}} }
	assert.False(t, compareContentHash(tags("abcdef1"), tags("abcdef1")).changed)
	assert.True(t, compareContentHash(tags("abcdef1"), tags("abcdef2")).changed)
	assert.True(t, compareContentHash(nil, tags("abcdef1")).changed)
	assert.True(t, compareContentHash(tags("nothex!"), tags("nothex!")).changed)
}

func TestChangeSummary(t *testing.T) {
	deployed := resource.TaskDefinition{
		Images: []string{"repo/app:aaaaaaa", "repo/proxy:bbbbbbb"},
		Tags:   resource.Tags{{Key: resource.ContentHashKey, Value: "9876fed"}, {Key: "team", Value: "web"}},
	}
	patch, err := changeSummary(taskDefinitionOutline(deployed), taskDefinitionOutline(deployed))
	require.NoError(t, err)
	assert.Equal(t, "{}", patch)

	candidate := resource.TaskDefinition{
		Images: []string{"repo/app:ccccccc", "repo/proxy:bbbbbbb"},
		Tags:   resource.Tags{{Key: resource.ContentHashKey, Value: "1234abc"}, {Key: "team", Value: "web"}},
	}
	patch, err = changeSummary(taskDefinitionOutline(deployed), taskDefinitionOutline(candidate))
	require.NoError(t, err)
	assert.JSONEq(t, `{
	  "images": {"repo/app:aaaaaaa": null, "repo/app:ccccccc": 1},
	  "tags": {"JSON_COMMIT_HASH": "1234abc"}
	}`, patch)
}

func TestDecideService_LogsChange(t *testing.T) {
	var out bytes.Buffer
	active := resource.Service{
		Name:           "web",
		Status:         "ACTIVE",
		TaskDefinition: "arn:td/web:3",
		Tags:           resource.Tags{{Key: resource.ContentHashKey, Value: "1234abc"}, {Key: "owner", Value: "ops"}},
	}
	d, err := DecideService(context.Background(), running(active), ServiceRequest{
		Name:     "web",
		Cluster:  "prod",
		Document: document(t, candidateService),
	}, log.NewJSONLogger(&out))
	require.NoError(t, err)
	assert.Equal(t, Update, d.Action)

	var patch string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if p, ok := entry["patch"].(string); ok {
			patch = p
		}
	}
	assert.JSONEq(t, `{"taskDefinition": "arn:td/web:4", "tags": {"owner": null}}`, patch)
}

func TestUniq(t *testing.T) {
	assert.Equal(t, []string{"latest", "abc", "v1"}, uniq([]string{"latest", "abc"}, []string{"", "v1", "latest"}))
	assert.Nil(t, uniq())
}
