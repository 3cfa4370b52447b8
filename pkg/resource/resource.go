package resource

import (
	"sort"
	"strings"

	"github.com/fluxcd/deploy2ecs/pkg/image"
)

// ContentHashKey is the resource tag recording the commit of the
// configuration a task definition or service was rendered from.
const ContentHashKey = "JSON_COMMIT_HASH"

type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Tags []Tag

// Get returns the value of the tag with the key given. When a key is
// repeated, the last entry wins, as it does when ECS applies tags.
func (ts Tags) Get(key string) (string, bool) {
	for i := len(ts) - 1; i >= 0; i-- {
		if ts[i].Key == key {
			return ts[i].Value, true
		}
	}
	return "", false
}

// Map returns the tags keyed by name, the last entry winning for a
// repeated key; nil if there are no tags.
func (ts Tags) Map() map[string]string {
	if len(ts) == 0 {
		return nil
	}
	m := make(map[string]string, len(ts))
	for _, t := range ts {
		m[t.Key] = t.Value
	}
	return m
}

// ContentHash returns the content hash tag value, if there is one
// that can be trusted; an empty or malformed value is treated the
// same as no value at all.
func (ts Tags) ContentHash() (string, bool) {
	v, ok := ts.Get(ContentHashKey)
	if !ok || !image.IsCommitHash(v) {
		return "", false
	}
	return v, true
}

// TaskDefinition is the part of an ECS task definition that matters
// when deciding whether to register a new revision.
type TaskDefinition struct {
	Family   string
	Revision int64
	ARN      string
	Images   []string
	Tags     Tags
}

// SortedImages returns the container image references, sorted, and
// with duplicates kept.
func (td TaskDefinition) SortedImages() []string {
	images := make([]string, len(td.Images))
	copy(images, td.Images)
	sort.Strings(images)
	return images
}

// SameImages says whether two task definitions refer to the same
// multiset of images.
func SameImages(a, b TaskDefinition) bool {
	as, bs := a.SortedImages(), b.SortedImages()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

const ActiveStatus = "ACTIVE"

type Service struct {
	Name           string
	ARN            string
	Cluster        string
	Status         string
	TaskDefinition string
	DesiredCount   int64
	Tags           Tags
}

func (s Service) IsActive() bool {
	return strings.EqualFold(s.Status, ActiveStatus)
}

// FirstActive returns the first service with status ACTIVE.
func FirstActive(services []Service) (Service, bool) {
	for _, s := range services {
		if s.IsActive() {
			return s, true
		}
	}
	return Service{}, false
}
