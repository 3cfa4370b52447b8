package resource

import (
	"github.com/Jeffail/gabs"
	"github.com/pkg/errors"
)

// Document is a rendered ECS request body: a task definition, a
// service or a task, in the JSON shape the ECS API accepts. Only the
// few fields needed to compare against what is deployed are
// interpreted; everything else is passed through untouched.
type Document struct {
	c *gabs.Container
}

// ParseDocument parses a JSON object.
func ParseDocument(b []byte) (Document, error) {
	c, err := gabs.ParseJSON(b)
	if err != nil {
		return Document{}, errors.Wrap(err, "parsing rendered document")
	}
	if _, ok := c.Data().(map[string]interface{}); !ok {
		return Document{}, errors.New("rendered document is not a JSON object")
	}
	return Document{c: c}, nil
}

// Bytes returns the document as JSON.
func (d Document) Bytes() []byte {
	if d.c == nil {
		return []byte("{}")
	}
	return d.c.Bytes()
}

func (d Document) String() string {
	return string(d.Bytes())
}

// Field returns a top-level string field, or the empty string if it
// is absent or not a string.
func (d Document) Field(name string) string {
	if d.c == nil {
		return ""
	}
	s, _ := d.c.Search(name).Data().(string)
	return s
}

func (d Document) Family() string         { return d.Field("family") }
func (d Document) ServiceName() string    { return d.Field("serviceName") }
func (d Document) Cluster() string        { return d.Field("cluster") }
func (d Document) TaskDefinition() string { return d.Field("taskDefinition") }

// Images returns the image of every container definition, in
// document order.
func (d Document) Images() []string {
	if d.c == nil {
		return nil
	}
	defs, err := d.c.Search("containerDefinitions").Children()
	if err != nil {
		return nil
	}
	var images []string
	for _, def := range defs {
		if s, ok := def.Search("image").Data().(string); ok {
			images = append(images, s)
		}
	}
	return images
}

// Tags returns the `tags` list, in the `[{"key": ..., "value": ...}]`
// form used by ECS. Entries without a string key are skipped.
func (d Document) Tags() Tags {
	if d.c == nil {
		return nil
	}
	entries, err := d.c.Search("tags").Children()
	if err != nil {
		return nil
	}
	var tags Tags
	for _, e := range entries {
		k, ok := e.Search("key").Data().(string)
		if !ok {
			continue
		}
		v, _ := e.Search("value").Data().(string)
		tags = append(tags, Tag{Key: k, Value: v})
	}
	return tags
}

// HasTags says whether the document declares a `tags` field at all.
func (d Document) HasTags() bool {
	return d.c != nil && d.c.Exists("tags")
}

// AsTaskDefinition interprets the document as a candidate task
// definition.
func (d Document) AsTaskDefinition() TaskDefinition {
	return TaskDefinition{
		Family: d.Family(),
		Images: d.Images(),
		Tags:   d.Tags(),
	}
}

// AsService interprets the document as a candidate service.
func (d Document) AsService() Service {
	return Service{
		Name:           d.ServiceName(),
		Cluster:        d.Cluster(),
		TaskDefinition: d.TaskDefinition(),
		Tags:           d.Tags(),
	}
}
