package update

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

// changeSummary describes what differs between two values as a JSON
// merge patch from before to after; the patch of two equal values is
// `{}`.
func changeSummary(before, after interface{}) (string, error) {
	b, err := json.Marshal(before)
	if err != nil {
		return "", errors.Wrap(err, "encoding deployed resource")
	}
	a, err := json.Marshal(after)
	if err != nil {
		return "", errors.Wrap(err, "encoding candidate resource")
	}
	patch, err := jsonpatch.CreateMergePatch(b, a)
	if err != nil {
		return "", errors.Wrap(err, "comparing resources")
	}
	return string(patch), nil
}

// outline is the part of a resource that changeSummary is asked
// about. Images and tags are keyed, so that a patch names only the
// entries that were added, changed or removed.
type outline struct {
	TaskDefinition string            `json:"taskDefinition,omitempty"`
	Images         map[string]int    `json:"images,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
}

func taskDefinitionOutline(td resource.TaskDefinition) outline {
	o := outline{Tags: td.Tags.Map()}
	if len(td.Images) > 0 {
		o.Images = map[string]int{}
		for _, img := range td.Images {
			o.Images[img]++
		}
	}
	return o
}

func serviceOutline(s resource.Service) outline {
	return outline{TaskDefinition: s.TaskDefinition, Tags: s.Tags.Map()}
}

// logChange logs the patch from before to after at debug level.
func logChange(logger log.Logger, before, after outline) {
	patch, err := changeSummary(before, after)
	if err != nil {
		level.Debug(logger).Log("info", "could not summarise change", "err", err)
		return
	}
	level.Debug(logger).Log("patch", patch)
}
