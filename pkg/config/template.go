package config

import (
	"bytes"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig"
	jsonyaml "github.com/ghodss/yaml"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/resource"
)

// Variables available to templates.
const (
	TaskFamilyVar        = "TASK_FAMILY"
	ClusterVar           = "CLUSTER"
	TaskDefinitionARNVar = "TASK_DEFINITION_ARN"
	ContentHashVar       = resource.ContentHashKey
)

// Renderer turns the templates named in the configuration into
// documents.
type Renderer struct {
	// Dir is where relative template paths start from
	Dir string
}

// Render executes the template at path with the variables given. Each
// set of variables only fills in the names (or empty values) left by
// those before it. The output may be JSON or YAML.
func (r Renderer) Render(path string, vars ...map[string]string) (resource.Document, error) {
	data := map[string]string{}
	for _, v := range vars {
		if err := mergo.Merge(&data, v); err != nil {
			return resource.Document{}, errors.Wrap(err, "merging template variables")
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(r.Dir, path)
	}
	tmpl, err := template.New(filepath.Base(path)).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		ParseFiles(path)
	if err != nil {
		return resource.Document{}, templateError(path, err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return resource.Document{}, templateError(path, err)
	}

	js, err := jsonyaml.YAMLToJSON(out.Bytes())
	if err != nil {
		return resource.Document{}, templateError(path, errors.Wrap(err, "rendered template is neither JSON nor YAML"))
	}
	doc, err := resource.ParseDocument(js)
	if err != nil {
		return resource.Document{}, templateError(path, err)
	}
	return doc, nil
}

// TaskDefinition renders the template for td, with the content hash
// and each bound image.
func (r Renderer) TaskDefinition(td TaskDefinition, contentHash string, imageRefs map[string]string) (resource.Document, error) {
	computed := map[string]string{ContentHashVar: contentHash}
	for name, ref := range imageRefs {
		computed[name] = ref
	}
	return r.Render(td.JSONTemplate, computed, td.Variables)
}

// Service renders the template for s against the task definition
// revision given.
func (r Renderer) Service(s Service, contentHash, taskDefinitionARN string) (resource.Document, error) {
	computed := map[string]string{
		ContentHashVar:       contentHash,
		TaskDefinitionARNVar: taskDefinitionARN,
	}
	defaults := map[string]string{
		TaskFamilyVar: s.TaskFamily,
		ClusterVar:    s.Cluster,
	}
	return r.Render(s.JSONTemplate, computed, s.Variables, defaults)
}

// Task renders the template for a one-shot task.
func (r Renderer) Task(t Task) (resource.Document, error) {
	defaults := map[string]string{
		TaskFamilyVar: t.TaskFamily,
		ClusterVar:    t.Cluster,
	}
	return r.Render(t.JSONTemplate, t.Variables, defaults)
}

func templateError(path string, err error) error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  errors.Wrapf(err, "rendering %s", path),
		Help: `The template ` + path + ` could not be rendered:

    ` + err.Error() + `

Templates use Go template syntax, e.g., {{ .` + ContentHashVar + ` }}, and
every variable they mention must be bound.
`,
	}
}
