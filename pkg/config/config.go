// config is the package for the deployment configuration file: which
// images to build, which task definitions to register and which
// services to deploy, per branch.
package config

import (
	"io/ioutil"
	"os"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/image"
)

// Application is the section of the configuration selected for a
// branch, with every reference resolved.
type Application struct {
	// Pattern is the key of the section that matched the branch
	Pattern         string
	Images          []image.Config
	TaskDefinitions []TaskDefinition
	Services        []Service
}

// BoundImage is an image given to a task definition template under
// the name BindVariable.
type BoundImage struct {
	image.Config
	BindVariable string
}

type TaskDefinition struct {
	JSONTemplate string
	Images       []BoundImage
	Variables    map[string]string
}

type Service struct {
	Name         string
	TaskFamily   string
	Cluster      string
	JSONTemplate string
	// BeforeDeploy are one-shot tasks run, in order, before the
	// service is created or updated
	BeforeDeploy []Task
	Variables    map[string]string
}

type Task struct {
	TaskFamily   string
	Cluster      string
	JSONTemplate string
	Variables    map[string]string
}

// Options control how a configuration file is interpreted.
type Options struct {
	// Params are the values for `!Ref NAME`; a name not given here is
	// looked up in the environment
	Params map[string]string
	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
}

func (o Options) lookupEnv() func(string) (string, bool) {
	if o.LookupEnv != nil {
		return o.LookupEnv
	}
	return os.LookupEnv
}

func (o Options) getenv(key string) string {
	v, _ := o.lookupEnv()(key)
	return v
}

// Load reads the configuration file at path and selects the section
// for branch. If no section applies to the branch, ok is false and
// there is nothing to deploy.
func Load(path, branch string, opts Options) (app Application, ok bool, err error) {
	bytes, err := ioutil.ReadFile(path)
	if err != nil {
		return app, false, errors.Wrap(err, "reading config file")
	}
	return Parse(bytes, branch, opts)
}

// Parse is Load for configuration already read.
func Parse(bytes []byte, branch string, opts Options) (app Application, ok bool, err error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(bytes, &doc); err != nil {
		return app, false, invalidConfigError(err)
	}
	resolver := tagResolver{params: opts.Params, lookupEnv: opts.lookupEnv()}
	if err := resolver.resolve(&doc); err != nil {
		return app, false, invalidConfigError(err)
	}

	pattern, section, err := selectSection(&doc, branch)
	if err != nil || section == nil {
		return app, false, err
	}

	if err := validate(section); err != nil {
		return app, false, err
	}
	var f file
	if err := section.Decode(&f); err != nil {
		return app, false, invalidConfigError(err)
	}
	app, err = f.application(opts.getenv)
	app.Pattern = pattern
	return app, err == nil, err
}

// selectSection returns the first top-level entry whose key, taken
// as a case-insensitive regular expression, matches the start of the
// branch name.
func selectSection(doc *yaml.Node, branch string) (string, *yaml.Node, error) {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return "", nil, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return "", nil, invalidConfigError(errors.Errorf("line %d: expected a mapping of branch patterns to configuration", root.Line))
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		re, err := regexp.Compile(`(?i)^(?:` + key.Value + `)`)
		if err != nil {
			return "", nil, invalidConfigError(errors.Wrapf(err, "line %d: branch pattern %q", key.Line, key.Value))
		}
		if re.MatchString(branch) {
			return key.Value, value, nil
		}
	}
	return "", nil, nil
}

// The shape of a section, as written in the file.
type file struct {
	Images          []fileImage          `yaml:"images"`
	TaskDefinitions []fileTaskDefinition `yaml:"task_definitions"`
	Services        []fileService        `yaml:"services"`
}

type fileImage struct {
	Name          string   `yaml:"name"`
	RepositoryURI string   `yaml:"repository_uri"`
	Context       string   `yaml:"context"`
	DockerFile    string   `yaml:"docker_file"`
	Dependencies  []string `yaml:"dependencies"`
	Excludes      []string `yaml:"excludes"`
}

type fileBoundImage struct {
	Name         string `yaml:"name"`
	BindVariable string `yaml:"bind_variable"`
}

type fileTaskDefinition struct {
	JSONTemplate  string           `yaml:"json_template"`
	Images        []fileBoundImage `yaml:"images"`
	BindVariables BindVariables    `yaml:"bind_variables"`
}

type fileTask struct {
	TaskFamily    string        `yaml:"task_family"`
	Cluster       string        `yaml:"cluster"`
	JSONTemplate  string        `yaml:"json_template"`
	BindVariables BindVariables `yaml:"bind_variables"`
}

type fileService struct {
	Name         string `yaml:"name"`
	TaskFamily   string `yaml:"task_family"`
	Cluster      string `yaml:"cluster"`
	JSONTemplate string `yaml:"json_template"`
	BeforeDeploy *struct {
		Tasks []fileTask `yaml:"tasks"`
	} `yaml:"before_deploy"`
	BindVariables BindVariables `yaml:"bind_variables"`
}

func (f file) application(getenv func(string) string) (Application, error) {
	var app Application
	byName := map[string]image.Config{}
	for _, fi := range f.Images {
		cfg, err := image.NewConfig(fi.Name, fi.RepositoryURI, fi.Context, fi.DockerFile, fi.Dependencies, fi.Excludes)
		if err != nil {
			return app, invalidConfigError(errors.Wrapf(err, "image %q", fi.Name))
		}
		if _, dup := byName[cfg.Name]; dup {
			return app, invalidConfigError(errors.Errorf("image %q is defined more than once", cfg.Name))
		}
		byName[cfg.Name] = cfg
		app.Images = append(app.Images, cfg)
	}

	for _, ftd := range f.TaskDefinitions {
		td := TaskDefinition{
			JSONTemplate: ftd.JSONTemplate,
			Variables:    ftd.BindVariables.Resolve(getenv),
		}
		for _, b := range ftd.Images {
			cfg, ok := byName[b.Name]
			if !ok {
				return app, invalidConfigError(errors.Errorf("task definition %s refers to image %q, which is not defined", ftd.JSONTemplate, b.Name))
			}
			td.Images = append(td.Images, BoundImage{Config: cfg, BindVariable: b.BindVariable})
		}
		app.TaskDefinitions = append(app.TaskDefinitions, td)
	}

	for _, fs := range f.Services {
		s := Service{
			Name:         fs.Name,
			TaskFamily:   fs.TaskFamily,
			Cluster:      fs.Cluster,
			JSONTemplate: fs.JSONTemplate,
			Variables:    fs.BindVariables.Resolve(getenv),
		}
		if fs.BeforeDeploy != nil {
			for _, ft := range fs.BeforeDeploy.Tasks {
				s.BeforeDeploy = append(s.BeforeDeploy, Task{
					TaskFamily:   ft.TaskFamily,
					Cluster:      ft.Cluster,
					JSONTemplate: ft.JSONTemplate,
					Variables:    ft.BindVariables.Resolve(getenv),
				})
			}
		}
		app.Services = append(app.Services, s)
	}
	return app, nil
}

func invalidConfigError(err error) error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  err,
		Help: `The configuration file could not be understood:

    ` + err.Error() + `

Check the file against the documented format: top-level keys are
branch patterns, each holding "images", "task_definitions" and
"services".
`,
	}
}
