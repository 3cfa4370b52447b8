package config

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BindValue is where the value of a bind variable comes from.
type BindValue interface {
	Resolve(getenv func(string) string) string
}

// ConstValue is a value given literally.
type ConstValue string

func (v ConstValue) Resolve(func(string) string) string {
	return string(v)
}

// EnvValue names an environment variable; unset reads as empty.
type EnvValue string

func (v EnvValue) Resolve(getenv func(string) string) string {
	return getenv(string(v))
}

// BindVariable is a variable made available to a template.
type BindVariable struct {
	Name  string
	Value BindValue
}

// UnmarshalYAML accepts `{name, value}` and `{name, value_from}`,
// preferring value when both are given. An entry with neither is
// left with a nil Value.
func (b *BindVariable) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		Name      string     `yaml:"name"`
		Value     *yaml.Node `yaml:"value"`
		ValueFrom string     `yaml:"value_from"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return errors.Errorf("line %d: bind variable has no name", n.Line)
	}
	b.Name = raw.Name
	b.Value = nil
	switch {
	case raw.Value != nil && raw.Value.Tag != "!!null" && raw.Value.Value != "":
		if raw.Value.Kind != yaml.ScalarNode {
			return errors.Errorf("line %d: value of bind variable %s must be a scalar", raw.Value.Line, raw.Name)
		}
		b.Value = ConstValue(raw.Value.Value)
	case raw.ValueFrom != "":
		b.Value = EnvValue(raw.ValueFrom)
	}
	return nil
}

type BindVariables []BindVariable

// Resolve gives the value of each variable that has a source. Where
// a name repeats, the last one wins.
func (bs BindVariables) Resolve(getenv func(string) string) map[string]string {
	vars := map[string]string{}
	for _, b := range bs {
		if b.Value == nil {
			continue
		}
		vars[b.Name] = b.Value.Resolve(getenv)
	}
	return vars
}
