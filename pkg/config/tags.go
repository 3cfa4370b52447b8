package config

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Local tags understood in configuration files.
const (
	// !Ref NAME is the value of the parameter NAME, or failing that
	// the environment variable NAME, or null
	RefTag = "!Ref"
	// !Split [SEP, TEXT] is the list of pieces of TEXT between SEP,
	// each trimmed of surrounding space
	SplitTag = "!Split"
)

type tagResolver struct {
	params    map[string]string
	lookupEnv func(string) (string, bool)
}

// resolve replaces, depth first, every node with a local tag by the
// plain node it stands for.
func (r tagResolver) resolve(n *yaml.Node) error {
	for _, c := range n.Content {
		if err := r.resolve(c); err != nil {
			return err
		}
	}
	switch n.Tag {
	case RefTag:
		return r.ref(n)
	case SplitTag:
		return r.split(n)
	}
	return nil
}

func (r tagResolver) ref(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: %s takes a name", n.Line, RefTag)
	}
	v, ok := r.params[n.Value]
	if !ok {
		v, ok = r.lookupEnv(n.Value)
	}
	if !ok {
		*n = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "", Line: n.Line, Column: n.Column}
		return nil
	}
	*n = stringNode(v, n)
	return nil
}

func (r tagResolver) split(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		return errors.Errorf("line %d: %s takes a separator and a text", n.Line, SplitTag)
	}
	sep, text := n.Content[0], n.Content[1]
	if sep.Kind != yaml.ScalarNode || sep.Value == "" || text.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: %s takes a non-empty separator and a text", n.Line, SplitTag)
	}
	var s string
	if text.Tag != "!!null" {
		s = text.Value
	}
	pieces := strings.Split(s, sep.Value)
	seq := yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Line: n.Line, Column: n.Column}
	for _, p := range pieces {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: strings.TrimSpace(p), Line: n.Line, Column: n.Column})
	}
	*n = seq
	return nil
}

func stringNode(v string, at *yaml.Node) yaml.Node {
	return yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Line: at.Line, Column: at.Column}
}
