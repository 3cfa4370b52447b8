package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
)

const sectionSchema = `{
  "$schema": "http://json-schema.org/draft-04/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "images": {
      "type": ["array", "null"],
      "items": {"$ref": "#/definitions/image"}
    },
    "task_definitions": {
      "type": ["array", "null"],
      "items": {"$ref": "#/definitions/taskDefinition"}
    },
    "services": {
      "type": ["array", "null"],
      "items": {"$ref": "#/definitions/service"}
    }
  },
  "definitions": {
    "nonEmpty": {"type": "string", "minLength": 1},
    "paths": {"type": "array", "items": {"type": "string"}},
    "bindVariables": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name"],
        "properties": {
          "name": {"$ref": "#/definitions/nonEmpty"},
          "value": {"type": ["string", "number", "boolean", "null"]},
          "value_from": {"type": ["string", "null"]}
        }
      }
    },
    "image": {
      "type": "object",
      "additionalProperties": false,
      "required": ["name", "repository_uri", "context", "docker_file", "dependencies"],
      "properties": {
        "name": {"$ref": "#/definitions/nonEmpty"},
        "repository_uri": {"$ref": "#/definitions/nonEmpty"},
        "context": {"$ref": "#/definitions/nonEmpty"},
        "docker_file": {"$ref": "#/definitions/nonEmpty"},
        "dependencies": {"$ref": "#/definitions/paths"},
        "excludes": {"type": ["array", "null"], "items": {"type": "string"}}
      }
    },
    "taskDefinition": {
      "type": "object",
      "additionalProperties": false,
      "required": ["json_template", "images"],
      "properties": {
        "json_template": {"$ref": "#/definitions/nonEmpty"},
        "images": {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": false,
            "required": ["name"],
            "properties": {
              "name": {"$ref": "#/definitions/nonEmpty"},
              "bind_variable": {"type": ["string", "null"]}
            }
          }
        },
        "bind_variables": {"$ref": "#/definitions/bindVariables"}
      }
    },
    "task": {
      "type": "object",
      "additionalProperties": false,
      "required": ["task_family", "cluster", "json_template"],
      "properties": {
        "task_family": {"$ref": "#/definitions/nonEmpty"},
        "cluster": {"$ref": "#/definitions/nonEmpty"},
        "json_template": {"$ref": "#/definitions/nonEmpty"},
        "bind_variables": {"$ref": "#/definitions/bindVariables"}
      }
    },
    "service": {
      "type": "object",
      "additionalProperties": false,
      "required": ["name", "task_family", "cluster", "json_template"],
      "properties": {
        "name": {"$ref": "#/definitions/nonEmpty"},
        "task_family": {"$ref": "#/definitions/nonEmpty"},
        "cluster": {"$ref": "#/definitions/nonEmpty"},
        "json_template": {"$ref": "#/definitions/nonEmpty"},
        "before_deploy": {
          "type": ["object", "null"],
          "additionalProperties": false,
          "properties": {
            "tasks": {"type": ["array", "null"], "items": {"$ref": "#/definitions/task"}}
          }
        },
        "bind_variables": {"$ref": "#/definitions/bindVariables"}
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(sectionSchema)

// validate checks a section against the schema, before it is decoded.
func validate(section *yaml.Node) error {
	var v interface{}
	if err := section.Decode(&v); err != nil {
		return invalidConfigError(err)
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(v))
	if err != nil {
		return invalidConfigError(errors.Wrap(err, "validating configuration"))
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  errors.Errorf("configuration for line %d is invalid: %s", section.Line, strings.Join(problems, "; ")),
		Help: `The configuration selected for this branch has these problems:

    ` + strings.Join(problems, "\n    ") + `
`,
	}
}
