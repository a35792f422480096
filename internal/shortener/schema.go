package shortener

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const createResponseSchema = `{
  "type": "object",
  "required": ["data"],
  "properties": {
    "data": {
      "type": "object",
      "required": ["shortUrlId"],
      "properties": {
        "shortUrlId": {"type": "string", "minLength": 1}
      }
    }
  }
}`

const statsResponseSchema = `{
  "type": "object",
  "required": ["data"],
  "properties": {
    "data": {
      "type": "object",
      "required": ["clickCount"],
      "properties": {
        "clickCount": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

// SchemaValidator checks create and stats bodies against the service's
// response schemas. Compiled schemas are safe for concurrent use, so one
// validator serves every user of a scenario.
type SchemaValidator struct {
	create *jsonschema.Schema
	stats  *jsonschema.Schema
}

// NewSchemaValidator compiles the built-in response schemas.
func NewSchemaValidator() (*SchemaValidator, error) {
	create, err := compileSchema("create.json", createResponseSchema)
	if err != nil {
		return nil, err
	}
	stats, err := compileSchema("stats.json", statsResponseSchema)
	if err != nil {
		return nil, err
	}
	return &SchemaValidator{create: create, stats: stats}, nil
}

func compileSchema(name, schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}
	return compiled, nil
}

// CheckCreate returns a failure message when body breaks the create schema.
func (v *SchemaValidator) CheckCreate(body []byte) string {
	return validate(v.create, body)
}

// CheckStats returns a failure message when body breaks the stats schema.
func (v *SchemaValidator) CheckStats(body []byte) string {
	return validate(v.stats, body)
}

func validate(schema *jsonschema.Schema, body []byte) string {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "Invalid JSON response: " + err.Error()
	}
	if err := schema.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return "Schema validation failed: " + leafCause(ve).Message
		}
		return "Schema validation failed: " + err.Error()
	}
	return ""
}

// leafCause returns the innermost error, which names the failing keyword
// instead of the generic "doesn't validate" wrapper.
func leafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
