package validate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// entitySchemas holds the raw JSON Schema (draft 2020-12) text for each
// entity type with a typed metadata shape. Entity types not listed here
// fall through to generic validation only: banned-key rejection and
// string sanitization, no shape check.
var entitySchemas = map[string]string{
	"person": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"birth_date": {"type": "string", "format": "date"},
			"role": {"type": "string", "maxLength": 128}
		},
		"additionalProperties": true
	}`,
	"project": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"repo_url": {"type": "string", "pattern": "^https?://"},
			"status": {"type": "string", "maxLength": 64}
		},
		"additionalProperties": true
	}`,
	"tool": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"version": {"type": "string", "maxLength": 64},
			"endpoint": {"type": "string"}
		},
		"additionalProperties": true
	}`,
	"protocol": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"steps": {"type": "array", "items": {"type": "string"}}
		},
		"additionalProperties": true
	}`,
}

// logTypeSchemas holds the JSON Schema for each log type's value object.
// Unlike entity metadata, a log's value is not freeform: the executor
// rejects any value that doesn't conform to its log type's schema.
var logTypeSchemas = map[string]string{
	"event": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"message": {"type": "string"},
			"severity": {"type": "string", "enum": ["debug","info","warn","error"]}
		},
		"required": ["message"],
		"additionalProperties": true
	}`,
	"metric": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"value": {"type": "number"}
		},
		"required": ["name", "value"],
		"additionalProperties": true
	}`,
}

const schemaBaseURL = "https://nebula.local/schemas/"

// SchemaRegistry compiles and caches the entity-type and log-type JSON
// Schemas once at startup, used by the entity and log executors to
// validate metadata/value objects before a write.
type SchemaRegistry struct {
	mu     sync.RWMutex
	entity map[string]*jsonschema.Schema
	log    map[string]*jsonschema.Schema
}

// NewSchemaRegistry compiles every registered entity-type and log-type
// schema and returns a ready registry. An error here means a schema
// literal is malformed, a startup-time programming error.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	r := &SchemaRegistry{
		entity: make(map[string]*jsonschema.Schema, len(entitySchemas)),
		log:    make(map[string]*jsonschema.Schema, len(logTypeSchemas)),
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	for kind, raw := range entitySchemas {
		url := schemaBaseURL + "entity/" + kind + ".json"
		if err := compiler.AddResource(url, strings.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("validate: add entity schema %q: %w", kind, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("validate: compile entity schema %q: %w", kind, err)
		}
		r.entity[kind] = schema
	}
	for kind, raw := range logTypeSchemas {
		url := schemaBaseURL + "log/" + kind + ".json"
		if err := compiler.AddResource(url, strings.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("validate: add log schema %q: %w", kind, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("validate: compile log schema %q: %w", kind, err)
		}
		r.log[kind] = schema
	}
	return r, nil
}

// ValidateEntityMetadata validates metadata against the schema registered
// for entityType. Entity types with no registered schema always pass.
func (r *SchemaRegistry) ValidateEntityMetadata(entityType string, metadata map[string]interface{}) error {
	r.mu.RLock()
	schema, ok := r.entity[entityType]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := schema.Validate(toSchemaInput(metadata)); err != nil {
		return fmt.Errorf("metadata does not match %s schema: %w", entityType, err)
	}
	return nil
}

// ValidateLogValue validates value against the schema registered for
// logType. Log types with no registered schema always pass.
func (r *SchemaRegistry) ValidateLogValue(logType string, value map[string]interface{}) error {
	r.mu.RLock()
	schema, ok := r.log[logType]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := schema.Validate(toSchemaInput(value)); err != nil {
		return fmt.Errorf("value does not match %s log schema: %w", logType, err)
	}
	return nil
}

// toSchemaInput converts a map[string]interface{} into the
// map[string]interface{} shape jsonschema.Schema.Validate expects
// (numbers as float64/json.Number, which is already how our metadata
// maps are decoded).
func toSchemaInput(v map[string]interface{}) interface{} {
	out := make(map[string]interface{}, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
