// Package governance compiles and validates the JSON Schemas that gate
// subject state transitions, and applies the JSON Patch documents that
// describe those transitions. The governance schema itself (the schema
// that validates a governance subject's own state) is fixed and embedded
// in this package; per-subject schemas are supplied by the governance
// subject's current state and compiled on demand.
package governance

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON Schema ready for repeated validation.
type Schema struct {
	compiled *jsonschema.Schema
}

// Compile compiles v (any JSON-marshalable schema document, e.g. a
// map[string]interface{} or the output of GovernanceSchema) into a Schema.
func Compile(v interface{}) (*Schema, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("governance: marshal schema: %w", err)
	}
	const resource = "governance.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, toJSONValue(raw)); err != nil {
		return nil, fmt.Errorf("governance: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("governance: compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate reports whether v conforms to the compiled schema.
func (s *Schema) Validate(v interface{}) bool {
	return s.compiled.Validate(v) == nil
}

// ValidateErr is like Validate but returns the underlying validation error
// for diagnostics.
func (s *Schema) ValidateErr(v interface{}) error {
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("governance: schema validation failed: %w", err)
	}
	return nil
}

func toJSONValue(raw []byte) interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		panic(fmt.Sprintf("governance: schema was not valid JSON: %v", err))
	}
	return v
}
