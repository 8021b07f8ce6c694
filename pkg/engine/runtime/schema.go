package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema validates a runner's configuration before the node's first attempt.
type Schema struct {
	source   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewSchema resolves a JSON Schema for repeated validation.
func NewSchema(s *jsonschema.Schema) (*Schema, error) {
	if s == nil {
		return nil, fmt.Errorf("schema is nil")
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return &Schema{source: s, resolved: resolved}, nil
}

// MustSchema is NewSchema for package-level declarations.
func MustSchema(s *jsonschema.Schema) *Schema {
	schema, err := NewSchema(s)
	if err != nil {
		panic(err)
	}
	return schema
}

// Source returns the declared schema, e.g. for documentation endpoints.
func (s *Schema) Source() *jsonschema.Schema {
	if s == nil {
		return nil
	}
	return s.source
}

// Validate checks cfg, excluding executor keys. A nil schema accepts anything.
func (s *Schema) Validate(cfg Config) error {
	if s == nil {
		return nil
	}
	instance, err := normalize(cfg.RunnerView())
	if err != nil {
		return err
	}
	return s.resolved.Validate(instance)
}

// normalize converts decoder-specific shapes (int, map[string]string, ...)
// into plain JSON values.
func normalize(cfg Config) (map[string]any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}

// Object builds an object schema from property schemas. required lists the
// mandatory keys.
func Object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

// StringProp is a string property.
func StringProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

// IntegerProp is an integer property with an optional lower bound.
func IntegerProp(description string, minimum *float64) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description, Minimum: minimum}
}

// EnumProp is a string property restricted to values.
func EnumProp(description string, values ...string) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{Type: "string", Description: description, Enum: enum}
}

// MapProp is an object property with string values.
func MapProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Description:          description,
		AdditionalProperties: &jsonschema.Schema{Type: "string"},
	}
}

// AnyProp accepts any value.
func AnyProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Description: description}
}

// Min is a convenience for IntegerProp bounds.
func Min(v float64) *float64 {
	return &v
}
