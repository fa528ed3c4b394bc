// ABOUTME: Minimal JSON-schema subset used to describe and validate tool inputs.
// ABOUTME: Supports object schemas with typed properties and required keys.

package packs

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrSchema indicates tool arguments did not match the tool's input schema.
var ErrSchema = errors.New("invalid tool arguments")

// Property types understood by the validator.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Property describes one named input.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Schema is the input schema of a tool. Type is always "object".
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// ObjectSchema builds an object schema from properties and required keys.
func ObjectSchema(props map[string]Property, required ...string) Schema {
	return Schema{Type: TypeObject, Properties: props, Required: required}
}

// PropertyNames returns the declared property names in sorted order.
func (s Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks args against the schema: required keys must be present and
// non-null, and declared properties must carry values of the declared type.
// Undeclared keys are ignored.
func (s Schema) Validate(args map[string]any) error {
	if s.Type != "" && s.Type != TypeObject {
		return fmt.Errorf("%w: unsupported schema type %q", ErrSchema, s.Type)
	}
	for _, key := range s.Required {
		if v, ok := args[key]; !ok || v == nil {
			return fmt.Errorf("%w: missing required property %q", ErrSchema, key)
		}
	}
	for _, name := range s.PropertyNames() {
		v, ok := args[name]
		if !ok || v == nil {
			continue
		}
		if !matchesType(s.Properties[name].Type, v) {
			return fmt.Errorf("%w: property %q must be of type %s", ErrSchema, name, s.Properties[name].Type)
		}
	}
	return nil
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "":
		return true
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		_, ok := toFloat(v)
		return ok
	case TypeInteger:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// StringArg returns args[key] as a string, or "" when absent.
func StringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
