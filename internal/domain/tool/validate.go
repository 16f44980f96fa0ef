package tool

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError reports why an argument map failed the declared input
// shape. The handler is never invoked when validation fails.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid arguments: " + strings.Join(e.Problems, "; ")
}

// Validate checks args against the schema: required fields present, declared
// types matched, enum membership honored. Unknown fields are rejected so a
// misspelled optional filter fails loudly instead of being silently ignored.
func (s InputSchema) Validate(args map[string]any) error {
	var problems []string

	for _, name := range s.Required {
		if _, ok := args[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing required field %q", name))
		}
	}

	for name, value := range args {
		prop, known := s.Properties[name]
		if !known {
			problems = append(problems, fmt.Sprintf("unknown field %q", name))
			continue
		}
		if msg := checkType(name, prop, value); msg != "" {
			problems = append(problems, msg)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// checkType validates a single value against its declared property.
// JSON numbers arrive as float64; "integer" additionally requires an
// integral value.
func checkType(name string, prop Property, value any) string {
	switch prop.Type {
	case "string":
		str, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field %q must be a string", name)
		}
		if len(prop.Enum) > 0 && !contains(prop.Enum, str) {
			return fmt.Sprintf("field %q must be one of: %s", name, strings.Join(prop.Enum, ", "))
		}
	case "number":
		if !isNumber(value) {
			return fmt.Sprintf("field %q must be a number", name)
		}
	case "integer":
		f, ok := asFloat(value)
		if !ok || f != math.Trunc(f) {
			return fmt.Sprintf("field %q must be an integer", name)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("field %q must be a boolean", name)
		}
	}
	return ""
}

func isNumber(value any) bool {
	_, ok := asFloat(value)
	return ok
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Argument accessors used by tool handlers after validation has passed.

// StringArg returns args[name] as a string, or "" when absent.
func StringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// IntArg returns args[name] as an int, or 0 when absent.
func IntArg(args map[string]any, name string) int {
	f, ok := asFloat(args[name])
	if !ok {
		return 0
	}
	return int(f)
}

// FloatArg returns args[name] as a float64, or 0 when absent.
func FloatArg(args map[string]any, name string) float64 {
	f, _ := asFloat(args[name])
	return f
}
