// Package tools declares the closed set of operations the gateway exposes
// over MCP. Every tool descriptor carries its argument spec, rate class,
// cache placement, and invalidation rules, so the dispatcher stays
// generic.
package tools

import (
	"fmt"
	"math"
	"strconv"

	"github.com/fieldstack/maximo-mcp/internal/maximo"
	"github.com/fieldstack/maximo-mcp/internal/ratelimit"
)

// ArgType is the JSON type expected for a tool argument.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeInteger ArgType = "integer"
	TypeNumber  ArgType = "number"
	TypeBoolean ArgType = "boolean"
)

// Arg describes one tool argument.
type Arg struct {
	Name        string
	Type        ArgType
	Description string
	Required    bool
	// Default is applied when an optional argument is absent. nil means
	// the argument stays absent.
	Default any
}

// Op distinguishes cache key namespaces within an entity.
type Op string

const (
	OpGet    Op = "get"
	OpSearch Op = "search"
)

// Tool describes one operation in the catalog.
type Tool struct {
	Name        string
	Description string
	Args        []Arg
	// AllowExtra lets create tools pass arbitrary additional Maximo
	// fields through to the upstream payload.
	AllowExtra bool

	RateClass ratelimit.Class
	Entity    maximo.Entity

	// Cacheable read placement. TTLBucket selects the configured
	// lifetime; empty means the tool result is never cached.
	CacheOp   Op
	TTLBucket string

	// Mutation marks side-effecting tools. Invalidates lists the entity
	// prefixes purged after a successful write.
	Mutation    bool
	Invalidates []maximo.Entity
}

// ArgError reports a tool-argument validation failure. It is surfaced to
// the caller before any side-effecting call is made.
type ArgError struct {
	Tool    string
	Message string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
}

// Validate checks args against the tool's spec, applies defaults, and
// coerces values into their declared types. The returned map contains
// only declared arguments plus, when AllowExtra is set, any passthrough
// fields.
func (t *Tool) Validate(args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	out := make(map[string]any, len(args))
	declared := make(map[string]bool, len(t.Args))

	for _, spec := range t.Args {
		declared[spec.Name] = true
		raw, present := args[spec.Name]
		if !present || raw == nil {
			if spec.Required {
				return nil, &ArgError{Tool: t.Name, Message: fmt.Sprintf("missing required argument %q", spec.Name)}
			}
			if spec.Default != nil {
				out[spec.Name] = spec.Default
			}
			continue
		}
		coerced, err := coerce(raw, spec.Type)
		if err != nil {
			return nil, &ArgError{Tool: t.Name, Message: fmt.Sprintf("argument %q: %v", spec.Name, err)}
		}
		if spec.Required {
			if s, ok := coerced.(string); ok && s == "" {
				return nil, &ArgError{Tool: t.Name, Message: fmt.Sprintf("required argument %q is empty", spec.Name)}
			}
		}
		out[spec.Name] = coerced
	}

	for name, raw := range args {
		if declared[name] {
			continue
		}
		if !t.AllowExtra {
			return nil, &ArgError{Tool: t.Name, Message: fmt.Sprintf("unknown argument %q", name)}
		}
		out[name] = raw
	}
	return out, nil
}

// coerce converts a decoded JSON value into the declared argument type.
// JSON numbers arrive as float64; numeric strings are accepted for the
// numeric types since MCP clients frequently stringify them.
func coerce(raw any, typ ArgType) (any, error) {
	switch typ {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return s, nil

	case TypeInteger:
		switch v := raw.(type) {
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("expected integer, got %v", v)
			}
			return int(v), nil
		case int:
			return v, nil
		case string:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", v)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", raw)
		}

	case TypeNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("expected number, got %q", v)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("expected number, got %T", raw)
		}

	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("expected boolean, got %q", v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}
	}
	return nil, fmt.Errorf("unsupported argument type %q", typ)
}

// InputSchema renders the tool's argument spec as a JSON Schema object
// for the MCP tools/list response.
func (t *Tool) InputSchema() map[string]any {
	props := make(map[string]any, len(t.Args))
	var required []string
	for _, a := range t.Args {
		prop := map[string]any{
			"type":        string(a.Type),
			"description": a.Description,
		}
		if a.Default != nil {
			prop["default"] = a.Default
		}
		props[a.Name] = prop
		if a.Required {
			required = append(required, a.Name)
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": t.AllowExtra,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
