package node

import (
	"fmt"
	"sort"
	"time"
)

// Kind is the declared type of a schema field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindDuration
	// KindComponent marks a field whose value names another component in the
	// same definition. Build-time validation checks the name resolves; at
	// engine construction the name is replaced by the constructed instance.
	KindComponent
	// KindAny accepts any YAML value unchecked.
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDuration:
		return "duration"
	case KindComponent:
		return "component"
	case KindAny:
		return "any"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field describes one accepted configuration field.
type Field struct {
	Kind     Kind
	Required bool
	Default  any // applied when the field is absent; nil means no default
}

// Schema is the accepted configuration surface of a node type.
type Schema map[string]Field

// Validate checks params against the schema and returns every violation
// found, not just the first, so a definition can be fixed in one pass.
func (s Schema) Validate(params Params) []string {
	var problems []string

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := s[name]
		v, ok := params[name]
		if !ok {
			if f.Required {
				problems = append(problems, fmt.Sprintf("missing required param %q", name))
			}
			continue
		}
		if !f.Kind.accepts(v) {
			problems = append(problems, fmt.Sprintf("param %q: expected %s, got %T", name, f.Kind, v))
		}
	}

	extra := make([]string, 0)
	for name := range params {
		if _, ok := s[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		problems = append(problems, fmt.Sprintf("unknown param %q", name))
	}
	return problems
}

// ApplyDefaults returns params extended with the schema's default values
// for absent fields. The input map is not modified.
func (s Schema) ApplyDefaults(params Params) Params {
	out := make(Params, len(params))
	for k, v := range params {
		out[k] = v
	}
	for name, f := range s {
		if f.Default == nil {
			continue
		}
		if _, ok := out[name]; !ok {
			out[name] = f.Default
		}
	}
	return out
}

func (k Kind) accepts(v any) bool {
	switch k {
	case KindString, KindComponent:
		// Component refs are plain strings until the engine resolves them;
		// after resolution any instance value is acceptable.
		if k == KindComponent {
			if _, ok := v.(string); ok {
				return true
			}
			_, isHandler := v.(Handler)
			return isHandler
		}
		_, ok := v.(string)
		return ok
	case KindInt:
		switch v.(type) {
		case int, int64:
			return true
		}
		return false
	case KindFloat:
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindDuration:
		switch x := v.(type) {
		case time.Duration:
			return true
		case string:
			_, err := time.ParseDuration(x)
			return err == nil
		}
		return false
	case KindAny:
		return true
	}
	return false
}
