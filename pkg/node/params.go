package node

import "time"

// Params is a node's configuration: field name to value. Values come from
// the YAML definition (strings, ints, floats, bools) or, for component
// references, from the engine injecting the constructed instance.
type Params map[string]any

// Merged returns a new Params with override applied field-by-field on top
// of p. Fields absent from override keep their static value; neither input
// map is modified.
func (p Params) Merged(override Params) Params {
	if len(override) == 0 && p != nil {
		return p
	}
	out := make(Params, len(p)+len(override))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// String returns the string value for key, or def if absent or not a string.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer value for key, accepting the numeric types the
// YAML decoder produces. Returns def if absent or non-numeric.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Float returns the float value for key, or def if absent or non-numeric.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Bool returns the bool value for key, or def if absent or not a bool.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Duration returns the duration value for key. Accepts time.Duration values
// and "1m30s"-style strings. Returns def if absent or unparseable.
func (p Params) Duration(key string, def time.Duration) time.Duration {
	switch v := p[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
