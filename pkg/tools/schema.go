package tools

import (
	"fmt"

	"github.com/graphmind/codegraph/pkg/errs"
)

// Schema describes one tool's JSON parameters: which keys are required and
// what a missing optional key defaults to. It intentionally stays simpler
// than a full JSON-schema document since the catalogue only needs
// required/default enforcement, not general validation.
type Schema struct {
	Required []string
	Defaults map[string]any
}

// ApplyDefaults checks every required key is present and fills in defaults
// for any missing optional key, returning a new params map so the caller's
// original is left untouched.
func (s Schema) ApplyDefaults(op string, params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params)+len(s.Defaults))
	for k, v := range params {
		out[k] = v
	}
	for _, key := range s.Required {
		if _, ok := out[key]; !ok {
			return nil, errs.Schema(op, fmt.Sprintf("missing required parameter %q", key))
		}
	}
	for key, def := range s.Defaults {
		if _, ok := out[key]; !ok {
			out[key] = def
		}
	}
	return out, nil
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
