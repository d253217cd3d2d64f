package provider

import (
	"encoding/json"

	"github.com/af-corp/ai-gateway/internal/types"
)

// params returns the service defaults with the request's overrides applied.
func params(cfg types.ServiceConfig, req *types.Request) map[string]any {
	return types.MergeParameters(cfg.Parameters, req.Parameters)
}

// floatParam looks up the first present key. Config files and JSON bodies
// both feed parameters, so several numeric representations are accepted.
func floatParam(p map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := p[k].(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			f, err := v.Float64()
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func intParam(p map[string]any, keys ...string) (int, bool) {
	f, ok := floatParam(p, keys...)
	return int(f), ok
}

func stringParam(p map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// passthrough copies parameters into a wire body, skipping keys the client
// already mapped and keys that only steer the client itself.
func passthrough(body map[string]any, p map[string]any, skip ...string) {
	skipped := make(map[string]bool, len(skip))
	for _, k := range skip {
		skipped[k] = true
	}
	for k, v := range p {
		if skipped[k] {
			continue
		}
		if _, exists := body[k]; exists {
			continue
		}
		body[k] = v
	}
}
