package executor

import (
	"encoding/json"
	"reflect"

	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
)

// DefaultMaxResultBytes is used when no context window is configured, an
// approximation of a 100K-token window at ~2 chars/token.
const DefaultMaxResultBytes = 200 * 1024

// MaxResultBytes derives max_result_bytes from a context window size in
// tokens (context_window * 2 chars), or DefaultMaxResultBytes when the
// window is unknown (<= 0).
func MaxResultBytes(contextWindowTokens int) int {
	if contextWindowTokens <= 0 {
		return DefaultMaxResultBytes
	}
	return contextWindowTokens * 2
}

// truncated is the metadata block attached when a result array had to be
// shrunk to fit max_result_bytes.
type truncated struct {
	OriginalItems  int    `json:"original_items"`
	KeptItems      int    `json:"kept_items"`
	TruncatedItems int    `json:"truncated_items"`
	Reason         string `json:"reason"`
	MaxBytes       int    `json:"max_bytes"`
}

// truncateResult serialises result; if it exceeds maxBytes and result is a
// map holding a slice-valued field, that field is shrunk to the largest
// prefix whose serialised form still fits, and a "_truncated" key is
// attached. Non-map or slice-free results are returned unchanged with a
// logged warning.
func truncateResult(toolName string, result any, maxBytes int) any {
	raw, err := json.Marshal(result)
	if err != nil || len(raw) <= maxBytes {
		return result
	}

	m, ok := result.(map[string]any)
	if !ok {
		log.Logger.Warn().Str("tool", toolName).Int("bytes", len(raw)).Msg("result exceeds max_result_bytes but is not truncatable")
		return result
	}

	sliceKey, sliceVal := findSliceField(m)
	if sliceKey == "" {
		log.Logger.Warn().Str("tool", toolName).Int("bytes", len(raw)).Msg("result exceeds max_result_bytes but has no array field")
		return result
	}

	original := sliceVal.Len()
	kept := original
	for kept > 0 {
		candidate := cloneWithSlice(m, sliceKey, sliceVal.Slice(0, kept).Interface())
		b, err := json.Marshal(candidate)
		if err == nil && len(b) <= maxBytes {
			break
		}
		kept--
	}

	out := cloneWithSlice(m, sliceKey, sliceVal.Slice(0, kept).Interface())
	out["_truncated"] = truncated{
		OriginalItems:  original,
		KeptItems:      kept,
		TruncatedItems: original - kept,
		Reason:         "result exceeded max_result_bytes",
		MaxBytes:       maxBytes,
	}
	metrics.ToolResultTruncatedTotal.WithLabelValues(toolName).Inc()
	return out
}

func findSliceField(m map[string]any) (string, reflect.Value) {
	var bestKey string
	var bestVal reflect.Value
	bestLen := -1
	for k, v := range m {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			continue
		}
		if rv.Len() > bestLen {
			bestKey, bestVal, bestLen = k, rv, rv.Len()
		}
	}
	return bestKey, bestVal
}

func cloneWithSlice(m map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}
