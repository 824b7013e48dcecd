package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/graphmind/codegraph/pkg/types"
)

// CanonicalJSON marshals v with map keys sorted, so two semantically equal
// values (maps in particular) always produce byte-identical output. The
// node property index (PropertyIndexKey) relies on this to be
// order-independent.
func CanonicalJSON(v any) ([]byte, error) {
	canon := canonicalize(v)
	return json.Marshal(canon)
}

func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]sortedEntry, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make([]orderedPair, 0, len(val))
		for _, k := range keys {
			ordered = append(ordered, orderedPair{Key: k, Value: canonicalize(val[k])})
		}
		_ = out
		return ordered
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return v
	}
}

// orderedPair carries one map entry. canonicalize turns a map into a slice
// of these in sorted key order, and encoding/json keeps slice order, so the
// ordering survives; each pair encodes as a {"k": ..., "v": ...} object.
type orderedPair struct {
	Key   string `json:"k"`
	Value any    `json:"v"`
}

type sortedEntry = orderedPair

// HashBytes returns the hex-encoded SHA-256 digest of b.
func HashBytes(b []byte) types.ContentHash {
	sum := sha256.Sum256(b)
	return types.ContentHash(hex.EncodeToString(sum[:]))
}

// PropertyIndexKey builds the canonical index key for a single property
// key/value pair, used both to write the property index on node put and to
// look nodes up by property value.
func PropertyIndexKey(key string, value any) ([]byte, error) {
	canonValue, err := CanonicalJSON(value)
	if err != nil {
		return nil, err
	}
	out := append([]byte(key), 0x1f)
	out = append(out, canonValue...)
	return out, nil
}
