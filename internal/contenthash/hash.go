// Package contenthash derives stable cache keys from the content-defining
// fields of structural items so identical items translate once.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Sum hashes the given fields of item into a deterministic hex digest.
// Normalization: nil values are stripped, map keys are serialized in sorted
// order, so two items with the same content-defining values always collide.
func Sum(item map[string]any, fields []string) (string, error) {
	subset := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := item[f]
		if !ok || v == nil {
			continue
		}
		subset[f] = normalize(v)
	}
	// encoding/json writes map keys in sorted order, which gives us the
	// stable serialization the key depends on.
	raw, err := json.Marshal(subset)
	if err != nil {
		return "", fmt.Errorf("serialize hash subset: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			if vv == nil {
				continue
			}
			out[k] = normalize(vv)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, vv := range t {
			out = append(out, normalize(vv))
		}
		return out
	default:
		return v
	}
}
