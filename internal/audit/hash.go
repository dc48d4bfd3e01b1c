package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// ParamsHash returns the hex SHA-256 of a canonical JSON encoding of
// params (keys sorted, no whitespace), so audit records never carry raw
// parameter values. Mirrors the original gateway's hashlib.sha256 over
// json.dumps(params, sort_keys=True), falling back to the literal
// string "error" if the params cannot be encoded (e.g. a value with no
// JSON representation).
func ParamsHash(params map[string]any) string {
	canonical, err := canonicalJSON(params)
	if err != nil {
		return "error"
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON produces a deterministic encoding regardless of the
// map's iteration order by recursively sorting keys before marshaling.
func canonicalJSON(v any) ([]byte, error) {
	return json.Marshal(sortedValue(v))
}

func sortedValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(sortedMap, 0, len(val))
		for _, k := range keys {
			out = append(out, sortedPair{key: k, value: sortedValue(val[k])})
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = sortedValue(e)
		}
		return out
	default:
		return val
	}
}

// sortedMap preserves key insertion order through json.Marshal by
// implementing MarshalJSON directly, since Go's encoding/json always
// re-sorts map[string]any keys anyway -- this makes the sort explicit
// and independent of that stdlib behavior.
type sortedPair struct {
	key   string
	value any
}

type sortedMap []sortedPair

func (m sortedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, p := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(p.key)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(p.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
