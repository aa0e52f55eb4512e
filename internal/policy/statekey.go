package policy

import (
	"encoding/json"
	"fmt"
)

// NullStateKey is the reserved key for a nil/absent state. Passing a nil
// next state to Update models a terminal transition.
const NullStateKey = "null"

// StateKey derives the canonical string key for a caller-supplied state.
// Strings are used as-is; any other value is canonicalized through its
// stable JSON encoding (encoding/json emits map keys in sorted order, so
// equal states always yield equal keys). Values that cannot be marshaled
// fall back to their fmt representation.
func StateKey(state any) string {
	if state == nil {
		return NullStateKey
	}
	if s, ok := state.(string); ok {
		return s
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Sprintf("%v", state)
	}
	return string(data)
}
