package reflection

import "encoding/json"

// ResolveCanRegenerate decides whether suggestion regeneration is allowed.
// An explicitly stored flag is trusted. Otherwise the default depends on
// whether suggestions exist: never-generated reflections may generate,
// while existing suggestions must not be overwritten without an edit.
// EditText is the only operation that re-opens the gate.
func ResolveCanRegenerate(stored *bool, suggestions json.RawMessage) bool {
	if stored != nil {
		return *stored
	}
	return !hasSuggestions(suggestions)
}

func hasSuggestions(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	return len(m) > 0
}
