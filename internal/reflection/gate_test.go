package reflection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestResolveCanRegenerate(t *testing.T) {
	existing := json.RawMessage(`{"founder":{"title":"T","suggestion":"S"}}`)

	tests := []struct {
		name        string
		stored      *bool
		suggestions json.RawMessage
		want        bool
	}{
		{"unset, no suggestions", nil, nil, true},
		{"unset, empty object", nil, json.RawMessage(`{}`), true},
		{"unset, null json", nil, json.RawMessage(`null`), true},
		{"unset, suggestions exist", nil, existing, false},
		{"stored true wins over existing suggestions", boolPtr(true), existing, true},
		{"stored false wins over missing suggestions", boolPtr(false), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCanRegenerate(tt.stored, tt.suggestions))
		})
	}
}

func TestGateReopensAfterEdit(t *testing.T) {
	existing := json.RawMessage(`{"parent":{"title":"T","suggestion":"S"}}`)

	// With suggestions present and no explicit flag, regeneration is blocked.
	assert.False(t, ResolveCanRegenerate(nil, existing))

	// A text edit clears suggestions and resets the flag; both the explicit
	// and the derived paths must then allow regeneration.
	assert.True(t, ResolveCanRegenerate(boolPtr(true), nil))
	assert.True(t, ResolveCanRegenerate(nil, nil))
}
