package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/driftview/errors"
)

func TestHandle(t *testing.T) {
	assert.Equal(t,
		"ModelEmbeddingsTable_embeddingDimensions_connection",
		Handle("ModelEmbeddingsTable", "embeddingDimensions"))
}

func TestSlotKey_RoundTrip(t *testing.T) {
	k, err := NewSlotKey("model-1", "ModelEmbeddingsTable", "embeddingDimensions")
	require.NoError(t, err)

	s := k.String()
	assert.Equal(t, "model-1.ModelEmbeddingsTable_embeddingDimensions_connection", s)

	parsed, err := ParseSlotKey(s)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestSlotKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  SlotKey
	}{
		{"empty parent", SlotKey{ParentID: "", Handle: "A_b_connection"}},
		{"dot in parent", SlotKey{ParentID: "a.b", Handle: "A_b_connection"}},
		{"wildcard in parent", SlotKey{ParentID: "a*", Handle: "A_b_connection"}},
		{"handle without suffix", SlotKey{ParentID: "m1", Handle: "A_b"}},
		{"empty handle", SlotKey{ParentID: "m1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestParseSlotKey_MissingSeparator(t *testing.T) {
	_, err := ParseSlotKey("no-separator")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidData))
}
