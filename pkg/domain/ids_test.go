package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID("00000000-0000-0000-0000-000000000000")
		require.Error(t, err)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		id, err := ParseUserID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(raw), id)
		assert.False(t, id.IsNil())
	})
}

func TestParseSessionID_MatchesUserIDValidation(t *testing.T) {
	for _, input := range []string{"", "invalid", "00000000-0000-0000-0000-000000000000"} {
		_, userErr := ParseUserID(input)
		_, sessErr := ParseSessionID(input)
		assert.Equal(t, userErr == nil, sessErr == nil, "input %q", input)
	}
}

func TestUserID_JSONRoundTrip(t *testing.T) {
	id := UserID(uuid.New())

	b, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+id.String()+`"`, string(b))

	var decoded UserID
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, id, decoded)
}
