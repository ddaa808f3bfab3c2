package folders

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLevelOrdering(t *testing.T) {
	tests := []struct {
		level    AccessLevel
		required AccessLevel
		want     bool
	}{
		{LevelAdmin, LevelRead, true},
		{LevelAdmin, LevelWrite, true},
		{LevelAdmin, LevelAdmin, true},
		{LevelWrite, LevelRead, true},
		{LevelWrite, LevelWrite, true},
		{LevelWrite, LevelAdmin, false},
		{LevelRead, LevelRead, true},
		{LevelRead, LevelWrite, false},
		{LevelNone, LevelRead, false},
		{LevelNone, LevelNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String()+"_vs_"+tt.required.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.Satisfies(tt.required))
		})
	}
}

func TestParseAccessLevel(t *testing.T) {
	for _, s := range []string{"read", "write", "admin"} {
		level, err := ParseAccessLevel(s)
		require.NoError(t, err)
		assert.Equal(t, s, level.String())
	}

	// "none" is not grantable.
	_, err := ParseAccessLevel("none")
	assert.Error(t, err)
	_, err = ParseAccessLevel("owner")
	assert.Error(t, err)
}

func TestAccessLevelJSON(t *testing.T) {
	data, err := json.Marshal(LevelWrite)
	require.NoError(t, err)
	assert.Equal(t, `"write"`, string(data))

	var level AccessLevel
	require.NoError(t, json.Unmarshal([]byte(`"admin"`), &level))
	assert.Equal(t, LevelAdmin, level)

	require.NoError(t, json.Unmarshal([]byte(`"none"`), &level))
	assert.Equal(t, LevelNone, level)

	assert.Error(t, json.Unmarshal([]byte(`"root"`), &level))
}
