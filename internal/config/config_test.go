package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerConfigNumericCoercion(t *testing.T) {
	raw := map[string]any{
		"_numeric":                 []any{"NO_REPEAT_ASSETS_TIME", "WAIT_INTERVAL"},
		"NO_REPEAT_ASSETS_TIME":    "3600",
		"WAIT_INTERVAL":            "90.5",
		"ALLOW_REPEATS_IN_STOPSET": true,
	}
	sc := ParseServerConfig(raw)
	assert.Equal(t, int64(3600), sc.NoRepeatAssetsTime)
	assert.Equal(t, int64(90), sc.WaitInterval)
	assert.True(t, sc.AllowRepeatsInStopset)
}

func TestParseServerConfigMalformedNumeric(t *testing.T) {
	raw := map[string]any{
		"_numeric":              []any{"NO_REPEAT_ASSETS_TIME"},
		"NO_REPEAT_ASSETS_TIME": "not a number",
	}
	sc := ParseServerConfig(raw)
	assert.Zero(t, sc.NoRepeatAssetsTime, "garbage coerces to disabled, not a crash")
}

func TestParseServerConfigMissingKeys(t *testing.T) {
	sc := ParseServerConfig(map[string]any{})
	assert.Zero(t, sc.NoRepeatAssetsTime)
	assert.False(t, sc.AllowRepeatsInStopset)
	assert.False(t, sc.Autoplay)
	assert.Equal(t, BoundaryDay, sc.EndDatePriorityBoundary, "the boundary always normalizes")
}

func TestParseServerConfigBoundary(t *testing.T) {
	sc := ParseServerConfig(map[string]any{"END_DATE_PRIORITY_BOUNDARY": "24h"})
	assert.Equal(t, Boundary24h, sc.EndDatePriorityBoundary)

	sc = ParseServerConfig(map[string]any{"END_DATE_PRIORITY_BOUNDARY": "fortnight"})
	assert.Equal(t, BoundaryDay, sc.EndDatePriorityBoundary)
}

func TestStoreOverridesLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.json")
	data, err := json.Marshal(map[string]any{"WAIT_INTERVAL": 120})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s := NewStore()
	s.SetServer(ServerConfig{WaitInterval: 60, Autoplay: true})
	s.loadOverrides(path)

	eff := s.Current()
	assert.Equal(t, int64(120), eff.WaitInterval, "the local override wins")
	assert.True(t, eff.Autoplay, "untouched keys keep their server values")
}

func TestStoreOnChange(t *testing.T) {
	s := NewStore()
	var got []int64
	s.OnChange(func(sc ServerConfig) { got = append(got, sc.WaitInterval) })

	s.SetServer(ServerConfig{WaitInterval: 10})
	s.SetServer(ServerConfig{WaitInterval: 20})
	assert.Equal(t, []int64{10, 20}, got)
}
