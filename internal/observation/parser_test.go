package observation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyholm1234/DOF.not/internal/species"
)

const sampleLine = "[su-kobenhavn] ny obs 2025-01-10 08:15:00 · [su] · 3 Sangsvane · Fouragerer · Amager Strand · DOF · Jens Hansen"

func TestParseLineScenario(t *testing.T) {
	t.Parallel()

	obs, ok := ParseLine(sampleLine)
	require.True(t, ok)

	assert.Equal(t, species.CategorySU, obs.Source)
	assert.Equal(t, "kobenhavn", obs.Region)
	require.NotNil(t, obs.Count)
	assert.Equal(t, 3, *obs.Count)
	assert.Equal(t, "Sangsvane", obs.Species)
	assert.Equal(t, "Fouragerer", obs.Behavior)
	assert.Equal(t, "Amager Strand", obs.Locality)
	assert.Equal(t, "DOF", obs.Organisation)
	assert.Equal(t, "Jens Hansen", obs.Observer)
	assert.Equal(t, "sangsvane-amager-strand", obs.ThreadKey)
	assert.Equal(t, sampleLine, obs.RawText)
	assert.Nil(t, obs.Coordinates)

	require.NotNil(t, obs.Timestamp)
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	assert.True(t, obs.Timestamp.Equal(time.Date(2025, 1, 10, 8, 15, 0, 0, loc)))
	assert.Equal(t, "2025-01-10", obs.DayKey)
}

func TestParseLineDeterministic(t *testing.T) {
	t.Parallel()

	a, okA := ParseLine(sampleLine)
	b, okB := ParseLine(sampleLine)
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b)
}

func TestParseLineRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"six fields", "[su-fyn] 2025-01-10 08:15:00 · [su] · 3 Sangsvane · Fouragerer · Amager · DOF"},
		{"no header key", "2025-01-10 08:15:00 · [su] · 3 Sangsvane · a · b · c · d"},
		{"unknown source", "[xx-fyn] 2025-01-10 08:15:00 · [alm] · 3 Sangsvane · a · b · c · d"},
		{"empty species", "[su-fyn] 2025-01-10 08:15:00 · [su] ·  · a · b · c · d"},
		{"wrong delimiter", "[su-fyn] 2025-01-10 08:15:00 | [su] | 3 Sangsvane | a | b | c | d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, ok := ParseLine(tt.line)
			assert.False(t, ok)
		})
	}
}

func TestParseLineVariants(t *testing.T) {
	t.Parallel()

	t.Run("source tag wins over key", func(t *testing.T) {
		t.Parallel()
		obs, ok := ParseLine("[su-fyn] 2025-01-10 08:15:00 · [SUB] · 2 Hvinand · a · b · c · d")
		require.True(t, ok)
		assert.Equal(t, species.CategorySUB, obs.Source)
		assert.Equal(t, "fyn", obs.Region)
	})

	t.Run("key source used without tag", func(t *testing.T) {
		t.Parallel()
		obs, ok := ParseLine("[sub-fyn] 2025-01-10 08:15:00 · ingen · 2 Hvinand · a · b · c · d")
		require.True(t, ok)
		assert.Equal(t, species.CategorySUB, obs.Source)
	})

	t.Run("no count", func(t *testing.T) {
		t.Parallel()
		obs, ok := ParseLine("[su-fyn] 2025-01-10 08:15:00 · [su] · Sort Glente · a · b · c · d")
		require.True(t, ok)
		assert.Nil(t, obs.Count)
		assert.Equal(t, "Sort Glente", obs.Species)
		assert.Empty(t, obs.CountText)
	})

	t.Run("oversized count keeps species name", func(t *testing.T) {
		t.Parallel()
		obs, ok := ParseLine("[su-kobenhavn] x 2025-01-10 08:15:00 · [su] · 99999999999999999999 Sangsvane · a · b · c · d")
		require.True(t, ok)
		assert.Nil(t, obs.Count)
		assert.Equal(t, "Sangsvane", obs.Species)
		assert.Equal(t, "sangsvane", species.Normalize(obs.Species))
		assert.Equal(t, "99999999999999999999", obs.CountText)
	})

	t.Run("bad timestamp keeps line", func(t *testing.T) {
		t.Parallel()
		obs, ok := ParseLine("[su-fyn] 2025-13-40 99:15:00 · [su] · 1 Hærfugl · a · b · c · d")
		require.True(t, ok)
		assert.Nil(t, obs.Timestamp)
		assert.Empty(t, obs.DayKey)
	})

	t.Run("last coordinate field wins", func(t *testing.T) {
		t.Parallel()
		obs, ok := ParseLine("[su-fyn] 2025-01-10 08:15:00 · [su] · 1 Hærfugl · a · Mose 10, 20 · c · d · 12.5678, 55.6789")
		require.True(t, ok)
		require.NotNil(t, obs.Coordinates)
		assert.InDelta(t, 12.5678, obs.Coordinates.Longitude, 1e-9)
		assert.InDelta(t, 55.6789, obs.Coordinates.Latitude, 1e-9)
	})

	t.Run("out of range pair ignored", func(t *testing.T) {
		t.Parallel()
		obs, ok := ParseLine("[su-fyn] 2025-01-10 08:15:00 · [su] · 1 Hærfugl · a · 12.5, 55.6 · c · d · 500, 600")
		require.True(t, ok)
		require.NotNil(t, obs.Coordinates)
		assert.InDelta(t, 12.5, obs.Coordinates.Longitude, 1e-9)
	})
}

func TestParseLines(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		sampleLine,
		"",
		"garbage",
		"[sub-fyn] 2025-01-10 09:00:00 · [sub] · 12 Bjergand · Rastende · Odense Fjord · DOF Fyn · Anna Berg",
	}, "\n")

	res, err := NewParser(time.UTC).ParseLines(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, res.Observations, 2)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "Bjergand", res.Observations[1].Species)
	assert.Equal(t, time.UTC, res.Observations[1].Timestamp.Location())
}

func TestParseCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"3", 3, true},
		{"ca. 40", 40, true},
		{"2-3", 3, true},
		{"1,5", 1, true},
		{"0", 0, true},
		{"", 0, false},
		{"mange", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseCount(tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
