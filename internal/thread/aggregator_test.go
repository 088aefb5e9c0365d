package thread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyholm1234/DOF.not/internal/observation"
	"github.com/thyholm1234/DOF.not/internal/species"
)

var base = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

func event(id string, minutes int, count *int) observation.Observation {
	ts := base.Add(time.Duration(minutes) * time.Minute)
	return observation.Observation{
		ThreadKey: "sangsvane-amager-strand",
		ThreadID:  id,
		Species:   "Sangsvane",
		Locality:  "Amager Strand",
		Region:    "kobenhavn",
		Timestamp: &ts,
		Count:     count,
		DayKey:    "2025-01-10",
	}
}

func ptr(n int) *int { return &n }

func TestWithdrawalScenario(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil)
	e1 := event("t1", 0, ptr(1))
	e2 := event("t1", 10, ptr(3))
	e3 := event("t1", 20, nil)
	e3.Kind = observation.KindWithdrawal

	agg.AddAll([]observation.Observation{e1, e2, e3})

	th, ok := agg.Get("t1")
	require.True(t, ok)
	assert.Equal(t, StatusWithdrawn, th.Status)
	require.NotNil(t, th.MaxCount)
	assert.Equal(t, 3, *th.MaxCount)
	assert.Equal(t, 3, th.EventCount)
	assert.Equal(t, *e2.Timestamp, *th.DisplayTimestamp())
	assert.Equal(t, *e3.Timestamp, *th.LastTimestamp)
	assert.Equal(t, *e1.Timestamp, *th.FirstTimestamp)

	withdrawn := agg.Withdrawn()
	require.Len(t, withdrawn, 1)
	assert.Equal(t, "t1", withdrawn[0].ID)
	assert.Empty(t, agg.Observations())
}

func TestZeroCountWithdraws(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil)
	agg.AddAll([]observation.Observation{
		event("t1", 0, ptr(2)),
		event("t1", 5, ptr(0)),
	})

	th, _ := agg.Get("t1")
	assert.True(t, th.Withdrawn())
	assert.Equal(t, 0, *th.LastCount)
	assert.Equal(t, 2, *th.MaxCount)
}

func TestCorrectionKeepsStatus(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil)
	first := event("t1", 0, ptr(2))
	first.ObservationID = "100"
	fix := event("t1", 5, ptr(4))
	fix.ObservationID = "100"
	fix.Behavior = "Rastende"

	agg.AddAll([]observation.Observation{first, fix})

	th, _ := agg.Get("t1")
	assert.Equal(t, StatusActive, th.Status)
	assert.Equal(t, 1, th.EventCount, "corrections are not counted as events")
	assert.Equal(t, 1, th.Corrections)
	assert.Equal(t, 4, *th.LastCount)
	assert.Equal(t, "Rastende", th.LastBehavior)
	assert.Equal(t, *fix.Timestamp, *th.DisplayTimestamp())

	// A correction on a withdrawn thread keeps it withdrawn
	gone := event("t1", 10, nil)
	gone.Kind = observation.KindWithdrawal
	agg.Add(&gone)
	late := event("t1", 15, ptr(5))
	late.Kind = observation.KindCorrection
	agg.Add(&late)

	assert.True(t, th.Withdrawn())
	assert.Equal(t, *fix.Timestamp, *th.DisplayTimestamp())
	assert.Equal(t, 5, *th.MaxCount)
}

func TestReactivation(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil)
	gone := event("t1", 5, nil)
	gone.Kind = observation.KindWithdrawal
	agg.AddAll([]observation.Observation{event("t1", 0, ptr(1)), gone, event("t1", 10, ptr(2))})

	th, _ := agg.Get("t1")
	assert.Equal(t, StatusActive, th.Status)
	assert.Equal(t, 3, th.EventCount)
	assert.Empty(t, agg.Withdrawn())
	assert.Len(t, agg.Observations(), 1)
}

func TestThreadsOrderAndCategory(t *testing.T) {
	t.Parallel()

	table := species.NewTable(map[string]species.Category{"Sangsvane": species.CategorySUB})
	agg := NewAggregator(table)

	older := event("old", 0, ptr(1))
	newer := event("new", 30, ptr(1))
	newer.Species = "Hvid Stork"
	newer.Category = species.CategorySU
	noTime := event("none", 0, ptr(1))
	noTime.Timestamp = nil

	agg.AddAll([]observation.Observation{noTime, older, newer})

	threads := agg.Threads()
	require.Len(t, threads, 3)
	assert.Equal(t, []string{"new", "old", "none"}, []string{threads[0].ID, threads[1].ID, threads[2].ID})
	assert.Equal(t, species.CategorySUB, threads[1].LastCategory, "table wins")
	assert.Equal(t, species.CategorySU, threads[0].LastCategory, "literal used for unknown species")

	summary := threads[0].Observation()
	assert.Equal(t, "new", summary.ThreadID)
	assert.Equal(t, species.CategorySU, summary.LiteralCategory())
}

func TestDerivedThreadKey(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil)
	a := event("", 0, ptr(1))
	b := event("", 1, ptr(2))
	agg.AddAll([]observation.Observation{a, b})
	assert.Equal(t, 1, agg.Len())

	orphan := observation.Observation{Species: "x"}
	assert.Nil(t, agg.Add(&orphan))
}
