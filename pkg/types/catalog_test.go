package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() Catalog {
	return Catalog{
		Positions: []Position{"direct sorting", "repack", "trade in", "VAL"},
		OffBucket: "off",
		Days:      []Day{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	}
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "repack", NormalizeLabel("Re-Pack"))
	assert.Equal(t, "tradein", NormalizeLabel("  Trade-in "))
	assert.Equal(t, "directsorting", NormalizeLabel("Direct Sorting"))
	assert.Equal(t, "", NormalizeLabel("--"))
}

func TestResolvePosition(t *testing.T) {
	c := testCatalog()

	p, err := c.ResolvePosition("Re-pack")
	require.NoError(t, err)
	assert.Equal(t, Position("repack"), p)

	p, err = c.ResolvePosition("val")
	require.NoError(t, err)
	assert.Equal(t, Position("VAL"), p)

	p, err = c.ResolvePosition("OFF")
	require.NoError(t, err)
	assert.Equal(t, Position("off"), p, "the off bucket resolves too")

	_, err = c.ResolvePosition("dock")
	assert.ErrorIs(t, err, ErrConfiguration)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "position", cfgErr.Kind)
	assert.Equal(t, "dock", cfgErr.Label)
}

func TestActiveDays(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, []Day{"Mon", "Tue", "Wed", "Thu", "Fri"}, c.ActiveDays(5))
	assert.Len(t, c.ActiveDays(6), 6)
	assert.Len(t, c.ActiveDays(0), 6)
	assert.Len(t, c.ActiveDays(9), 6)

	days := c.ActiveDays(2)
	days[0] = "Sun"
	assert.Equal(t, Day("Mon"), c.Days[0], "result does not alias the catalog")
}

func TestAllPositionsAndTracking(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, []Position{"direct sorting", "repack", "trade in", "VAL", "off"}, c.AllPositions())
	assert.True(t, c.IsTracked("repack"))
	assert.False(t, c.IsTracked("off"))

	c.OffBucket = ""
	assert.Len(t, c.AllPositions(), 4)
}

func TestNormalizeNeeds(t *testing.T) {
	c := testCatalog()

	out, err := c.NormalizeNeeds(NeedMatrix{"Re-Pack": {"mon": 2, "TUE": 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Get("repack", "Mon"))
	assert.Equal(t, 1, out.Get("repack", "Tue"))
	assert.Equal(t, 0, out.Get("repack", "Wed"), "missing entries default to 0")

	_, err = c.NormalizeNeeds(NeedMatrix{"off": {"Mon": 1}})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = c.NormalizeNeeds(NeedMatrix{"repack": {"Sunday": 1}})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "day", cfgErr.Kind)
}

func TestNeedMatrixMaxAcross(t *testing.T) {
	n := NeedMatrix{}
	n.Set("repack", "Mon", 1)
	n.Set("repack", "Wed", 3)
	n.Set("repack", "Fri", 2)

	assert.Equal(t, 3, n.MaxAcross("repack", []Day{"Mon", "Wed", "Fri"}))
	assert.Equal(t, 2, n.MaxAcross("repack", []Day{"Mon", "Fri"}), "only the given days count")
	assert.Equal(t, 0, n.MaxAcross("VAL", []Day{"Mon", "Wed"}))
	assert.Equal(t, 0, NeedMatrix(nil).MaxAcross("repack", []Day{"Mon"}))
}

func TestNormalizeWorker(t *testing.T) {
	c := testCatalog()
	w := Worker{
		ID:           "7",
		Name:         "Rocha",
		Preferences:  []Position{"VAL", "Anything", "Trade-in"},
		Exclusions:   []Position{"Direct Sorting"},
		LockedTo:     "val",
		Availability: map[Day]bool{"sat": false},
	}

	out, err := c.NormalizeWorker(w)
	require.NoError(t, err)
	assert.Equal(t, []Position{"VAL", AnyPosition, "trade in"}, out.Preferences)
	assert.Equal(t, []Position{"direct sorting"}, out.Exclusions)
	assert.Equal(t, Position("VAL"), out.LockedTo)
	assert.Equal(t, map[Day]bool{"Sat": false}, out.Availability)

	// Input untouched
	assert.Equal(t, Position("val"), w.LockedTo)
	assert.Equal(t, Position("Trade-in"), w.Preferences[2])

	w.Preferences = []Position{"forklift"}
	_, err = c.NormalizeWorker(w)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Rocha", cfgErr.Where)
	assert.Contains(t, err.Error(), "Rocha")
}

func TestWorkerHelpers(t *testing.T) {
	w := Worker{
		Preferences:  []Position{"repack", AnyPosition},
		Availability: map[Day]bool{"Mon": false},
	}
	assert.Equal(t, 1, w.PreferenceRank("repack"))
	assert.Equal(t, 2, w.PreferenceRank("trade in"), "the wildcard matches at its rank")
	assert.False(t, w.AvailableOn("Mon"))
	assert.True(t, w.AvailableOn("Tue"), "missing availability counts as available")

	w.Unavailable = true
	assert.False(t, w.AvailableOn("Tue"))

	assert.Equal(t, UnlistedRank, Worker{}.PreferenceRank("repack"))
}

func TestScheduleClone(t *testing.T) {
	s := NewSchedule([]Position{"repack", "off"}, []Day{"Mon", "Tue"})
	s.Append("repack", "Mon", Assignee{ID: "1", Name: "Denise"})

	cp := s.Clone()
	cp.Append("repack", "Mon", Assignee{ID: "2", Name: "Joseph"})

	assert.Equal(t, 1, s.Count("repack", "Mon"))
	assert.Equal(t, 2, cp.Count("repack", "Mon"))
	assert.True(t, s.Assigned("repack", "Mon", "1"))
	assert.True(t, s.BookedOn("Mon", "1"))
	assert.False(t, s.BookedOn("Tue", "1"))
	assert.Equal(t, []Position{"repack"}, s.PositionsOf("Mon", "1"))
	assert.NotNil(t, cp.At("off", "Tue"))
	assert.True(t, Schedule{}.IsEmpty())
	assert.False(t, s.IsEmpty())
}
