package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/shift-rota/pkg/types"
)

func testRules() Rules {
	return Rules{
		ProtectedPositions: []types.Position{"bulk", "line loading"},
		RestrictedWorkers:  []string{"Imelda", "Natalie"},
	}
}

func TestIsEligible(t *testing.T) {
	rules := testRules()

	testCases := []struct {
		name     string
		worker   types.Worker
		position types.Position
		want     bool
	}{
		{"plain worker", types.Worker{Name: "Joseph"}, "bulk", true},
		{"excluded position", types.Worker{Name: "Joseph", Exclusions: []types.Position{"wrap"}}, "wrap", false},
		{"restricted on protected", types.Worker{Name: "Imelda"}, "bulk", false},
		{"restricted name with padding", types.Worker{Name: "  natalie "}, "line loading", false},
		{"restricted on open position", types.Worker{Name: "Imelda"}, "flow", true},
		{"locked to other position", types.Worker{Name: "Sid", LockedTo: "val"}, "wrap", false},
		{"locked to own position", types.Worker{Name: "Sid", LockedTo: "val"}, "val", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rules.IsEligible(tc.worker, tc.position))
		})
	}
}

func TestIsEligible_Deterministic(t *testing.T) {
	rules := testRules()
	w := types.Worker{Name: "Natalie", Exclusions: []types.Position{"wrap"}}

	for i := 0; i < 10; i++ {
		assert.False(t, rules.IsEligible(w, "bulk"))
		assert.True(t, rules.IsEligible(w, "flow"))
	}
}

func TestNormalize(t *testing.T) {
	catalog := types.Catalog{
		Positions: []types.Position{"bulk", "line loading", "flow"},
		Days:      []types.Day{"Mon"},
	}

	rules, err := Rules{ProtectedPositions: []types.Position{"Line-Loading", "BULK"}}.Normalize(catalog)
	require.NoError(t, err)
	assert.Equal(t, []types.Position{"line loading", "bulk"}, rules.ProtectedPositions)

	_, err = Rules{ProtectedPositions: []types.Position{"forklift"}}.Normalize(catalog)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
