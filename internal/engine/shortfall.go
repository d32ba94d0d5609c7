package engine

import (
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// Shortfall a slot left under its headcount target
type Shortfall struct {
	Position types.Position `json:"position"`
	Day      types.Day      `json:"day"`
	Required int            `json:"required"`
	Assigned int            `json:"assigned"`
}

// Missing returns how many workers the slot still lacks.
func (s Shortfall) Missing() int {
	return s.Required - s.Assigned
}

// Shortfalls diffs s against needs over the catalog's tracked positions and
// the schedule's days, in catalog order.
func Shortfalls(c types.Catalog, s types.Schedule, needs types.NeedMatrix) []Shortfall {
	var out []Shortfall
	for _, p := range c.Positions {
		for _, d := range s.Days {
			required := needs.Get(p, d)
			if assigned := s.Count(p, d); assigned < required {
				out = append(out, Shortfall{Position: p, Day: d, Required: required, Assigned: assigned})
			}
		}
	}
	return out
}
