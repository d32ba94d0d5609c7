// Package eligibility decides whether a worker may ever fill a position.
package eligibility

import (
	"slices"
	"strings"

	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// Rules the static eligibility configuration.
//
// ProtectedPositions have a restricted population: any worker whose name is
// listed in RestrictedWorkers may not fill them.
type Rules struct {
	ProtectedPositions []types.Position `json:"protected_positions" yaml:"protected_positions"`
	RestrictedWorkers  []string         `json:"restricted_workers" yaml:"restricted_workers"`
}

// IsEligible reports whether w may fill p. It is total and side-effect free.
func (r Rules) IsEligible(w types.Worker, p types.Position) bool {
	if w.Excludes(p) {
		return false
	}
	if r.IsProtected(p) && r.IsRestricted(w.Name) {
		return false
	}
	if w.IsLocked() && w.LockedTo != p {
		return false
	}
	return true
}

// IsProtected reports whether p has a restricted population.
func (r Rules) IsProtected(p types.Position) bool {
	return slices.Contains(r.ProtectedPositions, p)
}

// IsRestricted reports whether name is on the restricted-worker list.
// Names compare trimmed and case-folded.
func (r Rules) IsRestricted(name string) bool {
	name = strings.TrimSpace(name)
	for _, n := range r.RestrictedWorkers {
		if strings.EqualFold(strings.TrimSpace(n), name) {
			return true
		}
	}
	return false
}

// Normalize resolves the protected position labels against c.
func (r Rules) Normalize(c types.Catalog) (Rules, error) {
	out := Rules{RestrictedWorkers: append([]string(nil), r.RestrictedWorkers...)}
	for _, label := range r.ProtectedPositions {
		p, err := c.ResolvePosition(string(label))
		if err != nil {
			return Rules{}, err
		}
		out.ProtectedPositions = append(out.ProtectedPositions, p)
	}
	return out, nil
}
