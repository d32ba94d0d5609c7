// Package types defines the core domain model shared by the shift-rota
// engine, its ledger and every caller-side collaborator.
package types

import (
	"slices"
	"strings"
)

// WorkerID stable worker identity
type WorkerID string

// Position a slot label drawn from the configured catalog
type Position string

// Day a weekday label drawn from the configured catalog
type Day string

// AnyPosition is the wildcard preference label; it matches every position
// at the rank it is listed on.
const AnyPosition Position = "anything"

// UnlistedRank is the preference rank of a position the worker did not list.
const UnlistedRank = 99

// Worker a roster row
type Worker struct {
	ID           WorkerID     `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Preferences  []Position   `json:"preferences" yaml:"preferences"` // rank 1..3
	Exclusions   []Position   `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
	LockedTo     Position     `json:"locked_to,omitempty" yaml:"locked_to,omitempty"`
	Availability map[Day]bool `json:"availability,omitempty" yaml:"availability,omitempty"`
	Unavailable  bool         `json:"unavailable,omitempty" yaml:"unavailable,omitempty"` // whole cycle
}

// PreferenceRank returns the 1-based rank of p in the worker's preference
// list, or UnlistedRank when neither p nor the wildcard is listed.
func (w Worker) PreferenceRank(p Position) int {
	for i, pref := range w.Preferences {
		if pref == p || pref == AnyPosition {
			return i + 1
		}
	}
	return UnlistedRank
}

// AvailableOn reports whether the worker can be placed on d. A missing
// availability entry counts as available.
func (w Worker) AvailableOn(d Day) bool {
	if w.Unavailable {
		return false
	}
	if avail, ok := w.Availability[d]; ok {
		return avail
	}
	return true
}

// Excludes reports whether p is in the worker's exclusion set.
func (w Worker) Excludes(p Position) bool {
	return slices.Contains(w.Exclusions, p)
}

// IsLocked reports whether the worker is hard-locked to a position.
func (w Worker) IsLocked() bool {
	return w.LockedTo != ""
}

// Ref returns the schedule reference for the worker.
func (w Worker) Ref() Assignee {
	return Assignee{ID: w.ID, Name: w.Name}
}

// Assignee a worker reference stored in a schedule slot
type Assignee struct {
	ID   WorkerID `json:"id" yaml:"id"`
	Name string   `json:"name" yaml:"name"`
}

// NeedMatrix (position, day) -> required headcount
type NeedMatrix map[Position]map[Day]int

// Get returns the required headcount for a slot, 0 when unset.
func (n NeedMatrix) Get(p Position, d Day) int {
	if n == nil {
		return 0
	}
	v := n[p][d]
	if v < 0 {
		return 0
	}
	return v
}

// Set stores a headcount target.
func (n NeedMatrix) Set(p Position, d Day, v int) {
	if n[p] == nil {
		n[p] = make(map[Day]int)
	}
	n[p][d] = v
}

// MaxAcross returns the largest target for p across days.
func (n NeedMatrix) MaxAcross(p Position, days []Day) int {
	peak := 0
	for _, d := range days {
		if v := n.Get(p, d); v > peak {
			peak = v
		}
	}
	return peak
}

// Clone deep-copies the matrix.
func (n NeedMatrix) Clone() NeedMatrix {
	out := make(NeedMatrix, len(n))
	for p, days := range n {
		row := make(map[Day]int, len(days))
		for d, v := range days {
			row[d] = v
		}
		out[p] = row
	}
	return out
}

// NormalizeLabel folds a free-text label for comparison: lower case, with
// everything but letters and digits dropped ("Re-Pack" -> "repack").
func NormalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
