// ============================================================================
// Manual Reassignment
// ============================================================================
//
// Package: internal/reassign
// Purpose: apply one slot-to-slot move of a worker to an existing schedule
//          and keep the ledger counts in step.
//
// Outcomes:
//   moved     - the worker now sits at the target slot
//   no-op     - nobody at the source index; schedule and ledger untouched
//   rejected  - the mover may not take the target slot; nothing changes
//
// The off bucket is a parking slot: anyone may be parked there, and it is
// never counted in either direction.
// ============================================================================

package reassign

import (
	"fmt"
	"slices"

	"github.com/ChuLiYu/shift-rota/internal/eligibility"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// Outcome result of a move request
type Outcome string

const (
	OutcomeMoved    Outcome = "moved"
	OutcomeNoOp     Outcome = "noop"
	OutcomeRejected Outcome = "rejected"
)

// Move one manual drag from a source slot index to a target slot index
type Move struct {
	FromPosition types.Position `json:"from_position"`
	FromDay      types.Day      `json:"from_day"`
	FromIndex    int            `json:"from_index"`
	ToPosition   types.Position `json:"to_position"`
	ToDay        types.Day      `json:"to_day"`
	ToIndex      int            `json:"to_index"` // clamped to the target list
}

func (m Move) String() string {
	return fmt.Sprintf("%s/%s[%d] -> %s/%s[%d]", m.FromPosition, m.FromDay, m.FromIndex, m.ToPosition, m.ToDay, m.ToIndex)
}

// Result what ApplyMove did
type Result struct {
	Schedule types.Schedule `json:"schedule"`
	Outcome  Outcome        `json:"outcome"`
	Worker   types.Assignee `json:"worker,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// Adjuster the ledger side of a move
type Adjuster interface {
	AdjustOnMove(id types.WorkerID, from, to types.Position)
}

// Handler applies manual moves against a fixed catalog, rule set and roster.
type Handler struct {
	catalog types.Catalog
	rules   eligibility.Rules
	roster  map[types.WorkerID]types.Worker
}

// NewHandler creates a handler. The roster is used to look up the mover's
// exclusions and lock; a mover missing from it is checked by name only.
func NewHandler(catalog types.Catalog, rules eligibility.Rules, roster []types.Worker) *Handler {
	byID := make(map[types.WorkerID]types.Worker, len(roster))
	for _, w := range roster {
		byID[w.ID] = w
	}
	return &Handler{catalog: catalog, rules: rules, roster: byID}
}

// ApplyMove moves the worker at (FromPosition, FromDay)[FromIndex] to
// (ToPosition, ToDay) at ToIndex.
//
// Parameters:
//   - s: current schedule; never mutated
//   - m: the move; labels are matched case- and punctuation-insensitively
//   - ledger: receives AdjustOnMove when the position changes (may be nil)
//
// Returns:
//   - Result: the new schedule value and the outcome
//   - error: *types.ConfigurationError for labels outside the catalog or
//     a target day the schedule does not cover
func (h *Handler) ApplyMove(s types.Schedule, m Move, ledger Adjuster) (Result, error) {
	m, err := h.resolve(m)
	if err != nil {
		return Result{}, err
	}
	if !slices.Contains(s.Days, m.ToDay) {
		return Result{}, &types.ConfigurationError{Kind: "day", Label: string(m.ToDay), Where: "not in the current schedule"}
	}

	src := s.At(m.FromPosition, m.FromDay)
	if m.FromIndex < 0 || m.FromIndex >= len(src) {
		return Result{Schedule: s, Outcome: OutcomeNoOp, Reason: "nothing to move"}, nil
	}
	mover := src[m.FromIndex]

	if reason := h.check(s, m, mover); reason != "" {
		return Result{Schedule: s, Outcome: OutcomeRejected, Worker: mover, Reason: reason}, nil
	}

	out := s.Clone()
	row := out.Slots[m.FromPosition][m.FromDay]
	out.Slots[m.FromPosition][m.FromDay] = slices.Delete(row, m.FromIndex, m.FromIndex+1)

	dst := out.At(m.ToPosition, m.ToDay)
	at := min(max(m.ToIndex, 0), len(dst))
	if out.Slots[m.ToPosition] == nil {
		out.Slots[m.ToPosition] = make(map[types.Day][]types.Assignee)
	}
	out.Slots[m.ToPosition][m.ToDay] = slices.Insert(dst, at, mover)

	if ledger != nil && m.FromPosition != m.ToPosition {
		ledger.AdjustOnMove(mover.ID, m.FromPosition, m.ToPosition)
	}
	return Result{Schedule: out, Outcome: OutcomeMoved, Worker: mover}, nil
}

func (h *Handler) resolve(m Move) (Move, error) {
	var err error
	if m.FromPosition, err = h.catalog.ResolvePosition(string(m.FromPosition)); err != nil {
		return Move{}, err
	}
	if m.ToPosition, err = h.catalog.ResolvePosition(string(m.ToPosition)); err != nil {
		return Move{}, err
	}
	if m.FromDay, err = h.catalog.ResolveDay(string(m.FromDay)); err != nil {
		return Move{}, err
	}
	if m.ToDay, err = h.catalog.ResolveDay(string(m.ToDay)); err != nil {
		return Move{}, err
	}
	return m, nil
}

// check returns a rejection reason, or "" when the move may go ahead.
func (h *Handler) check(s types.Schedule, m Move, mover types.Assignee) string {
	parking := h.catalog.OffBucket != "" && m.ToPosition == h.catalog.OffBucket
	if !parking && m.ToPosition != m.FromPosition {
		w, ok := h.roster[mover.ID]
		if !ok {
			w = types.Worker{ID: mover.ID, Name: mover.Name}
		}
		if !h.rules.IsEligible(w, m.ToPosition) {
			return fmt.Sprintf("%s is not eligible for %s", mover.Name, m.ToPosition)
		}
	}

	for _, p := range s.PositionsOf(m.ToDay, mover.ID) {
		if m.ToDay == m.FromDay && p == m.FromPosition {
			continue // the slot being vacated
		}
		return fmt.Sprintf("%s already booked in %s on %s", mover.Name, p, m.ToDay)
	}
	return ""
}
