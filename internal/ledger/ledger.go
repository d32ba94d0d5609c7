// ============================================================================
// History Ledger
// ============================================================================
//
// Package: internal/ledger
// Purpose: bounded FIFO of past weekly schedules plus the derived
//          worker -> position -> weeks-worked counter.
//
// Counting rules:
//   - RecordWeek bumps a worker's count for a position at most once per
//     week, however many days they worked it.
//   - AdjustOnMove applies the -1/+1 delta of a manual move.
//   - Untracked positions (the off bucket) are never counted.
//   - Counts never go below zero.
//
// A Ledger is owned by its caller and is not safe for concurrent use.
// ============================================================================

package ledger

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// DefaultCapacity number of weeks retained when none is configured
const DefaultCapacity = 6

// Week a retained schedule
type Week struct {
	ID         string         `json:"id"`
	RecordedAt int64          `json:"recorded_at"` // Unix milliseconds
	Schedule   types.Schedule `json:"schedule"`
}

// Ledger history of generated weeks
type Ledger struct {
	capacity int
	tracked  []types.Position
	weeks    []Week
	counts   map[types.WorkerID]map[types.Position]int
	known    []types.WorkerID // insertion order, for stable reporting
}

// New creates an empty ledger over the tracked positions.
func New(tracked []types.Position, capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		tracked:  append([]types.Position(nil), tracked...),
		counts:   make(map[types.WorkerID]map[types.Position]int),
	}
}

// Capacity returns the number of retained weeks.
func (l *Ledger) Capacity() int { return l.capacity }

// Len returns the number of weeks currently retained.
func (l *Ledger) Len() int { return len(l.weeks) }

// Weeks returns the retained weeks, oldest first.
func (l *Ledger) Weeks() []Week {
	out := make([]Week, len(l.weeks))
	copy(out, l.weeks)
	return out
}

// Register makes workers known so the counts table carries a row for them
// even before they were ever scheduled.
func (l *Ledger) Register(ids ...types.WorkerID) {
	for _, id := range ids {
		l.row(id)
	}
}

// RecentlyWorked reports whether id appears under p on any day of the last
// lookbackWeeks retained weeks.
func (l *Ledger) RecentlyWorked(id types.WorkerID, p types.Position, lookbackWeeks int) bool {
	if lookbackWeeks <= 0 {
		return false
	}
	start := len(l.weeks) - lookbackWeeks
	if start < 0 {
		start = 0
	}
	for _, wk := range l.weeks[start:] {
		for _, d := range wk.Schedule.Days {
			if wk.Schedule.Assigned(p, d, id) {
				return true
			}
		}
	}
	return false
}

// NewWeek wraps s as a retainable week with a fresh id. The schedule is
// copied.
func NewWeek(s types.Schedule) Week {
	return Week{
		ID:         uuid.NewString(),
		RecordedAt: time.Now().UnixMilli(),
		Schedule:   s.Clone(),
	}
}

// RecordWeek appends s (evicting the oldest week at capacity) and bumps the
// counts once per worker per tracked position.
func (l *Ledger) RecordWeek(s types.Schedule) Week {
	wk := NewWeek(s)
	l.Import(wk)
	return wk
}

// Import appends an already-built week, e.g. one read back from the
// journal, with the same counting as RecordWeek.
func (l *Ledger) Import(wk Week) {
	wk.Schedule = wk.Schedule.Clone()
	l.weeks = append(l.weeks, wk)
	if over := len(l.weeks) - l.capacity; over > 0 {
		l.weeks = append([]Week(nil), l.weeks[over:]...)
	}

	s := wk.Schedule
	for _, p := range l.tracked {
		seen := make(map[types.WorkerID]bool)
		for _, d := range s.Days {
			for _, a := range s.At(p, d) {
				if seen[a.ID] {
					continue
				}
				seen[a.ID] = true
				l.row(a.ID)[p]++
			}
		}
	}
}

// AdjustOnMove applies a manual move's delta: from -1 (floored at 0),
// to +1. Untracked positions are skipped on either side.
func (l *Ledger) AdjustOnMove(id types.WorkerID, from, to types.Position) {
	if from == to {
		return
	}
	row := l.row(id)
	if l.isTracked(from) && row[from] > 0 {
		row[from]--
	}
	if l.isTracked(to) {
		row[to]++
	}
}

// Count returns id's weeks-worked count for p.
func (l *Ledger) Count(id types.WorkerID, p types.Position) int {
	return l.counts[id][p]
}

// CountsTable returns a copy of the counters with every known worker ×
// every tracked position present.
func (l *Ledger) CountsTable() map[types.WorkerID]map[types.Position]int {
	out := make(map[types.WorkerID]map[types.Position]int, len(l.counts))
	for _, id := range l.known {
		row := make(map[types.Position]int, len(l.tracked))
		for _, p := range l.tracked {
			row[p] = l.counts[id][p]
		}
		out[id] = row
	}
	return out
}

// KnownWorkers returns every worker the ledger has a row for, in the order
// they were first seen.
func (l *Ledger) KnownWorkers() []types.WorkerID {
	return append([]types.WorkerID(nil), l.known...)
}

func (l *Ledger) isTracked(p types.Position) bool {
	return slices.Contains(l.tracked, p)
}

func (l *Ledger) row(id types.WorkerID) map[types.Position]int {
	row, ok := l.counts[id]
	if !ok {
		row = make(map[types.Position]int, len(l.tracked))
		for _, p := range l.tracked {
			row[p] = 0
		}
		l.counts[id] = row
		l.known = append(l.known, id)
	}
	return row
}
