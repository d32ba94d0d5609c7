package ledger

import (
	"slices"

	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// State plain-data form of a Ledger, used by the snapshot store
type State struct {
	Capacity int                                       `json:"capacity"`
	Tracked  []types.Position                          `json:"tracked"`
	Weeks    []Week                                    `json:"weeks"`
	Counts   map[types.WorkerID]map[types.Position]int `json:"counts"`
	Known    []types.WorkerID                          `json:"known"`
}

// State exports a deep copy of the ledger.
func (l *Ledger) State() State {
	weeks := make([]Week, len(l.weeks))
	for i, wk := range l.weeks {
		weeks[i] = Week{ID: wk.ID, RecordedAt: wk.RecordedAt, Schedule: wk.Schedule.Clone()}
	}
	counts := make(map[types.WorkerID]map[types.Position]int, len(l.counts))
	for id, row := range l.counts {
		cp := make(map[types.Position]int, len(row))
		for p, n := range row {
			cp[p] = n
		}
		counts[id] = cp
	}
	return State{
		Capacity: l.capacity,
		Tracked:  append([]types.Position(nil), l.tracked...),
		Weeks:    weeks,
		Counts:   counts,
		Known:    append([]types.WorkerID(nil), l.known...),
	}
}

// Restore rebuilds a ledger from exported state. The tracked positions and
// capacity of the restoring process win over the stored ones: weeks beyond
// capacity are evicted oldest-first and counts for positions no longer
// tracked are dropped. Negative stored counts are clamped to zero.
func Restore(st State, tracked []types.Position, capacity int) *Ledger {
	l := New(tracked, capacity)
	for _, wk := range st.Weeks {
		l.weeks = append(l.weeks, Week{ID: wk.ID, RecordedAt: wk.RecordedAt, Schedule: wk.Schedule.Clone()})
	}
	if over := len(l.weeks) - l.capacity; over > 0 {
		l.weeks = l.weeks[over:]
	}

	ids := append([]types.WorkerID(nil), st.Known...)
	for id := range st.Counts {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		row := l.row(id)
		for _, p := range l.tracked {
			if n := st.Counts[id][p]; n > 0 {
				row[p] = n
			}
		}
	}
	return l
}
