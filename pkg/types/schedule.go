package types

// Schedule a weekly grid of (position, day) -> ordered assignees.
//
// Order inside a slot only matters for manual reordering. A Schedule is a
// value: Clone before mutating one that somebody else holds.
type Schedule struct {
	Days  []Day                           `json:"days"`
	Slots map[Position]map[Day][]Assignee `json:"slots"`
}

// NewSchedule builds an empty grid for every position × day.
func NewSchedule(positions []Position, days []Day) Schedule {
	s := Schedule{
		Days:  append([]Day(nil), days...),
		Slots: make(map[Position]map[Day][]Assignee, len(positions)),
	}
	for _, p := range positions {
		row := make(map[Day][]Assignee, len(days))
		for _, d := range days {
			row[d] = []Assignee{}
		}
		s.Slots[p] = row
	}
	return s
}

// IsEmpty reports whether the schedule has never been shaped.
func (s Schedule) IsEmpty() bool {
	return len(s.Slots) == 0
}

// At returns the assignees of a slot (nil when the slot does not exist).
func (s Schedule) At(p Position, d Day) []Assignee {
	return s.Slots[p][d]
}

// Count returns the number of assignees in a slot.
func (s Schedule) Count(p Position, d Day) int {
	return len(s.Slots[p][d])
}

// HasSlot reports whether the grid carries (p, d).
func (s Schedule) HasSlot(p Position, d Day) bool {
	row, ok := s.Slots[p]
	if !ok {
		return false
	}
	_, ok = row[d]
	return ok
}

// Append adds a worker at the end of a slot, creating it if needed.
func (s Schedule) Append(p Position, d Day, a Assignee) {
	row, ok := s.Slots[p]
	if !ok {
		row = make(map[Day][]Assignee)
		s.Slots[p] = row
	}
	row[d] = append(row[d], a)
}

// Assigned reports whether id sits in slot (p, d).
func (s Schedule) Assigned(p Position, d Day, id WorkerID) bool {
	for _, a := range s.Slots[p][d] {
		if a.ID == id {
			return true
		}
	}
	return false
}

// PositionsOf returns the positions id occupies on d.
func (s Schedule) PositionsOf(d Day, id WorkerID) []Position {
	var out []Position
	for p, row := range s.Slots {
		for _, a := range row[d] {
			if a.ID == id {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// BookedOn reports whether id appears anywhere on d.
func (s Schedule) BookedOn(d Day, id WorkerID) bool {
	return len(s.PositionsOf(d, id)) > 0
}

// Clone deep-copies the schedule so the copy shares no slices with s.
func (s Schedule) Clone() Schedule {
	out := Schedule{
		Days:  append([]Day(nil), s.Days...),
		Slots: make(map[Position]map[Day][]Assignee, len(s.Slots)),
	}
	for p, row := range s.Slots {
		cp := make(map[Day][]Assignee, len(row))
		for d, list := range row {
			cp[d] = append([]Assignee{}, list...)
		}
		out.Slots[p] = cp
	}
	return out
}
