package types

import (
	"errors"
	"fmt"
)

// ErrConfiguration is wrapped by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a label outside the configured catalog.
type ConfigurationError struct {
	Kind  string // "position" or "day"
	Label string
	Where string // optional context, e.g. a worker name
}

func (e *ConfigurationError) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("unknown %s %q (%s)", e.Kind, e.Label, e.Where)
	}
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Label)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// Catalog the configured positions and weekdays.
//
// Positions are the tracked positions in display order. OffBucket, when
// set, is a manual parking slot: it is part of every schedule grid but never
// carries a need target and is never counted.
type Catalog struct {
	Positions []Position `json:"positions" yaml:"positions"`
	OffBucket Position   `json:"off_bucket,omitempty" yaml:"off_bucket,omitempty"`
	Days      []Day      `json:"days" yaml:"days"`
}

// AllPositions returns the tracked positions followed by the off bucket.
func (c Catalog) AllPositions() []Position {
	out := append([]Position(nil), c.Positions...)
	if c.OffBucket != "" {
		out = append(out, c.OffBucket)
	}
	return out
}

// IsTracked reports whether p is counted by the ledger.
func (c Catalog) IsTracked(p Position) bool {
	for _, q := range c.Positions {
		if q == p {
			return true
		}
	}
	return false
}

// ResolvePosition maps a free-text label onto its catalog spelling.
func (c Catalog) ResolvePosition(label string) (Position, error) {
	key := NormalizeLabel(label)
	for _, p := range c.AllPositions() {
		if NormalizeLabel(string(p)) == key {
			return p, nil
		}
	}
	return "", &ConfigurationError{Kind: "position", Label: label}
}

// ResolveDay maps a free-text label onto its catalog spelling.
func (c Catalog) ResolveDay(label string) (Day, error) {
	key := NormalizeLabel(label)
	for _, d := range c.Days {
		if NormalizeLabel(string(d)) == key {
			return d, nil
		}
	}
	return "", &ConfigurationError{Kind: "day", Label: label}
}

// ActiveDays returns the first n catalog days (the 5- or 6-day week).
// n <= 0 or beyond the catalog yields every day.
func (c Catalog) ActiveDays(n int) []Day {
	if n <= 0 || n > len(c.Days) {
		n = len(c.Days)
	}
	return append([]Day(nil), c.Days[:n]...)
}

// ValidateDays checks that every day belongs to the catalog.
func (c Catalog) ValidateDays(days []Day) error {
	for _, d := range days {
		if _, err := c.ResolveDay(string(d)); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeNeeds resolves every label of n; the off bucket may not carry a
// target.
func (c Catalog) NormalizeNeeds(n NeedMatrix) (NeedMatrix, error) {
	out := make(NeedMatrix, len(n))
	for label, row := range n {
		p, err := c.ResolvePosition(string(label))
		if err != nil {
			return nil, err
		}
		if !c.IsTracked(p) {
			return nil, &ConfigurationError{Kind: "position", Label: string(label), Where: "off bucket cannot carry a need"}
		}
		for dl, v := range row {
			d, err := c.ResolveDay(string(dl))
			if err != nil {
				return nil, err
			}
			out.Set(p, d, v)
		}
	}
	return out, nil
}

// NormalizeWorker resolves every position and day label a worker carries.
// The wildcard preference passes through unchanged.
func (c Catalog) NormalizeWorker(w Worker) (Worker, error) {
	out := w
	out.Preferences = make([]Position, 0, len(w.Preferences))
	for _, label := range w.Preferences {
		if NormalizeLabel(string(label)) == string(AnyPosition) {
			out.Preferences = append(out.Preferences, AnyPosition)
			continue
		}
		p, err := c.ResolvePosition(string(label))
		if err != nil {
			return Worker{}, withWhere(err, w.Name)
		}
		out.Preferences = append(out.Preferences, p)
	}
	out.Exclusions = nil
	for _, label := range w.Exclusions {
		p, err := c.ResolvePosition(string(label))
		if err != nil {
			return Worker{}, withWhere(err, w.Name)
		}
		out.Exclusions = append(out.Exclusions, p)
	}
	if w.LockedTo != "" {
		p, err := c.ResolvePosition(string(w.LockedTo))
		if err != nil {
			return Worker{}, withWhere(err, w.Name)
		}
		out.LockedTo = p
	}
	if w.Availability != nil {
		out.Availability = make(map[Day]bool, len(w.Availability))
		for label, v := range w.Availability {
			d, err := c.ResolveDay(string(label))
			if err != nil {
				return Worker{}, withWhere(err, w.Name)
			}
			out.Availability[d] = v
		}
	}
	return out, nil
}

// NormalizeRoster applies NormalizeWorker to every row.
func (c Catalog) NormalizeRoster(roster []Worker) ([]Worker, error) {
	out := make([]Worker, 0, len(roster))
	for _, w := range roster {
		nw, err := c.NormalizeWorker(w)
		if err != nil {
			return nil, err
		}
		out = append(out, nw)
	}
	return out, nil
}

func withWhere(err error, where string) error {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		cp := *cfgErr
		cp.Where = where
		return &cp
	}
	return err
}
