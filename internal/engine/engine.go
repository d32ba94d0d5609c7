// ============================================================================
// Weekly Assignment Engine
// ============================================================================
//
// Package: internal/engine
// Purpose: turn a roster, a need matrix and the recent history into one
//          conflict-free weekly schedule.
//
// Passes (greedy, in this order):
//   1. shape     - empty list for every position × active day
//   2. lock      - hard-locked workers go to their position on every day
//                  they are available, whatever the need
//   3. need      - non-reserved positions in permuted order; candidates
//                  ranked by "not recently worked", then preference rank,
//                  then the permutation
//   4. leftover  - remaining workers fill still-open slots, one slot each
//
// Under-supply leaves slots short; Shortfalls reports them.
//
// The engine performs no I/O and keeps no state between calls. The only
// source of non-determinism is the injected Permuter.
// ============================================================================

package engine

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/ChuLiYu/shift-rota/internal/eligibility"
	"github.com/ChuLiYu/shift-rota/internal/ledger"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// Policy how often a worker may be placed by the need pass within a week
type Policy string

const (
	// PolicySinglePositionPerWeek a worker picked for a position leaves the
	// pool for the whole week.
	PolicySinglePositionPerWeek Policy = "single-position-per-week"
	// PolicySinglePositionPerDay a worker may hold different positions on
	// different days, never two on the same day.
	PolicySinglePositionPerDay Policy = "single-position-per-day"
)

// ParsePolicy maps a config string onto a Policy; empty means per-week.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySinglePositionPerWeek:
		return PolicySinglePositionPerWeek, nil
	case PolicySinglePositionPerDay:
		return PolicySinglePositionPerDay, nil
	default:
		return "", fmt.Errorf("unknown assignment policy %q", s)
	}
}

// Config engine configuration, passed in explicitly at construction
type Config struct {
	Catalog           types.Catalog
	Rules             eligibility.Rules
	ReservedPositions []types.Position // filled by the lock pass, skipped by the need pass
	LookbackWeeks     int
	Policy            Policy
}

// History what the engine needs from the ledger
type History interface {
	RecentlyWorked(id types.WorkerID, p types.Position, lookbackWeeks int) bool
	RecordWeek(s types.Schedule) ledger.Week
}

// Engine the weekly assignment engine
type Engine struct {
	cfg  Config
	perm Permuter
}

// New creates an engine. A nil perm falls back to a clock-seeded RandPermuter.
func New(cfg Config, perm Permuter) *Engine {
	if perm == nil {
		perm = NewRandPermuter(0)
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicySinglePositionPerWeek
	}
	return &Engine{cfg: cfg, perm: perm}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Generate builds the weekly schedule for days and hands it to history
// (when non-nil) via RecordWeek.
//
// Returns:
//   - types.Schedule: a newly built value, sharing nothing with the inputs
//   - error: *types.ConfigurationError for labels outside the catalog, or
//     ctx.Err() when ctx is already done
func (e *Engine) Generate(ctx context.Context, roster []types.Worker, needs types.NeedMatrix, days []types.Day, history History) (types.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return types.Schedule{}, err
	}
	if err := e.validate(roster, needs, days); err != nil {
		return types.Schedule{}, err
	}

	g := &generation{
		engine:   e,
		needs:    needs,
		days:     days,
		history:  history,
		schedule: types.NewSchedule(e.cfg.Catalog.AllPositions(), days),
		booked:   make(map[types.Day]map[types.WorkerID]bool, len(days)),
	}
	for _, d := range days {
		g.booked[d] = make(map[types.WorkerID]bool)
	}

	g.lockPass(roster)
	if err := g.needPass(ctx); err != nil {
		return types.Schedule{}, err
	}
	g.leftoverPass()

	if history != nil {
		history.RecordWeek(g.schedule)
	}
	return g.schedule, nil
}

func (e *Engine) validate(roster []types.Worker, needs types.NeedMatrix, days []types.Day) error {
	c := e.cfg.Catalog
	if err := c.ValidateDays(days); err != nil {
		return err
	}
	for p, row := range needs {
		if !c.IsTracked(p) {
			return &types.ConfigurationError{Kind: "position", Label: string(p), Where: "need matrix"}
		}
		for d := range row {
			if !slices.Contains(c.Days, d) {
				return &types.ConfigurationError{Kind: "day", Label: string(d), Where: "need matrix"}
			}
		}
	}
	known := c.AllPositions()
	for _, w := range roster {
		for _, p := range w.Preferences {
			if p != types.AnyPosition && !slices.Contains(known, p) {
				return &types.ConfigurationError{Kind: "position", Label: string(p), Where: w.Name}
			}
		}
		for _, p := range w.Exclusions {
			if !slices.Contains(known, p) {
				return &types.ConfigurationError{Kind: "position", Label: string(p), Where: w.Name}
			}
		}
		if w.IsLocked() && !slices.Contains(known, w.LockedTo) {
			return &types.ConfigurationError{Kind: "position", Label: string(w.LockedTo), Where: w.Name}
		}
	}
	for _, p := range e.cfg.ReservedPositions {
		if !slices.Contains(known, p) {
			return &types.ConfigurationError{Kind: "position", Label: string(p), Where: "reserved positions"}
		}
	}
	return nil
}

// ============================================================================
// One generation run
// ============================================================================

type generation struct {
	engine   *Engine
	needs    types.NeedMatrix
	days     []types.Day
	history  History
	schedule types.Schedule
	booked   map[types.Day]map[types.WorkerID]bool
	pool     []types.Worker // not locked; per-week policy also drops need-pass picks
	free     []types.Worker // every non-locked worker, for the per-day leftover pass
}

func (g *generation) place(p types.Position, d types.Day, w types.Worker) {
	g.schedule.Append(p, d, w.Ref())
	g.booked[d][w.ID] = true
}

// open reports whether w can still take a slot on d.
func (g *generation) open(w types.Worker, d types.Day) bool {
	return w.AvailableOn(d) && !g.booked[d][w.ID]
}

// unmet returns the remaining headcount of (p, d).
func (g *generation) unmet(p types.Position, d types.Day) int {
	n := g.needs.Get(p, d) - g.schedule.Count(p, d)
	if n < 0 {
		return 0
	}
	return n
}

func (g *generation) lockPass(roster []types.Worker) {
	for _, w := range roster {
		if !w.IsLocked() {
			g.pool = append(g.pool, w)
			continue
		}
		for _, d := range g.days {
			if g.open(w, d) {
				g.place(w.LockedTo, d, w)
			}
		}
	}
	g.free = append([]types.Worker(nil), g.pool...)
}

func (g *generation) needPass(ctx context.Context) error {
	cfg := g.engine.cfg
	var positions []types.Position
	for _, p := range cfg.Catalog.Positions {
		if !slices.Contains(cfg.ReservedPositions, p) {
			positions = append(positions, p)
		}
	}

	for _, i := range g.engine.perm.Perm(len(positions)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := positions[i]
		if cfg.Policy == PolicySinglePositionPerDay {
			g.fillPerDay(p)
		} else {
			g.fillPerWeek(p)
		}
	}
	return nil
}

// fillPerWeek picks one list for the whole week: N = the largest unmet need
// across active days. Picks are placed on each day they are free, up to
// that day's unmet need. Only picks that landed somewhere leave the pool.
func (g *generation) fillPerWeek(p types.Position) {
	if g.needs.MaxAcross(p, g.days) == 0 {
		return
	}

	var days []types.Day
	needed := 0
	for _, d := range g.days {
		if n := g.unmet(p, d); n > 0 {
			days = append(days, d)
			if n > needed {
				needed = n
			}
		}
	}
	if needed == 0 {
		return
	}

	rules := g.engine.cfg.Rules
	var cands []types.Worker
	for _, w := range g.pool {
		if !rules.IsEligible(w, p) {
			continue
		}
		if slices.ContainsFunc(days, func(d types.Day) bool { return g.open(w, d) }) {
			cands = append(cands, w)
		}
	}

	picks := g.rank(cands, p, needed)
	if len(picks) > needed {
		picks = picks[:needed]
	}
	placed := make(map[types.WorkerID]bool, len(picks))
	for _, d := range days {
		want := g.unmet(p, d)
		for _, w := range picks {
			if want == 0 {
				break
			}
			if g.open(w, d) {
				g.place(p, d, w)
				placed[w.ID] = true
				want--
			}
		}
	}

	// A pick crowded out on every day stays free for the leftover pass
	g.pool = slices.DeleteFunc(g.pool, func(w types.Worker) bool { return placed[w.ID] })
}

// fillPerDay picks a fresh list for every day; workers stay in the pool.
func (g *generation) fillPerDay(p types.Position) {
	rules := g.engine.cfg.Rules
	for _, d := range g.days {
		needed := g.unmet(p, d)
		if needed == 0 {
			continue
		}
		var cands []types.Worker
		for _, w := range g.pool {
			if rules.IsEligible(w, p) && g.open(w, d) {
				cands = append(cands, w)
			}
		}
		picks := g.rank(cands, p, needed)
		if len(picks) > needed {
			picks = picks[:needed]
		}
		for _, w := range picks {
			g.place(p, d, w)
		}
	}
}

// rank orders candidates for p. Workers who did not work p within the
// lookback window come first; the recent ones are only appended when the
// fresh set is short of needed. Each group sorts by preference rank, ties
// broken by the permutation.
func (g *generation) rank(cands []types.Worker, p types.Position, needed int) []types.Worker {
	type scored struct {
		w    types.Worker
		rank int
		tie  int
	}
	order := g.engine.perm.Perm(len(cands))
	var fresh, recent []scored
	for i, w := range cands {
		s := scored{w: w, rank: w.PreferenceRank(p), tie: order[i]}
		if g.history != nil && g.history.RecentlyWorked(w.ID, p, g.engine.cfg.LookbackWeeks) {
			recent = append(recent, s)
		} else {
			fresh = append(fresh, s)
		}
	}
	byRank := func(list []scored) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].rank != list[j].rank {
				return list[i].rank < list[j].rank
			}
			return list[i].tie < list[j].tie
		})
	}
	byRank(fresh)
	if len(fresh) < needed {
		byRank(recent)
		fresh = append(fresh, recent...)
	}

	out := make([]types.Worker, len(fresh))
	for i, s := range fresh {
		out[i] = s.w
	}
	return out
}

type openSlot struct {
	position  types.Position
	day       types.Day
	remaining int
}

// leftoverPass walks the remaining workers in permuted order; each takes the
// first open slot they fit and the loop moves on to the next worker.
func (g *generation) leftoverPass() {
	var slots []*openSlot
	for _, p := range g.engine.cfg.Catalog.Positions {
		for _, d := range g.days {
			if n := g.unmet(p, d); n > 0 {
				slots = append(slots, &openSlot{position: p, day: d, remaining: n})
			}
		}
	}
	if len(slots) == 0 {
		return
	}

	pool := g.pool
	if g.engine.cfg.Policy == PolicySinglePositionPerDay {
		pool = g.free
	}
	rules := g.engine.cfg.Rules
	for _, i := range g.engine.perm.Perm(len(pool)) {
		w := pool[i]
		for _, s := range slots {
			if s.remaining <= 0 {
				continue
			}
			if !rules.IsEligible(w, s.position) || !g.open(w, s.day) {
				continue
			}
			g.place(s.position, s.day, w)
			s.remaining--
			break
		}
	}
}
