// ============================================================================
// shift-rota Controller - owner of the live rota state
// ============================================================================
//
// Package: internal/controller
// File: controller.go
// Purpose: hold the roster, need matrix, current schedule and history
//          ledger; serialize every operation; persist through the journal
//          and the snapshot store.
//
// Components:
//   - engine.Engine:     weekly generation
//   - reassign.Handler:  manual moves (built per call from the roster)
//   - ledger.Ledger:     retained weeks + weeks-worked counts
//   - wal.WAL:           journal of state-changing operations
//   - snapshot.Manager:  full-state checkpoints
//   - metrics.Collector: optional Prometheus instrumentation
//
// Write-ahead:
//   every operation computes its result without touching state, journals
//   it, then applies it. A journal failure leaves state unchanged.
//
// Recovery (Start):
//   1. loadSnapshot() - roster, needs, schedule, ledger, days/week
//   2. replayWAL()    - re-apply journaled operations with seq > LastSeq
//
// Checkpoints:
//   after every generation, on the optional snapshot interval, and on Stop.
//   A checkpoint writes the snapshot and rotates the journal.
//
// Concurrency:
//   one sync.Mutex guards all state; the engine, ledger and handler are
//   only ever called under it.
//
// ============================================================================

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ChuLiYu/shift-rota/internal/engine"
	"github.com/ChuLiYu/shift-rota/internal/ledger"
	"github.com/ChuLiYu/shift-rota/internal/metrics"
	"github.com/ChuLiYu/shift-rota/internal/reassign"
	"github.com/ChuLiYu/shift-rota/internal/snapshot"
	"github.com/ChuLiYu/shift-rota/internal/storage/wal"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

var log = slog.Default()

var (
	ErrStopped        = errors.New("controller is stopped")
	ErrInvalidRoster  = errors.New("invalid roster")
	ErrInvalidDays    = errors.New("invalid days per week")
	ErrNoSchedule     = errors.New("no schedule generated yet")
	ErrReplayMismatch = errors.New("journal replay diverged from recorded outcome")
)

// ============================================================================
// Data structures
// ============================================================================

// Config controller configuration
type Config struct {
	Engine           engine.Config
	Seed             uint64        // 0 seeds from the clock
	RetainedWeeks    int           // ledger capacity
	DaysPerWeek      int           // default active days when the snapshot has none
	WALPath          string        // journal path
	SnapshotPath     string        // snapshot path
	WALBufferSize    int           // journal buffer; 1 flushes every append
	SnapshotInterval time.Duration // periodic checkpoint; 0 disables
	KeepBackups      int           // snapshot backups kept per checkpoint
}

// Controller core coordinator
type Controller struct {
	mu       sync.Mutex
	config   Config
	engine   *engine.Engine
	wal      *wal.WAL
	snapshot *snapshot.Manager
	metrics  *metrics.Collector

	roster      []types.Worker
	needs       types.NeedMatrix
	schedule    types.Schedule
	ledger      *ledger.Ledger
	daysPerWeek int

	stopCh    chan struct{}
	stopped   bool
	startTime time.Time
	loopWg    sync.WaitGroup
}

// GenerateResult what one generation produced
type GenerateResult struct {
	WeekID     string             `json:"week_id"`
	Schedule   types.Schedule     `json:"schedule"`
	Shortfalls []engine.Shortfall `json:"shortfalls,omitempty"`
}

// Status summary for `rota status`
type Status struct {
	Uptime        string             `json:"uptime"`
	RosterSize    int                `json:"roster_size"`
	DaysPerWeek   int                `json:"days_per_week"`
	Days          []types.Day        `json:"days"`
	HasSchedule   bool               `json:"has_schedule"`
	RetainedWeeks int                `json:"retained_weeks"`
	LastSeq       uint64             `json:"last_seq"`
	Shortfalls    []engine.Shortfall `json:"shortfalls,omitempty"`
}

// ============================================================================
// Construction and lifecycle
// ============================================================================

// NewController opens the journal and prepares an empty state; Start
// recovers the persisted one.
//
// Parameters:
//   - config: controller configuration
//   - perm: engine permuter; nil builds a RandPermuter from config.Seed
//
// Returns:
//   - *Controller
//   - error: the journal could not be opened
func NewController(config Config, perm engine.Permuter) (*Controller, error) {
	if config.RetainedWeeks <= 0 {
		config.RetainedWeeks = ledger.DefaultCapacity
	}
	if perm == nil {
		perm = engine.NewRandPermuter(config.Seed)
	}

	walInstance, err := wal.NewWAL(config.WALPath, config.WALBufferSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL: %w", err)
	}

	return &Controller{
		config:      config,
		engine:      engine.New(config.Engine, perm),
		wal:         walInstance,
		snapshot:    snapshot.NewManager(config.SnapshotPath),
		needs:       types.NeedMatrix{},
		ledger:      ledger.New(config.Engine.Catalog.Positions, config.RetainedWeeks),
		daysPerWeek: config.DaysPerWeek,
		stopCh:      make(chan struct{}),
	}, nil
}

// SetMetrics attaches a collector; call before Start.
func (c *Controller) SetMetrics(m *metrics.Collector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Start recovers state from the snapshot and journal, then starts the
// periodic checkpoint loop when configured.
func (c *Controller) Start() error {
	c.startTime = time.Now()
	log.Info("Starting recovery...")

	lastSeq, err := c.loadSnapshot()
	if err != nil {
		return fmt.Errorf("loadSnapshot failed: %w", err)
	}
	c.wal.AdvanceTo(lastSeq)

	replayed, err := c.replayWAL(lastSeq)
	if err != nil {
		return fmt.Errorf("replayWAL failed: %w", err)
	}

	elapsed := time.Since(c.startTime)
	c.mu.Lock()
	if c.metrics != nil {
		c.metrics.SetRecoveryTime(elapsed.Seconds())
		c.metrics.SetRosterSize(len(c.roster))
		c.updateShortfallLocked()
	}
	rosterSize := len(c.roster)
	c.mu.Unlock()

	log.Info("Recovery completed",
		"duration", elapsed,
		"replayed_events", replayed,
		"roster", rosterSize)

	if c.config.SnapshotInterval > 0 {
		c.loopWg.Add(1)
		go c.snapshotLoop()
	}
	return nil
}

// loadSnapshot restores state from the snapshot and returns its LastSeq.
func (c *Controller) loadSnapshot() (uint64, error) {
	data, err := c.snapshot.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.roster = data.Roster
	c.needs = data.Needs
	c.schedule = data.Schedule
	c.ledger = ledger.Restore(data.Ledger, c.config.Engine.Catalog.Positions, c.config.RetainedWeeks)
	if data.DaysPerWeek > 0 {
		c.daysPerWeek = data.DaysPerWeek
	}

	log.Info("Snapshot loaded",
		"last_seq", data.LastSeq,
		"roster", len(data.Roster),
		"weeks", c.ledger.Len())
	return data.LastSeq, nil
}

// replayWAL re-applies journaled operations newer than the snapshot.
func (c *Controller) replayWAL(afterSeq uint64) (int, error) {
	replayed := 0
	handler := func(event wal.Event) error {
		if event.Seq <= afterSeq {
			return nil
		}
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.applyEventLocked(event); err != nil {
			return fmt.Errorf("seq %d (%s): %w", event.Seq, event.Type, err)
		}
		replayed++
		return nil
	}
	err := c.wal.Replay(handler)
	return replayed, err
}

func (c *Controller) applyEventLocked(event wal.Event) error {
	switch event.Type {
	case wal.EventRoster:
		var roster []types.Worker
		if err := event.Decode(&roster); err != nil {
			return err
		}
		c.applyRosterLocked(roster)

	case wal.EventNeeds:
		needs := types.NeedMatrix{}
		if err := event.Decode(&needs); err != nil {
			return err
		}
		c.needs = needs

	case wal.EventDays:
		var n int
		if err := event.Decode(&n); err != nil {
			return err
		}
		c.daysPerWeek = n

	case wal.EventGenerate:
		var wk ledger.Week
		if err := event.Decode(&wk); err != nil {
			return err
		}
		c.applyWeekLocked(wk)

	case wal.EventMove:
		var m reassign.Move
		if err := event.Decode(&m); err != nil {
			return err
		}
		res, err := c.handlerLocked().ApplyMove(c.schedule, m, c.ledger)
		if err != nil {
			return err
		}
		if res.Outcome != reassign.OutcomeMoved {
			return fmt.Errorf("%w: move %s now %s", ErrReplayMismatch, m, res.Outcome)
		}
		c.schedule = res.Schedule

	case wal.EventReset:
		c.schedule = types.Schedule{}

	default:
		log.Warn("Skipping unknown journal event", "type", event.Type, "seq", event.Seq)
	}
	return nil
}

// snapshotLoop periodic checkpoints
func (c *Controller) snapshotLoop() {
	defer c.loopWg.Done()
	ticker := time.NewTicker(c.config.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			log.Info("Snapshot loop stopped")
			return

		case <-ticker.C:
			if err := c.Snapshot(); err != nil {
				log.Error("Failed to take snapshot", "error", err)
			}
		}
	}
}

// Snapshot writes a checkpoint and rotates the journal.
func (c *Controller) Snapshot() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	return c.takeSnapshotLocked()
}

func (c *Controller) takeSnapshotLocked() error {
	start := time.Now()

	data := snapshot.Data{
		LastSeq:     c.wal.GetLastSeq(),
		DaysPerWeek: c.daysPerWeek,
		Roster:      c.roster,
		Needs:       c.needs,
		Schedule:    c.schedule,
		Ledger:      c.ledger.State(),
	}

	var err error
	if c.config.KeepBackups > 0 {
		err = c.snapshot.WriteWithBackup(data, c.config.KeepBackups)
	} else {
		err = c.snapshot.Write(data)
	}
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := c.wal.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate WAL: %w", err)
	}

	log.Info("Snapshot taken",
		"duration", time.Since(start),
		"last_seq", data.LastSeq,
		"weeks", c.ledger.Len())
	return nil
}

// Stop ends the checkpoint loop, writes a final checkpoint and closes the
// journal. Safe to call twice.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		log.Info("Controller already stopped")
		return
	}
	c.stopped = true
	c.mu.Unlock()

	log.Info("Stopping controller...")
	close(c.stopCh)
	c.loopWg.Wait()

	c.mu.Lock()
	if err := c.takeSnapshotLocked(); err != nil {
		log.Error("Failed to take final snapshot", "error", err)
	}
	c.mu.Unlock()

	if err := c.wal.Close(); err != nil {
		log.Error("Failed to close WAL", "error", err)
	}
	log.Info("Controller stopped")
}

// ============================================================================
// Operations
// ============================================================================

// Generate builds a new week from the current roster, needs and history,
// replaces the current schedule, records the week and checkpoints.
func (c *Controller) Generate(ctx context.Context) (GenerateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return GenerateResult{}, ErrStopped
	}

	start := time.Now()
	days := c.activeDaysLocked()
	history := &pendingHistory{Ledger: c.ledger}

	s, err := c.engine.Generate(ctx, c.roster, c.needs, days, history)
	if err != nil {
		c.noteErrorLocked(err)
		return GenerateResult{}, fmt.Errorf("failed to generate schedule: %w", err)
	}
	elapsed := time.Since(start)

	if err := c.journalLocked(wal.EventGenerate, history.week); err != nil {
		return GenerateResult{}, err
	}
	c.applyWeekLocked(history.week)

	shortfalls := engine.Shortfalls(c.config.Engine.Catalog, s, c.needs)
	if c.metrics != nil {
		short, missing := shortfallTotals(shortfalls)
		c.metrics.RecordGeneration(elapsed, short, missing)
	}
	log.Info("Schedule generated",
		"week", history.week.ID,
		"days", len(days),
		"short_slots", len(shortfalls),
		"duration", elapsed)

	if err := c.takeSnapshotLocked(); err != nil {
		log.Error("Failed to checkpoint after generation", "error", err)
	}

	return GenerateResult{
		WeekID:     history.week.ID,
		Schedule:   s.Clone(),
		Shortfalls: shortfalls,
	}, nil
}

// Move applies one manual move to the current schedule.
func (c *Controller) Move(m reassign.Move) (reassign.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return reassign.Result{}, ErrStopped
	}
	if c.schedule.IsEmpty() {
		return reassign.Result{}, ErrNoSchedule
	}

	rec := &adjustRecorder{}
	res, err := c.handlerLocked().ApplyMove(c.schedule, m, rec)
	if err != nil {
		c.noteErrorLocked(err)
		return reassign.Result{}, fmt.Errorf("failed to apply move: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordMove(string(res.Outcome))
	}
	if res.Outcome != reassign.OutcomeMoved {
		log.Info("Move not applied", "move", m.String(), "outcome", res.Outcome, "reason", res.Reason)
		return res, nil
	}

	if err := c.journalLocked(wal.EventMove, m); err != nil {
		return reassign.Result{}, err
	}
	c.schedule = res.Schedule
	rec.replay(c.ledger)
	c.updateShortfallLocked()

	log.Info("Worker moved", "worker", res.Worker.Name, "move", m.String())
	res.Schedule = res.Schedule.Clone()
	return res, nil
}

// SetRoster replaces the roster. Labels are resolved against the catalog;
// ids must be present and unique.
func (c *Controller) SetRoster(roster []types.Worker) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}

	normalized, err := c.config.Engine.Catalog.NormalizeRoster(roster)
	if err != nil {
		c.noteErrorLocked(err)
		return fmt.Errorf("failed to set roster: %w", err)
	}
	seen := make(map[types.WorkerID]bool, len(normalized))
	for i, w := range normalized {
		if w.ID == "" {
			return fmt.Errorf("%w: row %d (%s) has no id", ErrInvalidRoster, i+1, w.Name)
		}
		if seen[w.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidRoster, w.ID)
		}
		seen[w.ID] = true
	}

	if err := c.journalLocked(wal.EventRoster, normalized); err != nil {
		return err
	}
	c.applyRosterLocked(normalized)
	log.Info("Roster updated", "workers", len(normalized))
	return nil
}

// SetNeeds replaces the need matrix.
func (c *Controller) SetNeeds(needs types.NeedMatrix) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}

	normalized, err := c.config.Engine.Catalog.NormalizeNeeds(needs)
	if err != nil {
		c.noteErrorLocked(err)
		return fmt.Errorf("failed to set needs: %w", err)
	}
	if err := c.journalLocked(wal.EventNeeds, normalized); err != nil {
		return err
	}
	c.needs = normalized
	c.updateShortfallLocked()
	log.Info("Needs updated", "positions", len(normalized))
	return nil
}

// SetDaysPerWeek selects how many catalog days are active (5 for Mon-Fri,
// 6 to include Saturday). Takes effect on the next generation.
func (c *Controller) SetDaysPerWeek(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if n < 1 || n > len(c.config.Engine.Catalog.Days) {
		return fmt.Errorf("%w: %d (catalog has %d days)", ErrInvalidDays, n, len(c.config.Engine.Catalog.Days))
	}
	if err := c.journalLocked(wal.EventDays, n); err != nil {
		return err
	}
	c.daysPerWeek = n
	return nil
}

// Reset clears the current schedule. History and counts are kept.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if err := c.journalLocked(wal.EventReset, nil); err != nil {
		return err
	}
	c.schedule = types.Schedule{}
	c.updateShortfallLocked()
	log.Info("Schedule reset")
	return nil
}

// ============================================================================
// Reads
// ============================================================================

// Schedule returns a copy of the current schedule (empty before the first
// generation or after Reset).
func (c *Controller) Schedule() types.Schedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schedule.Clone()
}

// Counts returns the weeks-worked table.
func (c *Controller) Counts() map[types.WorkerID]map[types.Position]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.CountsTable()
}

// Roster returns a copy of the roster.
func (c *Controller) Roster() []types.Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.roster)
}

// Needs returns a copy of the need matrix.
func (c *Controller) Needs() types.NeedMatrix {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.needs.Clone()
}

// History returns the retained weeks, oldest first.
func (c *Controller) History() []ledger.Week {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Weeks()
}

// Catalog returns the configured catalog.
func (c *Controller) Catalog() types.Catalog {
	return c.config.Engine.Catalog
}

// GetStatus summarizes the controller state.
func (c *Controller) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		RosterSize:    len(c.roster),
		DaysPerWeek:   len(c.activeDaysLocked()),
		Days:          c.activeDaysLocked(),
		HasSchedule:   !c.schedule.IsEmpty(),
		RetainedWeeks: c.ledger.Len(),
		LastSeq:       c.wal.GetLastSeq(),
	}
	if !c.startTime.IsZero() {
		st.Uptime = time.Since(c.startTime).Round(time.Second).String()
	}
	if st.HasSchedule {
		st.Shortfalls = engine.Shortfalls(c.config.Engine.Catalog, c.schedule, c.needs)
	}
	return st
}

// ============================================================================
// Internal helpers (caller holds c.mu)
// ============================================================================

func (c *Controller) activeDaysLocked() []types.Day {
	return c.config.Engine.Catalog.ActiveDays(c.daysPerWeek)
}

func (c *Controller) handlerLocked() *reassign.Handler {
	return reassign.NewHandler(c.config.Engine.Catalog, c.config.Engine.Rules, c.roster)
}

func (c *Controller) journalLocked(t wal.EventType, payload any) error {
	if _, err := c.wal.Append(t, payload, true); err != nil {
		return fmt.Errorf("failed to append %s event: %w", t, err)
	}
	if c.metrics != nil {
		c.metrics.RecordJournalEvent(string(t))
	}
	return nil
}

func (c *Controller) applyRosterLocked(roster []types.Worker) {
	c.roster = roster
	ids := make([]types.WorkerID, len(roster))
	for i, w := range roster {
		ids[i] = w.ID
	}
	c.ledger.Register(ids...)
	if c.metrics != nil {
		c.metrics.SetRosterSize(len(roster))
	}
}

func (c *Controller) applyWeekLocked(wk ledger.Week) {
	c.ledger.Import(wk)
	c.schedule = wk.Schedule.Clone()
}

func (c *Controller) noteErrorLocked(err error) {
	if c.metrics != nil && errors.Is(err, types.ErrConfiguration) {
		c.metrics.RecordConfigurationError()
	}
}

func (c *Controller) updateShortfallLocked() {
	if c.metrics == nil {
		return
	}
	if c.schedule.IsEmpty() {
		c.metrics.SetShortfall(0, 0)
		return
	}
	c.metrics.SetShortfall(shortfallTotals(engine.Shortfalls(c.config.Engine.Catalog, c.schedule, c.needs)))
}

func shortfallTotals(list []engine.Shortfall) (slots, missing int) {
	for _, s := range list {
		missing += s.Missing()
	}
	return len(list), missing
}

// pendingHistory reads through to the ledger but holds the generated week
// back until it has been journaled.
type pendingHistory struct {
	*ledger.Ledger
	week ledger.Week
}

func (h *pendingHistory) RecordWeek(s types.Schedule) ledger.Week {
	h.week = ledger.NewWeek(s)
	return h.week
}

// adjustRecorder holds a move's ledger delta until it has been journaled.
type adjustRecorder struct {
	calls []adjustCall
}

type adjustCall struct {
	id       types.WorkerID
	from, to types.Position
}

func (r *adjustRecorder) AdjustOnMove(id types.WorkerID, from, to types.Position) {
	r.calls = append(r.calls, adjustCall{id: id, from: from, to: to})
}

func (r *adjustRecorder) replay(dst reassign.Adjuster) {
	for _, call := range r.calls {
		dst.AdjustOnMove(call.id, call.from, call.to)
	}
}
