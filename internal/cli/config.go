package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/shift-rota/internal/controller"
	"github.com/ChuLiYu/shift-rota/internal/eligibility"
	"github.com/ChuLiYu/shift-rota/internal/engine"
	"github.com/ChuLiYu/shift-rota/internal/roster"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// Config represents the complete system configuration structure
// Maps config file fields through YAML tags
type Config struct {
	Catalog types.Catalog     `yaml:"catalog"`
	Rules   eligibility.Rules `yaml:"rules"`

	Engine struct {
		ReservedPositions []types.Position `yaml:"reserved_positions"`
		LookbackWeeks     int              `yaml:"lookback_weeks"`
		Policy            string           `yaml:"policy"`
		Seed              uint64           `yaml:"seed"` // 0 seeds from the clock
	} `yaml:"engine"`

	Ledger struct {
		RetainedWeeks int `yaml:"retained_weeks"`
	} `yaml:"ledger"`

	Schedule struct {
		DaysPerWeek int `yaml:"days_per_week"`
	} `yaml:"schedule"`

	Storage struct {
		SnapshotPath      string        `yaml:"snapshot_path"`
		JournalPath       string        `yaml:"journal_path"`
		JournalBufferSize int           `yaml:"journal_buffer_size"`
		SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
		KeepBackups       int           `yaml:"keep_backups"`
	} `yaml:"storage"`

	Inputs struct {
		RosterFile  string   `yaml:"roster_file"`
		NeedsFile   string   `yaml:"needs_file"`
		Watch       bool     `yaml:"watch"`
		LockedNames []string `yaml:"locked_names"` // paste import locks these to the first reserved position
	} `yaml:"inputs"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// DefaultConfig the warehouse defaults; a config file overrides any field
// it sets.
func DefaultConfig() Config {
	var cfg Config
	cfg.Catalog = types.Catalog{
		Positions: []types.Position{
			"belt", "bulk", "direct sorting", "flow", "line loading", "receiving",
			"repack", "research", "trade in", "VAL", "wrap",
		},
		OffBucket: "off",
		Days:      []types.Day{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	}
	cfg.Rules = eligibility.Rules{
		ProtectedPositions: []types.Position{"bulk", "line loading"},
		RestrictedWorkers:  []string{"Johanna", "Imelda", "Natalie", "Elizabeth", "Paty", "Leonor", "Pamela", "Lisabeth", "Hannia", "Rocha"},
	}
	cfg.Engine.ReservedPositions = []types.Position{"VAL"}
	cfg.Engine.LookbackWeeks = 2
	cfg.Engine.Policy = string(engine.PolicySinglePositionPerWeek)
	cfg.Ledger.RetainedWeeks = 6
	cfg.Schedule.DaysPerWeek = 5
	cfg.Storage.SnapshotPath = "data/rota.snapshot"
	cfg.Storage.JournalPath = "data/rota.wal"
	cfg.Storage.JournalBufferSize = 1
	cfg.Storage.KeepBackups = 3
	cfg.Inputs.LockedNames = []string{"Sid", "Rocha"}
	cfg.Server.Port = 50051
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9090
	return cfg
}

// LoadConfig reads path over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return &cfg, nil
}

// ControllerConfig resolves the rule and reserved-position labels against
// the catalog and builds the controller configuration.
func (c *Config) ControllerConfig() (controller.Config, error) {
	policy, err := engine.ParsePolicy(c.Engine.Policy)
	if err != nil {
		return controller.Config{}, err
	}
	rules, err := c.Rules.Normalize(c.Catalog)
	if err != nil {
		return controller.Config{}, fmt.Errorf("rules: %w", err)
	}
	reserved := make([]types.Position, 0, len(c.Engine.ReservedPositions))
	for _, label := range c.Engine.ReservedPositions {
		p, err := c.Catalog.ResolvePosition(string(label))
		if err != nil {
			return controller.Config{}, fmt.Errorf("reserved positions: %w", err)
		}
		reserved = append(reserved, p)
	}

	return controller.Config{
		Engine: engine.Config{
			Catalog:           c.Catalog,
			Rules:             rules,
			ReservedPositions: reserved,
			LookbackWeeks:     c.Engine.LookbackWeeks,
			Policy:            policy,
		},
		Seed:             c.Engine.Seed,
		RetainedWeeks:    c.Ledger.RetainedWeeks,
		DaysPerWeek:      c.Schedule.DaysPerWeek,
		WALPath:          c.Storage.JournalPath,
		SnapshotPath:     c.Storage.SnapshotPath,
		WALBufferSize:    c.Storage.JournalBufferSize,
		SnapshotInterval: c.Storage.SnapshotInterval,
		KeepBackups:      c.Storage.KeepBackups,
	}, nil
}

// PasteOptions how `roster import --paste` completes rows.
func (c *Config) PasteOptions() roster.PasteOptions {
	opts := roster.PasteOptions{LockedNames: c.Inputs.LockedNames}
	if len(c.Engine.ReservedPositions) > 0 {
		opts.LockTo = c.Engine.ReservedPositions[0]
	}
	return opts
}
