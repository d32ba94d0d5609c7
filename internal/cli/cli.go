// ============================================================================
// shift-rota CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: cobra front end over the rota controller
//
// Command Structure:
//   rota                          # Root command
//   ├── serve                     # Run controller + gRPC + metrics + watcher
//   ├── generate                  # Build a new week
//   │   ├── --saturday            # 6-day week
//   │   └── --days N              # explicit active-day count
//   ├── move FROM_POS FROM_DAY TO_POS TO_DAY
//   │   ├── --from-index, --to-index
//   ├── schedule                  # Show the current week
//   ├── counts                    # Show weeks-worked per position
//   ├── export                    # Write Weekly_Schedule_<date>.xlsx
//   ├── reset                     # Clear the current week
//   ├── roster import             # Load a roster (YAML or pasted rows)
//   ├── needs set                 # Load a need matrix (YAML)
//   ├── status                    # Show controller status
//   └── journal dump|stats        # Inspect the journal file
//
// Persistent flags:
//   --config, -c   config file (default: configs/default.yaml)
//   --addr         talk to a running `rota serve` instead of opening the
//                  storage directly
//
// Without --addr a command opens the controller over the configured
// snapshot and journal, applies one operation and stops it again, which
// writes a checkpoint. Do not run local commands against storage a server
// is using.
//
// serve:
//   1. Load config, start the controller (recovery)
//   2. Push the configured roster/needs files, watch them if enabled
//   3. gRPC on server.port, /metrics on metrics.port
//   4. SIGINT/SIGTERM: graceful gRPC stop, metrics shutdown, final snapshot
//
// ============================================================================

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ChuLiYu/shift-rota/internal/controller"
	"github.com/ChuLiYu/shift-rota/internal/export"
	"github.com/ChuLiYu/shift-rota/internal/metrics"
	"github.com/ChuLiYu/shift-rota/internal/reassign"
	"github.com/ChuLiYu/shift-rota/internal/roster"
	"github.com/ChuLiYu/shift-rota/internal/server"
	"github.com/ChuLiYu/shift-rota/internal/storage/wal"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

var (
	configFile string
	serverAddr string
)

const requestTimeout = 30 * time.Second

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rota",
		Short: "rota: weekly shift assignment for a warehouse crew",
		Long: `rota builds a weekly position × day schedule from a roster, a need
matrix and the last few weeks of history, with:
- hard locks, eligibility rules and preference ranking
- rotation away from recently worked positions
- manual moves with weeks-worked bookkeeping
- journal + snapshot persistence`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "address of a running rota server (e.g. localhost:50051)")

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildGenerateCommand())
	rootCmd.AddCommand(buildMoveCommand())
	rootCmd.AddCommand(buildScheduleCommand())
	rootCmd.AddCommand(buildCountsCommand())
	rootCmd.AddCommand(buildExportCommand())
	rootCmd.AddCommand(buildResetCommand())
	rootCmd.AddCommand(buildRosterCommand())
	rootCmd.AddCommand(buildNeedsCommand())
	rootCmd.AddCommand(buildStatusCommand())
	rootCmd.AddCommand(buildJournalCommand())

	return rootCmd
}

// withBackend loads the config, opens a backend, runs fn and closes it.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, cfg *Config, b backend) error) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	return fn(ctx, cfg, b)
}

// ============================================================================
// serve
// ============================================================================

func buildServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the rota server",
		Long:  "Recover state, then serve gRPC, Prometheus metrics and input file reloads until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "gRPC port (overrides server.port)")
	return cmd
}

func runServer(ctx context.Context, cfg *Config) error {
	ctrlConfig, err := cfg.ControllerConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Printf("Starting rota server with config: %s\n", configFile)
	ctrl, err := controller.NewController(ctrlConfig, nil)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	if cfg.Metrics.Enabled {
		ctrl.SetMetrics(metrics.NewCollector())
	}
	if err := ctrl.Start(); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}
	defer ctrl.Stop()

	var watcher *roster.Watcher
	if cfg.Inputs.RosterFile != "" || cfg.Inputs.NeedsFile != "" {
		watcher, err = roster.NewWatcher(cfg.Inputs.RosterFile, cfg.Inputs.NeedsFile, cfg.Catalog.Days, ctrl)
		if err != nil {
			return err
		}
		if err := watcher.LoadAll(); err != nil {
			log.Printf("Initial input load failed: %v\n", err)
		}
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.Server.Port, err)
	}
	gs := server.NewGRPCServer(ctrl)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_SERVING)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("gRPC server listening on %s\n", lis.Addr())
		return gs.Serve(lis)
	})

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Port)
		g.Go(func() error {
			log.Printf("Starting metrics server on %s\n", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if watcher != nil {
		if cfg.Inputs.Watch {
			g.Go(func() error { return watcher.Run(ctx) })
		} else {
			watcher.Close()
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Println("Received shutdown signal, stopping gracefully...")
		hs.Shutdown()
		gs.GracefulStop()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	log.Println("System started successfully")
	err = g.Wait()
	log.Println("System stopped. Goodbye!")
	return err
}

// ============================================================================
// Schedule commands
// ============================================================================

func buildGenerateCommand() *cobra.Command {
	var saturday bool
	var days int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new weekly schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if saturday && days == 0 {
				days = 6
			}
			return withBackend(cmd, func(ctx context.Context, cfg *Config, b backend) error {
				if days > 0 {
					if err := b.SetDays(ctx, days); err != nil {
						return fmt.Errorf("failed to set days: %w", err)
					}
				}
				res, err := b.Generate(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Week %s\n", res.WeekID)
				renderSchedule(out, cfg.Catalog, res.Schedule, res.Shortfalls)
				renderShortfalls(out, res.Shortfalls)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&saturday, "saturday", false, "include Saturday (6-day week)")
	cmd.Flags().IntVar(&days, "days", 0, "number of active days (0 keeps the current setting)")
	return cmd
}

func buildMoveCommand() *cobra.Command {
	var fromIndex, toIndex int

	cmd := &cobra.Command{
		Use:   "move FROM_POSITION FROM_DAY TO_POSITION TO_DAY",
		Short: "Move one worker between schedule slots",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := reassign.Move{
				FromPosition: types.Position(args[0]),
				FromDay:      types.Day(args[1]),
				FromIndex:    fromIndex,
				ToPosition:   types.Position(args[2]),
				ToDay:        types.Day(args[3]),
				ToIndex:      toIndex,
			}
			return withBackend(cmd, func(ctx context.Context, cfg *Config, b backend) error {
				res, err := b.Move(ctx, m)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch res.Outcome {
				case reassign.OutcomeMoved:
					fmt.Fprintf(out, "Moved %s: %s\n", res.Worker.Name, m)
				case reassign.OutcomeNoOp:
					fmt.Fprintf(out, "Nothing to move at %s/%s[%d]\n", m.FromPosition, m.FromDay, m.FromIndex)
				default:
					fmt.Fprintf(out, "Move rejected: %s\n", res.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&fromIndex, "from-index", 0, "index of the worker in the source slot")
	cmd.Flags().IntVar(&toIndex, "to-index", 1<<30, "insert position in the target slot (default: end)")
	return cmd
}

func buildScheduleCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the current schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cfg *Config, b backend) error {
				s, err := b.GetSchedule(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), s)
				}
				st, err := b.GetStatus(ctx)
				if err != nil {
					return err
				}
				renderSchedule(cmd.OutOrStdout(), cfg.Catalog, s, st.Shortfalls)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func buildCountsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show weeks worked per position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cfg *Config, b backend) error {
				counts, err := b.GetCounts(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), counts)
				}
				workers, err := b.GetRoster(ctx)
				if err != nil {
					return err
				}
				renderCounts(cmd.OutOrStdout(), cfg.Catalog, counts, workers)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func buildExportCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the schedule and counts to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cfg *Config, b backend) error {
				s, err := b.GetSchedule(ctx)
				if err != nil {
					return err
				}
				if s.IsEmpty() {
					return controller.ErrNoSchedule
				}
				counts, err := b.GetCounts(ctx)
				if err != nil {
					return err
				}
				workers, err := b.GetRoster(ctx)
				if err != nil {
					return err
				}
				path, err := export.Save(dir, time.Now(), export.Workbook{
					Catalog:  cfg.Catalog,
					Schedule: s,
					Counts:   counts,
					Roster:   workers,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	return cmd
}

func buildResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the current schedule (history is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cfg *Config, b backend) error {
				if err := b.Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schedule cleared")
				return nil
			})
		},
	}
}

// ============================================================================
// Inputs
// ============================================================================

func buildRosterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the roster",
	}

	var file, paste, out string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the roster from a YAML file or pasted rows",
		Long: `Replace the roster.

--file reads the YAML roster format.
--paste reads one worker per line, "name, pref1, pref2, pref3", split on
commas or tabs ("-" reads stdin). Missing preferences become Anything and
names listed under inputs.locked_names are locked to the first reserved
position.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (paste == "") {
				return fmt.Errorf("exactly one of --file or --paste is required")
			}
			return withBackend(cmd, func(ctx context.Context, cfg *Config, b backend) error {
				var workers []types.Worker
				var err error
				if file != "" {
					workers, err = roster.LoadRoster(file)
				} else {
					workers, err = readPaste(cmd.InOrStdin(), paste, cfg)
				}
				if err != nil {
					return err
				}
				if err := b.SetRoster(ctx, workers); err != nil {
					return err
				}
				if out != "" {
					if err := roster.SaveRoster(out, workers); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d workers\n", len(workers))
				return nil
			})
		},
	}
	importCmd.Flags().StringVarP(&file, "file", "f", "", "YAML roster file")
	importCmd.Flags().StringVar(&paste, "paste", "", "file of pasted rows, or - for stdin")
	importCmd.Flags().StringVarP(&out, "out", "o", "", "also save the imported roster as YAML")

	cmd.AddCommand(importCmd)
	return cmd
}

func readPaste(stdin io.Reader, path string, cfg *Config) ([]types.Worker, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pasted roster: %w", err)
	}
	workers := roster.ParsePaste(string(data), cfg.PasteOptions())
	if len(workers) == 0 {
		return nil, roster.ErrEmptyRoster
	}
	return workers, nil
}

func buildNeedsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "needs",
		Short: "Manage the need matrix",
	}

	var file string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the need matrix from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cfg *Config, b backend) error {
				needs, err := roster.LoadNeeds(file, cfg.Catalog.Days)
				if err != nil {
					return err
				}
				if err := b.SetNeeds(ctx, needs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Needs set for %d positions\n", len(needs))
				return nil
			})
		},
	}
	setCmd.Flags().StringVarP(&file, "file", "f", "", "YAML needs file")
	setCmd.MarkFlagRequired("file")

	cmd.AddCommand(setCmd)
	return cmd
}

// ============================================================================
// Status and journal
// ============================================================================

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		Long:  "Display roster, schedule, history and storage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cfg *Config, b backend) error {
				st, err := b.GetStatus(ctx)
				if err != nil {
					return err
				}
				showStatus(cmd.OutOrStdout(), cfg, st)
				return nil
			})
		},
	}
	return cmd
}

func showStatus(w io.Writer, cfg *Config, st controller.Status) {
	days := make([]string, len(st.Days))
	for i, d := range st.Days {
		days[i] = string(d)
	}

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  ├─ Config File:     %s\n", configFile)
	fmt.Fprintf(w, "  ├─ Policy:          %s\n", cfg.Engine.Policy)
	fmt.Fprintf(w, "  └─ Lookback:        %d weeks\n", cfg.Engine.LookbackWeeks)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Rota:")
	fmt.Fprintf(w, "  ├─ Roster:          %d workers\n", st.RosterSize)
	fmt.Fprintf(w, "  ├─ Active Days:     %s\n", strings.Join(days, " "))
	fmt.Fprintf(w, "  ├─ Schedule:        %s\n", map[bool]string{true: "generated", false: "none"}[st.HasSchedule])
	fmt.Fprintf(w, "  ├─ Short Slots:     %d\n", len(st.Shortfalls))
	fmt.Fprintf(w, "  └─ Retained Weeks:  %d\n", st.RetainedWeeks)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Storage:")
	fmt.Fprintf(w, "  ├─ Journal:         %s (last seq %d)\n", cfg.Storage.JournalPath, st.LastSeq)
	fmt.Fprintf(w, "  └─ Snapshot:        %s\n", cfg.Storage.SnapshotPath)
	if st.Uptime != "" {
		fmt.Fprintf(w, "\nUptime: %s\n", st.Uptime)
	}
}

func buildJournalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the journal file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print one line per journaled operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return wal.DumpWAL(cfg.Storage.JournalPath, cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Summarize the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			stats, err := wal.GetWALStats(cfg.Storage.JournalPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Events: %d (seq %d..%d)\n", stats.TotalEvents, stats.FirstSeq, stats.LastSeq)
			for _, t := range []wal.EventType{wal.EventRoster, wal.EventNeeds, wal.EventDays, wal.EventGenerate, wal.EventMove, wal.EventReset} {
				if n := stats.EventTypes[t]; n > 0 {
					fmt.Fprintf(out, "  %-9s %d\n", t, n)
				}
			}
			return nil
		},
	})
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
