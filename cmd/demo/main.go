package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ChuLiYu/shift-rota/internal/cli"
	"github.com/ChuLiYu/shift-rota/internal/controller"
	"github.com/ChuLiYu/shift-rota/internal/roster"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// crew the warehouse roster as pasted from the sign-up sheet.
const crew = `Denise	Receiving	Direct Sorting	Re-pack
Imelda	Belt	Flow	Direct Sorting
Natalie	Receiving	Flow	Direct Sorting
Joseph	Wrap	Bulk	Re-pack
Steven	Re-pack	Direct Sorting	Line Loading
Elizabeth	Receiving	Belt	Direct Sorting
Paty	Receiving	Trade-In	Flow
Johanna	Direct Sorting	Receiving	Flow
Leonor	Belt	Direct Sorting	Flow
Pamela	Receiving	Direct Sorting	Belt
Blue	Anything	Anything	Anything
Lisabeth	Receiving	Direct Sorting	Flow
Adrian	Line Loading	Re-Pack	Belt
Alexis	Research	Line Loading	Wrap
Jacob	Wrap	Belt	Direct Sorting
Jesus	Research	Wrap	Receiving
Alex	Wrap	Re-Pack	Bulk
Hannia	Research	Receiving	Direct Sorting
Sid	VAL	Re-Pack	Wrap
Rocha	VAL	Flow	Trade-in
Andrew	Wrap	Re-Pack	Research`

var dailyNeeds = map[types.Position]int{
	"belt":           2,
	"bulk":           1,
	"direct sorting": 3,
	"flow":           2,
	"line loading":   2,
	"receiving":      3,
	"repack":         2,
	"research":       1,
	"trade in":       1,
	"wrap":           2,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/demo/main.go <start|recover>")
		os.Exit(1)
	}

	mode := os.Args[1]
	cfg, err := cli.LoadConfig("configs/default.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctrlConfig, err := cfg.ControllerConfig()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctrl, err := controller.NewController(ctrlConfig, nil)
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}
	if err := ctrl.Start(); err != nil {
		log.Fatalf("Failed to start controller: %v", err)
	}
	defer ctrl.Stop()

	fmt.Printf("✓ Controller started (mode: %s)\n", mode)

	switch mode {
	case "start":
		workers := roster.ParsePaste(crew, cfg.PasteOptions())
		if err := ctrl.SetRoster(workers); err != nil {
			log.Fatalf("Failed to set roster: %v", err)
		}
		needs := types.NeedMatrix{}
		for p, n := range dailyNeeds {
			for _, d := range cfg.Catalog.Days {
				needs.Set(p, d, n)
			}
		}
		if err := ctrl.SetNeeds(needs); err != nil {
			log.Fatalf("Failed to set needs: %v", err)
		}
		fmt.Printf("✓ Loaded %d workers\n", len(workers))

		// Three weeks so the rotation away from recent positions shows up
		for i := 0; i < 3; i++ {
			res, err := ctrl.Generate(context.Background())
			if err != nil {
				log.Fatalf("Failed to generate: %v", err)
			}
			fmt.Printf("\n📅 Week %d (%s), %d short slot(s)\n", i+1, res.WeekID, len(res.Shortfalls))
			printSchedule(cfg.Catalog, res.Schedule)
		}

	case "recover":
		st := ctrl.GetStatus()
		fmt.Printf("\n📊 Recovered state:\n")
		fmt.Printf("  Roster:         %d workers\n", st.RosterSize)
		fmt.Printf("  Retained weeks: %d\n", st.RetainedWeeks)
		fmt.Printf("  Last seq:       %d\n", st.LastSeq)
		if !st.HasSchedule {
			fmt.Println("\nNo schedule recovered. Run 'start' first.")
			return
		}
		printSchedule(cfg.Catalog, ctrl.Schedule())

	default:
		fmt.Printf("Unknown mode %q\n", mode)
		os.Exit(1)
	}
}

func printSchedule(catalog types.Catalog, s types.Schedule) {
	for _, p := range catalog.AllPositions() {
		var cells []string
		for _, d := range s.Days {
			var names []string
			for _, a := range s.At(p, d) {
				names = append(names, a.Name)
			}
			cells = append(cells, fmt.Sprintf("%s: %s", d, strings.Join(names, ", ")))
		}
		fmt.Printf("  %-15s %s\n", p, strings.Join(cells, " | "))
	}
}
