package main

// ============================================================================
// rota entry point: panic recovery plus the cobra tree from internal/cli.
//
//   go run ./cmd/rota generate --saturday
//   go build -o bin/rota ./cmd/rota
//   ./bin/rota serve -c configs/default.yaml
// ============================================================================

import (
	"fmt"
	"os"

	"github.com/ChuLiYu/shift-rota/internal/cli"
)

var version = "dev" // set with -ldflags "-X main.version=..."

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	if version != "dev" {
		rootCmd.Version = version
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
