package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/shift-rota/internal/engine"
	"github.com/ChuLiYu/shift-rota/internal/ledger"
)

func BenchmarkGenerate(b *testing.B) {
	cfg := warehouseConfig(b.TempDir())
	eng := engine.New(cfg.Engine, engine.NewRandPermuter(1))
	history := ledger.New(cfg.Engine.Catalog.Positions, ledger.DefaultCapacity)
	crew := generateCrew(200)
	needs := dailyNeeds(12)
	days := cfg.Engine.Catalog.ActiveDays(6)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := eng.Generate(context.Background(), crew, needs, days, history)
		require.NoError(b, err)
	}
	b.StopTimer()
}

func BenchmarkGeneratePerDay(b *testing.B) {
	cfg := warehouseConfig(b.TempDir())
	cfg.Engine.Policy = engine.PolicySinglePositionPerDay
	eng := engine.New(cfg.Engine, engine.NewRandPermuter(1))
	history := ledger.New(cfg.Engine.Catalog.Positions, ledger.DefaultCapacity)
	crew := generateCrew(200)
	needs := dailyNeeds(12)
	days := cfg.Engine.Catalog.ActiveDays(6)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := eng.Generate(context.Background(), crew, needs, days, history)
		require.NoError(b, err)
	}
	b.StopTimer()
}
