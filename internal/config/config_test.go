package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid-trading-lab/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	sim, err := cfg.SimulationConfig()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSimulationConfig(), sim)

	assert.Equal(t, "USD", cfg.Portfolio.BaseCurrency)
	assert.Equal(t, 10000.0, cfg.Portfolio.BaseBalance)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.Server.TickInterval)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Storage.PostgresDSN)
	assert.True(t, cfg.Storage.Migrate)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
simulation:
  duration_minutes: 120
  time_acceleration: 10
  market_condition: Bull
  fee_rate: 0.001
  token_id: erg
  seed: 42
portfolio:
  base_currency: EUR
  base_balance: 5000
  holdings:
    erg: 250
grid:
  count: 2
  base_amount: 500
  order_count: 8
  range_percent: 0.1
scenarios:
  - name: calm
    volatility: 0.2
    mean_reversion: 0.1
    momentum_decay: 0.5
server:
  tick_interval: 250ms
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	sim, err := cfg.SimulationConfig()
	require.NoError(t, err)
	assert.Equal(t, 120.0, sim.DurationMinutes)
	assert.Equal(t, 10.0, sim.TimeAcceleration)
	assert.Equal(t, domain.MarketBull, sim.MarketCondition)
	assert.Equal(t, 0.001, sim.FeeRate)
	assert.Equal(t, "erg", sim.TokenID)
	assert.Equal(t, uint64(42), sim.Seed)
	// unset keys keep their defaults
	assert.Equal(t, domain.DefaultSimulationConfig().SlippageRate, sim.SlippageRate)

	p := cfg.InitialPortfolio()
	assert.Equal(t, "EUR", p.BaseCurrency)
	assert.Equal(t, 5000.0, p.BaseBalance)
	assert.Equal(t, 250.0, p.Holding("erg"))

	grids := cfg.GridConfigs("erg", 2.0)
	require.Len(t, grids, 2)
	assert.Equal(t, 500.0, grids[0].BaseAmount)
	assert.Equal(t, 8, grids[0].OrderCount)
	assert.InDelta(t, 1.8, grids[0].PriceRange.Min, 1e-12)
	assert.InDelta(t, 2.2, grids[0].PriceRange.Max, 1e-12)
	require.NoError(t, grids[0].Validate())

	assert.Equal(t, 250*time.Millisecond, cfg.Server.TickInterval)
	assert.Equal(t, "json", cfg.Log.Format)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	calm, err := reg.Lookup("calm")
	require.NoError(t, err)
	assert.Equal(t, 0.2, calm.Volatility)
	_, err = reg.Lookup("bull")
	assert.NoError(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GRIDLAB_SIMULATION_FEE_RATE", "0.005")
	t.Setenv("GRIDLAB_SERVER_ADDR", ":9090")
	t.Setenv("GRIDLAB_STORAGE_POSTGRES_DSN", "postgres://localhost/grid")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.005, cfg.Simulation.FeeRate)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/grid", cfg.Storage.PostgresDSN)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative volatility", "simulation:\n  volatility: -1\n"},
		{"fee rate of one", "simulation:\n  fee_rate: 1\n"},
		{"unknown condition", "simulation:\n  market_condition: crab\n"},
		{"zero duration", "simulation:\n  duration_minutes: 0\n"},
		{"range percent", "grid:\n  range_percent: 1.5\n"},
		{"negative balance", "portfolio:\n  base_balance: -10\n"},
		{"bad scenario", "scenarios:\n  - name: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}
