// Package daemon manages the clawhire daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/market"
)

// Config holds all daemon configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	API       APIConfig       `toml:"api"`
	Economy   EconomyConfig   `toml:"economy"`
	Windows   WindowsConfig   `toml:"windows"`
	Mining    MiningConfig    `toml:"mining"`
	Storage   StorageConfig   `toml:"storage"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// NodeConfig identifies the operator accounts.
type NodeConfig struct {
	Owner    string `toml:"owner"`
	Resolver string `toml:"resolver"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// EconomyConfig controls fees and splits, in basis points.
type EconomyConfig struct {
	FeeBps           int64 `toml:"fee_bps"`
	OrchestratorBps  int64 `toml:"orchestrator_bps"`
	TreasuryBps      int64 `toml:"treasury_bps"`
	BurnBps          int64 `toml:"burn_bps"`
	DisputeSlashBps  int64 `toml:"dispute_slash_bps"`
	DisputePosterBps int64 `toml:"dispute_poster_bps"`
	FaucetEnabled    bool  `toml:"faucet_enabled"`
}

// WindowsConfig controls the time-based windows, in hours.
type WindowsConfig struct {
	DisputeHours     int `toml:"dispute_hours"`
	AutoApproveHours int `toml:"auto_approve_hours"`
	AbandonmentHours int `toml:"abandonment_hours"`
}

// MiningConfig controls the HIRE emission schedule.
type MiningConfig struct {
	InitialRate int64 `toml:"initial_rate"`
	EpochUSDC   int64 `toml:"epoch_usdc"`
	PoolCap     int64 `toml:"pool_cap"`
}

// StorageConfig controls the SQLite data directory.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// TelemetryConfig controls observability surfaces.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	ref := market.DefaultConfig()
	return Config{
		Node: NodeConfig{
			Owner:    "owner",
			Resolver: "resolver",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8448,
		},
		Economy: EconomyConfig{
			FeeBps:           ref.FeeBps,
			OrchestratorBps:  ref.OrchestratorBps,
			TreasuryBps:      ref.Revenue.TreasuryBps,
			BurnBps:          ref.Revenue.BurnBps,
			DisputeSlashBps:  ref.DisputeSlashBps,
			DisputePosterBps: ref.DisputePosterBps,
		},
		Windows: WindowsConfig{
			DisputeHours:     int(ref.DisputeWindow / time.Hour),
			AutoApproveHours: int(ref.AutoApproveWindow / time.Hour),
			AbandonmentHours: 90 * 24,
		},
		Mining: MiningConfig{
			InitialRate: ref.Mining.InitialRate,
			EpochUSDC:   ref.Mining.EpochUSDC,
			PoolCap:     ref.Mining.PoolCap,
		},
		Storage: StorageConfig{
			Dir: clawhireHome(),
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// EngineConfig translates the daemon config into engine parameters.
func (c Config) EngineConfig() market.Config {
	cfg := market.DefaultConfig()
	cfg.Owner = c.Node.Owner
	cfg.Resolver = c.Node.Resolver
	cfg.FeeBps = c.Economy.FeeBps
	cfg.OrchestratorBps = c.Economy.OrchestratorBps
	cfg.DisputeSlashBps = c.Economy.DisputeSlashBps
	cfg.DisputePosterBps = c.Economy.DisputePosterBps
	cfg.FaucetEnabled = c.Economy.FaucetEnabled
	cfg.Revenue.TreasuryBps = c.Economy.TreasuryBps
	cfg.Revenue.BurnBps = c.Economy.BurnBps
	cfg.DisputeWindow = time.Duration(c.Windows.DisputeHours) * time.Hour
	cfg.AutoApproveWindow = time.Duration(c.Windows.AutoApproveHours) * time.Hour
	cfg.Mining.InitialRate = c.Mining.InitialRate
	cfg.Mining.EpochUSDC = c.Mining.EpochUSDC
	cfg.Mining.PoolCap = c.Mining.PoolCap
	return cfg
}

// AbandonmentWindow returns the configured dead-man's-switch window.
func (c Config) AbandonmentWindow() time.Duration {
	return time.Duration(c.Windows.AbandonmentHours) * time.Hour
}

// LoadConfig reads config from ~/.clawhire/config.toml, falling back to
// defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(clawhireHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.clawhire/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(clawhireHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// clawhireHome returns the clawhire data directory.
func clawhireHome() string {
	if env := os.Getenv("CLAWHIRE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".clawhire")
}
