package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Port != 8448 {
		t.Errorf("port = %d, want 8448", cfg.API.Port)
	}
	if cfg.Economy.FeeBps != 250 {
		t.Errorf("fee = %d bps, want 250", cfg.Economy.FeeBps)
	}
	if cfg.Economy.FaucetEnabled {
		t.Error("faucet enabled by default")
	}
	if cfg.Mining.PoolCap != 500_000_000 {
		t.Errorf("pool cap = %d, want 500000000", cfg.Mining.PoolCap)
	}
	if cfg.Windows.AbandonmentHours != 90*24 {
		t.Errorf("abandonment = %d hours, want %d", cfg.Windows.AbandonmentHours, 90*24)
	}

	if err := cfg.EngineConfig().Validate(); err != nil {
		t.Errorf("engine config from defaults invalid: %v", err)
	}
}

func TestEngineConfigTranslation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Node.Owner = "ops"
	cfg.Node.Resolver = "court"
	cfg.Economy.FeeBps = 100
	cfg.Economy.TreasuryBps = 4000
	cfg.Windows.DisputeHours = 48
	cfg.Mining.InitialRate = 5

	ec := cfg.EngineConfig()
	if ec.Owner != "ops" || ec.Resolver != "court" {
		t.Errorf("accounts = %s/%s, want ops/court", ec.Owner, ec.Resolver)
	}
	if ec.FeeBps != 100 {
		t.Errorf("fee = %d, want 100", ec.FeeBps)
	}
	if ec.Revenue.TreasuryBps != 4000 {
		t.Errorf("treasury = %d, want 4000", ec.Revenue.TreasuryBps)
	}
	if ec.DisputeWindow != 48*time.Hour {
		t.Errorf("dispute window = %v, want 48h", ec.DisputeWindow)
	}
	if ec.Mining.InitialRate != 5 {
		t.Errorf("rate = %d, want 5", ec.Mining.InitialRate)
	}
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("CLAWHIRE_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 9999
	cfg.Economy.FeeBps = 120
	cfg.Economy.FaucetEnabled = true
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.API.Port != 9999 {
		t.Errorf("port = %d, want 9999", loaded.API.Port)
	}
	if loaded.Economy.FeeBps != 120 {
		t.Errorf("fee = %d, want 120", loaded.Economy.FeeBps)
	}
	if !loaded.Economy.FaucetEnabled {
		t.Error("faucet flag lost in round trip")
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CLAWHIRE_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("port = %d, want default", cfg.API.Port)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CLAWHIRE_HOME", home)

	// Unset keys fall back to defaults.
	partial := "[api]\nport = 7001\n"
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(partial), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 7001 {
		t.Errorf("port = %d, want 7001", cfg.API.Port)
	}
	if cfg.Economy.FeeBps != 250 {
		t.Errorf("fee = %d, want default 250", cfg.Economy.FeeBps)
	}
}
