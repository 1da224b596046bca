package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MJE43/levelup/internal/scoring"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"LEVELUP_ADDR", "LEVELUP_GAME", "LEVELUP_SCORING_FILE", "LEVELUP_SCRIPT_TIMEOUT_MS", "LEVELUP_TICK_MS", "LEVELUP_DEBUG"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != "127.0.0.1:8077" || cfg.Game != "gauntlet" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.ScriptTimeout != time.Second || cfg.TickInterval != time.Second {
		t.Errorf("unexpected durations %v %v", cfg.ScriptTimeout, cfg.TickInterval)
	}
	if cfg.Policy.BaseReward != scoring.DefaultPolicy().BaseReward {
		t.Errorf("expected default policy, got %+v", cfg.Policy)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEVELUP_ADDR", ":9000")
	t.Setenv("LEVELUP_GAME", "bigo")
	t.Setenv("LEVELUP_SCRIPT_TIMEOUT_MS", "250")
	t.Setenv("LEVELUP_TICK_MS", "not-a-number")
	t.Setenv("LEVELUP_DEBUG", "true")
	t.Setenv("LEVELUP_SCORING_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Game != "bigo" || !cfg.Debug {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.ScriptTimeout != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.ScriptTimeout)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("unparseable value should fall back to default, got %v", cfg.TickInterval)
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEVELUP_SCRIPT_TIMEOUT_MS", "0")
	t.Setenv("LEVELUP_SCORING_FILE", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero timeout")
	}
}

func TestLoadPolicyMerges(t *testing.T) {
	path := writeFile(t, "scoring.toml", `
base_reward = 200
hint_penalty = 25

[[tier]]
min_streak = 2
multiplier = 4
`)
	p, err := LoadPolicy(path, scoring.DefaultPolicy())
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if p.BaseReward != 200 || p.HintPenalty != 25 {
		t.Errorf("overrides not applied: %+v", p)
	}
	if p.BonusReward != 50 || p.TimeBonusMax != 50 {
		t.Errorf("unset keys should keep defaults: %+v", p)
	}
	if len(p.Tiers) != 1 || p.Multiplier(2) != 4 {
		t.Errorf("tiers not replaced: %+v", p.Tiers)
	}
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"negative":    "base_reward = -1\n",
		"bad tier":    "[[tier]]\nmin_streak = 3\nmultiplier = 0\n",
		"unknown key": "bogus = 1\n",
		"not toml":    "base_reward = \n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "scoring.toml", body)
			base := scoring.DefaultPolicy()
			p, err := LoadPolicy(path, base)
			if err == nil {
				t.Fatal("expected error")
			}
			if p.BaseReward != base.BaseReward {
				t.Errorf("base policy should be returned on error, got %+v", p)
			}
		})
	}
}

func TestLoadPolicyValidationError(t *testing.T) {
	path := writeFile(t, "scoring.toml", "first_try_bonus = -5\n")
	if _, err := LoadPolicy(path, scoring.DefaultPolicy()); !errors.Is(err, scoring.ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestLoadWithScoringFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEVELUP_SCRIPT_TIMEOUT_MS", "")
	t.Setenv("LEVELUP_TICK_MS", "")
	t.Setenv("LEVELUP_SCORING_FILE", writeFile(t, "scoring.toml", "time_bonus_max = 80\n"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Policy.TimeBonusMax != 80 {
		t.Errorf("expected scoring file to apply, got %+v", cfg.Policy)
	}
}
