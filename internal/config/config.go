package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/MJE43/levelup/internal/scoring"
)

type Config struct {
	Addr          string
	Game          string
	ScoringFile   string
	ScriptTimeout time.Duration
	TickInterval  time.Duration
	Debug         bool
	Policy        scoring.Policy
}

// Load reads .env (when present) and the environment, then applies the
// optional scoring file over the default policy.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, reading from environment")
	}

	cfg := &Config{
		Addr:          getEnv("LEVELUP_ADDR", "127.0.0.1:8077"),
		Game:          getEnv("LEVELUP_GAME", "gauntlet"),
		ScoringFile:   os.Getenv("LEVELUP_SCORING_FILE"),
		ScriptTimeout: time.Duration(getEnvAsInt("LEVELUP_SCRIPT_TIMEOUT_MS", 1000)) * time.Millisecond,
		TickInterval:  time.Duration(getEnvAsInt("LEVELUP_TICK_MS", 1000)) * time.Millisecond,
		Debug:         getEnvAsBool("LEVELUP_DEBUG", false),
		Policy:        scoring.DefaultPolicy(),
	}

	if cfg.ScriptTimeout <= 0 {
		return nil, fmt.Errorf("LEVELUP_SCRIPT_TIMEOUT_MS must be positive")
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("LEVELUP_TICK_MS must be positive")
	}

	if cfg.ScoringFile != "" {
		policy, err := LoadPolicy(cfg.ScoringFile, cfg.Policy)
		if err != nil {
			return nil, err
		}
		cfg.Policy = policy
	}

	return cfg, nil
}

// ScoringFile is the TOML shape of a scoring override. Unset keys keep the
// base policy value.
type ScoringFile struct {
	BaseReward    *int           `toml:"base_reward"`
	BonusReward   *int           `toml:"bonus_reward"`
	TimeBonusMax  *int           `toml:"time_bonus_max"`
	HintPenalty   *int           `toml:"hint_penalty"`
	FirstTryBonus *int           `toml:"first_try_bonus"`
	Tiers         []scoring.Tier `toml:"tier"`
}

// Apply merges the file over base. A non-empty tier list replaces base tiers.
func (f ScoringFile) Apply(base scoring.Policy) scoring.Policy {
	p := base
	p.Tiers = append([]scoring.Tier(nil), base.Tiers...)
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.BaseReward, f.BaseReward)
	set(&p.BonusReward, f.BonusReward)
	set(&p.TimeBonusMax, f.TimeBonusMax)
	set(&p.HintPenalty, f.HintPenalty)
	set(&p.FirstTryBonus, f.FirstTryBonus)
	if len(f.Tiers) > 0 {
		p.Tiers = append([]scoring.Tier(nil), f.Tiers...)
	}
	return p
}

// LoadPolicy decodes a scoring file and merges it over base.
func LoadPolicy(path string, base scoring.Policy) (scoring.Policy, error) {
	var f ScoringFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return base, fmt.Errorf("scoring file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return base, fmt.Errorf("scoring file %s: unknown key %s", path, undecoded[0])
	}

	p := f.Apply(base)
	if err := p.Validate(); err != nil {
		return base, fmt.Errorf("scoring file %s: %w", path, err)
	}
	return p, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
