package config

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"

	"pokemon-battle-server/game"
)

// Store drivers accepted in StoreDriver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// RulesConfig holds the tunable game constants.
type RulesConfig struct {
	CopiesPerCard  int `json:"copies_per_card" env:"COPIES_PER_CARD"`
	HandSize       int `json:"hand_size" env:"HAND_SIZE"`
	BenchLimit     int `json:"bench_limit" env:"BENCH_LIMIT"`
	KnockoutsToWin int `json:"knockouts_to_win" env:"KNOCKOUTS_TO_WIN"`
}

// GameRules converts the configured values to engine rules. Unset values
// keep the engine defaults.
func (r RulesConfig) GameRules() game.Rules {
	rules := game.DefaultRules()
	if r.CopiesPerCard > 0 {
		rules.CopiesPerCard = r.CopiesPerCard
	}
	if r.HandSize > 0 {
		rules.HandSize = r.HandSize
	}
	if r.BenchLimit > 0 {
		rules.BenchLimit = r.BenchLimit
	}
	if r.KnockoutsToWin > 0 {
		rules.KnockoutsToWin = r.KnockoutsToWin
	}
	return rules
}

// BotParams holds the parameters for one bot profile (name and behavior).
type BotParams struct {
	Name          string `json:"name"`
	DelayMinMS    int    `json:"delay_min_ms"`
	DelayMaxMS    int    `json:"delay_max_ms"`
	MistakeChance int    `json:"mistake_chance"` // 0-100, probability to pick a random card instead of the best one
}

// Config holds all configurable server parameters.
type Config struct {
	WSPort         int    `json:"ws_port" env:"WS_PORT"`
	StoreDriver    string `json:"store_driver" env:"STORE_DRIVER"`
	DatabaseURL    string `json:"-" env:"DATABASE_URL"`
	SQLitePath     string `json:"sqlite_path" env:"SQLITE_PATH"`
	AuthBaseURL    string `json:"auth_base_url" env:"AUTH_BASE_URL"`
	MaxSaveRetries int    `json:"max_save_retries" env:"MAX_SAVE_RETRIES"`
	LogLevel       string `json:"log_level" env:"LOG_LEVEL"`

	Rules RulesConfig `json:"rules"`

	// BotProfiles lists available bot opponents; one is chosen at random for each add_bot request.
	BotProfiles []BotParams `json:"bot_profiles"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		WSPort:         8080,
		StoreDriver:    DriverMemory,
		SQLitePath:     "pokemon.db",
		MaxSaveRetries: 5,
		LogLevel:       "info",
		Rules: RulesConfig{
			CopiesPerCard:  5,
			HandSize:       5,
			BenchLimit:     5,
			KnockoutsToWin: 3,
		},
		BotProfiles: []BotParams{
			{Name: "Brock", DelayMinMS: 800, DelayMaxMS: 2000, MistakeChance: 10},
			{Name: "Misty", DelayMinMS: 500, DelayMaxMS: 1200, MistakeChance: 25},
		},
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	return LoadFrom("config.json")
}

// LoadFrom is Load with an explicit JSON path.
func LoadFrom(path string) *Config {
	cfg := Defaults()

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			slog.Warn("failed to parse config file", "tag", "config", "path", path, "err", err)
		}
	}

	// Parse into a copy so one bad variable leaves the file/default values intact.
	next := *cfg
	if err := env.Parse(&next); err != nil {
		slog.Warn("invalid environment override, ignoring environment", "tag", "config", "err", err)
		return cfg
	}
	return &next
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
