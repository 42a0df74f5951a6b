package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env  string `mapstructure:"ENV"`
	Port string `mapstructure:"PORT"`

	// StoreDriver selects the snapshot store: redis, sqlite or memory.
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	RedisPass   string `mapstructure:"REDIS_PASS"`
	RedisDB     int    `mapstructure:"REDIS_DB"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	RulesPath           string        `mapstructure:"RULES_PATH"`
	StartingCoins       int64         `mapstructure:"STARTING_COINS"`
	StartingGems        int64         `mapstructure:"STARTING_GEMS"`
	MissionRollInterval time.Duration `mapstructure:"MISSION_ROLL_INTERVAL"`
}

var defaults = map[string]any{
	"ENV":                   "development",
	"PORT":                  "8080",
	"STORE_DRIVER":          "redis",
	"REDIS_URL":             "localhost:6379",
	"REDIS_PASS":            "",
	"REDIS_DB":              0,
	"SQLITE_PATH":           "hubpsp.db",
	"JWT_SECRET":            "",
	"JWT_TTL":               24 * time.Hour,
	"RULES_PATH":            "",
	"STARTING_COINS":        1000,
	"STARTING_GEMS":         0,
	"MISSION_ROLL_INTERVAL": 5 * time.Minute,
}

// Load reads configuration from the process environment.
// Call godotenv.Load first to pick up a .env file.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	switch cfg.StoreDriver {
	case "redis", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret"
	}

	if cfg.StartingCoins < 0 || cfg.StartingGems < 0 {
		return nil, fmt.Errorf("starting balances must be non-negative")
	}

	if cfg.MissionRollInterval <= 0 || cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("MISSION_ROLL_INTERVAL and JWT_TTL must be positive")
	}

	return &cfg, nil
}
