package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is centralized process configuration.
// Defaults are overlaid by the optional CONFIG_FILE (YAML) and then by
// environment variables.
type Config struct {
	ServiceName   string   `yaml:"service_name"`
	PostgresDSN   string   `yaml:"postgres_dsn"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	KafkaBrokers  []string `yaml:"kafka_brokers"`
	LogLevel      string   `yaml:"log_level"`

	TallyRefreshInterval time.Duration `yaml:"tally_refresh_interval"`
	TallyProjectionTTL   time.Duration `yaml:"tally_projection_ttl"`
	EnableTallyRefresher bool          `yaml:"enable_tally_refresher"`
	PrioritizeLeastVoted bool          `yaml:"prioritize_least_voted"`
}

func Default() Config {
	return Config{
		ServiceName:          "crowdlabel",
		RedisAddr:            "localhost:6379",
		KafkaBrokers:         []string{"localhost:9092"},
		LogLevel:             "info",
		TallyRefreshInterval: 30 * time.Second,
		TallyProjectionTTL:   24 * time.Hour,
		EnableTallyRefresher: true,
	}
}

func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	cfg.ServiceName = envString("SERVICE_NAME", cfg.ServiceName)
	cfg.PostgresDSN = envString("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = envString("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envString("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.EnableTallyRefresher = envBool("ENABLE_TALLY_REFRESHER", cfg.EnableTallyRefresher)
	cfg.PrioritizeLeastVoted = envBool("PRIORITIZE_LEAST_VOTED", cfg.PrioritizeLeastVoted)

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", cfg.RedisDB); err != nil {
		return Config{}, err
	}
	if cfg.TallyRefreshInterval, err = envDuration("TALLY_REFRESH_INTERVAL", cfg.TallyRefreshInterval); err != nil {
		return Config{}, err
	}
	if cfg.TallyProjectionTTL, err = envDuration("TALLY_PROJECTION_TTL", cfg.TallyProjectionTTL); err != nil {
		return Config{}, err
	}
	if cfg.TallyRefreshInterval <= 0 {
		return Config{}, fmt.Errorf("TALLY_REFRESH_INTERVAL must be positive, got %s", cfg.TallyRefreshInterval)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog level; unknown values fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envString(name string, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}
