// Package config loads application configuration from a TOML file with
// environment-variable overrides (a .env file is picked up when present).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Listen     string            `toml:"listen"`
	DBPath     string            `toml:"db_path"`
	ChartPath  string            `toml:"chart_path"`
	BillingDay int               `toml:"billing_day"`
	Methods    map[string]string `toml:"payment_methods"`
	Kafka      KafkaConfig       `toml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:     ":8880",
		DBPath:     "dormbooks.db",
		BillingDay: 1,
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "ledger_entries",
		},
	}
}

// Load reads the config file if path is non-empty, then applies environment
// overrides. Missing file with an empty path just yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// .env is optional; real env vars win over it either way.
	_ = godotenv.Load()

	if v := os.Getenv("DORMBOOKS_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("DORMBOOKS_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DORMBOOKS_CHART"); v != "" {
		cfg.ChartPath = v
	}
	if v := os.Getenv("DORMBOOKS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("DORMBOOKS_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}

	if cfg.BillingDay < 1 || cfg.BillingDay > 28 {
		return nil, fmt.Errorf("billing_day %d out of range 1-28", cfg.BillingDay)
	}
	return cfg, nil
}
