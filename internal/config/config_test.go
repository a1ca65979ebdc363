package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8880" {
		t.Errorf("Listen = %s", cfg.Listen)
	}
	if cfg.DBPath != "dormbooks.db" {
		t.Errorf("DBPath = %s", cfg.DBPath)
	}
	if cfg.BillingDay != 1 {
		t.Errorf("BillingDay = %d", cfg.BillingDay)
	}
	if cfg.Kafka.Enabled {
		t.Error("kafka enabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dormbooks.toml")
	data := `listen = ":9000"
db_path = "/var/lib/dormbooks/ledger.db"
billing_day = 5

[payment_methods]
cheque = "1010"

[kafka]
enabled = true
brokers = ["k1:9092", "k2:9092"]
topic = "entries"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.BillingDay != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Methods["cheque"] != "1010" {
		t.Errorf("payment_methods = %v", cfg.Methods)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Topic != "entries" {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DORMBOOKS_LISTEN", ":7777")
	t.Setenv("DORMBOOKS_DB", "override.db")
	t.Setenv("DORMBOOKS_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":7777" || cfg.DBPath != "override.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
}

func TestBillingDayRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("billing_day = 31\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("billing_day 31 accepted")
	}
}
