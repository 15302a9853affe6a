package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverMemory || cfg.Store.TTL != 720*time.Hour {
		t.Fatalf("store defaults: %+v", cfg.Store)
	}
	if cfg.Query.ScanLimit != 100 || cfg.DynamoDB.Table != "TradingAlerts" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Query, cfg.DynamoDB)
	}
	if cfg.HTTP.MetricsPath != "/metrics" || cfg.HTTP.MaxBodyBytes != 1<<20 {
		t.Fatalf("http defaults: %+v", cfg.HTTP)
	}
	if cfg.App.Environment != "test" {
		t.Fatalf("file value ignored: %+v", cfg.App)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: bolt
bolt:
  path: /tmp/alerts.db
retention:
  enabled: true
  interval: 15m
`)
	t.Setenv("TVWEBHOOK_QUERY_SCAN_LIMIT", "250")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverBolt || cfg.Bolt.Path != "/tmp/alerts.db" {
		t.Fatalf("store: %+v %+v", cfg.Store, cfg.Bolt)
	}
	if !cfg.Retention.Enabled || cfg.Retention.Interval != 15*time.Minute {
		t.Fatalf("retention: %+v", cfg.Retention)
	}
	if cfg.Query.ScanLimit != 250 {
		t.Fatalf("env override ignored: scan_limit=%d", cfg.Query.ScanLimit)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Store:  StoreConfig{Driver: DriverMemory, TTL: time.Hour},
			HTTP:   HTTPConfig{MaxBodyBytes: 1024},
			Query:  QueryConfig{ScanLimit: 10},
			Export: ExportConfig{MaxRows: 10, Bucket: time.Hour},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "database.dsn"},
		{"dynamodb without table", func(c *Config) { c.Store.Driver = DriverDynamoDB }, "dynamodb.table"},
		{"zero ttl", func(c *Config) { c.Store.TTL = 0 }, "store.ttl"},
		{"zero scan limit", func(c *Config) { c.Query.ScanLimit = 0 }, "query.scan_limit"},
		{"retention without interval", func(c *Config) { c.Retention.Enabled = true }, "retention.interval"},
		{"telegram without token", func(c *Config) {
			c.Alerting.Enabled = true
			c.Alerting.Telegram.Enabled = true
		}, "bot_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestResolveMaxRows(t *testing.T) {
	cfg := Config{Export: ExportConfig{MaxRows: 500}}
	if cfg.ResolveMaxRows(0) != 500 || cfg.ResolveMaxRows(20) != 20 {
		t.Fatal("override should win only when positive")
	}
}
