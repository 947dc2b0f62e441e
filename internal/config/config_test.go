package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIPort != 8000 {
		t.Errorf("APIPort = %d, want 8000", cfg.APIPort)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %s, want 5m", cfg.SweepInterval)
	}
	if cfg.DBPoolMaxLife != 30*time.Minute {
		t.Errorf("DBPoolMaxLife = %s, want 30m", cfg.DBPoolMaxLife)
	}
	if cfg.DispatchBatchSize != 100 || cfg.DispatchInterval != 30*time.Second {
		t.Errorf("dispatch = %d every %s, want 100 every 30s", cfg.DispatchBatchSize, cfg.DispatchInterval)
	}
	if want := []string{"http://localhost:3000", "http://localhost:4321", "http://localhost:5173"}; !reflect.DeepEqual(cfg.CORSAllowOrigins, want) {
		t.Errorf("CORSAllowOrigins = %v, want %v", cfg.CORSAllowOrigins, want)
	}
	if cfg.NotifyLocation().String() != "Europe/Madrid" {
		t.Errorf("NotifyLocation = %s, want Europe/Madrid", cfg.NotifyLocation())
	}
	if cfg.StreamEnabled() {
		t.Error("StreamEnabled without NATS_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/md.db")
	t.Setenv("PORT", "9090")
	t.Setenv("SWEEP_INTERVAL", "90s")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("NOTIFY_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want PORT fallback 9090", cfg.APIPort)
	}
	if cfg.SweepInterval != 90*time.Second {
		t.Errorf("SweepInterval = %s, want 1m30s", cfg.SweepInterval)
	}
	if len(cfg.CORSAllowOrigins) != 2 {
		t.Errorf("CORSAllowOrigins = %v", cfg.CORSAllowOrigins)
	}
	if !cfg.StreamEnabled() {
		t.Error("StreamEnabled = false with NATS_URL set")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"production without secret", map[string]string{"STORE_DRIVER": "memory", "ENVIRONMENT": "production", "JWT_SECRET": ""}},
		{"bad timezone", map[string]string{"STORE_DRIVER": "memory", "NOTIFY_TIMEZONE": "Mars/Olympus"}},
		{"bad duration", map[string]string{"STORE_DRIVER": "memory", "SWEEP_INTERVAL": "often"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("Load succeeded, want error")
			}
		})
	}
}
