package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)
	t.Setenv("STRIPE_SECRET_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Database.Path != "campaigns.db" {
		t.Errorf("Expected default database path, got %q", cfg.Database.Path)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.BusyTimeout != 5*time.Second {
		t.Errorf("Unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Server.Port != "8080" || cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Reconcile.SweepConcurrency != 4 || cfg.Reconcile.Interval != 0 {
		t.Errorf("Unexpected reconcile defaults: %+v", cfg.Reconcile)
	}
	if cfg.Events.Exchange != "donation_events" {
		t.Errorf("Expected donation_events exchange, got %q", cfg.Events.Exchange)
	}
	if cfg.Processor.Configured() {
		t.Error("Processor should not be configured without a secret key")
	}
	if cfg.Formance.Configured() {
		t.Error("Formance should not be configured without credentials")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	resetViper(t)
	t.Setenv("DATABASE_PATH", "/tmp/funding.db")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("FRONTEND_BASE_URL", "https://give.example.org/")
	t.Setenv("RECONCILE_INTERVAL", "15m")
	t.Setenv("RECONCILE_SWEEP_CONCURRENCY", "8")
	t.Setenv("CONFIRM_RATE_LIMIT_PER_MINUTE", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Database.Path != "/tmp/funding.db" {
		t.Errorf("Expected env database path, got %q", cfg.Database.Path)
	}
	if !cfg.Processor.Configured() || cfg.Processor.WebhookSecret != "whsec_123" {
		t.Errorf("Processor config not loaded: %+v", cfg.Processor)
	}
	if cfg.Processor.FrontendBaseUrl != "https://give.example.org" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.Processor.FrontendBaseUrl)
	}
	if cfg.Processor.ConnectReturnUrl != "https://give.example.org/payments/onboarding/complete" {
		t.Errorf("Expected derived return url, got %q", cfg.Processor.ConnectReturnUrl)
	}
	if cfg.Reconcile.Interval != 15*time.Minute || cfg.Reconcile.SweepConcurrency != 8 {
		t.Errorf("Unexpected reconcile config: %+v", cfg.Reconcile)
	}
	if cfg.Redis.ConfirmLimitPerMinute != 5 {
		t.Errorf("Expected confirm limit 5, got %d", cfg.Redis.ConfirmLimitPerMinute)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DB_PING_TIMEOUT", "soon"},
		{"RECONCILE_INTERVAL", "-5m"},
		{"DB_MAX_OPEN_CONNS", "many"},
		{"RECONCILE_SWEEP_CONCURRENCY", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			resetViper(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("Expected error for %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("Expected error to mention %s, got %v", tt.key, err)
			}
		})
	}
}
