package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
	"campaign-funding-go/internal/store"
)

func testConfig(t *testing.T) models.DatabaseConfig {
	return models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
		BusyTimeout:     5 * time.Second,
	}
}

func setupTestDb(t *testing.T) (*Service, func()) {
	service, err := NewService(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}

	return service, cleanup
}

func createTestCampaign(t *testing.T, service *Service, ownerId string, target int64) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		Title:        "Clean water",
		Description:  "Wells for the village",
		TargetAmount: money.FromMinorUnits(target),
		Status:       models.StatusApproved,
		StripeReady:  true,
		OwnerId:      ownerId,
	}
	if err := service.CreateCampaign(context.Background(), campaign); err != nil {
		t.Fatalf("CreateCampaign failed: %v", err)
	}
	return campaign
}

func TestNewService_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.DatabaseConfig)
	}{
		{"empty path", func(c *models.DatabaseConfig) { c.Path = "" }},
		{"zero max open", func(c *models.DatabaseConfig) { c.MaxOpenConns = 0 }},
		{"negative idle", func(c *models.DatabaseConfig) { c.MaxIdleConns = -1 }},
		{"zero ping timeout", func(c *models.DatabaseConfig) { c.PingTimeout = 0 }},
		{"negative busy timeout", func(c *models.DatabaseConfig) { c.BusyTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			if _, err := NewService(context.Background(), cfg); err == nil {
				t.Error("Expected configuration error")
			}
		})
	}
}

func TestNewService_SchemaIsIdempotent(t *testing.T) {
	cfg := testConfig(t)

	first, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	createTestCampaign(t, first, "owner-1", 1000)
	first.Close()

	second, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	defer second.Close()

	campaigns, err := second.ListCampaigns(context.Background(), store.ListCampaignsParams{})
	if err != nil {
		t.Fatalf("ListCampaigns failed: %v", err)
	}
	if len(campaigns) != 1 {
		t.Errorf("Expected 1 campaign after reopen, got %d", len(campaigns))
	}
}

func TestDsn(t *testing.T) {
	got := dsn(models.DatabaseConfig{Path: "campaigns.db", BusyTimeout: 5 * time.Second})
	want := "campaigns.db?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=on&_busy_timeout=5000"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
