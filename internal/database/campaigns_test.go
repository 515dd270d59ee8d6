package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/store"
)

func TestUpdateCampaign_WritesHistoryAtomically(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	campaign := createTestCampaign(t, service, "owner-1", 1000)
	campaign.Status = models.StatusSuspended
	if err := service.UpdateCampaign(ctx, store.UpdateCampaignParams{
		Campaign: campaign, ExpectedStatus: models.StatusApproved,
	}); err != nil {
		t.Fatalf("Suspend update failed: %v", err)
	}

	campaign.Status = models.StatusApproved
	err := service.UpdateCampaign(ctx, store.UpdateCampaignParams{
		Campaign:       campaign,
		ExpectedStatus: models.StatusSuspended,
		History:        &models.ModerationEntry{ModeratorId: "mod-1", Action: models.ActionResume, Notes: "resolved"},
	})
	if err != nil {
		t.Fatalf("Resume update failed: %v", err)
	}

	history, err := service.ListModerationHistory(ctx, campaign.Id)
	if err != nil {
		t.Fatalf("ListModerationHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(history))
	}
	if history[0].Action != models.ActionResume || history[0].ModeratorId != "mod-1" {
		t.Errorf("Unexpected history entry: %+v", history[0])
	}
}

func TestUpdateCampaign_StaleStatus(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	campaign := createTestCampaign(t, service, "owner-1", 1000)
	campaign.Status = models.StatusApproved

	err := service.UpdateCampaign(ctx, store.UpdateCampaignParams{
		Campaign:       campaign,
		ExpectedStatus: models.StatusPending,
		History:        &models.ModerationEntry{ModeratorId: "mod-1", Action: models.ActionApprove},
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}

	history, err := service.ListModerationHistory(ctx, campaign.Id)
	if err != nil {
		t.Fatalf("ListModerationHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no history after failed update, got %d", len(history))
	}
}

func TestUpdateCampaign_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	err := service.UpdateCampaign(context.Background(), store.UpdateCampaignParams{
		Campaign:       &models.Campaign{Id: 404, Status: models.StatusPending},
		ExpectedStatus: models.StatusDraft,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCampaign_LeavesStripeReadyAlone(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	campaign := createTestCampaign(t, service, "owner-1", 1000)

	// The cascade runs after the campaign was read but before it is written.
	if _, err := service.SetCampaignsStripeReady(ctx, "owner-1", false); err != nil {
		t.Fatalf("SetCampaignsStripeReady failed: %v", err)
	}
	campaign.Status = models.StatusSuspended
	if err := service.UpdateCampaign(ctx, store.UpdateCampaignParams{Campaign: campaign, ExpectedStatus: models.StatusApproved}); err != nil {
		t.Fatalf("UpdateCampaign failed: %v", err)
	}

	stored, err := service.GetCampaign(ctx, campaign.Id)
	if err != nil {
		t.Fatalf("GetCampaign failed: %v", err)
	}
	if stored.Status != models.StatusSuspended || stored.StripeReady {
		t.Errorf("Expected suspended and not ready, got %s ready=%v", stored.Status, stored.StripeReady)
	}
}

func TestListReconcilableCampaigns(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	ready := createTestCampaign(t, service, "owner-1", 1000)

	createTestCampaign(t, service, "owner-2", 1000)
	if _, err := service.SetCampaignsStripeReady(ctx, "owner-2", false); err != nil {
		t.Fatalf("SetCampaignsStripeReady failed: %v", err)
	}

	pending := createTestCampaign(t, service, "owner-3", 1000)
	pending.Status = models.StatusPending
	if err := service.UpdateCampaign(ctx, store.UpdateCampaignParams{Campaign: pending, ExpectedStatus: models.StatusApproved}); err != nil {
		t.Fatalf("UpdateCampaign failed: %v", err)
	}

	campaigns, err := service.ListReconcilableCampaigns(ctx)
	if err != nil {
		t.Fatalf("ListReconcilableCampaigns failed: %v", err)
	}
	if len(campaigns) != 1 || campaigns[0].Id != ready.Id {
		t.Errorf("Expected only campaign %d, got %+v", ready.Id, campaigns)
	}

	byOwner, err := service.ListCampaigns(ctx, store.ListCampaignsParams{OwnerId: "owner-3"})
	if err != nil {
		t.Fatalf("ListCampaigns failed: %v", err)
	}
	if len(byOwner) != 1 || byOwner[0].Status != models.StatusPending {
		t.Errorf("Expected one pending campaign for owner-3, got %+v", byOwner)
	}
}

func TestAccounts_InsertUpdateAndCascade(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	first := createTestCampaign(t, service, "owner-1", 1000)
	second := createTestCampaign(t, service, "owner-1", 2000)
	other := createTestCampaign(t, service, "owner-2", 3000)

	expires := time.Now().Add(time.Hour).UTC()
	account := &models.PaymentAccount{
		UserId:              "owner-1",
		AccountId:           "acct_1",
		RequirementsDue:     []string{"external_account"},
		OnboardingUrl:       "https://connect.example/onboard",
		OnboardingExpiresAt: &expires,
	}
	if err := service.InsertAccount(ctx, account); err != nil {
		t.Fatalf("InsertAccount failed: %v", err)
	}

	duplicate := &models.PaymentAccount{UserId: "owner-1", AccountId: "acct_2"}
	if err := service.InsertAccount(ctx, duplicate); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}

	stored, err := service.GetAccountByUser(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GetAccountByUser failed: %v", err)
	}
	if stored.AccountId != "acct_1" || len(stored.RequirementsDue) != 1 || stored.OnboardingExpiresAt == nil {
		t.Errorf("Unexpected stored account: %+v", stored)
	}

	stored.Apply(models.AccountStatus{AccountId: "acct_1", ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true})
	if err := service.UpdateAccount(ctx, stored); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}

	byAccount, err := service.GetAccountByAccountId(ctx, "acct_1")
	if err != nil {
		t.Fatalf("GetAccountByAccountId failed: %v", err)
	}
	if !byAccount.IsReady() || byAccount.OnboardingUrl != "" || byAccount.OnboardingExpiresAt != nil {
		t.Errorf("Expected ready account with cleared onboarding link, got %+v", byAccount)
	}

	// Campaigns start ready in createTestCampaign; flip them off and count the cascade.
	changed, err := service.SetCampaignsStripeReady(ctx, "owner-1", false)
	if err != nil {
		t.Fatalf("SetCampaignsStripeReady failed: %v", err)
	}
	if changed != 2 {
		t.Errorf("Expected 2 campaigns changed, got %d", changed)
	}

	for _, id := range []int64{first.Id, second.Id} {
		c, err := service.GetCampaign(ctx, id)
		if err != nil {
			t.Fatalf("GetCampaign failed: %v", err)
		}
		if c.StripeReady {
			t.Errorf("Expected campaign %d to be not ready", id)
		}
	}

	untouched, err := service.GetCampaign(ctx, other.Id)
	if err != nil {
		t.Fatalf("GetCampaign failed: %v", err)
	}
	if !untouched.StripeReady {
		t.Error("Cascade must not touch other owners' campaigns")
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	if _, err := service.GetAccountByUser(context.Background(), "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := service.UpdateAccount(context.Background(), &models.PaymentAccount{AccountId: "acct_x"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
