package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
	"campaign-funding-go/internal/store"
)

func TestRecordDonation_Created(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	campaign := createTestCampaign(t, service, "owner-1", 100000)

	result, err := service.RecordDonation(ctx, store.RecordDonationParams{
		CampaignId:       campaign.Id,
		PaymentReference: "pi_123",
		Amount:           money.FromMinorUnits(5000),
	})
	if err != nil {
		t.Fatalf("RecordDonation failed: %v", err)
	}
	if result.Outcome != models.OutcomeCreated {
		t.Errorf("Expected outcome created, got %s", result.Outcome)
	}
	donation := result.Donation
	if donation.Amount.String() != "50.00" {
		t.Errorf("Expected amount 50.00, got %s", donation.Amount)
	}
	if !donation.IsAnonymous {
		t.Error("Expected donation to be anonymous")
	}
}

func TestRecordDonation_DuplicateHandling(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	campaign := createTestCampaign(t, service, "owner-1", 100000)
	params := store.RecordDonationParams{
		CampaignId:       campaign.Id,
		PaymentReference: "pi_123",
		Amount:           money.FromMinorUnits(5000),
	}

	first, err := service.RecordDonation(ctx, params)
	if err != nil {
		t.Fatalf("First RecordDonation failed: %v", err)
	}

	second, err := service.RecordDonation(ctx, params)
	if err != nil {
		t.Fatalf("Second RecordDonation failed: %v", err)
	}
	if second.Outcome != models.OutcomeUnchanged {
		t.Errorf("Expected outcome unchanged, got %s", second.Outcome)
	}
	if second.Donation.Id != first.Donation.Id {
		t.Errorf("Expected same donation %s, got %s", first.Donation.Id, second.Donation.Id)
	}

	donations, err := service.ListDonations(ctx, campaign.Id)
	if err != nil {
		t.Fatalf("ListDonations failed: %v", err)
	}
	if len(donations) != 1 {
		t.Errorf("Expected 1 donation, got %d", len(donations))
	}
}

func TestRecordDonation_AmountCorrection(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	campaign := createTestCampaign(t, service, "owner-1", 100000)

	_, err := service.RecordDonation(ctx, store.RecordDonationParams{
		CampaignId: campaign.Id, PaymentReference: "pi_123", Amount: money.FromMinorUnits(5000),
	})
	if err != nil {
		t.Fatalf("RecordDonation failed: %v", err)
	}

	result, err := service.RecordDonation(ctx, store.RecordDonationParams{
		CampaignId: campaign.Id, PaymentReference: "pi_123", Amount: money.FromMinorUnits(6000),
	})
	if err != nil {
		t.Fatalf("Correcting RecordDonation failed: %v", err)
	}
	if result.Outcome != models.OutcomeUpdated {
		t.Errorf("Expected outcome updated, got %s", result.Outcome)
	}
	if result.Donation.Amount.String() != "60.00" {
		t.Errorf("Expected corrected amount 60.00, got %s", result.Donation.Amount)
	}
	if result.PreviousAmount.String() != "50.00" {
		t.Errorf("Expected previous amount 50.00, got %s", result.PreviousAmount)
	}

	stored, err := service.GetDonationByReference(ctx, "pi_123")
	if err != nil {
		t.Fatalf("GetDonationByReference failed: %v", err)
	}
	if stored.Amount.ToMinorUnits() != 6000 {
		t.Errorf("Expected stored amount 6000, got %d", stored.Amount.ToMinorUnits())
	}
}

func TestRecordDonation_ConcurrentDuplicates(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	campaign := createTestCampaign(t, service, "owner-1", 100000)

	const workers = 8
	outcomes := make(chan models.DonationOutcome, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.RecordDonation(ctx, store.RecordDonationParams{
				CampaignId: campaign.Id, PaymentReference: "pi_concurrent", Amount: money.FromMinorUnits(5000),
			})
			if err != nil {
				errs <- err
				return
			}
			outcomes <- result.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)
	close(errs)

	for err := range errs {
		t.Errorf("RecordDonation failed: %v", err)
	}

	created := 0
	for outcome := range outcomes {
		if outcome == models.OutcomeCreated {
			created++
		} else if outcome != models.OutcomeUnchanged {
			t.Errorf("Unexpected outcome %s", outcome)
		}
	}
	if created != 1 {
		t.Errorf("Expected exactly 1 created outcome, got %d", created)
	}
}

func TestRecordDonation_UnknownCampaign(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.RecordDonation(context.Background(), store.RecordDonationParams{
		CampaignId: 999, PaymentReference: "pi_orphan", Amount: money.FromMinorUnits(100),
	})
	if err == nil {
		t.Fatal("Expected foreign key error for unknown campaign")
	}
}

func TestGetDonationByReference_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.GetDonationByReference(context.Background(), "pi_missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecalculateCampaignAmount_RepairsDrift(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	campaign := createTestCampaign(t, service, "owner-1", 100000)

	for i, amount := range []int64{3000, 5000} {
		_, err := service.RecordDonation(ctx, store.RecordDonationParams{
			CampaignId:       campaign.Id,
			PaymentReference: fmt.Sprintf("pi_%d", i),
			Amount:           money.FromMinorUnits(amount),
		})
		if err != nil {
			t.Fatalf("RecordDonation failed: %v", err)
		}
	}

	// Simulate a lost increment: the stored total lags the ledger.
	if err := service.IncrementCampaignAmount(ctx, campaign.Id, money.FromMinorUnits(3000)); err != nil {
		t.Fatalf("IncrementCampaignAmount failed: %v", err)
	}

	total, changed, err := service.RecalculateCampaignAmount(ctx, campaign.Id)
	if err != nil {
		t.Fatalf("RecalculateCampaignAmount failed: %v", err)
	}
	if !changed {
		t.Error("Expected recalculation to report a correction")
	}
	if total.String() != "80.00" {
		t.Errorf("Expected total 80.00, got %s", total)
	}

	total, changed, err = service.RecalculateCampaignAmount(ctx, campaign.Id)
	if err != nil {
		t.Fatalf("Second RecalculateCampaignAmount failed: %v", err)
	}
	if changed {
		t.Error("Expected second recalculation to be a no-op")
	}
	if total.String() != "80.00" {
		t.Errorf("Expected total 80.00, got %s", total)
	}
}

func TestRecalculateCampaignAmount_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, _, err := service.RecalculateCampaignAmount(context.Background(), 404)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestIncrementCampaignAmount_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	err := service.IncrementCampaignAmount(context.Background(), 404, money.FromMinorUnits(100))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
