package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanDonation(row rowScanner) (*models.Donation, error) {
	var d models.Donation
	err := row.Scan(&d.Id, &d.PaymentReference, &d.Amount, &d.CampaignId, &d.IsAnonymous, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// maxCorrectionAttempts bounds the compare-and-swap loop used for amount corrections.
const maxCorrectionAttempts = 5

// RecordDonation is the atomic get-or-create keyed by payment reference. The
// unique constraint decides the winner between concurrent writers: exactly one
// of them observes OutcomeCreated, every other caller falls through to the
// amount correction and observes OutcomeUpdated or OutcomeUnchanged.
func (s *Service) RecordDonation(ctx context.Context, params store.RecordDonationParams) (*store.RecordDonationResult, error) {
	now := s.now()
	donation := &models.Donation{
		Id:               uuid.New().String(),
		PaymentReference: params.PaymentReference,
		Amount:           params.Amount,
		CampaignId:       params.CampaignId,
		IsAnonymous:      true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	result, err := s.db.ExecContext(ctx, queryInsertDonation,
		donation.Id, donation.PaymentReference, donation.Amount, donation.CampaignId, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert donation %s: %w", params.PaymentReference, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 1 {
		zap.L().Info("Donation created",
			zap.String("payment_reference", donation.PaymentReference),
			zap.Int64("campaign_id", donation.CampaignId),
			zap.String("amount", donation.Amount.String()))
		return &store.RecordDonationResult{Donation: donation, Outcome: models.OutcomeCreated}, nil
	}

	return s.correctDonation(ctx, params)
}

// correctDonation brings an existing donation's amount in line with the
// processor-reported amount using a compare-and-swap on the previous value.
func (s *Service) correctDonation(ctx context.Context, params store.RecordDonationParams) (*store.RecordDonationResult, error) {
	for attempt := 1; attempt <= maxCorrectionAttempts; attempt++ {
		existing, err := s.GetDonationByReference(ctx, params.PaymentReference)
		if err != nil {
			return nil, err
		}

		if existing.CampaignId != params.CampaignId {
			zap.L().Warn("Payment reference already recorded against another campaign",
				zap.String("payment_reference", params.PaymentReference),
				zap.Int64("recorded_campaign_id", existing.CampaignId),
				zap.Int64("reported_campaign_id", params.CampaignId))
		}

		if existing.Amount.Equal(params.Amount) {
			zap.L().Debug("Donation already recorded",
				zap.String("payment_reference", params.PaymentReference),
				zap.Int64("campaign_id", existing.CampaignId))
			return &store.RecordDonationResult{Donation: existing, Outcome: models.OutcomeUnchanged}, nil
		}

		now := s.now()
		result, err := s.db.ExecContext(ctx, queryCorrectDonationAmount,
			params.Amount, now, params.PaymentReference, existing.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to correct donation %s: %w", params.PaymentReference, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			zap.L().Debug("Donation amount changed concurrently, retrying correction",
				zap.String("payment_reference", params.PaymentReference),
				zap.Int("attempt", attempt))
			continue
		}

		previous := existing.Amount
		existing.Amount = params.Amount
		existing.UpdatedAt = now

		zap.L().Info("Donation amount corrected",
			zap.String("payment_reference", params.PaymentReference),
			zap.Int64("campaign_id", existing.CampaignId),
			zap.String("previous_amount", previous.String()),
			zap.String("amount", existing.Amount.String()))
		return &store.RecordDonationResult{Donation: existing, Outcome: models.OutcomeUpdated, PreviousAmount: previous}, nil
	}

	return nil, fmt.Errorf("donation %s correction failed after %d attempts - %w",
		params.PaymentReference, maxCorrectionAttempts, store.ErrConcurrentModification)
}

// GetDonationByReference returns the donation or store.ErrNotFound.
func (s *Service) GetDonationByReference(ctx context.Context, paymentReference string) (*models.Donation, error) {
	donation, err := scanDonation(s.db.QueryRowContext(ctx, queryGetDonationByReference, paymentReference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("donation %s: %w", paymentReference, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donation %s: %w", paymentReference, err)
	}
	return donation, nil
}

// ListDonations returns a campaign's donations, oldest first.
func (s *Service) ListDonations(ctx context.Context, campaignId int64) ([]models.Donation, error) {
	rows, err := s.db.QueryContext(ctx, queryListDonations, campaignId)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer closeRows(rows)

	var donations []models.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donations: %w", err)
	}
	return donations, nil
}
