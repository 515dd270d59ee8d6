package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campaign-funding-go/internal/money"
	"campaign-funding-go/internal/store"

	"go.uber.org/zap"
)

// RecalculateCampaignAmount sets current_amount to the sum of the campaign's
// donations in a single statement, writing only when the value differs. It
// returns the resulting total and whether a correction was written.
func (s *Service) RecalculateCampaignAmount(ctx context.Context, campaignId int64) (money.Money, bool, error) {
	result, err := s.db.ExecContext(ctx, queryRecalculateCampaignAmount, s.now(), campaignId)
	if err != nil {
		return money.Zero, false, fmt.Errorf("failed to recalculate campaign %d: %w", campaignId, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return money.Zero, false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	var current money.Money
	err = s.db.QueryRowContext(ctx, queryGetCampaignAmount, campaignId).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return money.Zero, false, fmt.Errorf("campaign %d: %w", campaignId, store.ErrNotFound)
	}
	if err != nil {
		return money.Zero, false, fmt.Errorf("failed to read campaign %d amount: %w", campaignId, err)
	}

	if rowsAffected > 0 {
		zap.L().Info("Campaign amount recalculated",
			zap.Int64("campaign_id", campaignId),
			zap.String("current_amount", current.String()))
	}
	return current, rowsAffected > 0, nil
}

// IncrementCampaignAmount adds amount to current_amount atomically.
func (s *Service) IncrementCampaignAmount(ctx context.Context, campaignId int64, amount money.Money) error {
	result, err := s.db.ExecContext(ctx, queryIncrementCampaignAmount, amount, s.now(), campaignId)
	if err != nil {
		return fmt.Errorf("failed to increment campaign %d: %w", campaignId, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("campaign %d: %w", campaignId, store.ErrNotFound)
	}
	return nil
}
