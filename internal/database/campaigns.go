package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
	"campaign-funding-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	var c models.Campaign
	var status string
	err := row.Scan(&c.Id, &c.Title, &c.ShortDescription, &c.Description,
		&c.TargetAmount, &c.CurrentAmount, &status, &c.StripeReady, &c.OwnerId,
		&c.ModerationNotes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = models.CampaignStatus(status)
	return &c, nil
}

// CreateCampaign inserts a campaign and sets its Id. current_amount always starts at zero.
func (s *Service) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	now := s.now()
	result, err := s.db.ExecContext(ctx, queryInsertCampaign,
		campaign.Title, campaign.ShortDescription, campaign.Description, campaign.TargetAmount,
		string(campaign.Status), campaign.StripeReady, campaign.OwnerId, campaign.ModerationNotes,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read campaign id: %w", err)
	}

	campaign.Id = id
	campaign.CurrentAmount = money.Zero
	campaign.CreatedAt = now
	campaign.UpdatedAt = now

	zap.L().Info("Campaign created",
		zap.Int64("campaign_id", id),
		zap.String("owner_id", campaign.OwnerId),
		zap.String("status", string(campaign.Status)))
	return nil
}

// GetCampaign returns the campaign or store.ErrNotFound.
func (s *Service) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	campaign, err := scanCampaign(s.db.QueryRowContext(ctx, queryGetCampaign, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign %d: %w", id, err)
	}
	return campaign, nil
}

// UpdateCampaign writes the mutable campaign fields (never current_amount) and the
// optional moderation history row in one transaction. A status that moved since
// the caller read the campaign yields store.ErrConcurrentModification.
func (s *Service) UpdateCampaign(ctx context.Context, params store.UpdateCampaignParams) error {
	c := params.Campaign
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, queryUpdateCampaign,
		c.Title, c.ShortDescription, c.Description, c.TargetAmount,
		string(c.Status), c.ModerationNotes, now,
		c.Id, string(params.ExpectedStatus))
	if err != nil {
		return fmt.Errorf("failed to update campaign %d: %w", c.Id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := scanCampaign(tx.QueryRowContext(ctx, queryGetCampaign, c.Id)); errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("campaign %d: %w", c.Id, store.ErrNotFound)
		}
		return fmt.Errorf("campaign %d update failed - %w", c.Id, store.ErrConcurrentModification)
	}

	if h := params.History; h != nil {
		if h.Id == "" {
			h.Id = uuid.New().String()
		}
		h.CampaignId = c.Id
		h.CreatedAt = now
		_, err = tx.ExecContext(ctx, queryInsertModerationEntry,
			h.Id, h.CampaignId, h.ModeratorId, string(h.Action), h.Notes, h.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert moderation history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.UpdatedAt = now
	return nil
}

// ListCampaigns returns campaigns filtered by status and owner.
func (s *Service) ListCampaigns(ctx context.Context, params store.ListCampaignsParams) ([]models.Campaign, error) {
	status := string(params.Status)
	rows, err := s.db.QueryContext(ctx, queryListCampaigns, status, status, params.OwnerId, params.OwnerId)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return collectCampaigns(rows)
}

// ListReconcilableCampaigns returns every approved campaign whose owner is ready.
func (s *Service) ListReconcilableCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, queryListReconcilableCampaigns)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconcilable campaigns: %w", err)
	}
	return collectCampaigns(rows)
}

func collectCampaigns(rows *sql.Rows) ([]models.Campaign, error) {
	defer closeRows(rows)

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}
	return campaigns, nil
}

// ListModerationHistory returns the moderation history of a campaign, oldest first.
func (s *Service) ListModerationHistory(ctx context.Context, campaignId int64) ([]models.ModerationEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryListModerationHistory, campaignId)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation history: %w", err)
	}
	defer closeRows(rows)

	var entries []models.ModerationEntry
	for rows.Next() {
		var e models.ModerationEntry
		var action string
		if err := rows.Scan(&e.Id, &e.CampaignId, &e.ModeratorId, &action, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan moderation entry: %w", err)
		}
		e.Action = models.ModerationAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating moderation history: %w", err)
	}
	return entries, nil
}
