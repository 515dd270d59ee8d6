package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.PaymentAccount, error) {
	var account models.PaymentAccount
	var requirements string
	var expiresAt sql.NullTime
	err := row.Scan(&account.Id, &account.UserId, &account.AccountId,
		&account.ChargesEnabled, &account.PayoutsEnabled, &account.DetailsSubmitted,
		&requirements, &account.OnboardingUrl, &expiresAt, &account.DashboardUrl,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(requirements), &account.RequirementsDue); err != nil {
		return nil, fmt.Errorf("failed to parse requirements_due for %s: %w", account.AccountId, err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		account.OnboardingExpiresAt = &t
	}
	return &account, nil
}

func encodeRequirements(requirements []string) (string, error) {
	if requirements == nil {
		requirements = []string{}
	}
	data, err := json.Marshal(requirements)
	if err != nil {
		return "", fmt.Errorf("failed to encode requirements_due: %w", err)
	}
	return string(data), nil
}

// GetAccountByUser returns the payment account owned by userId, or store.ErrNotFound.
func (s *Service) GetAccountByUser(ctx context.Context, userId string) (*models.PaymentAccount, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountByUser, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment account for user %s: %w", userId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment account for user %s: %w", userId, err)
	}
	return account, nil
}

// GetAccountByAccountId returns the account with the given processor id, or store.ErrNotFound.
func (s *Service) GetAccountByAccountId(ctx context.Context, accountId string) (*models.PaymentAccount, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountByAccountId, accountId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment account %s: %w", accountId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment account %s: %w", accountId, err)
	}
	return account, nil
}

// InsertAccount stores a new payment account. It returns store.ErrDuplicate when
// the user already has one.
func (s *Service) InsertAccount(ctx context.Context, account *models.PaymentAccount) error {
	requirements, err := encodeRequirements(account.RequirementsDue)
	if err != nil {
		return err
	}

	now := s.now()
	if account.Id == "" {
		account.Id = uuid.New().String()
	}
	account.CreatedAt = now
	account.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, queryInsertAccount,
		account.Id, account.UserId, account.AccountId,
		account.ChargesEnabled, account.PayoutsEnabled, account.DetailsSubmitted,
		requirements, account.OnboardingUrl, account.OnboardingExpiresAt, account.DashboardUrl,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to insert payment account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("payment account for user %s: %w", account.UserId, store.ErrDuplicate)
	}

	zap.L().Info("Payment account stored",
		zap.String("user_id", account.UserId),
		zap.String("account_id", account.AccountId))
	return nil
}

// UpdateAccount persists processor flags and cached links, keyed by account id.
func (s *Service) UpdateAccount(ctx context.Context, account *models.PaymentAccount) error {
	requirements, err := encodeRequirements(account.RequirementsDue)
	if err != nil {
		return err
	}

	account.UpdatedAt = s.now()
	result, err := s.db.ExecContext(ctx, queryUpdateAccount,
		account.ChargesEnabled, account.PayoutsEnabled, account.DetailsSubmitted, requirements,
		account.OnboardingUrl, account.OnboardingExpiresAt, account.DashboardUrl, account.UpdatedAt,
		account.AccountId)
	if err != nil {
		return fmt.Errorf("failed to update payment account %s: %w", account.AccountId, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("payment account %s: %w", account.AccountId, store.ErrNotFound)
	}
	return nil
}

// SetCampaignsStripeReady writes the readiness mirror onto every campaign of ownerId
// and returns how many rows changed.
func (s *Service) SetCampaignsStripeReady(ctx context.Context, ownerId string, ready bool) (int64, error) {
	result, err := s.db.ExecContext(ctx, querySetCampaignsStripeReady, ready, s.now(), ownerId, ready)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade stripe_ready for owner %s: %w", ownerId, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rowsAffected, nil
}
