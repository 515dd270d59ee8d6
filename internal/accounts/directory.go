/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package accounts maintains the local mirror of each campaign owner's payment
// processor sub-account and cascades readiness onto the owner's campaigns.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/events"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// linkReuseMargin is how long an onboarding link must still be valid to be reused.
const linkReuseMargin = time.Minute

// Processor is the subset of the payment processor used for sub-accounts.
type Processor interface {
	CreateAccount(ctx context.Context, userId, email string) (*models.AccountStatus, error)
	RetrieveAccount(ctx context.Context, accountId string) (*models.AccountStatus, error)
	CreateAccountLink(ctx context.Context, accountId, refreshUrl, returnUrl string) (*models.OnboardingLink, error)
	CreateLoginLink(ctx context.Context, accountId string) (string, error)
}

type DirectoryConfig struct {
	Store      store.AccountStore
	Processor  Processor
	Publisher  events.Publisher
	RefreshUrl string
	ReturnUrl  string
}

type Directory struct {
	store      store.AccountStore
	processor  Processor
	publisher  events.Publisher
	refreshUrl string
	returnUrl  string
	now        func() time.Time
}

func NewDirectory(cfg DirectoryConfig) *Directory {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Directory{
		store:      cfg.Store,
		processor:  cfg.Processor,
		publisher:  publisher,
		refreshUrl: cfg.RefreshUrl,
		returnUrl:  cfg.ReturnUrl,
		now:        time.Now,
	}
}

// GetAccount returns the user's account, or nil when the user has none.
func (d *Directory) GetAccount(ctx context.Context, userId string) (*models.PaymentAccount, error) {
	account, err := d.store.GetAccountByUser(ctx, userId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment account for user %s: %w", userId, err)
	}
	return account, nil
}

// EnsureAccount returns the user's account, creating the processor sub-account
// and its local record on first use.
func (d *Directory) EnsureAccount(ctx context.Context, userId, email string) (*models.PaymentAccount, error) {
	existing, err := d.GetAccount(ctx, userId)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	status, err := d.processor.CreateAccount(ctx, userId, email)
	if err != nil {
		return nil, err
	}

	now := d.now()
	account := &models.PaymentAccount{
		Id:        uuid.New().String(),
		UserId:    userId,
		AccountId: status.AccountId,
		CreatedAt: now,
		UpdatedAt: now,
	}
	account.Apply(*status)

	if err := d.store.InsertAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost a race with a concurrent request for the same user.
			zap.L().Warn("Payment account created concurrently, discarding new sub-account",
				zap.String("user_id", userId),
				zap.String("discarded_account_id", status.AccountId))
			return d.store.GetAccountByUser(ctx, userId)
		}
		return nil, fmt.Errorf("failed to store payment account for user %s: %w", userId, err)
	}

	zap.L().Info("Payment account created",
		zap.String("user_id", userId),
		zap.String("account_id", account.AccountId))
	return account, nil
}

// SyncAccount refreshes the local mirror from the processor. When the processor
// cannot be reached the last-known state is returned unchanged.
func (d *Directory) SyncAccount(ctx context.Context, account *models.PaymentAccount) (*models.PaymentAccount, error) {
	status, err := d.processor.RetrieveAccount(ctx, account.AccountId)
	if err != nil {
		zap.L().Warn("Failed to refresh payment account, using last known state",
			zap.String("account_id", account.AccountId),
			zap.Error(err))
		return account, nil
	}
	if err := d.applyStatus(ctx, account, *status); err != nil {
		return nil, err
	}
	return account, nil
}

// ApplyStatus applies a processor-reported status to the matching local account.
// Unknown accounts yield apperr.ErrNotFound.
func (d *Directory) ApplyStatus(ctx context.Context, status models.AccountStatus) (*models.PaymentAccount, error) {
	account, err := d.store.GetAccountByAccountId(ctx, status.AccountId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNotFound.WithMessage("payment account %s is not known", status.AccountId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment account %s: %w", status.AccountId, err)
	}
	if err := d.applyStatus(ctx, account, status); err != nil {
		return nil, err
	}
	return account, nil
}

// SyncAccountById re-syncs the local account with the given processor id.
// Unknown accounts yield apperr.ErrNotFound.
func (d *Directory) SyncAccountById(ctx context.Context, accountId string) (*models.PaymentAccount, error) {
	account, err := d.store.GetAccountByAccountId(ctx, accountId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNotFound.WithMessage("payment account %s is not known", accountId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment account %s: %w", accountId, err)
	}
	return d.SyncAccount(ctx, account)
}

func (d *Directory) applyStatus(ctx context.Context, account *models.PaymentAccount, status models.AccountStatus) error {
	wasReady := account.IsReady()
	account.Apply(status)
	account.UpdatedAt = d.now()

	if err := d.store.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to update payment account %s: %w", account.AccountId, err)
	}

	updated, err := d.Cascade(ctx, account)
	if err != nil {
		return err
	}

	if wasReady != account.IsReady() {
		zap.L().Info("Payment account readiness changed",
			zap.String("account_id", account.AccountId),
			zap.Bool("ready", account.IsReady()),
			zap.Int64("campaigns_updated", updated))
		events.PublishBestEffort(ctx, d.publisher, events.AccountReadinessChanged, events.AccountReadinessEvent{
			UserId:           account.UserId,
			AccountId:        account.AccountId,
			Ready:            account.IsReady(),
			CampaignsUpdated: updated,
			Timestamp:        account.UpdatedAt,
		})
	}
	return nil
}

// Cascade sets stripe_ready on all of the owner's campaigns to the account's
// readiness and returns how many rows changed.
func (d *Directory) Cascade(ctx context.Context, account *models.PaymentAccount) (int64, error) {
	updated, err := d.store.SetCampaignsStripeReady(ctx, account.UserId, account.IsReady())
	if err != nil {
		return 0, fmt.Errorf("failed to cascade readiness for user %s: %w", account.UserId, err)
	}
	return updated, nil
}

// RefreshOnboardingLink returns a usable hosted onboarding link, reusing the
// stored one while it has not expired.
func (d *Directory) RefreshOnboardingLink(ctx context.Context, account *models.PaymentAccount) (*models.OnboardingLink, error) {
	if account.IsReady() {
		return nil, apperr.ErrAlreadyReady
	}

	now := d.now()
	if account.OnboardingUrl != "" && account.OnboardingExpiresAt != nil &&
		account.OnboardingExpiresAt.After(now.Add(linkReuseMargin)) {
		return &models.OnboardingLink{Url: account.OnboardingUrl, ExpiresAt: *account.OnboardingExpiresAt}, nil
	}

	link, err := d.processor.CreateAccountLink(ctx, account.AccountId, d.refreshUrl, d.returnUrl)
	if err != nil {
		return nil, err
	}

	expiresAt := link.ExpiresAt
	account.OnboardingUrl = link.Url
	account.OnboardingExpiresAt = &expiresAt
	account.UpdatedAt = now
	if err := d.store.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to store onboarding link for %s: %w", account.AccountId, err)
	}
	return link, nil
}

// DashboardLink returns a processor dashboard login link for a ready account,
// falling back to the cached link when the processor is unavailable.
func (d *Directory) DashboardLink(ctx context.Context, account *models.PaymentAccount) (string, error) {
	if !account.IsReady() {
		return "", apperr.ErrNotReady
	}

	url, err := d.processor.CreateLoginLink(ctx, account.AccountId)
	if err != nil {
		if account.DashboardUrl != "" {
			zap.L().Warn("Failed to create dashboard link, using cached link",
				zap.String("account_id", account.AccountId),
				zap.Error(err))
			return account.DashboardUrl, nil
		}
		return "", err
	}

	if url != account.DashboardUrl {
		account.DashboardUrl = url
		account.UpdatedAt = d.now()
		if err := d.store.UpdateAccount(ctx, account); err != nil {
			zap.L().Warn("Failed to cache dashboard link",
				zap.String("account_id", account.AccountId),
				zap.Error(err))
		}
	}
	return url, nil
}

// View builds the owner-facing account view, refreshing the mirror first.
func (d *Directory) View(ctx context.Context, userId string) (*models.AccountView, error) {
	account, err := d.GetAccount(ctx, userId)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperr.ErrNotFound.WithMessage("no payment account for user %s", userId)
	}

	account, err = d.SyncAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	view := &models.AccountView{Account: account, Ready: account.IsReady()}
	if view.Ready {
		if url, err := d.DashboardLink(ctx, account); err == nil {
			view.DashboardUrl = url
		}
	}
	return view, nil
}

// Readiness resolves whether the owner can receive donations, syncing a stale
// not-ready mirror with the processor before answering.
func (d *Directory) Readiness(ctx context.Context, userId string) (bool, error) {
	account, err := d.GetAccount(ctx, userId)
	if err != nil {
		return false, err
	}
	if account == nil {
		return false, nil
	}
	if account.IsReady() {
		return true, nil
	}
	account, err = d.SyncAccount(ctx, account)
	if err != nil {
		return false, err
	}
	return account.IsReady(), nil
}
