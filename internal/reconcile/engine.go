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

// Package reconcile turns processor signals (webhooks, client confirmations and
// periodic sweeps) into donation records and keeps campaign totals correct.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/events"
	"campaign-funding-go/internal/funding"
	"campaign-funding-go/internal/ledger"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
	"campaign-funding-go/internal/store"

	"go.uber.org/zap"
)

const defaultSweepConcurrency = 4

// Processor is the subset of the payment processor used for reconciliation.
// An empty accountId means the platform account.
type Processor interface {
	VerifyEvent(payload []byte, signatureHeader string) (*models.ProcessorEvent, error)
	RetrieveCheckoutSession(ctx context.Context, sessionId, accountId string) (*models.CheckoutSession, error)
	ListSucceededPaymentIntents(ctx context.Context, accountId string) ([]models.PaymentIntent, error)
	ListPaidCheckoutSessions(ctx context.Context, accountId string) ([]models.CheckoutSession, error)
	CreateCheckoutSession(ctx context.Context, params models.CheckoutParams) (*models.CheckoutSession, error)
}

// AccountDirectory is the subset of the payment account directory used here.
type AccountDirectory interface {
	GetAccount(ctx context.Context, userId string) (*models.PaymentAccount, error)
	ApplyStatus(ctx context.Context, status models.AccountStatus) (*models.PaymentAccount, error)
	SyncAccountById(ctx context.Context, accountId string) (*models.PaymentAccount, error)
}

type EngineConfig struct {
	Campaigns        store.CampaignStore
	Accounts         AccountDirectory
	Ledger           *ledger.Ledger
	Aggregator       *funding.Aggregator
	Processor        Processor
	Publisher        events.Publisher
	SweepConcurrency int
	Checkout         models.CheckoutConfig
	FrontendBaseUrl  string
}

type Engine struct {
	campaigns        store.CampaignStore
	accounts         AccountDirectory
	ledger           *ledger.Ledger
	aggregator       *funding.Aggregator
	processor        Processor
	publisher        events.Publisher
	sweepConcurrency int
	checkout         checkoutPolicy
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Campaigns == nil || cfg.Accounts == nil || cfg.Ledger == nil || cfg.Aggregator == nil || cfg.Processor == nil {
		return nil, errors.New("engine requires campaigns, accounts, ledger, aggregator and processor")
	}

	checkout, err := newCheckoutPolicy(cfg.Checkout, cfg.FrontendBaseUrl)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.SweepConcurrency
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}

	return &Engine{
		campaigns:        cfg.Campaigns,
		accounts:         cfg.Accounts,
		ledger:           cfg.Ledger,
		aggregator:       cfg.Aggregator,
		processor:        cfg.Processor,
		publisher:        publisher,
		sweepConcurrency: concurrency,
		checkout:         checkout,
	}, nil
}

// HandleWebhook verifies and applies a processor webhook delivery. Redelivery of
// an event that was already applied succeeds without side effects.
func (e *Engine) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*models.WebhookResult, error) {
	raw, err := e.processor.VerifyEvent(payload, signatureHeader)
	if err != nil {
		return nil, err
	}

	evt, err := ParseEvent(raw)
	if err != nil {
		zap.L().Warn("Rejecting malformed webhook event",
			zap.String("event_id", raw.Id),
			zap.String("event_type", raw.Type),
			zap.Error(err))
		return nil, err
	}

	result := &models.WebhookResult{EventId: evt.EventId(), EventType: evt.EventType()}

	switch ev := evt.(type) {
	case CheckoutCompleted:
		return e.handleCheckoutCompleted(ctx, ev, result)
	case AccountUpdated:
		return e.handleAccountUpdated(ctx, ev, result)
	case CapabilityUpdated:
		return e.handleCapabilityUpdated(ctx, ev, result)
	default:
		zap.L().Debug("Ignoring webhook event", zap.String("event_type", evt.EventType()))
		result.Message = "event type ignored"
		return result, nil
	}
}

func (e *Engine) handleCheckoutCompleted(ctx context.Context, ev CheckoutCompleted, result *models.WebhookResult) (*models.WebhookResult, error) {
	if ev.PaymentStatus == models.PaymentStatusUnpaid {
		zap.L().Info("Checkout session completed without payment, waiting for settlement",
			zap.String("session_id", ev.SessionId),
			zap.String("event_id", ev.EventId()))
		result.Handled = true
		result.Message = "payment not settled yet"
		return result, nil
	}
	if !ev.HasCampaignId {
		return nil, apperr.ErrMalformedEvent.WithMessage("checkout session %s has no campaign_id metadata", ev.SessionId)
	}
	if ev.AmountTotal <= 0 {
		return nil, apperr.ErrMalformedEvent.WithMessage("checkout session %s has no positive amount_total", ev.SessionId)
	}

	if _, err := e.loadCampaign(ctx, ev.CampaignId); err != nil {
		return nil, err
	}

	reference := PaymentReference(ev.PaymentIntentId, ev.SessionId)
	_, outcome, err := e.recordPayment(ctx, ev.CampaignId, reference, money.FromMinorUnits(ev.AmountTotal), "webhook")
	if err != nil {
		return nil, err
	}

	result.Handled = true
	result.Outcome = outcome
	return result, nil
}

func (e *Engine) handleAccountUpdated(ctx context.Context, ev AccountUpdated, result *models.WebhookResult) (*models.WebhookResult, error) {
	if _, err := e.accounts.ApplyStatus(ctx, ev.Status); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			zap.L().Info("Ignoring update for unknown payment account", zap.String("account_id", ev.Status.AccountId))
			result.Message = "unknown account"
			return result, nil
		}
		return nil, err
	}
	result.Handled = true
	return result, nil
}

func (e *Engine) handleCapabilityUpdated(ctx context.Context, ev CapabilityUpdated, result *models.WebhookResult) (*models.WebhookResult, error) {
	if _, err := e.accounts.SyncAccountById(ctx, ev.AccountId); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			zap.L().Info("Ignoring capability update for unknown payment account", zap.String("account_id", ev.AccountId))
			result.Message = "unknown account"
			return result, nil
		}
		return nil, err
	}
	result.Handled = true
	return result, nil
}

// ConfirmPayment reconciles a checkout session the client reports as finished.
// Without a campaignId the session is looked up on the platform account only.
func (e *Engine) ConfirmPayment(ctx context.Context, sessionId string, campaignId *int64) (*models.ConfirmResult, error) {
	sessionId = strings.TrimSpace(sessionId)
	if sessionId == "" {
		return nil, apperr.ErrMalformedRequest.WithMessage("session_id is required")
	}

	var campaign *models.Campaign
	var accountId string
	if campaignId != nil {
		c, err := e.loadCampaign(ctx, *campaignId)
		if err != nil {
			return nil, err
		}
		campaign = c
		account, err := e.accounts.GetAccount(ctx, c.OwnerId)
		if err != nil {
			return nil, err
		}
		if account != nil {
			accountId = account.AccountId
		}
	}

	session, err := e.processor.RetrieveCheckoutSession(ctx, sessionId, accountId)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) && campaignId == nil {
			return nil, requiresCampaignId(sessionId)
		}
		zap.L().Warn("Failed to retrieve checkout session",
			zap.String("session_id", sessionId),
			zap.String("account_id", accountId),
			zap.Error(err))
		return nil, err
	}

	metaId, hasMeta, err := CampaignIdFromMetadata(session.Metadata)
	if err != nil {
		return nil, apperr.ErrMalformedEvent.WithError(err).WithMessage("checkout session %s has invalid campaign_id metadata", sessionId)
	}
	switch {
	case !hasMeta && campaign == nil:
		return nil, requiresCampaignId(sessionId)
	case hasMeta && campaign != nil && metaId != campaign.Id:
		return nil, apperr.ErrMalformedRequest.WithMessage("checkout session %s belongs to campaign %d, not %d", sessionId, metaId, campaign.Id)
	case campaign == nil:
		if campaign, err = e.loadCampaign(ctx, metaId); err != nil {
			return nil, err
		}
	}

	if session.PaymentStatus != models.PaymentStatusPaid {
		return nil, apperr.ErrPaymentIncomplete.WithDetails(map[string]interface{}{
			"session_id":     sessionId,
			"payment_status": session.PaymentStatus,
		})
	}
	if session.AmountTotal <= 0 {
		return nil, apperr.ErrMalformedEvent.WithMessage("checkout session %s has no positive amount_total", sessionId)
	}

	reference := PaymentReference(session.PaymentIntentId, session.Id)
	donation, outcome, err := e.recordPayment(ctx, campaign.Id, reference, money.FromMinorUnits(session.AmountTotal), "confirm")
	if err != nil {
		return nil, err
	}

	current, err := e.loadCampaign(ctx, donation.CampaignId)
	if err != nil {
		return nil, err
	}

	return &models.ConfirmResult{
		Donation: donation,
		Outcome:  outcome,
		Progress: funding.Progress(current),
	}, nil
}

// recordPayment writes the donation and brings the campaign total in line:
// the exclusive creator increments, every other path recalculates.
func (e *Engine) recordPayment(ctx context.Context, campaignId int64, reference string, amount money.Money, source string) (*models.Donation, models.DonationOutcome, error) {
	donation, outcome, err := e.ledger.RecordDonation(ctx, campaignId, reference, amount)
	if err != nil {
		zap.L().Error("Failed to record donation",
			zap.String("payment_reference", reference),
			zap.Int64("campaign_id", campaignId),
			zap.String("source", source),
			zap.Error(err))
		return nil, "", err
	}

	if outcome == models.OutcomeCreated {
		if err := e.aggregator.IncrementBy(ctx, donation.CampaignId, donation.Amount); err != nil {
			return nil, "", err
		}
	} else if _, _, err := e.recalculate(ctx, donation.CampaignId); err != nil {
		return nil, "", err
	}

	if outcome != models.OutcomeUnchanged {
		events.PublishBestEffort(ctx, e.publisher, events.DonationRecorded, events.DonationRecordedEvent{
			CampaignId:       donation.CampaignId,
			PaymentReference: donation.PaymentReference,
			Amount:           donation.Amount.String(),
			Outcome:          string(outcome),
			Source:           source,
			Timestamp:        time.Now(),
		})
	}
	return donation, outcome, nil
}

func (e *Engine) recalculate(ctx context.Context, campaignId int64) (money.Money, bool, error) {
	total, changed, err := e.aggregator.Recalculate(ctx, campaignId)
	if err != nil {
		return money.Zero, false, err
	}
	if changed {
		zap.L().Info("Campaign total corrected",
			zap.Int64("campaign_id", campaignId),
			zap.String("current_amount", total.String()))
		events.PublishBestEffort(ctx, e.publisher, events.FundingRecalculated, events.FundingRecalculatedEvent{
			CampaignId:    campaignId,
			CurrentAmount: total.String(),
			Timestamp:     time.Now(),
		})
	}
	return total, changed, nil
}

func (e *Engine) loadCampaign(ctx context.Context, campaignId int64) (*models.Campaign, error) {
	campaign, err := e.campaigns.GetCampaign(ctx, campaignId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNotFound.WithMessage("campaign %d not found", campaignId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %d: %w", campaignId, err)
	}
	return campaign, nil
}

// Progress returns the public funding view of a campaign.
func (e *Engine) Progress(ctx context.Context, campaignId int64) (*models.CampaignProgress, error) {
	campaign, err := e.loadCampaign(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	progress := funding.Progress(campaign)
	return &progress, nil
}

// Donations lists the recorded donations of a campaign, oldest first.
func (e *Engine) Donations(ctx context.Context, campaignId int64) ([]models.Donation, error) {
	if _, err := e.loadCampaign(ctx, campaignId); err != nil {
		return nil, err
	}
	donations, err := e.ledger.Donations(ctx, campaignId)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations for campaign %d: %w", campaignId, err)
	}
	if donations == nil {
		donations = []models.Donation{}
	}
	return donations, nil
}

func requiresCampaignId(sessionId string) error {
	return apperr.ErrRequiresCampaignID.WithDetails(map[string]interface{}{
		"requires_campaign_id": true,
		"session_id":           sessionId,
	})
}
