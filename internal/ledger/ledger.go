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

// Package ledger records donations idempotently by payment reference and
// mirrors new and corrected donations into an optional external journal.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
	"campaign-funding-go/internal/store"

	"go.uber.org/zap"
)

// Journal receives a copy of every donation write. Implementations must treat a
// repeated reference as already posted.
type Journal interface {
	PostDonation(ctx context.Context, donation *models.Donation) error
	PostAdjustment(ctx context.Context, donation *models.Donation, previous money.Money) error
}

// NoopJournal is used when no external journal is configured.
type NoopJournal struct{}

func (NoopJournal) PostDonation(context.Context, *models.Donation) error { return nil }

func (NoopJournal) PostAdjustment(context.Context, *models.Donation, money.Money) error { return nil }

type Ledger struct {
	store   store.DonationStore
	journal Journal
}

func New(s store.DonationStore, journal Journal) *Ledger {
	if journal == nil {
		journal = NoopJournal{}
	}
	return &Ledger{store: s, journal: journal}
}

// RecordDonation creates the donation for paymentReference, corrects its amount
// when it differs from the stored one, or does nothing. It is safe under
// redelivery and concurrent delivery of the same reference.
func (l *Ledger) RecordDonation(ctx context.Context, campaignId int64, paymentReference string, amount money.Money) (*models.Donation, models.DonationOutcome, error) {
	paymentReference = strings.TrimSpace(paymentReference)
	if paymentReference == "" {
		return nil, "", apperr.ErrMalformedEvent.WithMessage("payment reference is required")
	}
	if !amount.IsPositive() {
		return nil, "", apperr.ErrMalformedEvent.WithMessage("donation amount must be positive, got %s", amount)
	}

	result, err := l.store.RecordDonation(ctx, store.RecordDonationParams{
		CampaignId:       campaignId,
		PaymentReference: paymentReference,
		Amount:           amount,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to record donation %s: %w", paymentReference, err)
	}

	switch result.Outcome {
	case models.OutcomeCreated:
		if err := l.journal.PostDonation(ctx, result.Donation); err != nil {
			zap.L().Warn("Failed to mirror donation to journal",
				zap.String("payment_reference", paymentReference),
				zap.Int64("campaign_id", campaignId),
				zap.Error(err))
		}
	case models.OutcomeUpdated:
		if err := l.journal.PostAdjustment(ctx, result.Donation, result.PreviousAmount); err != nil {
			zap.L().Warn("Failed to mirror donation correction to journal",
				zap.String("payment_reference", paymentReference),
				zap.Int64("campaign_id", campaignId),
				zap.Error(err))
		}
	}

	return result.Donation, result.Outcome, nil
}

// Donations lists a campaign's donations.
func (l *Ledger) Donations(ctx context.Context, campaignId int64) ([]models.Donation, error) {
	return l.store.ListDonations(ctx, campaignId)
}
