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

package models

import (
	"time"

	"campaign-funding-go/internal/money"
)

// DonationOutcome reports which branch of the idempotent upsert was taken
type DonationOutcome string

const (
	OutcomeCreated   DonationOutcome = "created"
	OutcomeUpdated   DonationOutcome = "updated"
	OutcomeUnchanged DonationOutcome = "unchanged"
)

// CampaignProgress is the public funding view of a campaign
type CampaignProgress struct {
	CampaignId         int64       `json:"campaign_id"`
	TargetAmount       money.Money `json:"target_amount"`
	CurrentAmount      money.Money `json:"current_amount"`
	ProgressPercentage int         `json:"progress_percentage"`
}

// ConfirmResult is returned when a client confirms a paid checkout session
type ConfirmResult struct {
	Donation *Donation        `json:"donation"`
	Outcome  DonationOutcome  `json:"outcome"`
	Progress CampaignProgress `json:"progress"`
}

// WebhookResult describes how a webhook delivery was handled
type WebhookResult struct {
	EventId   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Handled   bool            `json:"handled"`
	Outcome   DonationOutcome `json:"outcome,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// CampaignSweepResult is the per-campaign outcome of a reconciliation sweep
type CampaignSweepResult struct {
	CampaignId    int64       `json:"campaign_id"`
	Skipped       bool        `json:"skipped,omitempty"`
	SkipReason    string      `json:"skip_reason,omitempty"`
	Created       int         `json:"created"`
	Updated       int         `json:"updated"`
	Unchanged     int         `json:"unchanged"`
	CurrentAmount money.Money `json:"current_amount"`
	Corrected     bool        `json:"corrected"`
	Error         string      `json:"error,omitempty"`
}

// Failed reports whether the campaign could not be reconciled
func (r CampaignSweepResult) Failed() bool {
	return r.Error != ""
}

// SweepSummary aggregates a sweep over many campaigns
type SweepSummary struct {
	StartedAt          time.Time             `json:"started_at"`
	FinishedAt         time.Time             `json:"finished_at"`
	CampaignsProcessed int                   `json:"campaigns_processed"`
	CampaignsFailed    int                   `json:"campaigns_failed"`
	CampaignsSkipped   int                   `json:"campaigns_skipped"`
	DonationsCreated   int                   `json:"donations_created"`
	DonationsUpdated   int                   `json:"donations_updated"`
	DonationsUnchanged int                   `json:"donations_unchanged"`
	Results            []CampaignSweepResult `json:"results"`
}

// Add folds a single campaign result into the summary
func (s *SweepSummary) Add(r CampaignSweepResult) {
	s.Results = append(s.Results, r)
	switch {
	case r.Failed():
		s.CampaignsFailed++
	case r.Skipped:
		s.CampaignsSkipped++
	default:
		s.CampaignsProcessed++
	}
	s.DonationsCreated += r.Created
	s.DonationsUpdated += r.Updated
	s.DonationsUnchanged += r.Unchanged
}

// AccountView is returned to a campaign owner inspecting their payment account
type AccountView struct {
	Account      *PaymentAccount `json:"account"`
	Ready        bool            `json:"ready"`
	DashboardUrl string          `json:"dashboard_url,omitempty"`
}

// CreateCampaignResult carries a newly created campaign and any payment setup problem
type CreateCampaignResult struct {
	Campaign          *Campaign `json:"campaign"`
	PaymentSetupError string    `json:"payment_setup_error,omitempty"`
}
