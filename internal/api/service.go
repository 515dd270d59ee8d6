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

package api

import (
	"context"
	"fmt"
	"time"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
)

// DonationService is the reconciliation surface the HTTP layer drives
type DonationService interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*models.WebhookResult, error)
	ConfirmPayment(ctx context.Context, sessionId string, campaignId *int64) (*models.ConfirmResult, error)
	CreateCheckout(ctx context.Context, campaignId int64, amount money.Money) (*models.CheckoutSession, error)
	Progress(ctx context.Context, campaignId int64) (*models.CampaignProgress, error)
	Donations(ctx context.Context, campaignId int64) ([]models.Donation, error)
	SweepCampaign(ctx context.Context, campaignId int64) (*models.CampaignSweepResult, error)
	SweepAll(ctx context.Context) (*models.SweepSummary, error)
}

// CampaignService is the lifecycle surface the HTTP layer drives
type CampaignService interface {
	Create(ctx context.Context, actor *models.Actor, content models.CampaignContent) (*models.CreateCampaignResult, error)
	Edit(ctx context.Context, actor *models.Actor, campaignId int64, content models.CampaignContent) (*models.Campaign, error)
	Submit(ctx context.Context, actor *models.Actor, campaignId int64) (*models.Campaign, error)
	Suspend(ctx context.Context, actor *models.Actor, campaignId int64) (*models.Campaign, error)
	Cancel(ctx context.Context, actor *models.Actor, campaignId int64) (*models.Campaign, error)
	Approve(ctx context.Context, actor *models.Actor, campaignId int64, notes string) (*models.Campaign, error)
	Reject(ctx context.Context, actor *models.Actor, campaignId int64, notes string) (*models.Campaign, error)
	Resume(ctx context.Context, actor *models.Actor, campaignId int64, notes string) (*models.Campaign, error)
	View(ctx context.Context, actor *models.Actor, campaignId int64) (*models.Campaign, error)
	History(ctx context.Context, actor *models.Actor, campaignId int64) ([]models.ModerationEntry, error)
}

// AccountService is the payment account surface the HTTP layer drives
type AccountService interface {
	EnsureAccount(ctx context.Context, userId, email string) (*models.PaymentAccount, error)
	RefreshOnboardingLink(ctx context.Context, account *models.PaymentAccount) (*models.OnboardingLink, error)
	View(ctx context.Context, userId string) (*models.AccountView, error)
}

// Pinger is satisfied by the database service
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService reports whether the backing store is reachable
type HealthService struct {
	db      Pinger
	timeout time.Duration
}

func NewHealthService(db Pinger) *HealthService {
	return &HealthService{
		db:      db,
		timeout: 2 * time.Second,
	}
}

func (s *HealthService) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
