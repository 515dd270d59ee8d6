package models

import (
	"time"

	"campaign-funding-go/internal/money"
)

// CampaignStatus is the lifecycle state of a campaign
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusPending   CampaignStatus = "pending"
	StatusApproved  CampaignStatus = "approved"
	StatusRejected  CampaignStatus = "rejected"
	StatusSuspended CampaignStatus = "suspended"
	StatusCancelled CampaignStatus = "cancelled"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusSuspended, StatusCancelled:
		return true
	}
	return false
}

// ModerationAction is recorded in the append-only moderation history
type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionReject  ModerationAction = "reject"
	ActionResume  ModerationAction = "resume"
)

// PaymentAccount mirrors a user's processor sub-account
type PaymentAccount struct {
	Id                  string     `db:"id" json:"-"`
	UserId              string     `db:"user_id" json:"user_id"`
	AccountId           string     `db:"account_id" json:"account_id"`
	ChargesEnabled      bool       `db:"charges_enabled" json:"charges_enabled"`
	PayoutsEnabled      bool       `db:"payouts_enabled" json:"payouts_enabled"`
	DetailsSubmitted    bool       `db:"details_submitted" json:"details_submitted"`
	RequirementsDue     []string   `db:"requirements_due" json:"requirements_due"`
	OnboardingUrl       string     `db:"onboarding_url" json:"onboarding_url,omitempty"`
	OnboardingExpiresAt *time.Time `db:"onboarding_expires_at" json:"onboarding_expires_at,omitempty"`
	DashboardUrl        string     `db:"dashboard_url" json:"dashboard_url,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// IsReady reports whether the account can receive charges and payouts.
func (a *PaymentAccount) IsReady() bool {
	return a != nil && a.ChargesEnabled && a.PayoutsEnabled && a.DetailsSubmitted
}

// AccountStatus is the processor-reported state of a sub-account
type AccountStatus struct {
	AccountId        string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	RequirementsDue  []string
}

// Apply copies processor-reported flags onto the local record and clears the
// onboarding link once the account is ready.
func (a *PaymentAccount) Apply(status AccountStatus) {
	a.ChargesEnabled = status.ChargesEnabled
	a.PayoutsEnabled = status.PayoutsEnabled
	a.DetailsSubmitted = status.DetailsSubmitted
	a.RequirementsDue = append([]string(nil), status.RequirementsDue...)
	if a.IsReady() {
		a.OnboardingUrl = ""
		a.OnboardingExpiresAt = nil
	}
}

// Campaign is a fundraising campaign
type Campaign struct {
	Id               int64          `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	ShortDescription string         `db:"short_description" json:"short_description"`
	Description      string         `db:"description" json:"description"`
	TargetAmount     money.Money    `db:"target_amount" json:"target_amount"`
	CurrentAmount    money.Money    `db:"current_amount" json:"current_amount"`
	Status           CampaignStatus `db:"status" json:"status"`
	StripeReady      bool           `db:"stripe_ready" json:"stripe_ready"`
	OwnerId          string         `db:"owner_id" json:"owner_id"`
	ModerationNotes  string         `db:"moderation_notes" json:"moderation_notes,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// CampaignContent is the owner-editable part of a campaign
type CampaignContent struct {
	Title            string      `json:"title" validate:"required,max=200"`
	ShortDescription string      `json:"short_description" validate:"max=300"`
	Description      string      `json:"description" validate:"required"`
	TargetAmount     money.Money `json:"target_amount"`
}

// Donation is an anonymous contribution identified by its payment reference
type Donation struct {
	Id               string      `db:"id" json:"id"`
	PaymentReference string      `db:"payment_reference" json:"payment_reference"`
	Amount           money.Money `db:"amount" json:"amount"`
	CampaignId       int64       `db:"campaign_id" json:"campaign_id"`
	IsAnonymous      bool        `db:"is_anonymous" json:"is_anonymous"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// ModerationEntry is one row of the append-only moderation history
type ModerationEntry struct {
	Id          string           `db:"id" json:"id"`
	CampaignId  int64            `db:"campaign_id" json:"campaign_id"`
	ModeratorId string           `db:"moderator_id" json:"moderator_id"`
	Action      ModerationAction `db:"action" json:"action"`
	Notes       string           `db:"notes" json:"notes"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
