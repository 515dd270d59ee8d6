package store

import (
	"context"
	"errors"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("record not found")
	ErrDuplicate              = errors.New("duplicate record")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// RecordDonationParams contains the parameters for the idempotent donation upsert.
type RecordDonationParams struct {
	CampaignId       int64
	PaymentReference string
	Amount           money.Money
}

// RecordDonationResult reports which branch of the upsert was taken. PreviousAmount
// is set only for OutcomeUpdated.
type RecordDonationResult struct {
	Donation       *models.Donation
	Outcome        models.DonationOutcome
	PreviousAmount money.Money
}

// UpdateCampaignParams persists a lifecycle change. The write only applies when
// the stored status still equals ExpectedStatus; History, when set, is appended
// in the same transaction.
type UpdateCampaignParams struct {
	Campaign       *models.Campaign
	ExpectedStatus models.CampaignStatus
	History        *models.ModerationEntry
}

// ListCampaignsParams filters campaign listings. Empty fields match everything.
type ListCampaignsParams struct {
	Status  models.CampaignStatus
	OwnerId string
}

// AccountStore persists payment accounts and the readiness mirror on campaigns.
type AccountStore interface {
	GetAccountByUser(ctx context.Context, userId string) (*models.PaymentAccount, error)
	GetAccountByAccountId(ctx context.Context, accountId string) (*models.PaymentAccount, error)
	InsertAccount(ctx context.Context, account *models.PaymentAccount) error
	UpdateAccount(ctx context.Context, account *models.PaymentAccount) error
	SetCampaignsStripeReady(ctx context.Context, ownerId string, ready bool) (int64, error)
}

// CampaignStore persists campaigns and their moderation history.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, campaign *models.Campaign) error
	GetCampaign(ctx context.Context, id int64) (*models.Campaign, error)
	UpdateCampaign(ctx context.Context, params UpdateCampaignParams) error
	ListCampaigns(ctx context.Context, params ListCampaignsParams) ([]models.Campaign, error)
	ListReconcilableCampaigns(ctx context.Context) ([]models.Campaign, error)
	ListModerationHistory(ctx context.Context, campaignId int64) ([]models.ModerationEntry, error)
}

// DonationStore is the idempotent donation ledger.
type DonationStore interface {
	RecordDonation(ctx context.Context, params RecordDonationParams) (*RecordDonationResult, error)
	GetDonationByReference(ctx context.Context, paymentReference string) (*models.Donation, error)
	ListDonations(ctx context.Context, campaignId int64) ([]models.Donation, error)
}

// FundingStore maintains the denormalized campaign total.
type FundingStore interface {
	RecalculateCampaignAmount(ctx context.Context, campaignId int64) (money.Money, bool, error)
	IncrementCampaignAmount(ctx context.Context, campaignId int64, amount money.Money) error
}

// Store is implemented by every backend.
type Store interface {
	AccountStore
	CampaignStore
	DonationStore
	FundingStore
	Close()
}
