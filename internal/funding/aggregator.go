// Package funding keeps a campaign's denormalized current_amount in step with
// its donations.
package funding

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
	"campaign-funding-go/internal/store"
)

type Aggregator struct {
	store store.FundingStore
}

func NewAggregator(s store.FundingStore) *Aggregator {
	return &Aggregator{store: s}
}

// Recalculate sets current_amount to the sum of donations and reports whether
// it had drifted.
func (a *Aggregator) Recalculate(ctx context.Context, campaignId int64) (money.Money, bool, error) {
	total, changed, err := a.store.RecalculateCampaignAmount(ctx, campaignId)
	if err != nil {
		return money.Zero, false, fmt.Errorf("failed to recalculate campaign %d: %w", campaignId, err)
	}
	return total, changed, nil
}

// IncrementBy adds a newly created donation's amount. Only the caller that
// observed OutcomeCreated may call it.
func (a *Aggregator) IncrementBy(ctx context.Context, campaignId int64, amount money.Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("increment for campaign %d must be positive, got %s", campaignId, amount)
	}
	if err := a.store.IncrementCampaignAmount(ctx, campaignId, amount); err != nil {
		return fmt.Errorf("failed to increment campaign %d: %w", campaignId, err)
	}
	return nil
}

// ProgressPercentage is min(100, floor(current/target*100)), or 0 when there is no target.
func ProgressPercentage(current, target money.Money) int {
	c, t := current.ToMinorUnits(), target.ToMinorUnits()
	if t <= 0 || c <= 0 {
		return 0
	}
	if c >= t {
		return 100
	}
	if c <= math.MaxInt64/100 {
		return int(c * 100 / t)
	}
	pct := new(big.Int).Mul(big.NewInt(c), big.NewInt(100))
	return int(pct.Quo(pct, big.NewInt(t)).Int64())
}

// Progress builds the public funding view of a campaign.
func Progress(c *models.Campaign) models.CampaignProgress {
	return models.CampaignProgress{
		CampaignId:         c.Id,
		TargetAmount:       c.TargetAmount,
		CurrentAmount:      c.CurrentAmount,
		ProgressPercentage: ProgressPercentage(c.CurrentAmount, c.TargetAmount),
	}
}
