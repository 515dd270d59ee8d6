package reconcile

import (
	"context"
	"time"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type sweptPayment struct {
	reference string
	amount    money.Money
}

// SweepCampaign re-derives one campaign's donations from the processor.
// Processor and store failures are reported in the result, not as an error.
func (e *Engine) SweepCampaign(ctx context.Context, campaignId int64) (*models.CampaignSweepResult, error) {
	campaign, err := e.loadCampaign(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	result := e.sweep(ctx, campaign)
	return &result, nil
}

// SweepAll sweeps every approved campaign whose owner can receive payments.
// Campaigns are independent; one failing never stops the others.
func (e *Engine) SweepAll(ctx context.Context) (*models.SweepSummary, error) {
	summary := &models.SweepSummary{StartedAt: time.Now()}

	campaigns, err := e.campaigns.ListReconcilableCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]models.CampaignSweepResult, len(campaigns))
	var g errgroup.Group
	g.SetLimit(e.sweepConcurrency)
	for i := range campaigns {
		i := i
		g.Go(func() error {
			results[i] = e.sweep(ctx, &campaigns[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		summary.Add(r)
	}
	summary.FinishedAt = time.Now()

	zap.L().Info("Reconciliation sweep finished",
		zap.Int("campaigns_processed", summary.CampaignsProcessed),
		zap.Int("campaigns_failed", summary.CampaignsFailed),
		zap.Int("campaigns_skipped", summary.CampaignsSkipped),
		zap.Int("donations_created", summary.DonationsCreated),
		zap.Int("donations_updated", summary.DonationsUpdated),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary, nil
}

func (e *Engine) sweep(ctx context.Context, campaign *models.Campaign) models.CampaignSweepResult {
	result := models.CampaignSweepResult{CampaignId: campaign.Id, CurrentAmount: campaign.CurrentAmount}

	fail := func(stage string, err error) models.CampaignSweepResult {
		zap.L().Warn("Campaign sweep failed",
			zap.Int64("campaign_id", campaign.Id),
			zap.String("stage", stage),
			zap.Error(err))
		result.Error = err.Error()
		return result
	}

	account, err := e.accounts.GetAccount(ctx, campaign.OwnerId)
	if err != nil {
		return fail("account", err)
	}
	if account == nil {
		result.Skipped = true
		result.SkipReason = "owner has no payment account"
		return result
	}

	payments, err := e.collectPayments(ctx, campaign.Id, account.AccountId)
	if err != nil {
		return fail("processor", err)
	}

	for _, p := range payments {
		_, outcome, err := e.ledger.RecordDonation(ctx, campaign.Id, p.reference, p.amount)
		if err != nil {
			// Donations written before the failure still have to reach the total.
			if total, changed, recalcErr := e.recalculate(ctx, campaign.Id); recalcErr != nil {
				zap.L().Warn("Failed to recalculate after partial sweep",
					zap.Int64("campaign_id", campaign.Id),
					zap.Error(recalcErr))
			} else {
				result.CurrentAmount = total
				result.Corrected = changed
			}
			return fail("record", err)
		}
		switch outcome {
		case models.OutcomeCreated:
			result.Created++
		case models.OutcomeUpdated:
			result.Updated++
		default:
			result.Unchanged++
		}
	}

	total, changed, err := e.recalculate(ctx, campaign.Id)
	if err != nil {
		return fail("recalculate", err)
	}
	result.CurrentAmount = total
	result.Corrected = changed
	return result
}

// collectPayments lists the campaign's settled payments on the owner's
// sub-account, payment intents first, one entry per reference.
func (e *Engine) collectPayments(ctx context.Context, campaignId int64, accountId string) ([]sweptPayment, error) {
	intents, err := e.processor.ListSucceededPaymentIntents(ctx, accountId)
	if err != nil {
		return nil, err
	}
	sessions, err := e.processor.ListPaidCheckoutSessions(ctx, accountId)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var payments []sweptPayment

	for _, pi := range intents {
		if !belongsTo(pi.Metadata, campaignId) {
			continue
		}
		amount := pi.AmountReceived
		if amount <= 0 {
			amount = pi.Amount
		}
		if amount <= 0 {
			continue
		}
		if _, ok := seen[pi.Id]; ok {
			continue
		}
		seen[pi.Id] = struct{}{}
		payments = append(payments, sweptPayment{reference: pi.Id, amount: money.FromMinorUnits(amount)})
	}

	for _, s := range sessions {
		if s.PaymentStatus != models.PaymentStatusPaid || s.AmountTotal <= 0 || !belongsTo(s.Metadata, campaignId) {
			continue
		}
		reference := PaymentReference(s.PaymentIntentId, s.Id)
		if _, ok := seen[reference]; ok {
			continue
		}
		seen[reference] = struct{}{}
		payments = append(payments, sweptPayment{reference: reference, amount: money.FromMinorUnits(s.AmountTotal)})
	}

	return payments, nil
}

func belongsTo(metadata map[string]string, campaignId int64) bool {
	id, ok, err := CampaignIdFromMetadata(metadata)
	return err == nil && ok && id == campaignId
}
