package formance

import (
	"context"
	"fmt"
	"strconv"

	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// numscriptDonation credits a campaign from the outside world.
const numscriptDonation = `vars {
  asset $asset
  number $amount
  account $campaign_id
  string $payment_reference
}

send [$asset $amount] (
  source = @world
  destination = @campaigns:$campaign_id:donations
)

set_tx_meta("event_type", "donation")
set_tx_meta("payment_reference", $payment_reference)
`

// numscriptRefundDifference returns an over-recorded amount to the outside world.
const numscriptRefundDifference = `vars {
  asset $asset
  number $amount
  account $campaign_id
  string $payment_reference
}

send [$asset $amount] (
  source = @campaigns:$campaign_id:donations allowing unbounded overdraft
  destination = @world
)

set_tx_meta("event_type", "donation_adjustment")
set_tx_meta("payment_reference", $payment_reference)
`

// PostDonation journals a newly created donation. The payment reference is the
// transaction reference, so replays are rejected by the ledger as CONFLICT.
func (s *Service) PostDonation(ctx context.Context, donation *models.Donation) error {
	return s.post(ctx, donationTransaction(donation), donation)
}

// PostAdjustment journals the signed difference between a corrected donation
// amount and the previously recorded one.
func (s *Service) PostAdjustment(ctx context.Context, donation *models.Donation, previous money.Money) error {
	postTx, ok := adjustmentTransaction(donation, previous)
	if !ok {
		return nil
	}
	return s.post(ctx, postTx, donation)
}

func (s *Service) post(ctx context.Context, postTx shared.V2PostTransaction, donation *models.Donation) error {
	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return fmt.Errorf("error journaling donation %s: %w", donation.PaymentReference, err)
	}

	zap.L().Info("Donation journaled in Formance",
		zap.String("payment_reference", donation.PaymentReference),
		zap.String("reference", *postTx.Reference),
		zap.Int64("campaign_id", donation.CampaignId))
	return nil
}

func donationTransaction(d *models.Donation) shared.V2PostTransaction {
	return shared.V2PostTransaction{
		Reference: strPtr(d.PaymentReference),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptDonation,
			Vars: map[string]string{
				"asset":             donationAsset,
				"amount":            strconv.FormatInt(d.Amount.ToMinorUnits(), 10),
				"campaign_id":       strconv.FormatInt(d.CampaignId, 10),
				"payment_reference": d.PaymentReference,
			},
		},
		Metadata: map[string]string{
			"campaign_id": strconv.FormatInt(d.CampaignId, 10),
		},
	}
}

// adjustmentTransaction builds the posting for a correction. ok is false when
// the amounts are equal and nothing needs to be journaled.
func adjustmentTransaction(d *models.Donation, previous money.Money) (shared.V2PostTransaction, bool) {
	current := d.Amount.ToMinorUnits()
	diff := current - previous.ToMinorUnits()
	if diff == 0 {
		return shared.V2PostTransaction{}, false
	}

	script := numscriptDonation
	if diff < 0 {
		script = numscriptRefundDifference
		diff = -diff
	}

	return shared.V2PostTransaction{
		Reference: strPtr(fmt.Sprintf("%s:adjust:%d", d.PaymentReference, current)),
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars: map[string]string{
				"asset":             donationAsset,
				"amount":            strconv.FormatInt(diff, 10),
				"campaign_id":       strconv.FormatInt(d.CampaignId, 10),
				"payment_reference": d.PaymentReference,
			},
		},
		Metadata: map[string]string{
			"campaign_id":     strconv.FormatInt(d.CampaignId, 10),
			"previous_amount": previous.String(),
			"amount":          d.Amount.String(),
		},
	}, true
}
