package formance

import (
	"context"
	"fmt"
	"math/big"

	"campaign-funding-go/internal/money"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// CampaignBalance returns the journaled donation total of a campaign, for
// auditing the local current_amount against the ledger.
func (s *Service) CampaignBalance(ctx context.Context, campaignId int64) (money.Money, error) {
	address := campaignAccount(campaignId)
	zap.L().Debug("Getting campaign balance from Formance", zap.String("address", address))

	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		return money.Zero, fmt.Errorf("failed to get account %s: %w", address, err)
	}

	bal := volumeBalance(resp.V2AccountResponse.Data.Volumes, donationAsset)
	return balanceToMoney(bal)
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// balanceToMoney converts a cent balance into money. Negative balances cannot
// occur for a donation account and are reported as errors.
func balanceToMoney(raw *big.Int) (money.Money, error) {
	if raw == nil {
		return money.Zero, nil
	}
	if raw.Sign() < 0 {
		return money.Zero, fmt.Errorf("negative journal balance %s", raw.String())
	}
	if !raw.IsInt64() {
		return money.Zero, fmt.Errorf("journal balance %s overflows int64", raw.String())
	}
	return money.FromMinorUnits(raw.Int64()), nil
}
