package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"

	"go.uber.org/zap"
)

// Stripe substitutes this placeholder in the success URL.
const checkoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type checkoutPolicy struct {
	currency    string
	productName string
	min         money.Money
	max         money.Money
	successUrl  string
	cancelUrl   string
}

func newCheckoutPolicy(cfg models.CheckoutConfig, frontendBaseUrl string) (checkoutPolicy, error) {
	p := checkoutPolicy{
		currency:    strings.ToLower(strings.TrimSpace(cfg.Currency)),
		productName: cfg.ProductName,
		min:         money.FromMinorUnits(100),
		successUrl:  strings.TrimRight(frontendBaseUrl, "/") + cfg.SuccessPath,
		cancelUrl:   strings.TrimRight(frontendBaseUrl, "/") + cfg.CancelPath,
	}
	if p.currency == "" {
		p.currency = "usd"
	}
	if p.productName == "" {
		p.productName = "Donation to {title}"
	}
	if cfg.SuccessPath == "" {
		p.successUrl = strings.TrimRight(frontendBaseUrl, "/") + "/campaigns/{campaign_id}?session_id=" + checkoutSessionPlaceholder
	}
	if cfg.CancelPath == "" {
		p.cancelUrl = strings.TrimRight(frontendBaseUrl, "/") + "/campaigns/{campaign_id}"
	}

	if cfg.MinAmount != "" {
		minAmount, err := money.Parse(cfg.MinAmount)
		if err != nil {
			return p, fmt.Errorf("invalid checkout min_amount: %w", err)
		}
		p.min = minAmount
	}
	if cfg.MaxAmount != "" {
		maxAmount, err := money.Parse(cfg.MaxAmount)
		if err != nil {
			return p, fmt.Errorf("invalid checkout max_amount: %w", err)
		}
		p.max = maxAmount
	}
	if !p.max.IsZero() && p.max.Cmp(p.min) < 0 {
		return p, fmt.Errorf("checkout max_amount %s is below min_amount %s", p.max, p.min)
	}
	return p, nil
}

func (p checkoutPolicy) render(template string, campaign *models.Campaign) string {
	return strings.NewReplacer(
		"{title}", campaign.Title,
		"{campaign_id}", strconv.FormatInt(campaign.Id, 10),
	).Replace(template)
}

// CreateCheckout opens a hosted checkout session for a donation on the
// campaign owner's sub-account.
func (e *Engine) CreateCheckout(ctx context.Context, campaignId int64, amount money.Money) (*models.CheckoutSession, error) {
	campaign, err := e.loadCampaign(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.StatusApproved {
		return nil, apperr.ErrInvalidTransition.WithMessage("campaign %d is not accepting donations", campaignId)
	}
	if !campaign.StripeReady {
		return nil, apperr.ErrNotReady
	}

	if amount.Cmp(e.checkout.min) < 0 {
		return nil, apperr.ErrValidation.WithMessage("amount must be at least %s", e.checkout.min)
	}
	if !e.checkout.max.IsZero() && amount.Cmp(e.checkout.max) > 0 {
		return nil, apperr.ErrValidation.WithMessage("amount must be at most %s", e.checkout.max)
	}

	account, err := e.accounts.GetAccount(ctx, campaign.OwnerId)
	if err != nil {
		return nil, err
	}
	if !account.IsReady() {
		return nil, apperr.ErrNotReady
	}

	session, err := e.processor.CreateCheckoutSession(ctx, models.CheckoutParams{
		AccountId:   account.AccountId,
		CampaignId:  campaign.Id,
		ProductName: e.checkout.render(e.checkout.productName, campaign),
		Currency:    e.checkout.currency,
		AmountMinor: amount.ToMinorUnits(),
		SuccessUrl:  e.checkout.render(e.checkout.successUrl, campaign),
		CancelUrl:   e.checkout.render(e.checkout.cancelUrl, campaign),
	})
	if err != nil {
		zap.L().Warn("Failed to create checkout session",
			zap.Int64("campaign_id", campaignId),
			zap.String("account_id", account.AccountId),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("Checkout session created",
		zap.Int64("campaign_id", campaignId),
		zap.String("session_id", session.Id),
		zap.String("amount", amount.String()))
	return session, nil
}
