package processor

import (
	"context"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/models"
)

var errNotConfigured = apperr.ErrProcessorUnavailable.
	WithMessage("payment processor is not configured").
	WithDetails(map[string]interface{}{"configured": false})

// Disabled stands in when no processor credentials are configured. Every call
// fails with ErrProcessorUnavailable; webhooks cannot be verified.
type Disabled struct{}

func (Disabled) CreateAccount(context.Context, string, string) (*models.AccountStatus, error) {
	return nil, errNotConfigured
}

func (Disabled) RetrieveAccount(context.Context, string) (*models.AccountStatus, error) {
	return nil, errNotConfigured
}

func (Disabled) CreateAccountLink(context.Context, string, string, string) (*models.OnboardingLink, error) {
	return nil, errNotConfigured
}

func (Disabled) CreateLoginLink(context.Context, string) (string, error) {
	return "", errNotConfigured
}

func (Disabled) CreateCheckoutSession(context.Context, models.CheckoutParams) (*models.CheckoutSession, error) {
	return nil, errNotConfigured
}

func (Disabled) RetrieveCheckoutSession(context.Context, string, string) (*models.CheckoutSession, error) {
	return nil, errNotConfigured
}

func (Disabled) ListSucceededPaymentIntents(context.Context, string) ([]models.PaymentIntent, error) {
	return nil, errNotConfigured
}

func (Disabled) ListPaidCheckoutSessions(context.Context, string) ([]models.CheckoutSession, error) {
	return nil, errNotConfigured
}

func (Disabled) VerifyEvent([]byte, string) (*models.ProcessorEvent, error) {
	return nil, errNotConfigured
}
