package reconcile

import (
	"fmt"
	"strconv"
	"strings"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/models"
)

// Processor event types the engine acts on
const (
	EventCheckoutCompleted           = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceed = "checkout.session.async_payment_succeeded"
	EventAccountUpdated              = "account.updated"
	EventCapabilityUpdated           = "capability.updated"
)

// WebhookEvent is one of CheckoutCompleted, AccountUpdated, CapabilityUpdated or OtherEvent.
type WebhookEvent interface {
	EventId() string
	EventType() string
}

type envelope struct {
	Id   string
	Type string
}

func (e envelope) EventId() string   { return e.Id }
func (e envelope) EventType() string { return e.Type }

// CheckoutCompleted carries a completed (or asynchronously settled) checkout session.
type CheckoutCompleted struct {
	envelope
	SessionId       string
	PaymentIntentId string
	PaymentStatus   string
	AmountTotal     int64
	CampaignId      int64
	HasCampaignId   bool
}

// AccountUpdated carries the processor's view of a sub-account.
type AccountUpdated struct {
	envelope
	Status models.AccountStatus
}

// CapabilityUpdated names the sub-account whose capability changed.
type CapabilityUpdated struct {
	envelope
	AccountId string
}

// OtherEvent is acknowledged and ignored.
type OtherEvent struct {
	envelope
}

// ParseEvent maps a verified processor event onto its typed variant.
func ParseEvent(evt *models.ProcessorEvent) (WebhookEvent, error) {
	if evt == nil || evt.Type == "" {
		return nil, apperr.ErrMalformedEvent.WithMessage("event type is missing")
	}
	env := envelope{Id: evt.Id, Type: evt.Type}

	switch evt.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncPaymentSucceed:
		session := evt.Session
		if session == nil || session.Id == "" {
			return nil, apperr.ErrMalformedEvent.WithMessage("checkout session id is missing")
		}
		campaignId, ok, err := CampaignIdFromMetadata(session.Metadata)
		if err != nil {
			return nil, apperr.ErrMalformedEvent.WithError(err).WithMessage("invalid campaign_id in session metadata")
		}
		return CheckoutCompleted{
			envelope:        env,
			SessionId:       session.Id,
			PaymentIntentId: session.PaymentIntentId,
			PaymentStatus:   session.PaymentStatus,
			AmountTotal:     session.AmountTotal,
			CampaignId:      campaignId,
			HasCampaignId:   ok,
		}, nil

	case EventAccountUpdated:
		if evt.AccountStatus == nil || evt.AccountStatus.AccountId == "" {
			return nil, apperr.ErrMalformedEvent.WithMessage("account id is missing")
		}
		return AccountUpdated{envelope: env, Status: *evt.AccountStatus}, nil

	case EventCapabilityUpdated:
		accountId := evt.CapabilityAccountId
		if accountId == "" {
			accountId = evt.Account
		}
		if accountId == "" {
			return nil, apperr.ErrMalformedEvent.WithMessage("capability event does not name an account")
		}
		return CapabilityUpdated{envelope: env, AccountId: accountId}, nil
	}

	return OtherEvent{envelope: env}, nil
}

// CampaignIdFromMetadata reads metadata.campaign_id. ok is false when the key is absent or blank.
func CampaignIdFromMetadata(metadata map[string]string) (int64, bool, error) {
	raw := strings.TrimSpace(metadata[models.MetadataCampaignId])
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("campaign_id %q is not an integer: %w", raw, err)
	}
	if id <= 0 {
		return 0, false, fmt.Errorf("campaign_id %d is not positive", id)
	}
	return id, true, nil
}
