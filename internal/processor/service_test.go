package processor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test_secret"

var testPayload = []byte(`{
	"id": "evt_1",
	"object": "event",
	"type": "checkout.session.completed",
	"account": "acct_1",
	"data": {"object": {"id": "cs_1", "object": "checkout.session", "payment_intent": "pi_1", "amount_total": 5000}}
}`)

func TestNewService_RequiresSecretKey(t *testing.T) {
	if _, err := NewService(models.ProcessorConfig{}); err == nil {
		t.Error("Expected error without secret key")
	}

	svc, err := NewService(models.ProcessorConfig{SecretKey: "sk_test_123", HTTPTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if svc.client == nil {
		t.Error("Expected an API client")
	}
}

func TestVerifyEvent_Signed(t *testing.T) {
	svc := &Service{webhookSecret: testWebhookSecret}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   testPayload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	evt, err := svc.VerifyEvent(testPayload, signed.Header)
	if err != nil {
		t.Fatalf("VerifyEvent failed: %v", err)
	}
	if evt.Id != "evt_1" || evt.Type != "checkout.session.completed" || evt.Account != "acct_1" {
		t.Errorf("Unexpected event envelope: %+v", evt)
	}
	if evt.Session == nil || evt.Session.Id != "cs_1" || evt.Session.PaymentIntentId != "pi_1" || evt.Session.AmountTotal != 5000 {
		t.Errorf("Expected the decoded checkout session, got %+v", evt.Session)
	}
}

func TestDecodeEvent_PaymentIntentShapes(t *testing.T) {
	tests := []struct {
		name          string
		paymentIntent string
		want          string
	}{
		{"string", `"payment_intent":"pi_1",`, "pi_1"},
		{"expanded", `"payment_intent":{"id":"pi_2","object":"payment_intent","status":"succeeded"},`, "pi_2"},
		{"null", `"payment_intent":null,`, ""},
		{"absent", ``, ""},
	}
	for _, tt := range tests {
		payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1",` +
			tt.paymentIntent + `"payment_status":"paid","amount_total":100,"metadata":{"campaign_id":"7"}}}}`)
		evt, err := DecodeEvent(payload)
		if err != nil {
			t.Fatalf("%s: DecodeEvent failed: %v", tt.name, err)
		}
		if evt.Session == nil || evt.Session.PaymentIntentId != tt.want || evt.Session.Metadata["campaign_id"] != "7" {
			t.Errorf("%s: unexpected session %+v", tt.name, evt.Session)
		}
	}
}

func TestDecodeEvent_AccountAndCapability(t *testing.T) {
	evt, err := DecodeEvent([]byte(`{"id":"evt_2","type":"account.updated","data":{"object":{"id":"acct_1","object":"account",
		"charges_enabled":true,"payouts_enabled":true,"details_submitted":false,
		"requirements":{"currently_due":["external_account"]}}}}`))
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	status := evt.AccountStatus
	if status == nil || status.AccountId != "acct_1" || !status.ChargesEnabled || status.DetailsSubmitted || len(status.RequirementsDue) != 1 {
		t.Errorf("Unexpected account status: %+v", status)
	}

	for _, account := range []string{`"acct_2"`, `{"id":"acct_2","object":"account"}`} {
		evt, err := DecodeEvent([]byte(`{"id":"evt_3","type":"capability.updated","data":{"object":{"id":"transfers","object":"capability","account":` + account + `}}}`))
		if err != nil {
			t.Fatalf("DecodeEvent failed: %v", err)
		}
		if evt.CapabilityAccountId != "acct_2" {
			t.Errorf("Expected capability account acct_2 from %s, got %q", account, evt.CapabilityAccountId)
		}
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	for _, payload := range []string{
		`{not json`,
		`{"id":"evt_4","data":{"object":{}}}`,
		`{"id":"evt_5","type":"checkout.session.completed","data":{"object":{"id":"cs_1","amount_total":"lots"}}}`,
	} {
		if _, err := DecodeEvent([]byte(payload)); !errors.Is(err, apperr.ErrMalformedEvent) {
			t.Errorf("Expected ErrMalformedEvent for %s, got %v", payload, err)
		}
	}
}

func TestVerifyEvent_BadSignature(t *testing.T) {
	svc := &Service{webhookSecret: testWebhookSecret}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   testPayload,
		Secret:    "whsec_other",
		Timestamp: time.Now(),
	})

	if _, err := svc.VerifyEvent(testPayload, signed.Header); !errors.Is(err, apperr.ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
	if _, err := svc.VerifyEvent(testPayload, ""); !errors.Is(err, apperr.ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature for missing header, got %v", err)
	}
}

func TestVerifyEvent_NoSecretParsesUnverified(t *testing.T) {
	svc := &Service{}
	evt, err := svc.VerifyEvent(testPayload, "")
	if err != nil {
		t.Fatalf("VerifyEvent failed: %v", err)
	}
	if evt.Id != "evt_1" {
		t.Errorf("Expected evt_1, got %s", evt.Id)
	}

	if _, err := svc.VerifyEvent([]byte("nope"), ""); !errors.Is(err, apperr.ErrMalformedEvent) {
		t.Errorf("Expected ErrMalformedEvent, got %v", err)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *apperr.AppError
	}{
		{"resource missing", &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: 404, Msg: "No such checkout.session"}, apperr.ErrNotFound},
		{"rate limited", &stripe.Error{HTTPStatusCode: 429}, apperr.ErrProcessorUnavailable},
		{"server error", &stripe.Error{HTTPStatusCode: 502}, apperr.ErrProcessorUnavailable},
		{"invalid request", &stripe.Error{HTTPStatusCode: 400, Msg: "Invalid email"}, apperr.ErrProcessorError},
		{"timeout", fmt.Errorf("request: %w", context.DeadlineExceeded), apperr.ErrProcessorUnavailable},
		{"network", errors.New("dial tcp: connection refused"), apperr.ErrProcessorUnavailable},
	}
	for _, tt := range tests {
		got := mapError("test", tt.err)
		if !errors.Is(got, tt.want) {
			t.Errorf("%s: expected %s, got %v", tt.name, tt.want.Code, got)
		}
	}
}

func TestCheckoutSessionMapping(t *testing.T) {
	s := checkoutSession(&stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   5000,
		Currency:      stripe.CurrencyUSD,
		Metadata:      map[string]string{models.MetadataCampaignId: "7"},
	})
	if s.PaymentIntentId != "pi_1" || s.PaymentStatus != models.PaymentStatusPaid || s.AmountTotal != 5000 || s.Currency != "usd" {
		t.Errorf("Unexpected session: %+v", s)
	}

	if s := checkoutSession(&stripe.CheckoutSession{ID: "cs_2"}); s.PaymentIntentId != "" {
		t.Errorf("Expected no payment intent, got %s", s.PaymentIntentId)
	}
}

func TestAccountStatusMapping(t *testing.T) {
	status := accountStatus(&stripe.Account{
		ID:               "acct_1",
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
		Requirements:     &stripe.AccountRequirements{CurrentlyDue: []string{"tos_acceptance.date"}},
	})
	if status.AccountId != "acct_1" || !status.ChargesEnabled || len(status.RequirementsDue) != 1 {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestDisabled(t *testing.T) {
	var d Disabled
	ctx := context.Background()
	if _, err := d.CreateAccount(ctx, "u", "e"); !errors.Is(err, apperr.ErrProcessorUnavailable) {
		t.Errorf("Expected ErrProcessorUnavailable, got %v", err)
	}
	if _, err := d.RetrieveCheckoutSession(ctx, "cs", ""); !errors.Is(err, apperr.ErrProcessorUnavailable) {
		t.Errorf("Expected ErrProcessorUnavailable, got %v", err)
	}
	_, err := d.VerifyEvent(nil, "")
	if !errors.Is(err, apperr.ErrProcessorUnavailable) {
		t.Errorf("Expected ErrProcessorUnavailable, got %v", err)
	}
	if appErr, ok := apperr.As(err); !ok || appErr.Retryable() {
		t.Errorf("Expected a non-retryable error, got %v", err)
	}
}
