/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxNetworkRetries  = 2
)

type Service struct {
	client        *client.API
	webhookSecret string
}

func NewService(cfg models.ProcessorConfig) (*Service, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("processor secret key is not configured")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	httpClient, err := createCustomHttpClient(timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &httpClient,
		MaxNetworkRetries: stripe.Int64(maxNetworkRetries),
		LeveledLogger:     zapLeveledLogger{logger: zap.L().Sugar()},
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	}

	return &Service{
		client:        client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   2 * timeout,
	}, nil
}

func (s *Service) CreateAccount(ctx context.Context, userId, email string) (*models.AccountStatus, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userId)

	account, err := s.client.Accounts.New(params)
	if err != nil {
		return nil, mapError("create account", err)
	}

	zap.L().Info("Created processor sub-account",
		zap.String("user_id", userId),
		zap.String("account_id", account.ID))
	return accountStatus(account), nil
}

func (s *Service) RetrieveAccount(ctx context.Context, accountId string) (*models.AccountStatus, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	account, err := s.client.Accounts.GetByID(accountId, params)
	if err != nil {
		return nil, mapError("retrieve account", err)
	}
	return accountStatus(account), nil
}

func (s *Service) CreateAccountLink(ctx context.Context, accountId, refreshUrl, returnUrl string) (*models.OnboardingLink, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountId),
		RefreshURL: stripe.String(refreshUrl),
		ReturnURL:  stripe.String(returnUrl),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := s.client.AccountLinks.New(params)
	if err != nil {
		return nil, mapError("create account link", err)
	}
	return &models.OnboardingLink{Url: link.URL, ExpiresAt: time.Unix(link.ExpiresAt, 0).UTC()}, nil
}

func (s *Service) CreateLoginLink(ctx context.Context, accountId string) (string, error) {
	params := &stripe.LoginLinkParams{Account: stripe.String(accountId)}
	params.Context = ctx

	link, err := s.client.LoginLinks.New(params)
	if err != nil {
		return "", mapError("create login link", err)
	}
	return link.URL, nil
}

// CreateCheckoutSession creates a one-item payment session. A non-empty AccountId
// creates it directly on that sub-account.
func (s *Service) CreateCheckoutSession(ctx context.Context, p models.CheckoutParams) (*models.CheckoutSession, error) {
	campaignId := strconv.FormatInt(p.CampaignId, 10)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.ProductName),
					},
					UnitAmount: stripe.Int64(p.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{models.MetadataCampaignId: campaignId},
		},
		SuccessURL: stripe.String(p.SuccessUrl),
		CancelURL:  stripe.String(p.CancelUrl),
	}
	params.Context = ctx
	params.AddMetadata(models.MetadataCampaignId, campaignId)
	if p.AccountId != "" {
		params.SetStripeAccount(p.AccountId)
	}

	session, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, mapError("create checkout session", err)
	}
	return checkoutSession(session), nil
}

// RetrieveCheckoutSession looks the session up on accountId, or on the platform
// account when accountId is empty.
func (s *Service) RetrieveCheckoutSession(ctx context.Context, sessionId, accountId string) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	if accountId != "" {
		params.SetStripeAccount(accountId)
	}

	session, err := s.client.CheckoutSessions.Get(sessionId, params)
	if err != nil {
		return nil, mapError("retrieve checkout session", err)
	}
	return checkoutSession(session), nil
}

// ListSucceededPaymentIntents pages through every payment intent on the account
// and keeps the succeeded ones.
func (s *Service) ListSucceededPaymentIntents(ctx context.Context, accountId string) ([]models.PaymentIntent, error) {
	params := &stripe.PaymentIntentListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	if accountId != "" {
		params.SetStripeAccount(accountId)
	}

	var intents []models.PaymentIntent
	iter := s.client.PaymentIntents.List(params)
	for iter.Next() {
		pi := iter.PaymentIntent()
		if pi.Status != stripe.PaymentIntentStatusSucceeded {
			continue
		}
		intents = append(intents, models.PaymentIntent{
			Id:             pi.ID,
			Status:         string(pi.Status),
			Amount:         pi.Amount,
			AmountReceived: pi.AmountReceived,
			Metadata:       pi.Metadata,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, mapError("list payment intents", err)
	}
	return intents, nil
}

// ListPaidCheckoutSessions pages through completed sessions on the account and
// keeps the paid ones.
func (s *Service) ListPaidCheckoutSessions(ctx context.Context, accountId string) ([]models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{
		Status: stripe.String(string(stripe.CheckoutSessionStatusComplete)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	if accountId != "" {
		params.SetStripeAccount(accountId)
	}

	var sessions []models.CheckoutSession
	iter := s.client.CheckoutSessions.List(params)
	for iter.Next() {
		session := iter.CheckoutSession()
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			continue
		}
		sessions = append(sessions, *checkoutSession(session))
	}
	if err := iter.Err(); err != nil {
		return nil, mapError("list checkout sessions", err)
	}
	return sessions, nil
}

// VerifyEvent checks the webhook signature and returns the event envelope.
// Without a webhook secret the payload is parsed unverified.
func (s *Service) VerifyEvent(payload []byte, signatureHeader string) (*models.ProcessorEvent, error) {
	if s.webhookSecret == "" {
		zap.L().Warn("Webhook secret not configured, skipping signature verification")
		return DecodeEvent(payload)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperr.ErrInvalidSignature.WithError(err)
	}
	return processorEvent(&event)
}

// DecodeEvent parses a webhook payload without verifying its signature.
func DecodeEvent(payload []byte) (*models.ProcessorEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperr.ErrMalformedEvent.WithError(err).WithMessage("webhook payload is not a valid event")
	}
	return processorEvent(&event)
}

func processorEvent(event *stripe.Event) (*models.ProcessorEvent, error) {
	if event.Type == "" {
		return nil, apperr.ErrMalformedEvent.WithMessage("event type is missing")
	}
	evt := &models.ProcessorEvent{
		Id:      event.ID,
		Type:    string(event.Type),
		Account: event.Account,
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var session stripe.CheckoutSession
		if err := decodeObject(event, &session); err != nil {
			return nil, err
		}
		evt.Session = checkoutSession(&session)

	case "account.updated":
		var account stripe.Account
		if err := decodeObject(event, &account); err != nil {
			return nil, err
		}
		evt.AccountStatus = accountStatus(&account)

	case "capability.updated":
		var capability stripe.Capability
		if err := decodeObject(event, &capability); err != nil {
			return nil, err
		}
		if capability.Account != nil {
			evt.CapabilityAccountId = capability.Account.ID
		}
	}
	return evt, nil
}

func decodeObject(event *stripe.Event, dst interface{}) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return apperr.ErrMalformedEvent.WithMessage("event %s has no data object", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, dst); err != nil {
		return apperr.ErrMalformedEvent.WithError(err).WithMessage("event %s data object is malformed", event.ID)
	}
	return nil
}

func accountStatus(a *stripe.Account) *models.AccountStatus {
	status := &models.AccountStatus{
		AccountId:        a.ID,
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
		DetailsSubmitted: a.DetailsSubmitted,
	}
	if a.Requirements != nil {
		status.RequirementsDue = a.Requirements.CurrentlyDue
	}
	return status
}

func checkoutSession(s *stripe.CheckoutSession) *models.CheckoutSession {
	session := &models.CheckoutSession{
		Id:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Url:           s.URL,
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		session.PaymentIntentId = s.PaymentIntent.ID
	}
	return session
}
