package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	maxWebhookBytes = 1 << 20
	maxRequestBytes = 64 << 10
)

// Handlers holds the dependencies of every HTTP route
type Handlers struct {
	donations DonationService
	campaigns CampaignService
	accounts  AccountService
	health    *HealthService
	validate  *validator.Validate
}

func NewHandlers(donations DonationService, campaigns CampaignService, accounts AccountService, health *HealthService) *Handlers {
	return &Handlers{
		donations: donations,
		campaigns: campaigns,
		accounts:  accounts,
		health:    health,
		validate:  validator.New(),
	}
}

type confirmRequest struct {
	SessionId  string `json:"session_id" validate:"required"`
	CampaignId *int64 `json:"campaign_id" validate:"omitempty,gt=0"`
}

type checkoutRequest struct {
	CampaignId int64       `json:"campaign_id" validate:"required,gt=0"`
	Amount     money.Money `json:"amount"`
}

type checkoutResponse struct {
	SessionId string `json:"session_id"`
	Url       string `json:"url"`
}

type moderationRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type onboardingResponse struct {
	AccountId string                 `json:"account_id"`
	Link      *models.OnboardingLink `json:"link"`
}

// decodeJSON reads a bounded JSON body into dst and validates it
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.ErrMalformedRequest.WithMessage("request body is required")
		}
		return apperr.ErrMalformedRequest.WithMessage("invalid request body").WithError(err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return apperr.FromValidation(err)
	}
	return nil
}

func campaignIdParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ErrMalformedRequest.WithMessage("invalid campaign id %q", raw)
	}
	return id, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.HealthCheck(r.Context()); err != nil {
			zap.L().Error("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StripeWebhook verifies and applies a processor event. Redelivery is always
// answered with 200.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeAppError(w, r, apperr.ErrMalformedEvent.WithMessage("unable to read webhook body").WithError(err))
		return
	}

	result, err := h.donations.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ConfirmDonation(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	result, err := h.donations.ConfirmPayment(r.Context(), strings.TrimSpace(req.SessionId), req.CampaignId)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	session, err := h.donations.CreateCheckout(r.Context(), req.CampaignId, req.Amount)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{SessionId: session.Id, Url: session.Url})
}

func (h *Handlers) CampaignProgress(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIdParam(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	progress, err := h.donations.Progress(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// CampaignDonations lists the donations recorded against a campaign
func (h *Handlers) CampaignDonations(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIdParam(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	donations, err := h.donations.Donations(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donations)
}

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIdParam(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	campaign, err := h.campaigns.View(r.Context(), models.GetActor(r.Context()), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (h *Handlers) ModerationHistory(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIdParam(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	history, err := h.campaigns.History(r.Context(), models.GetActor(r.Context()), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var content models.CampaignContent
	if err := h.decodeJSON(w, r, &content); err != nil {
		writeAppError(w, r, err)
		return
	}

	result, err := h.campaigns.Create(r.Context(), models.GetActor(r.Context()), content)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handlers) EditCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIdParam(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var content models.CampaignContent
	if err := h.decodeJSON(w, r, &content); err != nil {
		writeAppError(w, r, err)
		return
	}

	campaign, err := h.campaigns.Edit(r.Context(), models.GetActor(r.Context()), id, content)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

type campaignActionFunc func(ctx context.Context, actor *models.Actor, campaignId int64) (*models.Campaign, error)

// campaignAction adapts an owner lifecycle operation to a route on /{id}/...
func (h *Handlers) campaignAction(action campaignActionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := campaignIdParam(r)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		campaign, err := action(r.Context(), models.GetActor(r.Context()), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, campaign)
	}
}

// moderationNotes reads an optional {"notes": "..."} body; an empty body means no notes
func (h *Handlers) moderationNotes(w http.ResponseWriter, r *http.Request) (string, error) {
	var req moderationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", apperr.ErrMalformedRequest.WithMessage("invalid request body").WithError(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return "", apperr.FromValidation(err)
	}
	return strings.TrimSpace(req.Notes), nil
}

type moderationActionFunc func(ctx context.Context, actor *models.Actor, campaignId int64, notes string) (*models.Campaign, error)

func (h *Handlers) moderationAction(action moderationActionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := campaignIdParam(r)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		notes, err := h.moderationNotes(w, r)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		campaign, err := action(r.Context(), models.GetActor(r.Context()), id, notes)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, campaign)
	}
}

// StartOnboarding ensures the caller has a sub-account and returns a usable
// onboarding link for it.
func (h *Handlers) StartOnboarding(w http.ResponseWriter, r *http.Request) {
	actor := models.GetActor(r.Context())
	if actor == nil {
		writeAppError(w, r, apperr.ErrUnauthorized)
		return
	}

	account, err := h.accounts.EnsureAccount(r.Context(), actor.UserId, actor.Email)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	link, err := h.accounts.RefreshOnboardingLink(r.Context(), account)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, onboardingResponse{AccountId: account.AccountId, Link: link})
}

func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	actor := models.GetActor(r.Context())
	if actor == nil {
		writeAppError(w, r, apperr.ErrUnauthorized)
		return
	}

	view, err := h.accounts.View(r.Context(), actor.UserId)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) SweepCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIdParam(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	result, err := h.donations.SweepCampaign(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) SweepAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.donations.SweepAll(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
