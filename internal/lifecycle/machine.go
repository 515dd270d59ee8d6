// Package lifecycle implements the campaign status state machine. Moderation
// decisions and resumes are gated on the owner's payment account readiness.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/events"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/store"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// AccountDirectory resolves an owner's payment account readiness.
type AccountDirectory interface {
	EnsureAccount(ctx context.Context, userId, email string) (*models.PaymentAccount, error)
	Readiness(ctx context.Context, userId string) (bool, error)
}

// Store is the campaign storage the machine needs. Readiness is written only
// through SetCampaignsStripeReady; status updates never touch it.
type Store interface {
	store.CampaignStore
	SetCampaignsStripeReady(ctx context.Context, ownerId string, ready bool) (int64, error)
}

type Machine struct {
	store     Store
	accounts  AccountDirectory
	publisher events.Publisher
	validate  *validator.Validate
}

func NewMachine(s Store, accounts AccountDirectory, publisher events.Publisher) *Machine {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Machine{
		store:     s,
		accounts:  accounts,
		publisher: publisher,
		validate:  validator.New(),
	}
}

// Create validates the content, makes sure the owner has a payment account and
// stores the campaign as pending when the owner is ready, otherwise as draft.
// A processor failure while setting up the account does not prevent creation.
func (m *Machine) Create(ctx context.Context, actor *models.Actor, content models.CampaignContent) (*models.CreateCampaignResult, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthorized
	}
	if err := m.validateContent(content); err != nil {
		return nil, err
	}

	result := &models.CreateCampaignResult{}
	ready := false
	if _, err := m.accounts.EnsureAccount(ctx, actor.UserId, actor.Email); err != nil {
		appErr, ok := apperr.As(err)
		if !ok {
			return nil, fmt.Errorf("failed to set up payment account: %w", err)
		}
		zap.L().Warn("Payment account setup failed, creating campaign anyway",
			zap.String("owner_id", actor.UserId),
			zap.Error(err))
		result.PaymentSetupError = appErr.Message
	} else {
		r, err := m.accounts.Readiness(ctx, actor.UserId)
		if err != nil {
			return nil, err
		}
		ready = r
	}

	campaign := &models.Campaign{
		Title:            content.Title,
		ShortDescription: content.ShortDescription,
		Description:      content.Description,
		TargetAmount:     content.TargetAmount,
		Status:           models.StatusDraft,
		StripeReady:      ready,
		OwnerId:          actor.UserId,
	}
	if ready {
		campaign.Status = models.StatusPending
	}

	if err := m.store.CreateCampaign(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	m.publishStatus(ctx, campaign, "", actor)
	result.Campaign = campaign
	return result, nil
}

// Submit moves a draft or rejected campaign to pending review.
func (m *Machine) Submit(ctx context.Context, actor *models.Actor, campaignId int64) (*models.Campaign, error) {
	campaign, err := m.load(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, campaign); err != nil {
		return nil, err
	}
	if campaign.Status != models.StatusDraft && campaign.Status != models.StatusRejected {
		return nil, invalidTransition(campaign, "submit")
	}
	if err := m.requireReady(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, m.transition(ctx, actor, campaign, models.StatusPending, nil)
}

// Approve publishes a pending campaign.
func (m *Machine) Approve(ctx context.Context, actor *models.Actor, campaignId int64, notes string) (*models.Campaign, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	campaign, err := m.load(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.StatusPending {
		return nil, invalidTransition(campaign, "approve")
	}
	if err := m.requireReady(ctx, campaign); err != nil {
		return nil, err
	}

	notes = strings.TrimSpace(notes)
	campaign.ModerationNotes = notes
	return campaign, m.transition(ctx, actor, campaign, models.StatusApproved, &models.ModerationEntry{
		ModeratorId: actor.UserId,
		Action:      models.ActionApprove,
		Notes:       notes,
	})
}

// Reject sends a pending campaign back to its owner. Notes are required.
func (m *Machine) Reject(ctx context.Context, actor *models.Actor, campaignId int64, notes string) (*models.Campaign, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperr.ErrValidation.WithMessage("rejection notes are required").
			WithDetails(map[string]interface{}{"fields": []map[string]string{{"field": "notes", "message": "notes is required"}}})
	}
	campaign, err := m.load(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.StatusPending {
		return nil, invalidTransition(campaign, "reject")
	}

	campaign.ModerationNotes = notes
	return campaign, m.transition(ctx, actor, campaign, models.StatusRejected, &models.ModerationEntry{
		ModeratorId: actor.UserId,
		Action:      models.ActionReject,
		Notes:       notes,
	})
}

// Edit replaces the campaign content. Editing an approved or rejected campaign
// sends it back to review and clears the moderation notes; history is kept.
func (m *Machine) Edit(ctx context.Context, actor *models.Actor, campaignId int64, content models.CampaignContent) (*models.Campaign, error) {
	campaign, err := m.load(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, campaign); err != nil {
		return nil, err
	}
	if campaign.Status == models.StatusSuspended || campaign.Status == models.StatusCancelled {
		return nil, invalidTransition(campaign, "edit")
	}
	if err := m.validateContent(content); err != nil {
		return nil, err
	}

	campaign.Title = content.Title
	campaign.ShortDescription = content.ShortDescription
	campaign.Description = content.Description
	campaign.TargetAmount = content.TargetAmount

	next := campaign.Status
	if campaign.Status == models.StatusApproved || campaign.Status == models.StatusRejected {
		ready, err := m.resolveReadiness(ctx, campaign)
		if err != nil {
			return nil, err
		}
		campaign.ModerationNotes = ""
		next = models.StatusDraft
		if ready {
			next = models.StatusPending
		}
	}
	return campaign, m.transition(ctx, actor, campaign, next, nil)
}

// Suspend takes an approved campaign offline. Owners and moderators may suspend.
func (m *Machine) Suspend(ctx context.Context, actor *models.Actor, campaignId int64) (*models.Campaign, error) {
	campaign, err := m.load(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, campaign) {
		return nil, apperr.ErrForbidden
	}
	if campaign.Status != models.StatusApproved {
		return nil, invalidTransition(campaign, "suspend")
	}
	return campaign, m.transition(ctx, actor, campaign, models.StatusSuspended, nil)
}

// Cancel closes a campaign for good unless a moderator resumes it.
func (m *Machine) Cancel(ctx context.Context, actor *models.Actor, campaignId int64) (*models.Campaign, error) {
	campaign, err := m.load(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, campaign); err != nil {
		return nil, err
	}
	if campaign.Status == models.StatusCancelled {
		return nil, invalidTransition(campaign, "cancel")
	}
	return campaign, m.transition(ctx, actor, campaign, models.StatusCancelled, nil)
}

// Resume re-approves a suspended or cancelled campaign. A not-ready owner leaves
// the campaign untouched and records no history.
func (m *Machine) Resume(ctx context.Context, actor *models.Actor, campaignId int64, notes string) (*models.Campaign, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	campaign, err := m.load(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.StatusSuspended && campaign.Status != models.StatusCancelled {
		return nil, invalidTransition(campaign, "resume")
	}
	if err := m.requireReady(ctx, campaign); err != nil {
		return nil, err
	}

	return campaign, m.transition(ctx, actor, campaign, models.StatusApproved, &models.ModerationEntry{
		ModeratorId: actor.UserId,
		Action:      models.ActionResume,
		Notes:       strings.TrimSpace(notes),
	})
}

// View returns a campaign. Campaigns that are not approved are only visible to
// their owner and to moderators; everyone else gets apperr.ErrNotFound.
func (m *Machine) View(ctx context.Context, actor *models.Actor, campaignId int64) (*models.Campaign, error) {
	campaign, err := m.load(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.StatusApproved && !canManage(actor, campaign) {
		return nil, apperr.ErrNotFound.WithMessage("campaign %d not found", campaignId)
	}
	return campaign, nil
}

// History returns the moderation history of a campaign, oldest first.
func (m *Machine) History(ctx context.Context, actor *models.Actor, campaignId int64) ([]models.ModerationEntry, error) {
	campaign, err := m.load(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, apperr.ErrUnauthorized
	}
	if !canManage(actor, campaign) {
		return nil, apperr.ErrForbidden
	}
	history, err := m.store.ListModerationHistory(ctx, campaignId)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation history for campaign %d: %w", campaignId, err)
	}
	if history == nil {
		history = []models.ModerationEntry{}
	}
	return history, nil
}

func (m *Machine) load(ctx context.Context, campaignId int64) (*models.Campaign, error) {
	campaign, err := m.store.GetCampaign(ctx, campaignId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNotFound.WithMessage("campaign %d not found", campaignId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %d: %w", campaignId, err)
	}
	return campaign, nil
}

// requireReady resolves the owner's readiness and refreshes the
// stripe_ready mirror with it.
func (m *Machine) requireReady(ctx context.Context, campaign *models.Campaign) error {
	ready, err := m.resolveReadiness(ctx, campaign)
	if err != nil {
		return err
	}
	if !ready {
		return apperr.ErrNotReady.WithDetails(map[string]interface{}{"campaign_id": campaign.Id})
	}
	return nil
}

func (m *Machine) resolveReadiness(ctx context.Context, campaign *models.Campaign) (bool, error) {
	ready, err := m.accounts.Readiness(ctx, campaign.OwnerId)
	if err != nil {
		return false, err
	}
	if ready != campaign.StripeReady {
		if _, err := m.store.SetCampaignsStripeReady(ctx, campaign.OwnerId, ready); err != nil {
			return false, fmt.Errorf("failed to refresh stripe_ready for owner %s: %w", campaign.OwnerId, err)
		}
	}
	campaign.StripeReady = ready
	return ready, nil
}

func (m *Machine) transition(ctx context.Context, actor *models.Actor, campaign *models.Campaign, to models.CampaignStatus, history *models.ModerationEntry) error {
	from := campaign.Status
	campaign.Status = to

	err := m.store.UpdateCampaign(ctx, store.UpdateCampaignParams{
		Campaign:       campaign,
		ExpectedStatus: from,
		History:        history,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.ErrNotFound.WithMessage("campaign %d not found", campaign.Id)
	case errors.Is(err, store.ErrConcurrentModification):
		return apperr.ErrInvalidTransition.WithMessage("campaign %d changed status concurrently", campaign.Id)
	case err != nil:
		return fmt.Errorf("failed to update campaign %d: %w", campaign.Id, err)
	}

	if from != to {
		zap.L().Info("Campaign status changed",
			zap.Int64("campaign_id", campaign.Id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("actor_id", actor.UserId))
		m.publishStatus(ctx, campaign, from, actor)
	}
	return nil
}

func (m *Machine) publishStatus(ctx context.Context, campaign *models.Campaign, from models.CampaignStatus, actor *models.Actor) {
	events.PublishBestEffort(ctx, m.publisher, events.CampaignStatusChanged, events.CampaignStatusEvent{
		CampaignId: campaign.Id,
		From:       string(from),
		To:         string(campaign.Status),
		ActorId:    actor.UserId,
		Timestamp:  time.Now(),
	})
}

func (m *Machine) validateContent(content models.CampaignContent) error {
	if err := m.validate.Struct(content); err != nil {
		return apperr.FromValidation(err)
	}
	if !content.TargetAmount.IsPositive() {
		return apperr.ErrValidation.WithMessage("target amount must be greater than zero").
			WithDetails(map[string]interface{}{"fields": []map[string]string{{"field": "target_amount", "message": "target_amount must be greater than 0"}}})
	}
	return nil
}

func requireOwner(actor *models.Actor, campaign *models.Campaign) error {
	if actor == nil {
		return apperr.ErrUnauthorized
	}
	if actor.UserId != campaign.OwnerId {
		return apperr.ErrForbidden
	}
	return nil
}

func canManage(actor *models.Actor, campaign *models.Campaign) bool {
	return actor != nil && (actor.IsModerator || actor.UserId == campaign.OwnerId)
}

func requireModerator(actor *models.Actor) error {
	if actor == nil {
		return apperr.ErrUnauthorized
	}
	if !actor.IsModerator {
		return apperr.ErrForbidden
	}
	return nil
}

func invalidTransition(campaign *models.Campaign, action string) error {
	return apperr.ErrInvalidTransition.WithMessage("cannot %s a campaign in status %s", action, campaign.Status)
}
