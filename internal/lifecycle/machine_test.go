package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/database"
	"campaign-funding-go/internal/models"
	"campaign-funding-go/internal/money"
)

type fakeDirectory struct {
	ready     map[string]bool
	ensureErr error
}

func (f *fakeDirectory) EnsureAccount(_ context.Context, userId, _ string) (*models.PaymentAccount, error) {
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	return &models.PaymentAccount{UserId: userId, AccountId: "acct_" + userId}, nil
}

func (f *fakeDirectory) Readiness(_ context.Context, userId string) (bool, error) {
	return f.ready[userId], nil
}

var (
	owner     = &models.Actor{UserId: "owner-1", Email: "owner@example.com"}
	stranger  = &models.Actor{UserId: "someone-else"}
	moderator = &models.Actor{UserId: "mod-1", IsModerator: true}
)

func setupMachine(t *testing.T, ready bool) (*Machine, *database.Service, *fakeDirectory) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "lifecycle.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
		BusyTimeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(db.Close)

	dir := &fakeDirectory{ready: map[string]bool{owner.UserId: ready}}
	return NewMachine(db, dir, nil), db, dir
}

func content() models.CampaignContent {
	return models.CampaignContent{
		Title:        "Clean water",
		Description:  "Wells for the village",
		TargetAmount: money.FromMinorUnits(100000),
	}
}

func createCampaign(t *testing.T, m *Machine) *models.Campaign {
	t.Helper()
	result, err := m.Create(context.Background(), owner, content())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return result.Campaign
}

func TestCreate_InitialStatusFollowsReadiness(t *testing.T) {
	m, _, _ := setupMachine(t, true)
	if c := createCampaign(t, m); c.Status != models.StatusPending || !c.StripeReady {
		t.Errorf("Expected pending and ready, got %s ready=%v", c.Status, c.StripeReady)
	}

	m, _, _ = setupMachine(t, false)
	if c := createCampaign(t, m); c.Status != models.StatusDraft || c.StripeReady {
		t.Errorf("Expected draft and not ready, got %s ready=%v", c.Status, c.StripeReady)
	}
}

func TestCreate_ProcessorUnavailableStillCreates(t *testing.T) {
	m, _, dir := setupMachine(t, true)
	dir.ensureErr = apperr.ErrProcessorUnavailable

	result, err := m.Create(context.Background(), owner, content())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if result.Campaign.Status != models.StatusDraft {
		t.Errorf("Expected draft, got %s", result.Campaign.Status)
	}
	if result.PaymentSetupError == "" {
		t.Error("Expected a payment setup error")
	}
}

func TestCreate_Validation(t *testing.T) {
	m, _, _ := setupMachine(t, true)
	bad := content()
	bad.TargetAmount = money.Zero
	if _, err := m.Create(context.Background(), owner, bad); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected ErrValidation for zero target, got %v", err)
	}

	bad = content()
	bad.Title = ""
	if _, err := m.Create(context.Background(), owner, bad); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected ErrValidation for missing title, got %v", err)
	}
}

func TestApprove_ReadinessGate(t *testing.T) {
	m, db, dir := setupMachine(t, true)
	ctx := context.Background()
	c := createCampaign(t, m)

	dir.ready[owner.UserId] = false
	if _, err := m.Approve(ctx, moderator, c.Id, "looks good"); !errors.Is(err, apperr.ErrNotReady) {
		t.Fatalf("Expected ErrNotReady, got %v", err)
	}
	stored, _ := db.GetCampaign(ctx, c.Id)
	if stored.Status != models.StatusPending {
		t.Errorf("Expected campaign to stay pending, got %s", stored.Status)
	}

	dir.ready[owner.UserId] = true
	approved, err := m.Approve(ctx, moderator, c.Id, "looks good")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != models.StatusApproved || approved.ModerationNotes != "looks good" {
		t.Errorf("Unexpected approved campaign: %+v", approved)
	}

	history, _ := db.ListModerationHistory(ctx, c.Id)
	if len(history) != 1 || history[0].Action != models.ActionApprove {
		t.Errorf("Expected one approve history row, got %+v", history)
	}
}

func TestApprove_Permissions(t *testing.T) {
	m, _, _ := setupMachine(t, true)
	c := createCampaign(t, m)

	if _, err := m.Approve(context.Background(), owner, c.Id, ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Expected ErrForbidden for non-moderator, got %v", err)
	}
	if _, err := m.Approve(context.Background(), moderator, 999, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReject_RequiresNotes(t *testing.T) {
	m, db, _ := setupMachine(t, true)
	ctx := context.Background()
	c := createCampaign(t, m)

	if _, err := m.Reject(ctx, moderator, c.Id, "   "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}

	rejected, err := m.Reject(ctx, moderator, c.Id, "needs photos")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != models.StatusRejected {
		t.Errorf("Expected rejected, got %s", rejected.Status)
	}

	if _, err := m.Reject(ctx, moderator, c.Id, "again"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	history, _ := db.ListModerationHistory(ctx, c.Id)
	if len(history) != 1 || history[0].Notes != "needs photos" {
		t.Errorf("Unexpected history: %+v", history)
	}
}

func TestEdit_ModerationReset(t *testing.T) {
	m, db, _ := setupMachine(t, true)
	ctx := context.Background()
	c := createCampaign(t, m)

	if _, err := m.Approve(ctx, moderator, c.Id, "ok"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	edited := content()
	edited.Title = "Clean water, phase two"
	if _, err := m.Edit(ctx, stranger, c.Id, edited); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Expected ErrForbidden for non-owner, got %v", err)
	}

	updated, err := m.Edit(ctx, owner, c.Id, edited)
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if updated.Status != models.StatusPending || updated.ModerationNotes != "" {
		t.Errorf("Expected pending with cleared notes, got %s %q", updated.Status, updated.ModerationNotes)
	}

	stored, _ := db.GetCampaign(ctx, c.Id)
	if stored.Title != "Clean water, phase two" || stored.Status != models.StatusPending {
		t.Errorf("Unexpected stored campaign: %+v", stored)
	}

	history, _ := db.ListModerationHistory(ctx, c.Id)
	if len(history) != 1 {
		t.Errorf("Expected history to be untouched, got %d rows", len(history))
	}
}

func TestSubmit(t *testing.T) {
	m, _, dir := setupMachine(t, false)
	ctx := context.Background()
	c := createCampaign(t, m)

	if _, err := m.Submit(ctx, owner, c.Id); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}

	dir.ready[owner.UserId] = true
	submitted, err := m.Submit(ctx, owner, c.Id)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if submitted.Status != models.StatusPending || !submitted.StripeReady {
		t.Errorf("Expected pending and ready, got %s ready=%v", submitted.Status, submitted.StripeReady)
	}
}

func TestSuspendCancelResume(t *testing.T) {
	m, db, dir := setupMachine(t, true)
	ctx := context.Background()
	c := createCampaign(t, m)
	if _, err := m.Approve(ctx, moderator, c.Id, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	if _, err := m.Suspend(ctx, stranger, c.Id); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	if _, err := m.Suspend(ctx, moderator, c.Id); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	if _, err := m.Cancel(ctx, moderator, c.Id); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Expected only the owner to cancel, got %v", err)
	}
	if _, err := m.Cancel(ctx, owner, c.Id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	dir.ready[owner.UserId] = false
	if _, err := m.Resume(ctx, moderator, c.Id, ""); !errors.Is(err, apperr.ErrNotReady) {
		t.Fatalf("Expected ErrNotReady, got %v", err)
	}
	stored, _ := db.GetCampaign(ctx, c.Id)
	if stored.Status != models.StatusCancelled {
		t.Errorf("Expected blocked resume to leave status cancelled, got %s", stored.Status)
	}
	history, _ := db.ListModerationHistory(ctx, c.Id)
	if len(history) != 1 {
		t.Errorf("Expected no resume history row, got %d rows", len(history))
	}

	dir.ready[owner.UserId] = true
	resumed, err := m.Resume(ctx, moderator, c.Id, "back online")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.Status != models.StatusApproved {
		t.Errorf("Expected approved, got %s", resumed.Status)
	}
	history, _ = db.ListModerationHistory(ctx, c.Id)
	if len(history) != 2 || history[1].Action != models.ActionResume {
		t.Errorf("Expected a resume history row, got %+v", history)
	}
}

// cascadingStore flips the owner's readiness right after every campaign read,
// the way an account.updated webhook can land mid-request.
type cascadingStore struct {
	*database.Service
	ready bool
}

func (s *cascadingStore) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	campaign, err := s.Service.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.Service.SetCampaignsStripeReady(ctx, campaign.OwnerId, s.ready); err != nil {
		return nil, err
	}
	return campaign, nil
}

func TestTransitions_KeepConcurrentReadinessCascade(t *testing.T) {
	m, db, dir := setupMachine(t, true)
	ctx := context.Background()
	c := createCampaign(t, m)
	if _, err := m.Approve(ctx, moderator, c.Id, "ok"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	racing := NewMachine(&cascadingStore{Service: db, ready: false}, dir, nil)

	if _, err := racing.Suspend(ctx, owner, c.Id); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	stored, _ := db.GetCampaign(ctx, c.Id)
	if stored.Status != models.StatusSuspended || stored.StripeReady {
		t.Errorf("Expected suspended with cascaded readiness false, got %s ready=%v", stored.Status, stored.StripeReady)
	}

	pending := createCampaign(t, m)
	edited := content()
	edited.Title = "Clean water, revised"
	if _, err := racing.Edit(ctx, owner, pending.Id, edited); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	stored, _ = db.GetCampaign(ctx, pending.Id)
	if stored.Status != models.StatusPending || stored.StripeReady {
		t.Errorf("Expected pending with cascaded readiness false, got %s ready=%v", stored.Status, stored.StripeReady)
	}
}

func TestSubmit_PersistsResolvedReadiness(t *testing.T) {
	m, db, dir := setupMachine(t, false)
	ctx := context.Background()
	c := createCampaign(t, m)

	dir.ready[owner.UserId] = true
	if _, err := m.Submit(ctx, owner, c.Id); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	stored, _ := db.GetCampaign(ctx, c.Id)
	if !stored.StripeReady {
		t.Error("Expected resolved readiness to be written to the campaign")
	}
}

func TestViewAndHistory_Visibility(t *testing.T) {
	m, _, _ := setupMachine(t, true)
	ctx := context.Background()
	c := createCampaign(t, m)

	if _, err := m.View(ctx, nil, c.Id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected pending campaign hidden from anonymous viewers, got %v", err)
	}
	if _, err := m.View(ctx, owner, c.Id); err != nil {
		t.Errorf("Expected owner to see pending campaign, got %v", err)
	}

	if _, err := m.Reject(ctx, moderator, c.Id, "needs photos"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	history, err := m.History(ctx, owner, c.Id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Notes != "needs photos" {
		t.Errorf("Unexpected history: %+v", history)
	}
	if _, err := m.History(ctx, stranger, c.Id); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Expected ErrForbidden for a stranger, got %v", err)
	}
	if _, err := m.History(ctx, nil, c.Id); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized without an actor, got %v", err)
	}

	if _, err := m.Submit(ctx, owner, c.Id); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := m.Approve(ctx, moderator, c.Id, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if viewed, err := m.View(ctx, stranger, c.Id); err != nil || viewed.Status != models.StatusApproved {
		t.Errorf("Expected approved campaign to be public, got %v (%v)", viewed, err)
	}
}
