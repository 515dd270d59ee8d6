package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestIs_MatchesByCode(t *testing.T) {
	err := ErrNotReady.WithError(errors.New("charges disabled"))
	wrapped := fmt.Errorf("submit campaign 7: %w", err)

	if !errors.Is(wrapped, ErrNotReady) {
		t.Error("Expected wrapped clone to match ErrNotReady")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("Did not expect match on ErrNotFound")
	}
}

func TestWithDetails_DoesNotMutateSentinel(t *testing.T) {
	err := ErrRequiresCampaignID.WithDetails(map[string]interface{}{"requires_campaign_id": true})
	if err.Details["requires_campaign_id"] != true {
		t.Error("Expected detail to be set on clone")
	}
	if _, ok := ErrRequiresCampaignID.Details["requires_campaign_id"]; ok {
		t.Error("Sentinel details were mutated")
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", fmt.Errorf("x: %w", ErrMalformedEvent), http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := FromError(tt.err).StatusCode; got != tt.want {
			t.Errorf("%s: expected status %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !ErrProcessorUnavailable.WithError(errors.New("timeout")).Retryable() {
		t.Error("ProcessorUnavailable should be retryable")
	}
	if ErrProcessorError.Retryable() {
		t.Error("ProcessorError should not be retryable")
	}
	notConfigured := ErrProcessorUnavailable.WithDetails(map[string]interface{}{"configured": false})
	if notConfigured.Retryable() {
		t.Error("An unconfigured processor should not be retryable")
	}
	if !errors.Is(notConfigured, ErrProcessorUnavailable) {
		t.Error("An unconfigured processor should still match ErrProcessorUnavailable")
	}
}

func TestFromValidation(t *testing.T) {
	type req struct {
		SessionID string `json:"session_id" validate:"required"`
	}
	err := validator.New().Struct(req{})
	appErr := FromValidation(err)
	if !errors.Is(appErr, ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", appErr)
	}
	fields, ok := appErr.Details["fields"].([]map[string]string)
	if !ok || len(fields) != 1 {
		t.Fatalf("Expected one field error, got %v", appErr.Details["fields"])
	}
	if fields[0]["field"] != "SessionID" {
		t.Errorf("Expected SessionID, got %s", fields[0]["field"])
	}
}
