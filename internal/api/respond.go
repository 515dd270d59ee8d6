package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"campaign-funding-go/internal/apperr"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error              string                 `json:"error"`
	Code               string                 `json:"code"`
	RequiresCampaignId bool                   `json:"requires_campaign_id,omitempty"`
	Details            map[string]interface{} `json:"details,omitempty"`
}

// writeJSON is a helper for sending JSON responses
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

// writeError writes a bare error without going through the taxonomy
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeAppError maps any error onto its HTTP rendering. Internal failures are
// logged with their cause and answered with a generic message.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.FromError(err)

	if errors.Is(appErr, apperr.ErrPaymentIncomplete) {
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "incomplete",
			"message": appErr.Message,
		})
		return
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", appErr.Code),
			zap.Error(err))
	}

	resp := errorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}
	if requires, ok := appErr.Details["requires_campaign_id"].(bool); ok && requires {
		resp.RequiresCampaignId = true
	}
	if len(resp.Details) == 0 {
		resp.Details = nil
	}
	if appErr.Retryable() {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, appErr.StatusCode, resp)
}
