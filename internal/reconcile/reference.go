package reconcile

import (
	"strings"

	"go.uber.org/zap"
)

const sessionReferencePrefix = "session_"

// PaymentReference returns the payment intent id, or a reference derived from
// the checkout session id when the session carries no payment intent. A derived
// reference cannot be matched against the same charge seen through another session.
func PaymentReference(paymentIntentId, sessionId string) string {
	if id := strings.TrimSpace(paymentIntentId); id != "" {
		return id
	}
	zap.L().Warn("Checkout session has no payment intent, using session-derived reference",
		zap.String("session_id", sessionId),
		zap.String("reason", "missing_payment_intent"))
	return sessionReferencePrefix + sessionId
}
