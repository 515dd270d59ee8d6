package processor

import (
	"context"
	"errors"
	"net/http"

	"campaign-funding-go/internal/apperr"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// mapError translates processor client failures into the application taxonomy.
func mapError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		zap.L().Warn("Processor request failed",
			zap.String("operation", op),
			zap.String("code", string(stripeErr.Code)),
			zap.Int("status", stripeErr.HTTPStatusCode),
			zap.String("request_id", stripeErr.RequestID))

		switch {
		case stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound:
			return apperr.ErrNotFound.WithError(err).WithMessage("%s: %s", op, stripeErr.Msg)
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.HTTPStatusCode >= http.StatusInternalServerError:
			return apperr.ErrProcessorUnavailable.WithError(err)
		default:
			return apperr.ErrProcessorError.WithError(err).WithMessage("%s: %s", op, stripeErr.Msg)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.ErrProcessorUnavailable.WithError(err).WithMessage("%s timed out", op)
	}

	zap.L().Warn("Processor unreachable", zap.String("operation", op), zap.Error(err))
	return apperr.ErrProcessorUnavailable.WithError(err)
}

// zapLeveledLogger routes client library logs into zap. Per-request info lines
// are demoted to debug.
type zapLeveledLogger struct {
	logger *zap.SugaredLogger
}

func (l zapLeveledLogger) Debugf(format string, v ...interface{}) { l.logger.Debugf(format, v...) }
func (l zapLeveledLogger) Infof(format string, v ...interface{})  { l.logger.Debugf(format, v...) }
func (l zapLeveledLogger) Warnf(format string, v ...interface{})  { l.logger.Warnf(format, v...) }
func (l zapLeveledLogger) Errorf(format string, v ...interface{}) { l.logger.Errorf(format, v...) }
