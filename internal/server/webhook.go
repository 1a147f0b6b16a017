package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 1 << 20

// HandleStripeWebhook
// POST /api/webhooks/stripe
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.webhooks.IngestWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		s.log.Debug("stripe webhook not acknowledged", zap.String("event_id", result.EventID), zap.Error(err))
		switch {
		case errors.Is(err, paymentdomain.ErrInvalidSignature),
			errors.Is(err, paymentdomain.ErrInvalidPayload),
			errors.Is(err, paymentdomain.ErrEventInFlight):
			AbortWithError(c, err)
		default:
			// Stripe only needs to know to retry.
			AbortWithInternalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"event_id": result.EventID,
		"outcome":  result.Outcome,
	})
}
