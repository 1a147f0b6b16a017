package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/medilink/medilink/internal/notification/domain"
	orderdomain "github.com/medilink/medilink/internal/order/domain"
	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	productdomain "github.com/medilink/medilink/internal/product/domain"
	subscriptiondomain "github.com/medilink/medilink/internal/subscription/domain"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrPayloadTooLarge = errors.New("payload_too_large")
)

type apiError struct {
	status  int
	message string
}

var errorTable = map[error]apiError{
	ErrUnauthorized:    {http.StatusUnauthorized, "authentication required"},
	ErrInvalidRequest:  {http.StatusBadRequest, "invalid request"},
	ErrPayloadTooLarge: {http.StatusRequestEntityTooLarge, "payload too large"},

	paymentdomain.ErrInvalidSignature:     {http.StatusBadRequest, "invalid webhook signature"},
	paymentdomain.ErrInvalidPayload:       {http.StatusBadRequest, "invalid webhook payload"},
	paymentdomain.ErrEventInFlight:        {http.StatusConflict, "event is already being processed"},
	paymentdomain.ErrInvalidQuantity:      {http.StatusBadRequest, "quantity must be between 1 and 10"},
	paymentdomain.ErrInvalidBuyer:         {http.StatusUnauthorized, "authentication required"},
	paymentdomain.ErrSubscriptionExists:   {http.StatusConflict, "an active subscription already exists"},
	paymentdomain.ErrPriceNotConfigured:   {http.StatusUnprocessableEntity, "no price is configured for this plan"},
	paymentdomain.ErrGatewayNotConfigured: {http.StatusServiceUnavailable, "payments are not configured"},
	paymentdomain.ErrRemoteNotFound:       {http.StatusBadGateway, "payment provider object not found"},

	subscriptiondomain.ErrInvalidTier:   {http.StatusBadRequest, "invalid tier"},
	subscriptiondomain.ErrInvalidPeriod: {http.StatusBadRequest, "invalid billing period"},
	subscriptiondomain.ErrNotFound:      {http.StatusNotFound, "no active subscription"},

	productdomain.ErrInvalidID: {http.StatusBadRequest, "invalid product id"},
	productdomain.ErrNotFound:  {http.StatusNotFound, "product not found"},
	productdomain.ErrInactive:  {http.StatusUnprocessableEntity, "product is not available"},

	orderdomain.ErrNotFound:            {http.StatusNotFound, "order not found"},
	notificationdomain.ErrNotFound:     {http.StatusNotFound, "notification not found"},
	notificationdomain.ErrInvalidInput: {http.StatusBadRequest, "invalid notification"},
}

// AbortWithError writes the error envelope and stops the handler chain. Errors outside the
// table become a generic 500; their detail stays in the log.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	for sentinel, mapped := range errorTable {
		if errors.Is(err, sentinel) {
			c.AbortWithStatusJSON(mapped.status, errorBody(sentinel.Error(), mapped.message))
			return
		}
	}
	abortInternal(c)
}

// AbortWithInternalError records err and writes the generic 500 envelope regardless of its kind.
func AbortWithInternalError(c *gin.Context, err error) {
	_ = c.Error(err)
	abortInternal(c)
}

func abortInternal(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
}

func errorBody(errType, message string) gin.H {
	return gin.H{"error": gin.H{"type": errType, "message": message}}
}
