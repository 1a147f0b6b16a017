package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medilink/medilink/internal/identity"
	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
)

type subscriptionCheckoutRequest struct {
	Tier   string `json:"tier" binding:"required"`
	Period string `json:"period" binding:"required"`
}

type productCheckoutRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// CreateSubscriptionCheckout
// POST /api/checkout/subscription
func (s *Server) CreateSubscriptionCheckout(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req subscriptionCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	session, err := s.checkout.CreateSubscriptionCheckout(c.Request.Context(), paymentdomain.SubscriptionCheckoutInput{
		Buyer:  buyerFromIdentity(id),
		Tier:   req.Tier,
		Period: req.Period,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// CreateProductCheckout
// POST /api/checkout/product
func (s *Server) CreateProductCheckout(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req productCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	session, err := s.checkout.CreateProductCheckout(c.Request.Context(), paymentdomain.ProductCheckoutInput{
		Buyer:     buyerFromIdentity(id),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func buyerFromIdentity(id identity.Identity) paymentdomain.Buyer {
	return paymentdomain.Buyer{UserID: id.UserID, Email: id.Email, Name: id.Name}
}
