package server

import (
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/medilink/medilink/internal/order/domain"
	subscriptiondomain "github.com/medilink/medilink/internal/subscription/domain"
)

// GetSubscription
// GET /api/subscription
func (s *Server) GetSubscription(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	sub, err := s.subscriptions.FindActiveByUserID(c.Request.Context(), s.db, id.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		AbortWithError(c, subscriptiondomain.ErrNotFound)
		return
	}

	respondData(c, sub)
}

// ListOrders
// GET /api/orders
func (s *Server) ListOrders(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orders, err := s.orders.ListByUserID(c.Request.Context(), s.db, id.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if orders == nil {
		orders = []orderdomain.Order{}
	}

	respondList(c, orders)
}

// GetOrder
// GET /api/orders/:id
func (s *Server) GetOrder(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orderID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orders.FindByID(c.Request.Context(), s.db, id.UserID, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if order == nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	respondData(c, order)
}

// ListNotifications
// GET /api/notifications?unread=true
func (s *Server) ListNotifications(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	unreadOnly := false
	if raw := c.Query("unread"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		unreadOnly = parsed
	}

	items, err := s.notifications.List(c.Request.Context(), id.UserID, unreadOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, items)
}

// MarkNotificationRead
// POST /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	notificationID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.notifications.MarkRead(c.Request.Context(), id.UserID, notificationID); err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"id": notificationID.String(), "is_read": true})
}
