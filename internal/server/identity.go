package server

import (
	"github.com/gin-gonic/gin"
	"github.com/medilink/medilink/internal/identity"
)

// RequireIdentity admits requests carrying identity headers from the trusted auth proxy.
func (s *Server) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity.FromHeaders(c.Request.Header, s.cfg.ProxyToken)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func identityFromContext(c *gin.Context) (identity.Identity, bool) {
	return identity.FromContext(c.Request.Context())
}
