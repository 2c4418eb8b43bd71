package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
)

const identityKey = "identity"

// authMiddleware resolves the bearer token to an identity. The user is
// reloaded on every request, so role and section changes apply immediately.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			respondError(c, s.logger, apperr.Unauthenticated("missing bearer token"))
			c.Abort()
			return
		}

		id, err := s.services.Auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			respondError(c, s.logger, err)
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func identityFrom(c *gin.Context) (entity.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return entity.Identity{}, false
	}
	id, ok := v.(entity.Identity)
	return id, ok
}

// currentIdentity returns the authenticated identity; routes behind authMiddleware always have one
func currentIdentity(c *gin.Context) entity.Identity {
	id, _ := identityFrom(c)
	return id
}
