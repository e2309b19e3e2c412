package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// authorize enforces the casbin policy for object and action against the
// authenticated principal. It must run after AuthRequired.
func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}

		err := s.authzSvc.Authorize(
			c.Request.Context(),
			principal.SubscriberID,
			principal.Role,
			strings.TrimSpace(object),
			strings.TrimSpace(action),
		)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
