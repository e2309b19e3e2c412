package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/reviewmeter/internal/auth"
	"github.com/smallbiznis/reviewmeter/internal/observability/logger"
	"github.com/smallbiznis/reviewmeter/internal/observability/obscontext"
	"go.uber.org/zap"
)

const (
	contextPrincipalKey = "principal"
	contextSessionIDKey = "session_id"
)

// AuthRequired verifies the bearer token and stores the caller's
// principal on the gin context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.verifier.Verify(raw)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("bearer token rejected", zap.Error(err))
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, principal)
		c.Request = c.Request.WithContext(obscontext.WithSubscriberID(c.Request.Context(), principal.SubscriberID))
		c.Next()
	}
}

func principalFromContext(c *gin.Context) (auth.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	if !ok || principal.SubscriberID == "" {
		return auth.Principal{}, false
	}
	return principal, true
}

// bindSessionID tags the request with a progress session for logging.
func bindSessionID(c *gin.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	c.Set(contextSessionIDKey, sessionID)
	c.Request = c.Request.WithContext(obscontext.WithSessionID(c.Request.Context(), sessionID))
}
