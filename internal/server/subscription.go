package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
)

// GetCurrentSubscription returns the caller's subscription with its plan
// and current usage.
func (s *Server) GetCurrentSubscription(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	view, err := s.subscriptionSvc.GetCurrent(c.Request.Context(), principal.SubscriberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) GetSubscriptionBySubscriber(c *gin.Context) {
	subscriberID := strings.TrimSpace(c.Param("subscriberId"))
	if subscriberID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.subscriptionSvc.GetCurrent(c.Request.Context(), subscriberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateRequest{
		SubscriberID: strings.TrimSpace(req.SubscriberID),
		PlanID:       strings.TrimSpace(req.PlanID),
		StartDate:    req.StartDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": view})
}

func (s *Server) RenewSubscription(c *gin.Context) {
	subscriberID := strings.TrimSpace(c.Param("subscriberId"))
	if subscriberID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req subscriptiondomain.RenewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	view, err := s.subscriptionSvc.Renew(c.Request.Context(), subscriptiondomain.RenewRequest{
		SubscriberID: subscriberID,
		PlanID:       strings.TrimSpace(req.PlanID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}
