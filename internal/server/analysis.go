package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reviewjobdomain "github.com/smallbiznis/reviewmeter/internal/reviewjob/domain"
)

// Analyze runs one review job synchronously. Progress for the job goes to
// the session named in the body; the response carries the aggregate.
func (s *Server) Analyze(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req reviewjobdomain.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.GithubURL) == "" {
		AbortWithError(c, newValidationError("githubUrl", "required", "githubUrl is required"))
		return
	}
	if req.TopCommits <= 0 {
		AbortWithError(c, newValidationError("topCommits", "invalid_top_commits", "topCommits must be a positive integer"))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		AbortWithError(c, newValidationError("sessionId", "required", "sessionId is required"))
		return
	}
	bindSessionID(c, strings.TrimSpace(req.SessionID))

	resp, err := s.reviewJobSvc.Analyze(c.Request.Context(), principal.SubscriberID, reviewjobdomain.AnalyzeRequest{
		GithubURL:  strings.TrimSpace(req.GithubURL),
		Login:      strings.TrimSpace(req.Login),
		TopCommits: req.TopCommits,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		SessionID:  strings.TrimSpace(req.SessionID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListContributors(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req reviewjobdomain.ContributorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.GithubURL) == "" {
		AbortWithError(c, newValidationError("githubUrl", "required", "githubUrl is required"))
		return
	}

	resp, err := s.reviewJobSvc.Contributors(c.Request.Context(), principal.SubscriberID, reviewjobdomain.ContributorsRequest{
		GithubURL: strings.TrimSpace(req.GithubURL),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
