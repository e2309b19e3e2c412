package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/reviewmeter/internal/auth"
	"github.com/smallbiznis/reviewmeter/internal/authorization"
	"github.com/smallbiznis/reviewmeter/internal/commitsource"
	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
	"github.com/smallbiznis/reviewmeter/internal/progress"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
	reviewjobdomain "github.com/smallbiznis/reviewmeter/internal/reviewjob/domain"
	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

var quotaMessages = map[error]string{
	quotadomain.ErrSubscriptionExpired:                "Subscription has expired",
	quotadomain.ErrContributorLimitReached:            "Contributor limit reached for the current plan",
	quotadomain.ErrRepositoryLimitReached:             "Repository limit reached for the current plan",
	quotadomain.ErrCommitLimitReached:                 "Commit limit reached for the current plan",
	quotadomain.ErrNoCapacityThisRequest:              "No commit capacity left for this request",
	quotadomain.ErrCommitLimitReachedDuringProcessing: "Commit limit reached during processing",
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "invalid_request",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if target, ok := quotaRejection(err); ok {
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    target.Error(),
			Message: quotaMessages[target],
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrNotConfigured):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Code:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrUnknownRole):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    notFoundCode(err),
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    conflictCode(err),
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Code:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, commitsource.ErrUpstreamSource):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Code:    "upstream_source_error",
			Message: "commit source unavailable, retry later",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, progress.ErrRegistryUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Code:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the type and code the request logger records.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func quotaRejection(err error) (error, bool) {
	for target := range quotaMessages {
		if errors.Is(err, target) {
			return target, true
		}
	}
	return nil, false
}

var validationSentinels = []error{
	ErrInvalidRequest,
	commitsource.ErrInvalidRepositoryURL,
	progress.ErrInvalidSession,
	reviewjobdomain.ErrInvalidLogin,
	reviewjobdomain.ErrInvalidDateRange,
	quotadomain.ErrInvalidKey,
	plandomain.ErrInvalidID,
	plandomain.ErrInvalidName,
	plandomain.ErrInvalidTier,
	plandomain.ErrInvalidPrice,
	plandomain.ErrInvalidCurrency,
	plandomain.ErrMissingLimits,
	plandomain.ErrInvalidLimits,
	subscriptiondomain.ErrInvalidSubscriber,
	subscriptiondomain.ErrInvalidPlan,
	subscriptiondomain.ErrInvalidStartDate,
}

func isValidationError(err error) bool {
	_, ok := firstMatch(err, validationSentinels)
	return ok
}

var notFoundSentinels = []error{
	ErrNotFound,
	reviewjobdomain.ErrNoMatchingCommits,
	subscriptiondomain.ErrSubscriptionNotFound,
	plandomain.ErrPlanNotFound,
	commitsource.ErrRepositoryNotFound,
	quotadomain.ErrUnknownSubscription,
	gorm.ErrRecordNotFound,
}

func isNotFoundError(err error) bool {
	_, ok := firstMatch(err, notFoundSentinels)
	return ok
}

func notFoundCode(err error) string {
	target, ok := firstMatch(err, notFoundSentinels)
	if !ok || target == gorm.ErrRecordNotFound {
		return "not_found"
	}
	return target.Error()
}

var conflictSentinels = []error{
	ErrConflict,
	plandomain.ErrPlanExists,
	plandomain.ErrPlanInUse,
	subscriptiondomain.ErrSubscriptionExists,
	reviewjobdomain.ErrSessionBusy,
}

func isConflictError(err error) bool {
	_, ok := firstMatch(err, conflictSentinels)
	return ok
}

func conflictCode(err error) string {
	target, ok := firstMatch(err, conflictSentinels)
	if !ok {
		return "conflict"
	}
	return target.Error()
}

func firstMatch(err error, targets []error) (error, bool) {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target, true
		}
	}
	return nil, false
}

func validationErrorCode(err error) string {
	if target, ok := firstMatch(err, validationSentinels); ok {
		return target.Error()
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_repository_url":
		return "githubUrl must be a GitHub repository URL"
	case "invalid_login":
		return "login is required"
	case "invalid_date_range":
		return "startDate and endDate must be dates and startDate must not be after endDate"
	case "invalid_session_id":
		return "invalid session id"
	default:
		return "invalid value"
	}
}
