package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/reviewmeter/internal/config"
)

type PriceRequest struct {
	Monthly  int64  `json:"monthly"`
	Yearly   int64  `json:"yearly"`
	Currency string `json:"currency"`
}

// LimitsRequest uses pointers so an omitted limit is rejected rather than
// read as zero.
type LimitsRequest struct {
	Repositories          *int `json:"repositories"`
	Contributors          *int `json:"contributors"`
	CommitsPerContributor *int `json:"commitsPerContributor"`
}

type CreateRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tier        string        `json:"tier"`
	Price       PriceRequest  `json:"price"`
	Features    []string      `json:"features"`
	IsPopular   bool          `json:"isPopular"`
	Limits      LimitsRequest `json:"limits"`
}

type UpdateRequest struct {
	ID          string         `json:"-"`
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Tier        *string        `json:"tier"`
	Price       *PriceRequest  `json:"price"`
	Features    []string       `json:"features"`
	IsPopular   *bool          `json:"isPopular"`
	Limits      *LimitsRequest `json:"limits"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	List(ctx context.Context) ([]Plan, error)
	GetByID(ctx context.Context, id string) (Plan, error)
	Create(ctx context.Context, req CreateRequest) (Plan, error)
	Update(ctx context.Context, req UpdateRequest) (Plan, error)
	Delete(ctx context.Context, id string) error
	SyncCatalog(ctx context.Context, catalog config.PlanCatalog) error
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidTier     = errors.New("invalid_tier")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrMissingLimits   = errors.New("invalid_limits_missing")
	ErrInvalidLimits   = errors.New("invalid_limits")
	ErrPlanNotFound    = errors.New("plan_not_found")
	ErrPlanExists      = errors.New("plan_exists")
	ErrPlanInUse       = errors.New("plan_in_use")
)
