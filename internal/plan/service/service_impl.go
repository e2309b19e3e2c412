package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/reviewmeter/internal/clock"
	"github.com/smallbiznis/reviewmeter/internal/config"
	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
	"github.com/smallbiznis/reviewmeter/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultCurrency = "INR"

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  plandomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  plandomain.Repository
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) List(ctx context.Context) ([]plandomain.Plan, error) {
	plans, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []plandomain.Plan{}
	}
	return plans, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (plandomain.Plan, error) {
	planID, err := parseID(id)
	if err != nil {
		return plandomain.Plan{}, err
	}
	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return plandomain.Plan{}, err
	}
	if plan == nil {
		return plandomain.Plan{}, plandomain.ErrPlanNotFound
	}
	return *plan, nil
}

func (s *Service) Create(ctx context.Context, req plandomain.CreateRequest) (plandomain.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return plandomain.Plan{}, plandomain.ErrInvalidName
	}
	tier, err := parseTier(req.Tier)
	if err != nil {
		return plandomain.Plan{}, err
	}
	price, err := normalizePrice(req.Price)
	if err != nil {
		return plandomain.Plan{}, err
	}
	limits, err := normalizeLimits(req.Limits)
	if err != nil {
		return plandomain.Plan{}, err
	}

	existing, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return plandomain.Plan{}, err
	}
	if existing != nil {
		return plandomain.Plan{}, plandomain.ErrPlanExists
	}

	now := s.clock.Now()
	plan := plandomain.Plan{
		ID:          s.genID.Generate(),
		Code:        slug.Make(name),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Tier:        tier,
		Price:       price,
		Features:    datatypes.NewJSONSlice(normalizeFeatures(req.Features)),
		IsPopular:   req.IsPopular,
		Limits:      limits,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &plan); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return plandomain.Plan{}, plandomain.ErrPlanExists
		}
		return plandomain.Plan{}, err
	}

	s.log.Info("plan created", zap.String("plan_id", plan.ID.String()), zap.String("code", plan.Code))
	return plan, nil
}

func (s *Service) Update(ctx context.Context, req plandomain.UpdateRequest) (plandomain.Plan, error) {
	planID, err := parseID(req.ID)
	if err != nil {
		return plandomain.Plan{}, err
	}

	var updated plandomain.Plan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.repo.FindByID(ctx, tx, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return plandomain.ErrPlanNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return plandomain.ErrInvalidName
			}
			if !strings.EqualFold(name, plan.Name) {
				other, err := s.repo.FindByName(ctx, tx, name)
				if err != nil {
					return err
				}
				if other != nil && other.ID != plan.ID {
					return plandomain.ErrPlanExists
				}
			}
			plan.Name = name
			plan.Code = slug.Make(name)
		}
		if req.Description != nil {
			plan.Description = strings.TrimSpace(*req.Description)
		}
		if req.Tier != nil {
			tier, err := parseTier(*req.Tier)
			if err != nil {
				return err
			}
			plan.Tier = tier
		}
		if req.Price != nil {
			price, err := normalizePrice(*req.Price)
			if err != nil {
				return err
			}
			plan.Price = price
		}
		if req.Features != nil {
			plan.Features = datatypes.NewJSONSlice(normalizeFeatures(req.Features))
		}
		if req.IsPopular != nil {
			plan.IsPopular = *req.IsPopular
		}
		if req.Limits != nil {
			limits, err := normalizeLimits(*req.Limits)
			if err != nil {
				return err
			}
			plan.Limits = limits
		}
		plan.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, plan); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return plandomain.ErrPlanExists
			}
			return err
		}
		updated = *plan
		return nil
	})
	if err != nil {
		return plandomain.Plan{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	planID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inUse, err := s.repo.CountSubscriptions(ctx, tx, planID)
		if err != nil {
			return err
		}
		if inUse > 0 {
			return plandomain.ErrPlanInUse
		}
		affected, err := s.repo.Delete(ctx, tx, planID)
		if err != nil {
			if db.IsForeignKeyErr(err) {
				return plandomain.ErrPlanInUse
			}
			return err
		}
		if affected == 0 {
			return plandomain.ErrPlanNotFound
		}
		return nil
	})
}

// SyncCatalog upserts catalog plans by name. Plans absent from the catalog
// are left untouched.
func (s *Service) SyncCatalog(ctx context.Context, catalog config.PlanCatalog) error {
	if err := config.ValidatePlanCatalog(catalog); err != nil {
		return err
	}

	for _, spec := range catalog.Plans {
		existing, err := s.repo.FindByName(ctx, s.db, spec.Name)
		if err != nil {
			return err
		}
		limits := plandomain.LimitsRequest{
			Repositories:          spec.Limits.Repositories,
			Contributors:          spec.Limits.Contributors,
			CommitsPerContributor: spec.Limits.CommitsPerContributor,
		}
		price := plandomain.PriceRequest{Monthly: spec.PriceMonthly, Yearly: spec.PriceYearly, Currency: spec.Currency}

		if existing == nil {
			_, err = s.Create(ctx, plandomain.CreateRequest{
				Name:        spec.Name,
				Description: spec.Description,
				Tier:        spec.Tier,
				Price:       price,
				Features:    spec.Features,
				IsPopular:   spec.IsPopular,
				Limits:      limits,
			})
		} else {
			description, tier, popular := spec.Description, spec.Tier, spec.IsPopular
			_, err = s.Update(ctx, plandomain.UpdateRequest{
				ID:          existing.ID.String(),
				Description: &description,
				Tier:        &tier,
				Price:       &price,
				Features:    spec.Features,
				IsPopular:   &popular,
				Limits:      &limits,
			})
		}
		if err != nil {
			return err
		}
	}

	s.log.Info("plan catalog synced", zap.Int("plans", len(catalog.Plans)))
	return nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, plandomain.ErrInvalidID
	}
	return id, nil
}

func parseTier(raw string) (plandomain.Tier, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return plandomain.TierFree, nil
	}
	tier := plandomain.Tier(value)
	if !tier.Valid() {
		return "", plandomain.ErrInvalidTier
	}
	return tier, nil
}

func normalizePrice(req plandomain.PriceRequest) (plandomain.Price, error) {
	if req.Monthly < 0 || req.Yearly < 0 {
		return plandomain.Price{}, plandomain.ErrInvalidPrice
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if len(currency) != 3 {
		return plandomain.Price{}, plandomain.ErrInvalidCurrency
	}
	return plandomain.Price{Monthly: req.Monthly, Yearly: req.Yearly, Currency: currency}, nil
}

func normalizeLimits(req plandomain.LimitsRequest) (plandomain.Limits, error) {
	if req.Repositories == nil || req.Contributors == nil || req.CommitsPerContributor == nil {
		return plandomain.Limits{}, plandomain.ErrMissingLimits
	}
	if *req.Repositories < 0 || *req.Contributors < 0 || *req.CommitsPerContributor < 0 {
		return plandomain.Limits{}, plandomain.ErrInvalidLimits
	}
	return plandomain.Limits{
		MaxRepositories:          *req.Repositories,
		MaxContributors:          *req.Contributors,
		MaxCommitsPerContributor: *req.CommitsPerContributor,
	}, nil
}

func normalizeFeatures(features []string) []string {
	out := make([]string, 0, len(features))
	for _, feature := range features {
		if trimmed := strings.TrimSpace(feature); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
