package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian-erp/internal/authz"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service resolves tenant plans with a Redis cache in front of postgres.
// Concurrent misses for the same tenant collapse into a single fetch.
type Service struct {
	repo  RepositoryPort
	cache *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

// PlanFor returns the tenant's feature set for permission calculation. A
// tenant without an active subscription yields nil, which the engine treats
// as no plan narrowing.
func (s *Service) PlanFor(ctx context.Context, tenantID uuid.UUID) (*authz.PlanFeatureSet, error) {
	plan, err := s.plan(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return plan.FeatureSet(), nil
}

// Plan returns the raw subscription record, cached.
func (s *Service) Plan(ctx context.Context, tenantID uuid.UUID) (*Plan, error) {
	return s.plan(ctx, tenantID)
}

// Invalidate drops the cached plan after a subscription change.
func (s *Service) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, s.cacheKey(tenantID)).Err()
}

func (s *Service) plan(ctx context.Context, tenantID uuid.UUID) (*Plan, error) {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, s.cacheKey(tenantID)).Bytes()
		if err == nil {
			var plan Plan
			if err := json.Unmarshal(payload, &plan); err == nil {
				return &plan, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			return nil, err
		}
	}

	value, err, _ := s.group.Do(tenantID.String(), func() (any, error) {
		plan, err := s.repo.ActivePlan(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if data, err := json.Marshal(plan); err == nil {
				_ = s.cache.Set(ctx, s.cacheKey(tenantID), data, s.ttl).Err()
			}
		}
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Plan), nil
}

func (s *Service) cacheKey(tenantID uuid.UUID) string {
	return "billing:plan:" + tenantID.String()
}
