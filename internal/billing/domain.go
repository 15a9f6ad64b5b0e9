package billing

import (
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/authz"
)

// Plan mirrors one tenant's active subscription row.
type Plan struct {
	TenantID uuid.UUID        `json:"tenant_id"`
	Code     string           `json:"code"`
	Features map[string]bool  `json:"features"`
	Limits   map[string]int64 `json:"limits"`
}

// FeatureSet converts the stored plan into the engine's read-only shape.
func (p *Plan) FeatureSet() *authz.PlanFeatureSet {
	if p == nil {
		return nil
	}
	set := &authz.PlanFeatureSet{
		Features: make(map[authz.FeatureKey]bool, len(p.Features)),
		Limits:   make(map[authz.LimitKey]int64, len(p.Limits)),
	}
	for key, enabled := range p.Features {
		set.Features[authz.FeatureKey(key)] = enabled
	}
	for key, value := range p.Limits {
		set.Limits[authz.LimitKey(key)] = value
	}
	return set
}
