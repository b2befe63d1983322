package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType is the scope level at which a billing rate applies.
type EntityType string

const (
	EntityGlobal  EntityType = "global"
	EntityClient  EntityType = "client"
	EntityProject EntityType = "project"
	EntityUser    EntityType = "user"
	EntityRole    EntityType = "role"
)

// IsValid reports whether t is one of the known entity scopes.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityGlobal, EntityClient, EntityProject, EntityUser, EntityRole:
		return true
	}
	return false
}

// RateType distinguishes how a rate is applied. Only hourly rates are
// computed by the resolver; fixed and milestone rates pass through unchanged.
type RateType string

const (
	RateHourly    RateType = "hourly"
	RateFixed     RateType = "fixed"
	RateMilestone RateType = "milestone"
)

// RoundingRule controls how billed hours are rounded to the minimum increment.
type RoundingRule string

const (
	RoundUp      RoundingRule = "up"
	RoundDown    RoundingRule = "down"
	RoundNearest RoundingRule = "nearest"
)

// DefaultMinimumIncrement is the smallest billable unit in minutes when a
// rate does not specify one.
const DefaultMinimumIncrement = 15

// BillingRate is a versioned rate record scoped to an entity and a validity
// window. Records are append-only: an "update" deactivates the old version
// and inserts a new one, so amounts already billed stay auditable.
type BillingRate struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type"`
	// EntityID is empty for global rates. Role-scoped rates store the role
	// name here.
	EntityID string   `json:"entity_id,omitempty"`
	RateType RateType `json:"rate_type"`

	StandardRate decimal.Decimal  `json:"standard_rate"`
	OvertimeRate *decimal.Decimal `json:"overtime_rate,omitempty"`
	HolidayRate  *decimal.Decimal `json:"holiday_rate,omitempty"`
	WeekendRate  *decimal.Decimal `json:"weekend_rate,omitempty"`

	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`

	MinimumIncrement int          `json:"minimum_increment"` // minutes
	RoundingRule     RoundingRule `json:"rounding_rule"`

	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`

	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Covers reports whether the rate's validity window contains the given date.
func (r *BillingRate) Covers(date time.Time) bool {
	if date.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && date.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// Overlaps reports whether the rate's validity window intersects the window
// [from, to]. A nil to means open-ended.
func (r *BillingRate) Overlaps(from time.Time, to *time.Time) bool {
	if to != nil && r.EffectiveFrom.After(*to) {
		return false
	}
	if r.EffectiveTo != nil && r.EffectiveTo.Before(from) {
		return false
	}
	return true
}
