package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
)

// RateContext describes one billing scenario: who worked, on what, when, and
// for how long. At least one of UserID/ProjectID/ClientID should be set;
// Date and positive Hours are mandatory.
type RateContext struct {
	UserID    string
	ProjectID string
	ClientID  string
	Date      time.Time
	Hours     decimal.Decimal
	DayOfWeek int // 0 = Sunday .. 6 = Saturday
	IsHoliday bool
}

// RateSource identifies the record a calculation was resolved from.
type RateSource struct {
	EntityType domain.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id,omitempty"`
	RateID     string            `json:"rate_id"`
}

// RateCalculation is the resolver's output: the selected rate, the
// multiplier applied, and the amount after increment rounding.
type RateCalculation struct {
	EffectiveRate    decimal.Decimal `json:"effective_rate"`
	BaseRate         decimal.Decimal `json:"base_rate"`
	Multiplier       decimal.Decimal `json:"multiplier"`
	MultiplierType   string          `json:"multiplier_type,omitempty"` // overtime, holiday, weekend
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	AdjustedHours    decimal.Decimal `json:"adjusted_hours"`
	Source           RateSource      `json:"rate_source"`
}

// RateBreakdownLine is one row of a human-readable calculation preview.
type RateBreakdownLine struct {
	Hours       decimal.Decimal `json:"hours"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// CreateRateInput carries the fields for a new rate record.
type CreateRateInput struct {
	EntityType       domain.EntityType
	EntityID         string
	RateType         domain.RateType
	StandardRate     decimal.Decimal
	OvertimeRate     *decimal.Decimal
	HolidayRate      *decimal.Decimal
	WeekendRate      *decimal.Decimal
	EffectiveFrom    time.Time
	EffectiveTo      *time.Time
	MinimumIncrement int
	RoundingRule     domain.RoundingRule
	Description      string
}

// UpdateRateInput carries optional overrides applied when versioning a rate.
// Nil fields keep the previous version's value.
type UpdateRateInput struct {
	StandardRate     *decimal.Decimal
	OvertimeRate     *decimal.Decimal
	HolidayRate      *decimal.Decimal
	WeekendRate      *decimal.Decimal
	EffectiveFrom    *time.Time
	MinimumIncrement *int
	RoundingRule     *domain.RoundingRule
	Description      *string
}

// RateService defines the rate resolution and administration use cases.
type RateService interface {
	// Resolve selects the applicable rate for the context and computes the
	// effective amount. Fails with domain.ErrRateNotFound when not even a
	// global default exists.
	Resolve(ctx context.Context, rc RateContext) (*RateCalculation, error)
	// Preview computes a calculation without persisting anything, plus a
	// display breakdown.
	Preview(ctx context.Context, rc RateContext) (*RateCalculation, []RateBreakdownLine, error)
	CreateRate(ctx context.Context, input CreateRateInput, actorID string) (*domain.BillingRate, error)
	// UpdateRate deactivates the existing version and inserts a new one.
	UpdateRate(ctx context.Context, id string, input UpdateRateInput) (*domain.BillingRate, error)
	DeleteRate(ctx context.Context, id string) error
	ListRates(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.BillingRate, error)
}
