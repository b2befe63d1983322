package handler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

const dateLayout = "2006-01-02"

// --- Request / Response types ---

type resolveRateRequest struct {
	UserID    string  `json:"user_id"`
	ProjectID string  `json:"project_id"`
	ClientID  string  `json:"client_id"`
	Date      string  `json:"date"       validate:"required,datetime=2006-01-02"`
	Hours     float64 `json:"hours"      validate:"required,gt=0"`
	IsHoliday bool    `json:"is_holiday"`
}

func (r resolveRateRequest) toContext() (ports.RateContext, error) {
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return ports.RateContext{}, fmt.Errorf("%w: invalid date", domain.ErrValidation)
	}
	return ports.RateContext{
		UserID:    r.UserID,
		ProjectID: r.ProjectID,
		ClientID:  r.ClientID,
		Date:      date,
		Hours:     decimal.NewFromFloat(r.Hours),
		DayOfWeek: int(date.Weekday()),
		IsHoliday: r.IsHoliday,
	}, nil
}

type rateSourceResponse struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	RateID     string `json:"rate_id"`
}

type resolveRateResponse struct {
	EffectiveRate    decimal.Decimal    `json:"effective_rate"`
	BaseRate         decimal.Decimal    `json:"base_rate"`
	Multiplier       decimal.Decimal    `json:"multiplier"`
	MultiplierType   string             `json:"multiplier_type,omitempty"`
	CalculatedAmount decimal.Decimal    `json:"calculated_amount"`
	AdjustedHours    decimal.Decimal    `json:"adjusted_hours"`
	Source           rateSourceResponse `json:"rate_source"`
}

func toResolveResponse(calc *ports.RateCalculation) resolveRateResponse {
	return resolveRateResponse{
		EffectiveRate:    calc.EffectiveRate,
		BaseRate:         calc.BaseRate,
		Multiplier:       calc.Multiplier,
		MultiplierType:   calc.MultiplierType,
		CalculatedAmount: calc.CalculatedAmount,
		AdjustedHours:    calc.AdjustedHours,
		Source: rateSourceResponse{
			EntityType: string(calc.Source.EntityType),
			EntityID:   calc.Source.EntityID,
			RateID:     calc.Source.RateID,
		},
	}
}

type previewRateResponse struct {
	Calculation resolveRateResponse       `json:"calculation"`
	Breakdown   []ports.RateBreakdownLine `json:"breakdown"`
}

type createRateRequest struct {
	EntityType       string   `json:"entity_type"       validate:"required,oneof=global client project user role"`
	EntityID         string   `json:"entity_id"`
	RateType         string   `json:"rate_type"         validate:"omitempty,oneof=hourly fixed milestone"`
	StandardRate     float64  `json:"standard_rate"     validate:"gte=0"`
	OvertimeRate     *float64 `json:"overtime_rate"`
	HolidayRate      *float64 `json:"holiday_rate"`
	WeekendRate      *float64 `json:"weekend_rate"`
	EffectiveFrom    string   `json:"effective_from"    validate:"required,datetime=2006-01-02"`
	EffectiveTo      *string  `json:"effective_to"`
	MinimumIncrement int      `json:"minimum_increment" validate:"gte=0"`
	RoundingRule     string   `json:"rounding_rule"     validate:"omitempty,oneof=up down nearest"`
	Description      string   `json:"description"`
}

func (r createRateRequest) toInput() (ports.CreateRateInput, error) {
	from, err := time.Parse(dateLayout, r.EffectiveFrom)
	if err != nil {
		return ports.CreateRateInput{}, fmt.Errorf("%w: invalid effective_from", domain.ErrValidation)
	}
	var to *time.Time
	if r.EffectiveTo != nil {
		t, err := time.Parse(dateLayout, *r.EffectiveTo)
		if err != nil {
			return ports.CreateRateInput{}, fmt.Errorf("%w: invalid effective_to", domain.ErrValidation)
		}
		to = &t
	}
	return ports.CreateRateInput{
		EntityType:       domain.EntityType(r.EntityType),
		EntityID:         r.EntityID,
		RateType:         domain.RateType(r.RateType),
		StandardRate:     decimal.NewFromFloat(r.StandardRate),
		OvertimeRate:     optDecimal(r.OvertimeRate),
		HolidayRate:      optDecimal(r.HolidayRate),
		WeekendRate:      optDecimal(r.WeekendRate),
		EffectiveFrom:    from,
		EffectiveTo:      to,
		MinimumIncrement: r.MinimumIncrement,
		RoundingRule:     domain.RoundingRule(r.RoundingRule),
		Description:      r.Description,
	}, nil
}

type updateRateRequest struct {
	StandardRate     *float64 `json:"standard_rate"`
	OvertimeRate     *float64 `json:"overtime_rate"`
	HolidayRate      *float64 `json:"holiday_rate"`
	WeekendRate      *float64 `json:"weekend_rate"`
	EffectiveFrom    *string  `json:"effective_from"`
	MinimumIncrement *int     `json:"minimum_increment"`
	RoundingRule     *string  `json:"rounding_rule" validate:"omitempty,oneof=up down nearest"`
	Description      *string  `json:"description"`
}

func (r updateRateRequest) toInput() (ports.UpdateRateInput, error) {
	input := ports.UpdateRateInput{
		StandardRate:     optDecimal(r.StandardRate),
		OvertimeRate:     optDecimal(r.OvertimeRate),
		HolidayRate:      optDecimal(r.HolidayRate),
		WeekendRate:      optDecimal(r.WeekendRate),
		MinimumIncrement: r.MinimumIncrement,
		Description:      r.Description,
	}
	if r.EffectiveFrom != nil {
		t, err := time.Parse(dateLayout, *r.EffectiveFrom)
		if err != nil {
			return ports.UpdateRateInput{}, fmt.Errorf("%w: invalid effective_from", domain.ErrValidation)
		}
		input.EffectiveFrom = &t
	}
	if r.RoundingRule != nil {
		rule := domain.RoundingRule(*r.RoundingRule)
		input.RoundingRule = &rule
	}
	return input, nil
}

func optDecimal(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

type rateResponse struct {
	ID               string           `json:"id"`
	EntityType       string           `json:"entity_type"`
	EntityID         string           `json:"entity_id,omitempty"`
	RateType         string           `json:"rate_type"`
	StandardRate     decimal.Decimal  `json:"standard_rate"`
	OvertimeRate     *decimal.Decimal `json:"overtime_rate,omitempty"`
	HolidayRate      *decimal.Decimal `json:"holiday_rate,omitempty"`
	WeekendRate      *decimal.Decimal `json:"weekend_rate,omitempty"`
	EffectiveFrom    string           `json:"effective_from"`
	EffectiveTo      *string          `json:"effective_to,omitempty"`
	MinimumIncrement int              `json:"minimum_increment"`
	RoundingRule     string           `json:"rounding_rule"`
	Description      string           `json:"description,omitempty"`
	IsActive         bool             `json:"is_active"`
	CreatedBy        string           `json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"`
}

func toRateResponse(r *domain.BillingRate) rateResponse {
	resp := rateResponse{
		ID:               r.ID,
		EntityType:       string(r.EntityType),
		EntityID:         r.EntityID,
		RateType:         string(r.RateType),
		StandardRate:     r.StandardRate,
		OvertimeRate:     r.OvertimeRate,
		HolidayRate:      r.HolidayRate,
		WeekendRate:      r.WeekendRate,
		EffectiveFrom:    r.EffectiveFrom.Format(dateLayout),
		MinimumIncrement: r.MinimumIncrement,
		RoundingRule:     string(r.RoundingRule),
		Description:      r.Description,
		IsActive:         r.IsActive,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        r.CreatedAt,
	}
	if r.EffectiveTo != nil {
		to := r.EffectiveTo.Format(dateLayout)
		resp.EffectiveTo = &to
	}
	return resp
}
