package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

// ResolutionCache abstracts the best-effort cache for resolved calculations
// (Redis). A miss returns (nil, nil); failures are logged, never fatal.
type ResolutionCache interface {
	Get(ctx context.Context, key string) (*ports.RateCalculation, error)
	Put(ctx context.Context, key string, calc *ports.RateCalculation) error
}

// RateService implements rate resolution and rate administration.
type RateService struct {
	rates    ports.RateRepository
	users    ports.UserDirectory
	entities ports.EntityDirectory
	cache    ResolutionCache // nil disables caching
	log      zerolog.Logger
	now      func() time.Time
}

// NewRateService wires a RateService. cache may be nil.
func NewRateService(
	rates ports.RateRepository,
	users ports.UserDirectory,
	entities ports.EntityDirectory,
	cache ResolutionCache,
	log zerolog.Logger,
) *RateService {
	return &RateService{
		rates:    rates,
		users:    users,
		entities: entities,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

var errTierEmpty = errors.New("tier empty")

// Resolve walks the rate hierarchy (project, client, user, role, global)
// and computes the effective amount from the first tier that has an
// applicable record. The resolver performs 1-3 sequential lookups; callers
// must not assume a fixed number of round trips.
func (s *RateService) Resolve(ctx context.Context, rc ports.RateContext) (*ports.RateCalculation, error) {
	if err := validateContext(rc); err != nil {
		return nil, err
	}

	key := resolutionKey(rc)
	if s.cache != nil {
		if calc, err := s.cache.Get(ctx, key); err != nil {
			s.log.Warn().Err(err).Msg("rate cache read failed, resolving directly")
		} else if calc != nil {
			return calc, nil
		}
	}

	rate, source, err := s.findRate(ctx, rc)
	if err != nil {
		return nil, err
	}

	calc := calculate(rate, rc)
	calc.Source = source

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, calc); err != nil {
			s.log.Warn().Err(err).Msg("rate cache write failed")
		}
	}

	s.log.Debug().
		Str("entity_type", string(source.EntityType)).
		Str("rate_id", source.RateID).
		Str("amount", calc.CalculatedAmount.String()).
		Msg("rate resolved")

	return calc, nil
}

// Preview resolves a calculation without side effects and attaches a
// display breakdown.
func (s *RateService) Preview(ctx context.Context, rc ports.RateContext) (*ports.RateCalculation, []ports.RateBreakdownLine, error) {
	calc, err := s.Resolve(ctx, rc)
	if err != nil {
		return nil, nil, err
	}

	desc := "Standard rate"
	if calc.MultiplierType != "" {
		desc = fmt.Sprintf("%s rate (%sx)", calc.MultiplierType, calc.Multiplier.String())
	}
	breakdown := []ports.RateBreakdownLine{{
		Hours:       calc.AdjustedHours,
		Rate:        calc.EffectiveRate,
		Amount:      calc.CalculatedAmount,
		Description: desc,
	}}
	return calc, breakdown, nil
}

// findRate tries each hierarchy tier in priority order and returns the
// first applicable record. Adding a tier is one entry in the list.
func (s *RateService) findRate(ctx context.Context, rc ports.RateContext) (*domain.BillingRate, ports.RateSource, error) {
	tiers := []struct {
		entityType domain.EntityType
		entityID   func(context.Context) (string, error)
	}{
		{domain.EntityProject, func(context.Context) (string, error) { return rc.ProjectID, nil }},
		{domain.EntityClient, func(context.Context) (string, error) { return rc.ClientID, nil }},
		{domain.EntityUser, func(context.Context) (string, error) { return rc.UserID, nil }},
		{domain.EntityRole, func(ctx context.Context) (string, error) { return s.lookupRole(ctx, rc.UserID) }},
		{domain.EntityGlobal, func(context.Context) (string, error) { return "", nil }},
	}

	for _, tier := range tiers {
		entityID, err := tier.entityID(ctx)
		if err != nil {
			if errors.Is(err, errTierEmpty) {
				continue
			}
			return nil, ports.RateSource{}, err
		}
		if tier.entityType != domain.EntityGlobal && entityID == "" {
			continue
		}

		rate, err := s.rates.FindActive(ctx, ports.ActiveRateQuery{
			EntityType: tier.entityType,
			EntityID:   entityID,
			Date:       rc.Date,
		})
		if err != nil {
			if errors.Is(err, domain.ErrRateRecordNotFound) {
				continue
			}
			return nil, ports.RateSource{}, fmt.Errorf("resolve rate: %w", err)
		}

		return rate, ports.RateSource{
			EntityType: tier.entityType,
			EntityID:   entityID,
			RateID:     rate.ID,
		}, nil
	}

	return nil, ports.RateSource{}, domain.ErrRateNotFound
}

// lookupRole fetches the user's role for tier-4 resolution. A failed or
// empty lookup skips the tier rather than failing the whole resolution.
func (s *RateService) lookupRole(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errTierEmpty
	}
	role, err := s.users.GetUserRole(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("role lookup failed, skipping role tier")
		return "", errTierEmpty
	}
	if role == "" {
		return "", errTierEmpty
	}
	return role, nil
}

var (
	decOne     = decimal.NewFromInt(1)
	decEight   = decimal.NewFromInt(8)
	decSixty   = decimal.NewFromInt(60)
	decHundred = decimal.NewFromInt(100)
)

// calculate applies the multiplier rules to a selected rate. Multipliers
// are mutually exclusive: holiday beats weekend beats overtime.
func calculate(rate *domain.BillingRate, rc ports.RateContext) *ports.RateCalculation {
	// Fixed and milestone rates are not hour-priced; the configured amount
	// passes through untouched.
	if rate.RateType != domain.RateHourly && rate.RateType != "" {
		return &ports.RateCalculation{
			EffectiveRate:    rate.StandardRate,
			BaseRate:         rate.StandardRate,
			Multiplier:       decOne,
			CalculatedAmount: rate.StandardRate,
			AdjustedHours:    rc.Hours,
		}
	}

	effective := rate.StandardRate
	multiplier := decOne
	multiplierType := ""

	switch {
	case rc.IsHoliday && rate.HolidayRate != nil:
		effective = *rate.HolidayRate
		multiplier = ratio(effective, rate.StandardRate)
		multiplierType = "holiday"

	case (rc.DayOfWeek == 0 || rc.DayOfWeek == 6) && rate.WeekendRate != nil:
		effective = *rate.WeekendRate
		multiplier = ratio(effective, rate.StandardRate)
		multiplierType = "weekend"

	case rc.Hours.GreaterThan(decEight) && rate.OvertimeRate != nil:
		// Overtime is billed as a continuous split: first 8 hours at the
		// standard rate, the remainder at the overtime rate. Increment
		// rounding applies to AdjustedHours for reporting only; the billed
		// amount comes from the unrounded split. Changing either side of
		// this asymmetry changes invoice totals.
		regularAmount := decEight.Mul(rate.StandardRate)
		overtimeAmount := rc.Hours.Sub(decEight).Mul(*rate.OvertimeRate)
		total := regularAmount.Add(overtimeAmount)
		return &ports.RateCalculation{
			EffectiveRate:    total.Div(rc.Hours),
			BaseRate:         rate.StandardRate,
			Multiplier:       decOne,
			MultiplierType:   "overtime",
			CalculatedAmount: total,
			AdjustedHours:    applyMinimumIncrement(rc.Hours, rate.MinimumIncrement, rate.RoundingRule),
		}
	}

	adjusted := applyMinimumIncrement(rc.Hours, rate.MinimumIncrement, rate.RoundingRule)
	return &ports.RateCalculation{
		EffectiveRate:    effective,
		BaseRate:         rate.StandardRate,
		Multiplier:       multiplier,
		MultiplierType:   multiplierType,
		CalculatedAmount: adjusted.Mul(effective),
		AdjustedHours:    adjusted,
	}
}

// ratio divides special by standard, guarding a zero standard rate.
func ratio(special, standard decimal.Decimal) decimal.Decimal {
	if !standard.IsPositive() {
		return decOne
	}
	return special.Div(standard)
}

// applyMinimumIncrement rounds hours to whole billing increments.
// nearest rounds half up; up and down are ceiling and floor on increments.
func applyMinimumIncrement(hours decimal.Decimal, incrementMinutes int, rule domain.RoundingRule) decimal.Decimal {
	if incrementMinutes < 1 {
		incrementMinutes = domain.DefaultMinimumIncrement
	}
	incrementHours := decimal.NewFromInt(int64(incrementMinutes)).Div(decSixty)
	segments := hours.Div(incrementHours)

	var rounded decimal.Decimal
	switch rule {
	case domain.RoundUp:
		rounded = segments.Ceil()
	case domain.RoundDown:
		rounded = segments.Floor()
	default:
		rounded = segments.Round(0)
	}
	return rounded.Mul(incrementHours)
}

func validateContext(rc ports.RateContext) error {
	if rc.Date.IsZero() {
		return fmt.Errorf("%w: date is required", domain.ErrValidation)
	}
	if !rc.Hours.IsPositive() {
		return fmt.Errorf("%w: hours must be positive", domain.ErrValidation)
	}
	if rc.DayOfWeek < 0 || rc.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week must be 0-6", domain.ErrValidation)
	}
	return nil
}

// resolutionKey builds the cache key for a context. Rates are append-only
// versioned, so a short TTL on the cache side bounds staleness after a rate
// change.
func resolutionKey(rc ports.RateContext) string {
	return fmt.Sprintf("rate:%s:%s:%s:%s:%s:%d:%t",
		rc.ProjectID, rc.ClientID, rc.UserID,
		rc.Date.Format("2006-01-02"), rc.Hours.String(), rc.DayOfWeek, rc.IsHoliday)
}

// CreateRate validates and persists a new rate record. Entity existence is
// checked here on the write path only, never during resolution.
func (s *RateService) CreateRate(ctx context.Context, input ports.CreateRateInput, actorID string) (*domain.BillingRate, error) {
	if err := s.validateCreate(ctx, &input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rate := &domain.BillingRate{
		EntityType:       input.EntityType,
		EntityID:         input.EntityID,
		RateType:         input.RateType,
		StandardRate:     input.StandardRate,
		OvertimeRate:     input.OvertimeRate,
		HolidayRate:      input.HolidayRate,
		WeekendRate:      input.WeekendRate,
		EffectiveFrom:    input.EffectiveFrom,
		EffectiveTo:      input.EffectiveTo,
		MinimumIncrement: input.MinimumIncrement,
		RoundingRule:     input.RoundingRule,
		Description:      input.Description,
		IsActive:         true,
		CreatedBy:        actorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.rates.Insert(ctx, rate); err != nil {
		return nil, fmt.Errorf("create rate: %w", err)
	}

	s.log.Info().
		Str("rate_id", rate.ID).
		Str("entity_type", string(rate.EntityType)).
		Str("entity_id", rate.EntityID).
		Msg("billing rate created")

	return rate, nil
}

func (s *RateService) validateCreate(ctx context.Context, input *ports.CreateRateInput) error {
	if !input.EntityType.IsValid() {
		return fmt.Errorf("%w: unknown entity_type %q", domain.ErrValidation, input.EntityType)
	}
	if input.EntityType != domain.EntityGlobal && input.EntityID == "" {
		return fmt.Errorf("%w: entity_id is required for %s rates", domain.ErrValidation, input.EntityType)
	}
	if input.EntityType == domain.EntityGlobal && input.EntityID != "" {
		return fmt.Errorf("%w: entity_id must be empty for global rates", domain.ErrValidation)
	}
	if input.StandardRate.IsNegative() {
		return fmt.Errorf("%w: standard_rate must be >= 0", domain.ErrValidation)
	}
	for name, r := range map[string]*decimal.Decimal{
		"overtime_rate": input.OvertimeRate,
		"holiday_rate":  input.HolidayRate,
		"weekend_rate":  input.WeekendRate,
	} {
		if r != nil && r.IsNegative() {
			return fmt.Errorf("%w: %s must be >= 0", domain.ErrValidation, name)
		}
	}
	if input.EffectiveFrom.IsZero() {
		return fmt.Errorf("%w: effective_from is required", domain.ErrValidation)
	}
	if input.EffectiveTo != nil && input.EffectiveTo.Before(input.EffectiveFrom) {
		return fmt.Errorf("%w: effective_to precedes effective_from", domain.ErrValidation)
	}
	if input.MinimumIncrement < 0 {
		return fmt.Errorf("%w: minimum_increment must be >= 1", domain.ErrValidation)
	}
	if input.MinimumIncrement == 0 {
		input.MinimumIncrement = domain.DefaultMinimumIncrement
	}
	switch input.RoundingRule {
	case domain.RoundUp, domain.RoundDown, domain.RoundNearest:
	case "":
		input.RoundingRule = domain.RoundNearest
	default:
		return fmt.Errorf("%w: unknown rounding_rule %q", domain.ErrValidation, input.RoundingRule)
	}
	if input.RateType == "" {
		input.RateType = domain.RateHourly
	}

	if err := s.checkEntityExists(ctx, input.EntityType, input.EntityID); err != nil {
		return err
	}

	// Write-path guard for the overlap invariant: at most one active record
	// per scope may cover any instant. The resolver still tolerates
	// violations by picking the most recently effective record.
	overlap, err := s.rates.ExistsOverlapping(ctx, input.EntityType, input.EntityID, input.EffectiveFrom, input.EffectiveTo)
	if err != nil {
		return fmt.Errorf("create rate: %w", err)
	}
	if overlap {
		return fmt.Errorf("%w: an active rate already covers this window", domain.ErrValidation)
	}
	return nil
}

func (s *RateService) checkEntityExists(ctx context.Context, entityType domain.EntityType, entityID string) error {
	var (
		exists bool
		err    error
	)
	switch entityType {
	case domain.EntityProject:
		exists, err = s.entities.ProjectExists(ctx, entityID)
	case domain.EntityClient:
		exists, err = s.entities.ClientExists(ctx, entityID)
	case domain.EntityUser:
		exists, err = s.entities.UserExists(ctx, entityID)
	default:
		// role names and the global scope reference nothing
		return nil
	}
	if err != nil {
		return fmt.Errorf("create rate: check %s: %w", entityType, err)
	}
	if !exists {
		return fmt.Errorf("%w: referenced %s not found", domain.ErrValidation, entityType)
	}
	return nil
}

// UpdateRate versions a rate: the existing record is deactivated with its
// window closed, and a new record carrying the overrides is inserted. The
// old version stays queryable for historical audits.
func (s *RateService) UpdateRate(ctx context.Context, id string, input ports.UpdateRateInput) (*domain.BillingRate, error) {
	existing, err := s.rates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.rates.Deactivate(ctx, existing.ID, now); err != nil {
		return nil, fmt.Errorf("update rate: deactivate %s: %w", id, err)
	}

	next := *existing
	next.ID = ""
	next.EffectiveFrom = now
	next.EffectiveTo = nil
	next.IsActive = true
	next.CreatedAt = now
	next.UpdatedAt = now

	if input.StandardRate != nil {
		next.StandardRate = *input.StandardRate
	}
	if input.OvertimeRate != nil {
		next.OvertimeRate = input.OvertimeRate
	}
	if input.HolidayRate != nil {
		next.HolidayRate = input.HolidayRate
	}
	if input.WeekendRate != nil {
		next.WeekendRate = input.WeekendRate
	}
	if input.EffectiveFrom != nil {
		next.EffectiveFrom = *input.EffectiveFrom
	}
	if input.MinimumIncrement != nil {
		next.MinimumIncrement = *input.MinimumIncrement
	}
	if input.RoundingRule != nil {
		next.RoundingRule = *input.RoundingRule
	}
	if input.Description != nil {
		next.Description = *input.Description
	}

	if next.StandardRate.IsNegative() {
		return nil, fmt.Errorf("%w: standard_rate must be >= 0", domain.ErrValidation)
	}
	if next.MinimumIncrement < 1 {
		return nil, fmt.Errorf("%w: minimum_increment must be >= 1", domain.ErrValidation)
	}

	if err := s.rates.Insert(ctx, &next); err != nil {
		return nil, fmt.Errorf("update rate: insert version: %w", err)
	}

	s.log.Info().
		Str("old_rate_id", existing.ID).
		Str("new_rate_id", next.ID).
		Msg("billing rate versioned")

	return &next, nil
}

// DeleteRate soft-deletes a rate record.
func (s *RateService) DeleteRate(ctx context.Context, id string) error {
	if _, err := s.rates.FindByID(ctx, id); err != nil {
		return err
	}
	return s.rates.SoftDelete(ctx, id, s.now().UTC())
}

// ListRates returns the non-deleted version history for a scope.
func (s *RateService) ListRates(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.BillingRate, error) {
	if !entityType.IsValid() {
		return nil, fmt.Errorf("%w: unknown entity_type %q", domain.ErrValidation, entityType)
	}
	return s.rates.ListByEntity(ctx, entityType, entityID)
}
