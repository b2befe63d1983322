package ports

import (
	"context"
	"time"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
)

// ActiveRateQuery selects the single applicable rate for one hierarchy tier:
// active, non-deleted records of the given scope whose validity window
// contains Date. Implementations must order by effective_from descending so
// the most recently effective record wins when windows overlap.
type ActiveRateQuery struct {
	EntityType domain.EntityType
	EntityID   string // empty for global
	Date       time.Time
}

// RateRepository defines persistence operations for billing rates.
// Rates are append-only: updates deactivate the old version and insert a new
// one, never mutate in place.
type RateRepository interface {
	Insert(ctx context.Context, rate *domain.BillingRate) error
	FindByID(ctx context.Context, id string) (*domain.BillingRate, error)
	// FindActive returns the applicable rate for the query, or
	// domain.ErrRateRecordNotFound when the tier is empty.
	FindActive(ctx context.Context, q ActiveRateQuery) (*domain.BillingRate, error)
	// ExistsOverlapping reports whether an active, non-deleted rate for the
	// same scope has a validity window intersecting [from, to]. A nil to
	// means open-ended.
	ExistsOverlapping(ctx context.Context, entityType domain.EntityType, entityID string, from time.Time, to *time.Time) (bool, error)
	// ListByEntity returns the full non-deleted version history for a scope,
	// newest effective_from first.
	ListByEntity(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.BillingRate, error)
	// Deactivate closes a rate version: is_active=false, effective_to set.
	Deactivate(ctx context.Context, id string, effectiveTo time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}
