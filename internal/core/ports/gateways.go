package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
)

// UserDirectory resolves a user's role. Backed by the external user system;
// used by tier-4 rate resolution and by approval authority checks.
type UserDirectory interface {
	GetUserRole(ctx context.Context, userID string) (string, error)
}

// EntityDirectory answers existence checks against externally owned records.
// Consulted only on rate creation, never during resolution.
type EntityDirectory interface {
	ProjectExists(ctx context.Context, id string) (bool, error)
	ClientExists(ctx context.Context, id string) (bool, error)
	UserExists(ctx context.Context, id string) (bool, error)
}

// SnapshotLineItem is one project's share of a frozen weekly snapshot.
type SnapshotLineItem struct {
	ProjectID   string
	ProjectName string
	ClientID    string
	Hours       decimal.Decimal
}

// Snapshot is a frozen, already-approved record of one user's hours for one
// week. The billable amount was computed by the rate resolver when the
// approval pipeline froze the week; this core only reads it.
type Snapshot struct {
	ID             string
	UserID         string
	UserName       string
	WeekStart      time.Time
	WeekEnd        time.Time
	BillableAmount decimal.Decimal
	HourlyRate     decimal.Decimal
	LineItems      []SnapshotLineItem
}

// BillingSnapshotGateway is read-only access to frozen billing snapshots.
// Implementations may pre-filter by clientID, but callers must not rely on
// it; the workflow engine filters again by line-item client.
type BillingSnapshotGateway interface {
	FindSnapshots(ctx context.Context, start, end time.Time, clientID string) ([]Snapshot, error)
	FindSnapshotsByIDs(ctx context.Context, ids []string) ([]Snapshot, error)
}

// ApproverNotifier dispatches approval notifications. Best effort: the
// workflow never fails a transition because a notification could not be
// delivered.
type ApproverNotifier interface {
	NotifyApprovers(ctx context.Context, inv *domain.Invoice) error
}
