package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
)

// InvoiceFilter carries the query parameters for listing invoices.
type InvoiceFilter struct {
	ClientID string               // empty = all clients
	Status   domain.InvoiceStatus // empty = all statuses
	Page     int                  // 1-based
	Limit    int                  // capped by the service
}

// InvoiceRepository defines persistence operations for invoices. Soft delete
// only; every read excludes deleted documents.
type InvoiceRepository interface {
	// Insert persists a new invoice. Returns
	// domain.ErrDuplicateInvoiceNumber when the unique constraint on
	// invoice_number rejects the write.
	Insert(ctx context.Context, inv *domain.Invoice) error
	FindByID(ctx context.Context, id string) (*domain.Invoice, error)
	Update(ctx context.Context, inv *domain.Invoice) error
	List(ctx context.Context, filter InvoiceFilter) ([]*domain.Invoice, int64, error)

	// MaxInvoiceSequence returns the highest allocated sequence for the
	// year, 0 when none exist. Deleted invoices keep their number, so the
	// sequence never regresses after a deletion.
	MaxInvoiceSequence(ctx context.Context, year int) (int, error)

	// Dashboard aggregations (derived views, never stored).
	CountByStatus(ctx context.Context) (map[domain.InvoiceStatus]int64, error)
	OutstandingBalance(ctx context.Context) (decimal.Decimal, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
	RevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error)

	// MarkOverdueBefore flips sent invoices with a positive balance past
	// their due date to overdue; returns how many changed.
	MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error)
}
