package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
)

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID   string
	Role string
}

// ApprovalAction is the decision taken on a pending invoice.
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// InvoiceDraft is an unsaved invoice skeleton produced from billing
// snapshots. Total equals subtotal until taxes and discounts are applied.
type InvoiceDraft struct {
	ClientID     string
	Period       domain.BillingPeriod
	SnapshotRefs []string
	Subtotal     decimal.Decimal
	TotalAmount  decimal.Decimal
	Status       domain.InvoiceStatus
}

// CreateInvoiceInput carries the persisted fields for a new invoice.
type CreateInvoiceInput struct {
	ClientID           string
	Period             domain.BillingPeriod
	SnapshotRefs       []string
	Expenses           []domain.ExpenseLineItem
	FixedFees          []domain.FixedFeeLineItem
	Subtotal           decimal.Decimal
	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal
	TaxRate            decimal.Decimal
	Currency           string
	PaymentTermsDays   int // 0 = service default
	Notes              string
	ClientPONumber     string
}

// InvoiceLineItem is one display row of an invoice's snapshot breakdown,
// grouped per project.
type InvoiceLineItem struct {
	ProjectID     string          `json:"project_id"`
	ProjectName   string          `json:"project_name"`
	UserID        string          `json:"user_id"`
	UserName      string          `json:"user_name"`
	Hours         decimal.Decimal `json:"hours"`
	Rate          decimal.Decimal `json:"rate"`
	Amount        decimal.Decimal `json:"amount"`
	BillingPeriod string          `json:"billing_period"`
}

// DashboardStats is the read-only aggregate view over all invoices.
type DashboardStats struct {
	TotalInvoices     int64           `json:"total_invoices"`
	DraftInvoices     int64           `json:"draft_invoices"`
	PendingApproval   int64           `json:"pending_approval"`
	ApprovedInvoices  int64           `json:"approved_invoices"`
	TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
	OverdueInvoices   int64           `json:"overdue_invoices"`
	TotalRevenueMonth decimal.Decimal `json:"total_revenue_month"`
}

// InvoiceService defines the invoice workflow use cases.
type InvoiceService interface {
	// GenerateDraft aggregates the client's frozen snapshots inside the
	// period into an unsaved draft. Fails with domain.ErrNoBillableHours
	// when the filtered set is empty.
	GenerateDraft(ctx context.Context, clientID string, start, end time.Time) (*InvoiceDraft, error)
	// CreateInvoice persists a draft with the next sequential invoice
	// number for the current year. The allocator is best effort; the
	// store's unique constraint decides races.
	CreateInvoice(ctx context.Context, input CreateInvoiceInput, actor Actor) (*domain.Invoice, error)
	// SubmitForApproval moves a draft into the approval flow. Below the
	// manager threshold a manager-or-above submitter auto-approves.
	SubmitForApproval(ctx context.Context, invoiceID, submitterID string) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	// ProcessApproval approves or rejects a pending invoice after checking
	// the approver's amount ceiling. Rejection returns the invoice to
	// draft with the reason recorded in its notes.
	ProcessApproval(ctx context.Context, invoiceID, approverID string, action ApprovalAction, reason string) (*domain.Invoice, error)
	MarkSent(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	// RecordPayment adds a received amount; the invoice becomes paid when
	// the balance reaches zero.
	RecordPayment(ctx context.Context, invoiceID string, amount decimal.Decimal) (*domain.Invoice, error)
	CancelInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	// FlagOverdue sweeps sent invoices past their due date into overdue.
	FlagOverdue(ctx context.Context, now time.Time) (int64, error)
	LineItems(ctx context.Context, invoiceID string) ([]InvoiceLineItem, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]*domain.Invoice, int64, error)
}
