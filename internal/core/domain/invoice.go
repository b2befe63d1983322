package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle state of an invoice.
type InvoiceStatus string

const (
	StatusDraft           InvoiceStatus = "draft"
	StatusPendingApproval InvoiceStatus = "pending_approval"
	StatusApproved        InvoiceStatus = "approved"
	StatusSent            InvoiceStatus = "sent"
	StatusPaid            InvoiceStatus = "paid"
	StatusOverdue         InvoiceStatus = "overdue"
	StatusCancelled       InvoiceStatus = "cancelled"
)

// validTransitions defines the allowed state machine transitions.
// Rejection moves pending_approval back to draft, never to a dead end, so a
// rejected invoice can always be revised and resubmitted. paid and cancelled
// are terminal.
var validTransitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:           {StatusPendingApproval, StatusApproved, StatusCancelled},
	StatusPendingApproval: {StatusApproved, StatusDraft, StatusCancelled},
	StatusApproved:        {StatusSent, StatusCancelled},
	StatusSent:            {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue:         {StatusPaid, StatusCancelled},
}

// CanTransitionTo reports whether a transition from the current status to
// next is valid.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PeriodType classifies a billing period by its length.
type PeriodType string

const (
	PeriodWeekly    PeriodType = "weekly"
	PeriodMonthly   PeriodType = "monthly"
	PeriodMilestone PeriodType = "project_milestone"
	PeriodCustom    PeriodType = "custom"
)

// BillingPeriod is the date range an invoice covers.
type BillingPeriod struct {
	Start time.Time  `json:"start_date"`
	End   time.Time  `json:"end_date"`
	Type  PeriodType `json:"period_type"`
}

// PeriodTypeFor derives the period classification from the range length:
// up to 7 days is weekly, up to 31 monthly, anything longer custom.
func PeriodTypeFor(start, end time.Time) PeriodType {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	switch {
	case days <= 7:
		return PeriodWeekly
	case days <= 31:
		return PeriodMonthly
	default:
		return PeriodCustom
	}
}

// ExpenseLineItem is a billable expense attached to an invoice (travel,
// materials). Markup is a percentage applied on top of the amount.
type ExpenseLineItem struct {
	Description      string          `json:"description"`
	Amount           decimal.Decimal `json:"amount"`
	Category         string          `json:"category"`
	IsBillable       bool            `json:"is_billable"`
	MarkupPercentage decimal.Decimal `json:"markup_percentage"`
}

// FixedFeeLineItem is a flat fee attached to an invoice (retainer, milestone).
type FixedFeeLineItem struct {
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	MilestoneName string          `json:"milestone_name,omitempty"`
	ProjectID     string          `json:"project_id,omitempty"`
}

// Invoice aggregates approved billing snapshots into a client-facing
// document. It is mutated only through workflow transitions and is never
// hard-deleted.
type Invoice struct {
	ID            string        `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	ClientID      string        `json:"client_id"`
	BillingPeriod BillingPeriod `json:"billing_period"`
	Status        InvoiceStatus `json:"status"`

	// SnapshotRefs are opaque ids of the frozen billing snapshots this
	// invoice bills; the snapshots themselves are owned elsewhere.
	SnapshotRefs []string           `json:"timesheet_snapshots"`
	Expenses     []ExpenseLineItem  `json:"expense_entries"`
	FixedFees    []FixedFeeLineItem `json:"fixed_fees"`

	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Currency           string          `json:"currency"`

	PaymentTermsDays  int             `json:"payment_terms_days"`
	DueDate           time.Time       `json:"due_date"`
	LateFeePercentage decimal.Decimal `json:"late_fee_percentage"`

	CreatedBy  string     `json:"created_by"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`

	Notes          string `json:"notes,omitempty"`
	ClientPONumber string `json:"client_po_number,omitempty"`

	PaymentsReceived decimal.Decimal `json:"payments_received"`
	BalanceDue       decimal.Decimal `json:"balance_due"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// RecalculateTotals recomputes the derived financial fields from the line
// items and discount/tax configuration. It must run before every persist so
// the balance_due invariant holds no matter which field changed.
func (inv *Invoice) RecalculateTotals() {
	gross := inv.Subtotal
	for _, e := range inv.Expenses {
		if !e.IsBillable {
			continue
		}
		markup := e.Amount.Mul(e.MarkupPercentage).Div(decimal.NewFromInt(100))
		gross = gross.Add(e.Amount).Add(markup)
	}
	for _, f := range inv.FixedFees {
		gross = gross.Add(f.Amount)
	}

	discount := inv.DiscountAmount
	if inv.DiscountPercentage.IsPositive() {
		discount = gross.Mul(inv.DiscountPercentage).Div(decimal.NewFromInt(100))
	}
	inv.DiscountAmount = discount

	taxable := gross.Sub(discount)
	inv.TaxAmount = taxable.Mul(inv.TaxRate).Div(decimal.NewFromInt(100))
	inv.TotalAmount = taxable.Add(inv.TaxAmount)
	inv.BalanceDue = inv.TotalAmount.Sub(inv.PaymentsReceived)
}

const invoiceNumberPrefix = "INV"

// FormatInvoiceNumber renders the canonical invoice number for a year and
// sequence, e.g. INV-2025-001. The sequence is zero-padded to three digits
// and grows past three as needed.
func FormatInvoiceNumber(year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", invoiceNumberPrefix, year, seq)
}

// InvoiceNumberPrefixFor returns the prefix shared by all invoice numbers of
// a year, e.g. "INV-2025-".
func InvoiceNumberPrefixFor(year int) string {
	return fmt.Sprintf("%s-%d-", invoiceNumberPrefix, year)
}

// ParseInvoiceSequence extracts the numeric sequence from an invoice number
// of the given year. Returns 0 when the number does not match the year's
// prefix.
func ParseInvoiceSequence(number string, year int) int {
	prefix := InvoiceNumberPrefixFor(year)
	if !strings.HasPrefix(number, prefix) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(number, prefix))
	if err != nil {
		return 0
	}
	return n
}
