package handler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

// --- Request / Response types ---

type generateDraftRequest struct {
	ClientID  string `json:"client_id"  validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date"   validate:"required,datetime=2006-01-02"`
}

type draftResponse struct {
	ClientID     string          `json:"client_id"`
	PeriodStart  string          `json:"period_start"`
	PeriodEnd    string          `json:"period_end"`
	PeriodType   string          `json:"period_type"`
	SnapshotRefs []string        `json:"snapshot_refs"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Status       string          `json:"status"`
}

func toDraftResponse(d *ports.InvoiceDraft) draftResponse {
	return draftResponse{
		ClientID:     d.ClientID,
		PeriodStart:  d.Period.Start.Format(dateLayout),
		PeriodEnd:    d.Period.End.Format(dateLayout),
		PeriodType:   string(d.Period.Type),
		SnapshotRefs: d.SnapshotRefs,
		Subtotal:     d.Subtotal,
		TotalAmount:  d.TotalAmount,
		Status:       string(d.Status),
	}
}

type expenseRequest struct {
	Description      string  `json:"description" validate:"required"`
	Amount           float64 `json:"amount"      validate:"required,gt=0"`
	Category         string  `json:"category"`
	IsBillable       bool    `json:"is_billable"`
	MarkupPercentage float64 `json:"markup_percentage" validate:"gte=0"`
}

type fixedFeeRequest struct {
	Description   string  `json:"description" validate:"required"`
	Amount        float64 `json:"amount"      validate:"required,gt=0"`
	MilestoneName string  `json:"milestone_name"`
	ProjectID     string  `json:"project_id"`
}

type createInvoiceRequest struct {
	ClientID           string            `json:"client_id"  validate:"required"`
	StartDate          string            `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string            `json:"end_date"   validate:"required,datetime=2006-01-02"`
	SnapshotRefs       []string          `json:"snapshot_refs"`
	Expenses           []expenseRequest  `json:"expenses"   validate:"dive"`
	FixedFees          []fixedFeeRequest `json:"fixed_fees" validate:"dive"`
	Subtotal           float64           `json:"subtotal"            validate:"gte=0"`
	DiscountAmount     float64           `json:"discount_amount"     validate:"gte=0"`
	DiscountPercentage float64           `json:"discount_percentage" validate:"gte=0"`
	TaxRate            float64           `json:"tax_rate"            validate:"gte=0"`
	Currency           string            `json:"currency"`
	PaymentTermsDays   int               `json:"payment_terms_days" validate:"gte=0"`
	Notes              string            `json:"notes"`
	ClientPONumber     string            `json:"client_po_number"`
}

func (r createInvoiceRequest) toInput() (ports.CreateInvoiceInput, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return ports.CreateInvoiceInput{}, fmt.Errorf("%w: invalid start_date", domain.ErrValidation)
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return ports.CreateInvoiceInput{}, fmt.Errorf("%w: invalid end_date", domain.ErrValidation)
	}
	if !end.After(start) {
		return ports.CreateInvoiceInput{}, fmt.Errorf("%w: billing period must have start before end", domain.ErrValidation)
	}

	input := ports.CreateInvoiceInput{
		ClientID:           r.ClientID,
		Period:             domain.BillingPeriod{Start: start, End: end},
		SnapshotRefs:       r.SnapshotRefs,
		Subtotal:           decimal.NewFromFloat(r.Subtotal),
		DiscountAmount:     decimal.NewFromFloat(r.DiscountAmount),
		DiscountPercentage: decimal.NewFromFloat(r.DiscountPercentage),
		TaxRate:            decimal.NewFromFloat(r.TaxRate),
		Currency:           r.Currency,
		PaymentTermsDays:   r.PaymentTermsDays,
		Notes:              r.Notes,
		ClientPONumber:     r.ClientPONumber,
	}
	for _, e := range r.Expenses {
		input.Expenses = append(input.Expenses, domain.ExpenseLineItem{
			Description:      e.Description,
			Amount:           decimal.NewFromFloat(e.Amount),
			Category:         e.Category,
			IsBillable:       e.IsBillable,
			MarkupPercentage: decimal.NewFromFloat(e.MarkupPercentage),
		})
	}
	for _, f := range r.FixedFees {
		input.FixedFees = append(input.FixedFees, domain.FixedFeeLineItem{
			Description:   f.Description,
			Amount:        decimal.NewFromFloat(f.Amount),
			MilestoneName: f.MilestoneName,
			ProjectID:     f.ProjectID,
		})
	}
	return input, nil
}

type approvalRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason"`
}

type paymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type invoiceResponse struct {
	ID                 string          `json:"id"`
	InvoiceNumber      string          `json:"invoice_number"`
	ClientID           string          `json:"client_id"`
	PeriodStart        string          `json:"period_start"`
	PeriodEnd          string          `json:"period_end"`
	PeriodType         string          `json:"period_type"`
	Status             string          `json:"status"`
	SnapshotRefs       []string        `json:"snapshot_refs,omitempty"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Currency           string          `json:"currency"`
	PaymentTermsDays   int             `json:"payment_terms_days"`
	DueDate            string          `json:"due_date"`
	CreatedBy          string          `json:"created_by"`
	ApprovedBy         string          `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	SentAt             *time.Time      `json:"sent_at,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	ClientPONumber     string          `json:"client_po_number,omitempty"`
	PaymentsReceived   decimal.Decimal `json:"payments_received"`
	BalanceDue         decimal.Decimal `json:"balance_due"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toInvoiceResponse(inv *domain.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:                 inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		ClientID:           inv.ClientID,
		PeriodStart:        inv.BillingPeriod.Start.Format(dateLayout),
		PeriodEnd:          inv.BillingPeriod.End.Format(dateLayout),
		PeriodType:         string(inv.BillingPeriod.Type),
		Status:             string(inv.Status),
		SnapshotRefs:       inv.SnapshotRefs,
		Subtotal:           inv.Subtotal,
		DiscountAmount:     inv.DiscountAmount,
		DiscountPercentage: inv.DiscountPercentage,
		TaxRate:            inv.TaxRate,
		TaxAmount:          inv.TaxAmount,
		TotalAmount:        inv.TotalAmount,
		Currency:           inv.Currency,
		PaymentTermsDays:   inv.PaymentTermsDays,
		DueDate:            inv.DueDate.Format(dateLayout),
		CreatedBy:          inv.CreatedBy,
		ApprovedBy:         inv.ApprovedBy,
		ApprovedAt:         inv.ApprovedAt,
		SentAt:             inv.SentAt,
		Notes:              inv.Notes,
		ClientPONumber:     inv.ClientPONumber,
		PaymentsReceived:   inv.PaymentsReceived,
		BalanceDue:         inv.BalanceDue,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

type invoiceListResponse struct {
	Invoices []invoiceResponse `json:"invoices"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type flagOverdueResponse struct {
	Flagged int64 `json:"flagged"`
}
