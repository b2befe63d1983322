package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

// DefaultPaymentTermsDays applies when neither the caller nor configuration
// supplies payment terms (NET 30).
const DefaultPaymentTermsDays = 30

// InvoiceService implements the invoice workflow state machine.
type InvoiceService struct {
	invoices  ports.InvoiceRepository
	snapshots ports.BillingSnapshotGateway
	users     ports.UserDirectory
	notifier  ports.ApproverNotifier
	policy    *ApprovalThresholdPolicy
	terms     int
	log       zerolog.Logger
	now       func() time.Time
}

// NewInvoiceService wires an InvoiceService. paymentTermsDays <= 0 falls
// back to DefaultPaymentTermsDays.
func NewInvoiceService(
	invoices ports.InvoiceRepository,
	snapshots ports.BillingSnapshotGateway,
	users ports.UserDirectory,
	notifier ports.ApproverNotifier,
	policy *ApprovalThresholdPolicy,
	paymentTermsDays int,
	log zerolog.Logger,
) *InvoiceService {
	if paymentTermsDays <= 0 {
		paymentTermsDays = DefaultPaymentTermsDays
	}
	return &InvoiceService{
		invoices:  invoices,
		snapshots: snapshots,
		users:     users,
		notifier:  notifier,
		policy:    policy,
		terms:     paymentTermsDays,
		log:       log,
		now:       time.Now,
	}
}

// GenerateDraft aggregates the client's frozen weekly snapshots inside the
// period into an unsaved draft. Snapshots qualify when at least one of
// their line items belongs to a project of the client.
func (s *InvoiceService) GenerateDraft(ctx context.Context, clientID string, start, end time.Time) (*ports.InvoiceDraft, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", domain.ErrValidation)
	}
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return nil, fmt.Errorf("%w: billing period must have start before end", domain.ErrValidation)
	}

	snapshots, err := s.snapshots.FindSnapshots(ctx, start, end, clientID)
	if err != nil {
		return nil, fmt.Errorf("generate draft: %w", err)
	}

	var (
		refs     []string
		subtotal = decimal.Zero
	)
	for _, snap := range snapshots {
		if !snapshotBelongsToClient(snap, clientID) {
			continue
		}
		refs = append(refs, snap.ID)
		subtotal = subtotal.Add(snap.BillableAmount)
	}
	if len(refs) == 0 {
		return nil, domain.ErrNoBillableHours
	}

	s.log.Info().
		Str("client_id", clientID).
		Int("snapshots", len(refs)).
		Str("subtotal", subtotal.String()).
		Msg("invoice draft generated")

	return &ports.InvoiceDraft{
		ClientID: clientID,
		Period: domain.BillingPeriod{
			Start: start,
			End:   end,
			Type:  domain.PeriodTypeFor(start, end),
		},
		SnapshotRefs: refs,
		Subtotal:     subtotal,
		TotalAmount:  subtotal, // taxes and discounts applied at creation
		Status:       domain.StatusDraft,
	}, nil
}

func snapshotBelongsToClient(snap ports.Snapshot, clientID string) bool {
	for _, item := range snap.LineItems {
		if item.ClientID == clientID {
			return true
		}
	}
	return false
}

// CreateInvoice persists a draft under the next sequential invoice number
// for the current year. The scan-max allocator is best effort only: under
// concurrent creation the store's unique index on invoice_number rejects
// the losing write with domain.ErrDuplicateInvoiceNumber, and the caller
// retries with a fresh allocation.
func (s *InvoiceService) CreateInvoice(ctx context.Context, input ports.CreateInvoiceInput, actor ports.Actor) (*domain.Invoice, error) {
	if !domain.CanCreateInvoices(actor.Role) {
		return nil, fmt.Errorf("%w: role %q cannot create invoices", domain.ErrForbidden, actor.Role)
	}
	if input.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	year := now.Year()
	maxSeq, err := s.invoices.MaxInvoiceSequence(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("create invoice: allocate number: %w", err)
	}

	terms := input.PaymentTermsDays
	if terms <= 0 {
		terms = s.terms
	}
	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}
	period := input.Period
	if period.Type == "" {
		period.Type = domain.PeriodTypeFor(period.Start, period.End)
	}

	inv := &domain.Invoice{
		InvoiceNumber:      domain.FormatInvoiceNumber(year, maxSeq+1),
		ClientID:           input.ClientID,
		BillingPeriod:      period,
		Status:             domain.StatusDraft,
		SnapshotRefs:       input.SnapshotRefs,
		Expenses:           input.Expenses,
		FixedFees:          input.FixedFees,
		Subtotal:           input.Subtotal,
		DiscountAmount:     input.DiscountAmount,
		DiscountPercentage: input.DiscountPercentage,
		TaxRate:            input.TaxRate,
		Currency:           currency,
		PaymentTermsDays:   terms,
		DueDate:            now.AddDate(0, 0, terms),
		CreatedBy:          actor.ID,
		Notes:              input.Notes,
		ClientPONumber:     input.ClientPONumber,
		PaymentsReceived:   decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	inv.RecalculateTotals()

	if err := s.invoices.Insert(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	s.log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("client_id", inv.ClientID).
		Str("total", inv.TotalAmount.String()).
		Msg("invoice created")

	return inv, nil
}

// GetInvoice retrieves a single invoice by id.
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.invoices.FindByID(ctx, invoiceID)
}

// SubmitForApproval moves a draft into the approval flow. When the total is
// within the manager threshold and the submitter holds manager authority or
// above, the invoice auto-approves. That is the one transition that skips
// pending_approval entirely. Otherwise approvers are notified best effort.
func (s *InvoiceService) SubmitForApproval(ctx context.Context, invoiceID, submitterID string) (*domain.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusDraft {
		return nil, fmt.Errorf("%w: only draft invoices can be submitted (current: %s)", domain.ErrInvalidState, inv.Status)
	}

	role, err := s.users.GetUserRole(ctx, submitterID)
	if err != nil {
		return nil, fmt.Errorf("%w: submitter not found", domain.ErrValidation)
	}

	now := s.now().UTC()
	thresholds := s.policy.For(inv.ClientID)

	autoApprove := inv.TotalAmount.LessThanOrEqual(thresholds.ManagerLimit) && domain.CanCreateInvoices(role)
	if autoApprove {
		inv.Status = domain.StatusApproved
		inv.ApprovedBy = submitterID
		inv.ApprovedAt = &now
	} else {
		inv.Status = domain.StatusPendingApproval
	}
	inv.UpdatedAt = now
	inv.RecalculateTotals()

	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("submit invoice %s: %w", invoiceID, err)
	}

	if !autoApprove {
		// Fire and forget: a failed notification must never fail the
		// transition.
		go func(inv domain.Invoice) {
			if err := s.notifier.NotifyApprovers(context.WithoutCancel(ctx), &inv); err != nil {
				s.log.Warn().Err(err).Str("invoice_number", inv.InvoiceNumber).Msg("approver notification failed")
			}
		}(*inv)
	}

	s.log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("status", string(inv.Status)).
		Bool("auto_approved", autoApprove).
		Msg("invoice submitted")

	return inv, nil
}

// ProcessApproval approves or rejects a pending invoice. The approver's
// amount ceiling is checked against the client's thresholds; a violation
// leaves the invoice untouched. Rejection returns the invoice to draft with
// the reason appended to its notes, so it is always recoverable.
func (s *InvoiceService) ProcessApproval(ctx context.Context, invoiceID, approverID string, action ports.ApprovalAction, reason string) (*domain.Invoice, error) {
	if action != ports.ActionApprove && action != ports.ActionReject {
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrValidation, action)
	}

	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusPendingApproval {
		return nil, fmt.Errorf("%w: invoice is not pending approval (current: %s)", domain.ErrInvalidState, inv.Status)
	}

	role, err := s.users.GetUserRole(ctx, approverID)
	if err != nil {
		return nil, fmt.Errorf("%w: approver not found", domain.ErrValidation)
	}
	if !s.policy.For(inv.ClientID).CanApprove(role, inv.TotalAmount) {
		return nil, fmt.Errorf("%w: role %q cannot approve %s", domain.ErrInsufficientAuthority, role, inv.TotalAmount.String())
	}

	now := s.now().UTC()
	if action == ports.ActionApprove {
		inv.Status = domain.StatusApproved
		inv.ApprovedBy = approverID
		inv.ApprovedAt = &now
	} else {
		inv.Status = domain.StatusDraft
		if reason == "" {
			reason = "No reason provided"
		}
		inv.Notes = inv.Notes + "\nRejected: " + reason
	}
	inv.UpdatedAt = now
	inv.RecalculateTotals()

	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("process approval for %s: %w", invoiceID, err)
	}

	s.log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("action", string(action)).
		Str("approver_id", approverID).
		Msg("approval processed")

	return inv, nil
}

// MarkSent records that an approved invoice went out to the client.
func (s *InvoiceService) MarkSent(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.transition(ctx, invoiceID, domain.StatusSent, func(inv *domain.Invoice, now time.Time) {
		inv.SentAt = &now
	})
}

// RecordPayment adds a received amount to the invoice. The invoice becomes
// paid once the balance reaches zero.
func (s *InvoiceService) RecordPayment(ctx context.Context, invoiceID string, amount decimal.Decimal) (*domain.Invoice, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", domain.ErrValidation)
	}

	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusSent && inv.Status != domain.StatusOverdue {
		return nil, fmt.Errorf("%w: payments apply to sent or overdue invoices (current: %s)", domain.ErrInvalidState, inv.Status)
	}

	inv.PaymentsReceived = inv.PaymentsReceived.Add(amount)
	inv.RecalculateTotals()
	if !inv.BalanceDue.IsPositive() {
		inv.Status = domain.StatusPaid
	}
	inv.UpdatedAt = s.now().UTC()

	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("record payment on %s: %w", invoiceID, err)
	}

	s.log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("amount", amount.String()).
		Str("balance_due", inv.BalanceDue.String()).
		Msg("payment recorded")

	return inv, nil
}

// CancelInvoice cancels an invoice from any non-terminal state.
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.transition(ctx, invoiceID, domain.StatusCancelled, nil)
}

// transition applies a state-machine-checked status change plus an optional
// stamp, recomputing totals before the persist.
func (s *InvoiceService) transition(ctx context.Context, invoiceID string, next domain.InvoiceStatus, stamp func(*domain.Invoice, time.Time)) (*domain.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: cannot move %s invoice to %s", domain.ErrInvalidState, inv.Status, next)
	}

	now := s.now().UTC()
	inv.Status = next
	if stamp != nil {
		stamp(inv, now)
	}
	inv.UpdatedAt = now
	inv.RecalculateTotals()

	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("transition %s to %s: %w", invoiceID, next, err)
	}
	return inv, nil
}

// FlagOverdue sweeps sent invoices past their due date into overdue.
func (s *InvoiceService) FlagOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.invoices.MarkOverdueBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("flag overdue: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("invoices flagged overdue")
	}
	return n, nil
}

// LineItems renders the per-project breakdown of an invoice's snapshots.
func (s *InvoiceService) LineItems(ctx context.Context, invoiceID string) ([]ports.InvoiceLineItem, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	snaps, err := s.snapshots.FindSnapshotsByIDs(ctx, inv.SnapshotRefs)
	if err != nil {
		return nil, fmt.Errorf("line items for %s: %w", invoiceID, err)
	}

	var items []ports.InvoiceLineItem
	for _, snap := range snaps {
		period := fmt.Sprintf("%s - %s",
			snap.WeekStart.Format("2006-01-02"), snap.WeekEnd.Format("2006-01-02"))

		grouped := make(map[string]*ports.InvoiceLineItem)
		var order []string
		for _, entry := range snap.LineItems {
			g, ok := grouped[entry.ProjectID]
			if !ok {
				g = &ports.InvoiceLineItem{
					ProjectID:     entry.ProjectID,
					ProjectName:   entry.ProjectName,
					UserID:        snap.UserID,
					UserName:      snap.UserName,
					Rate:          snap.HourlyRate,
					Hours:         decimal.Zero,
					BillingPeriod: period,
				}
				grouped[entry.ProjectID] = g
				order = append(order, entry.ProjectID)
			}
			g.Hours = g.Hours.Add(entry.Hours)
			g.Amount = g.Hours.Mul(g.Rate)
		}
		for _, id := range order {
			items = append(items, *grouped[id])
		}
	}
	return items, nil
}

// DashboardStats assembles the read-only aggregate view: counts by status,
// outstanding balances, overdue count, and month-to-date revenue.
func (s *InvoiceService) DashboardStats(ctx context.Context) (*ports.DashboardStats, error) {
	now := s.now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	counts, err := s.invoices.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	outstanding, err := s.invoices.OutstandingBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	overdue, err := s.invoices.CountOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	revenue, err := s.invoices.RevenueSince(ctx, startOfMonth)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return &ports.DashboardStats{
		TotalInvoices:     total,
		DraftInvoices:     counts[domain.StatusDraft],
		PendingApproval:   counts[domain.StatusPendingApproval],
		ApprovedInvoices:  counts[domain.StatusApproved],
		TotalOutstanding:  outstanding,
		OverdueInvoices:   overdue,
		TotalRevenueMonth: revenue,
	}, nil
}

// ListInvoices returns a page of invoices matching the filter.
func (s *InvoiceService) ListInvoices(ctx context.Context, filter ports.InvoiceFilter) ([]*domain.Invoice, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return s.invoices.List(ctx, filter)
}
