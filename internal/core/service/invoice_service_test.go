package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stubs
// ---------------------------------------------------------------------------

type stubInvoiceRepo struct {
	invoices []*domain.Invoice
	nextID   int
}

func (r *stubInvoiceRepo) Insert(_ context.Context, inv *domain.Invoice) error {
	for _, existing := range r.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return domain.ErrDuplicateInvoiceNumber
		}
	}
	r.nextID++
	if inv.ID == "" {
		inv.ID = fmt.Sprintf("inv_%d", r.nextID)
	}
	clone := *inv
	r.invoices = append(r.invoices, &clone)
	return nil
}

func (r *stubInvoiceRepo) FindByID(_ context.Context, id string) (*domain.Invoice, error) {
	for _, inv := range r.invoices {
		if inv.ID == id && inv.DeletedAt == nil {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

func (r *stubInvoiceRepo) Update(_ context.Context, inv *domain.Invoice) error {
	for i, existing := range r.invoices {
		if existing.ID == inv.ID {
			clone := *inv
			r.invoices[i] = &clone
			return nil
		}
	}
	return domain.ErrInvoiceNotFound
}

func (r *stubInvoiceRepo) List(_ context.Context, filter ports.InvoiceFilter) ([]*domain.Invoice, int64, error) {
	var matched []*domain.Invoice
	for _, inv := range r.invoices {
		if inv.DeletedAt != nil {
			continue
		}
		if filter.ClientID != "" && inv.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		clone := *inv
		matched = append(matched, &clone)
	}
	total := int64(len(matched))
	offset := (filter.Page - 1) * filter.Limit
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *stubInvoiceRepo) MaxInvoiceSequence(_ context.Context, year int) (int, error) {
	max := 0
	for _, inv := range r.invoices {
		if seq := domain.ParseInvoiceSequence(inv.InvoiceNumber, year); seq > max {
			max = seq
		}
	}
	return max, nil
}

func (r *stubInvoiceRepo) CountByStatus(_ context.Context) (map[domain.InvoiceStatus]int64, error) {
	counts := make(map[domain.InvoiceStatus]int64)
	for _, inv := range r.invoices {
		if inv.DeletedAt == nil {
			counts[inv.Status]++
		}
	}
	return counts, nil
}

func (r *stubInvoiceRepo) OutstandingBalance(_ context.Context) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.invoices {
		if (inv.Status == domain.StatusSent || inv.Status == domain.StatusApproved) && inv.BalanceDue.IsPositive() {
			sum = sum.Add(inv.BalanceDue)
		}
	}
	return sum, nil
}

func (r *stubInvoiceRepo) CountOverdue(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, inv := range r.invoices {
		if (inv.Status == domain.StatusSent || inv.Status == domain.StatusApproved) &&
			inv.DueDate.Before(now) && inv.BalanceDue.IsPositive() {
			n++
		}
	}
	return n, nil
}

func (r *stubInvoiceRepo) RevenueSince(_ context.Context, since time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.invoices {
		switch inv.Status {
		case domain.StatusApproved, domain.StatusSent, domain.StatusPaid:
			if !inv.CreatedAt.Before(since) {
				sum = sum.Add(inv.TotalAmount)
			}
		}
	}
	return sum, nil
}

func (r *stubInvoiceRepo) MarkOverdueBefore(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, inv := range r.invoices {
		if inv.Status == domain.StatusSent && inv.DueDate.Before(now) && inv.BalanceDue.IsPositive() {
			inv.Status = domain.StatusOverdue
			n++
		}
	}
	return n, nil
}

type stubSnapshotGateway struct {
	snapshots []ports.Snapshot
}

func (g *stubSnapshotGateway) FindSnapshots(_ context.Context, start, end time.Time, _ string) ([]ports.Snapshot, error) {
	var out []ports.Snapshot
	for _, snap := range g.snapshots {
		if !snap.WeekStart.Before(start) && !snap.WeekEnd.After(end) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (g *stubSnapshotGateway) FindSnapshotsByIDs(_ context.Context, ids []string) ([]ports.Snapshot, error) {
	var out []ports.Snapshot
	for _, id := range ids {
		for _, snap := range g.snapshots {
			if snap.ID == id {
				out = append(out, snap)
			}
		}
	}
	return out, nil
}

type stubNotifier struct {
	notified chan string
	err      error
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{notified: make(chan string, 8)}
}

func (n *stubNotifier) NotifyApprovers(_ context.Context, inv *domain.Invoice) error {
	n.notified <- inv.InvoiceNumber
	return n.err
}

type invoiceFixture struct {
	repo     *stubInvoiceRepo
	gateway  *stubSnapshotGateway
	users    *stubUserDirectory
	notifier *stubNotifier
	svc      *InvoiceService
}

func newInvoiceFixture() *invoiceFixture {
	f := &invoiceFixture{
		repo:    &stubInvoiceRepo{},
		gateway: &stubSnapshotGateway{},
		users: &stubUserDirectory{roles: map[string]string{
			"employee_1":    domain.RoleEmployee,
			"manager_1":     domain.RoleManager,
			"management_1":  domain.RoleManagement,
			"super_admin_1": domain.RoleSuperAdmin,
		}},
		notifier: newStubNotifier(),
	}
	f.svc = NewInvoiceService(
		f.repo, f.gateway, f.users, f.notifier,
		NewApprovalThresholdPolicy(DefaultThresholds(), nil),
		0, zerolog.Nop(),
	)
	f.svc.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *invoiceFixture) seedInvoice(status domain.InvoiceStatus, total float64, mut func(*domain.Invoice)) *domain.Invoice {
	inv := &domain.Invoice{
		InvoiceNumber:    domain.FormatInvoiceNumber(2025, f.repo.nextID+1),
		ClientID:         "client_1",
		Status:           status,
		Subtotal:         decimal.NewFromFloat(total),
		Currency:         "USD",
		PaymentTermsDays: 30,
		DueDate:          time.Date(2025, 4, 14, 12, 0, 0, 0, time.UTC),
		CreatedBy:        "manager_1",
		PaymentsReceived: decimal.Zero,
	}
	inv.RecalculateTotals()
	if mut != nil {
		mut(inv)
	}
	_ = f.repo.Insert(context.Background(), inv)
	return inv
}

func weekSnapshot(id, userID, clientID string, amount float64) ports.Snapshot {
	return ports.Snapshot{
		ID:             id,
		UserID:         userID,
		UserName:       "User " + userID,
		WeekStart:      time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		WeekEnd:        time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		BillableAmount: decimal.NewFromFloat(amount),
		HourlyRate:     decimal.NewFromInt(75),
		LineItems: []ports.SnapshotLineItem{{
			ProjectID:   "project_1",
			ProjectName: "Project One",
			ClientID:    clientID,
			Hours:       decimal.NewFromFloat(amount / 75),
		}},
	}
}

// ---------------------------------------------------------------------------
// Draft generation
// ---------------------------------------------------------------------------

func TestGenerateDraft_AggregatesClientSnapshots(t *testing.T) {
	f := newInvoiceFixture()
	f.gateway.snapshots = []ports.Snapshot{
		weekSnapshot("snap_1", "employee_1", "client_1", 3168.75), // 42.25h x 75
		weekSnapshot("snap_2", "employee_2", "client_1", 750),
		weekSnapshot("snap_3", "employee_3", "other_client", 999),
	}

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	draft, err := f.svc.GenerateDraft(context.Background(), "client_1", start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(draft.SnapshotRefs) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(draft.SnapshotRefs))
	}
	if !draft.Subtotal.Equal(decimal.NewFromFloat(3918.75)) {
		t.Fatalf("expected subtotal 3918.75, got %s", draft.Subtotal)
	}
	if draft.Period.Type != domain.PeriodWeekly {
		t.Fatalf("expected weekly period, got %s", draft.Period.Type)
	}
	if draft.Status != domain.StatusDraft {
		t.Fatalf("expected draft status, got %s", draft.Status)
	}
}

func TestGenerateDraft_NoBillableHours(t *testing.T) {
	f := newInvoiceFixture()
	f.gateway.snapshots = []ports.Snapshot{
		weekSnapshot("snap_1", "employee_1", "other_client", 500),
	}

	_, err := f.svc.GenerateDraft(context.Background(), "client_1",
		time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, domain.ErrNoBillableHours) {
		t.Fatalf("expected ErrNoBillableHours, got %v", err)
	}
}

func TestGenerateDraft_InvalidPeriod(t *testing.T) {
	f := newInvoiceFixture()
	start := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.GenerateDraft(context.Background(), "client_1", start, end); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.GenerateDraft(context.Background(), "", end, start); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing client, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Creation and numbering
// ---------------------------------------------------------------------------

func TestCreateInvoice_SequentialNumbers(t *testing.T) {
	f := newInvoiceFixture()
	actor := ports.Actor{ID: "manager_1", Role: domain.RoleManager}
	input := ports.CreateInvoiceInput{
		ClientID: "client_1",
		Subtotal: decimal.NewFromInt(1000),
	}

	first, err := f.svc.CreateInvoice(context.Background(), input, actor)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.CreateInvoice(context.Background(), input, actor)
	if err != nil {
		t.Fatal(err)
	}
	if first.InvoiceNumber != "INV-2025-001" {
		t.Errorf("expected INV-2025-001, got %s", first.InvoiceNumber)
	}
	if second.InvoiceNumber != "INV-2025-002" {
		t.Errorf("expected INV-2025-002, got %s", second.InvoiceNumber)
	}
	if first.Status != domain.StatusDraft {
		t.Errorf("expected draft status, got %s", first.Status)
	}
	if !first.DueDate.Equal(time.Date(2025, 4, 14, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("expected NET 30 due date, got %s", first.DueDate)
	}
}

func TestCreateInvoice_EmployeeForbidden(t *testing.T) {
	f := newInvoiceFixture()
	_, err := f.svc.CreateInvoice(context.Background(), ports.CreateInvoiceInput{
		ClientID: "client_1",
		Subtotal: decimal.NewFromInt(1000),
	}, ports.Actor{ID: "employee_1", Role: domain.RoleEmployee})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateInvoice_FinancialRollup(t *testing.T) {
	f := newInvoiceFixture()
	inv, err := f.svc.CreateInvoice(context.Background(), ports.CreateInvoiceInput{
		ClientID: "client_1",
		Subtotal: decimal.NewFromInt(1000),
		Expenses: []domain.ExpenseLineItem{
			{Description: "Travel", Amount: decimal.NewFromInt(100), IsBillable: true, MarkupPercentage: decimal.NewFromInt(10)},
			{Description: "Internal lunch", Amount: decimal.NewFromInt(50), IsBillable: false},
		},
		FixedFees: []domain.FixedFeeLineItem{
			{Description: "Retainer", Amount: decimal.NewFromInt(90)},
		},
		DiscountPercentage: decimal.NewFromInt(10),
		TaxRate:            decimal.NewFromInt(10),
	}, ports.Actor{ID: "manager_1", Role: domain.RoleManager})
	if err != nil {
		t.Fatal(err)
	}

	// gross 1000 + 110 + 90 = 1200; discount 120; tax 108; total 1188
	if !inv.DiscountAmount.Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected discount 120, got %s", inv.DiscountAmount)
	}
	if !inv.TaxAmount.Equal(decimal.NewFromInt(108)) {
		t.Errorf("expected tax 108, got %s", inv.TaxAmount)
	}
	if !inv.TotalAmount.Equal(decimal.NewFromInt(1188)) {
		t.Errorf("expected total 1188, got %s", inv.TotalAmount)
	}
	if !inv.BalanceDue.Equal(inv.TotalAmount) {
		t.Errorf("expected balance equal to total before payments")
	}
}

// staleSequenceRepo simulates the race window between the sequence scan and
// the insert: the scan misses a number a competing writer already claimed.
type staleSequenceRepo struct {
	*stubInvoiceRepo
}

func (r *staleSequenceRepo) MaxInvoiceSequence(context.Context, int) (int, error) {
	return 0, nil
}

func TestCreateInvoice_DuplicateNumberSurfaces(t *testing.T) {
	f := newInvoiceFixture()
	f.seedInvoice(domain.StatusDraft, 100, nil) // holds INV-2025-001
	f.svc.invoices = &staleSequenceRepo{f.repo}

	_, err := f.svc.CreateInvoice(context.Background(), ports.CreateInvoiceInput{
		ClientID: "client_1",
		Subtotal: decimal.NewFromInt(100),
	}, ports.Actor{ID: "manager_1", Role: domain.RoleManager})
	if !errors.Is(err, domain.ErrDuplicateInvoiceNumber) {
		t.Fatalf("expected ErrDuplicateInvoiceNumber, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Approval flow
// ---------------------------------------------------------------------------

func TestSubmitForApproval_AutoApproveAtThreshold(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusDraft, 10000, nil)

	got, err := f.svc.SubmitForApproval(context.Background(), inv.ID, "manager_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusApproved {
		t.Fatalf("expected auto-approval at exactly 10000, got %s", got.Status)
	}
	if got.ApprovedBy != "manager_1" || got.ApprovedAt == nil {
		t.Fatalf("expected approval stamp")
	}
}

func TestSubmitForApproval_AboveThresholdGoesPending(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusDraft, 10000.01, nil)

	got, err := f.svc.SubmitForApproval(context.Background(), inv.ID, "manager_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusPendingApproval {
		t.Fatalf("expected pending_approval above threshold, got %s", got.Status)
	}

	select {
	case number := <-f.notifier.notified:
		if number != inv.InvoiceNumber {
			t.Fatalf("notified wrong invoice: %s", number)
		}
	case <-time.After(time.Second):
		t.Fatal("approvers were not notified")
	}
}

func TestSubmitForApproval_EmployeeNeverAutoApproves(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusDraft, 50, nil)

	got, err := f.svc.SubmitForApproval(context.Background(), inv.ID, "employee_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusPendingApproval {
		t.Fatalf("expected pending_approval for employee submitter, got %s", got.Status)
	}
}

func TestSubmitForApproval_OnlyFromDraft(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusSent, 100, nil)

	_, err := f.svc.SubmitForApproval(context.Background(), inv.ID, "manager_1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestProcessApproval_AuthorityCeilings(t *testing.T) {
	cases := []struct {
		name     string
		approver string
		total    float64
		wantErr  bool
	}{
		{"manager within limit", "manager_1", 10000, false},
		{"manager over limit", "manager_1", 15000, true},
		{"management within limit", "management_1", 25000, false},
		{"management over limit", "management_1", 25000.01, true},
		{"super admin unlimited", "super_admin_1", 500000, false},
		{"employee never", "employee_1", 10, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newInvoiceFixture()
			inv := f.seedInvoice(domain.StatusPendingApproval, tc.total, nil)

			got, err := f.svc.ProcessApproval(context.Background(), inv.ID, tc.approver, ports.ActionApprove, "")
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInsufficientAuthority) {
					t.Fatalf("expected ErrInsufficientAuthority, got %v", err)
				}
				persisted, _ := f.repo.FindByID(context.Background(), inv.ID)
				if persisted.Status != domain.StatusPendingApproval {
					t.Fatalf("invoice must stay pending after refused approval")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != domain.StatusApproved {
				t.Fatalf("expected approved, got %s", got.Status)
			}
			if got.ApprovedBy != tc.approver {
				t.Fatalf("expected approver %s, got %s", tc.approver, got.ApprovedBy)
			}
		})
	}
}

func TestProcessApproval_RejectReturnsToDraft(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusPendingApproval, 500, func(inv *domain.Invoice) {
		inv.Notes = "March work"
	})

	got, err := f.svc.ProcessApproval(context.Background(), inv.ID, "manager_1", ports.ActionReject, "Missing PO number")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusDraft {
		t.Fatalf("expected draft after rejection, got %s", got.Status)
	}
	if !strings.Contains(got.Notes, "March work") || !strings.Contains(got.Notes, "Rejected: Missing PO number") {
		t.Fatalf("expected reason appended to notes, got %q", got.Notes)
	}
}

func TestProcessApproval_RejectDefaultReason(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusPendingApproval, 500, nil)

	got, err := f.svc.ProcessApproval(context.Background(), inv.ID, "manager_1", ports.ActionReject, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Notes, "Rejected: No reason provided") {
		t.Fatalf("expected default reason, got %q", got.Notes)
	}
}

func TestProcessApproval_OnlyPending(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusDraft, 500, nil)

	_, err := f.svc.ProcessApproval(context.Background(), inv.ID, "manager_1", ports.ActionApprove, "")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestProcessApproval_UnknownAction(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusPendingApproval, 500, nil)

	_, err := f.svc.ProcessApproval(context.Background(), inv.ID, "manager_1", "defer", "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Sending, payments, cancellation
// ---------------------------------------------------------------------------

func TestMarkSent_FromApprovedOnly(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusApproved, 500, nil)

	got, err := f.svc.MarkSent(context.Background(), inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusSent || got.SentAt == nil {
		t.Fatalf("expected sent with timestamp, got %s", got.Status)
	}

	draft := f.seedInvoice(domain.StatusDraft, 500, nil)
	if _, err := f.svc.MarkSent(context.Background(), draft.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for draft, got %v", err)
	}
}

func TestRecordPayment_PartialThenPaid(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusSent, 1000, nil)

	got, err := f.svc.RecordPayment(context.Background(), inv.ID, decimal.NewFromInt(400))
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusSent {
		t.Fatalf("expected still sent after partial payment, got %s", got.Status)
	}
	if !got.BalanceDue.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected balance 600, got %s", got.BalanceDue)
	}

	got, err = f.svc.RecordPayment(context.Background(), inv.ID, decimal.NewFromInt(600))
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusPaid {
		t.Fatalf("expected paid, got %s", got.Status)
	}
	if !got.BalanceDue.IsZero() {
		t.Fatalf("expected zero balance, got %s", got.BalanceDue)
	}
}

func TestRecordPayment_OverdueInvoiceAccepted(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.seedInvoice(domain.StatusOverdue, 200, nil)

	got, err := f.svc.RecordPayment(context.Background(), inv.ID, decimal.NewFromInt(200))
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusPaid {
		t.Fatalf("expected paid, got %s", got.Status)
	}
}

func TestRecordPayment_Guards(t *testing.T) {
	f := newInvoiceFixture()
	draft := f.seedInvoice(domain.StatusDraft, 200, nil)

	if _, err := f.svc.RecordPayment(context.Background(), draft.ID, decimal.NewFromInt(50)); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for draft, got %v", err)
	}
	sent := f.seedInvoice(domain.StatusSent, 200, nil)
	if _, err := f.svc.RecordPayment(context.Background(), sent.ID, decimal.Zero); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero amount, got %v", err)
	}
}

func TestCancelInvoice_TerminalStatesRefused(t *testing.T) {
	f := newInvoiceFixture()

	sent := f.seedInvoice(domain.StatusSent, 200, nil)
	got, err := f.svc.CancelInvoice(context.Background(), sent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	paid := f.seedInvoice(domain.StatusPaid, 200, nil)
	if _, err := f.svc.CancelInvoice(context.Background(), paid.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for paid, got %v", err)
	}
	if _, err := f.svc.CancelInvoice(context.Background(), got.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for already cancelled, got %v", err)
	}
}

func TestFlagOverdue_SweepsSentPastDue(t *testing.T) {
	f := newInvoiceFixture()
	f.seedInvoice(domain.StatusSent, 200, func(inv *domain.Invoice) {
		inv.DueDate = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	})
	f.seedInvoice(domain.StatusSent, 200, func(inv *domain.Invoice) {
		inv.DueDate = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	})

	n, err := f.svc.FlagOverdue(context.Background(), time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 flagged, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

func TestLineItems_GroupsByProject(t *testing.T) {
	f := newInvoiceFixture()
	snap := weekSnapshot("snap_1", "employee_1", "client_1", 1500)
	snap.LineItems = []ports.SnapshotLineItem{
		{ProjectID: "project_1", ProjectName: "Project One", ClientID: "client_1", Hours: decimal.NewFromInt(8)},
		{ProjectID: "project_2", ProjectName: "Project Two", ClientID: "client_1", Hours: decimal.NewFromInt(4)},
		{ProjectID: "project_1", ProjectName: "Project One", ClientID: "client_1", Hours: decimal.NewFromInt(8)},
	}
	f.gateway.snapshots = []ports.Snapshot{snap}
	inv := f.seedInvoice(domain.StatusDraft, 1500, func(inv *domain.Invoice) {
		inv.SnapshotRefs = []string{"snap_1"}
	})

	items, err := f.svc.LineItems(context.Background(), inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 grouped rows, got %d", len(items))
	}
	if items[0].ProjectID != "project_1" || !items[0].Hours.Equal(decimal.NewFromInt(16)) {
		t.Fatalf("expected project_1 with 16h first, got %s with %s", items[0].ProjectID, items[0].Hours)
	}
	if !items[0].Amount.Equal(decimal.NewFromInt(1200)) { // 16h x 75
		t.Fatalf("expected amount 1200, got %s", items[0].Amount)
	}
	if items[1].ProjectID != "project_2" {
		t.Fatalf("expected project_2 second, got %s", items[1].ProjectID)
	}
}

func TestDashboardStats(t *testing.T) {
	f := newInvoiceFixture()
	inMonth := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	f.seedInvoice(domain.StatusDraft, 100, nil)
	f.seedInvoice(domain.StatusPendingApproval, 200, nil)
	// Approved, past due, unpaid: outstanding and overdue.
	f.seedInvoice(domain.StatusApproved, 400, func(inv *domain.Invoice) {
		inv.CreatedAt = inMonth
		inv.DueDate = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	})
	// Sent, not yet due: outstanding only.
	f.seedInvoice(domain.StatusSent, 300, func(inv *domain.Invoice) {
		inv.CreatedAt = inMonth
	})
	f.seedInvoice(domain.StatusPaid, 500, func(inv *domain.Invoice) {
		inv.CreatedAt = inMonth
		inv.PaymentsReceived = decimal.NewFromInt(500)
		inv.RecalculateTotals()
	})
	// Sent last month: outstanding, but outside this month's revenue.
	f.seedInvoice(domain.StatusSent, 1000, func(inv *domain.Invoice) {
		inv.CreatedAt = time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	})

	stats, err := f.svc.DashboardStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalInvoices != 6 {
		t.Errorf("expected 6 invoices, got %d", stats.TotalInvoices)
	}
	if stats.DraftInvoices != 1 || stats.PendingApproval != 1 || stats.ApprovedInvoices != 1 {
		t.Errorf("unexpected status counts: %+v", stats)
	}
	if !stats.TotalOutstanding.Equal(decimal.NewFromInt(1700)) {
		t.Errorf("expected outstanding 1700, got %s", stats.TotalOutstanding)
	}
	if stats.OverdueInvoices != 1 {
		t.Errorf("expected 1 overdue, got %d", stats.OverdueInvoices)
	}
	if !stats.TotalRevenueMonth.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("expected month revenue 1200, got %s", stats.TotalRevenueMonth)
	}
}

func TestListInvoices_PaginationDefaults(t *testing.T) {
	f := newInvoiceFixture()
	for i := 0; i < 25; i++ {
		f.seedInvoice(domain.StatusDraft, 100, nil)
	}

	page, total, err := f.svc.ListInvoices(context.Background(), ports.InvoiceFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 25 {
		t.Fatalf("expected total 25, got %d", total)
	}
	if len(page) != 20 {
		t.Fatalf("expected default page size 20, got %d", len(page))
	}

	page, _, err = f.svc.ListInvoices(context.Background(), ports.InvoiceFilter{Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 5 {
		t.Fatalf("expected 5 on page 2, got %d", len(page))
	}
}
