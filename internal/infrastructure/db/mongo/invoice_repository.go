package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

const collectionInvoices = "invoices"

type InvoiceRepository struct {
	col *mongo.Collection
}

func NewInvoiceRepository(db *mongo.Database) *InvoiceRepository {
	return &InvoiceRepository{col: db.Collection(collectionInvoices)}
}

type expenseDoc struct {
	Description      string               `bson:"description"`
	Amount           primitive.Decimal128 `bson:"amount"`
	Category         string               `bson:"category,omitempty"`
	IsBillable       bool                 `bson:"is_billable"`
	MarkupPercentage primitive.Decimal128 `bson:"markup_percentage"`
}

type fixedFeeDoc struct {
	Description   string               `bson:"description"`
	Amount        primitive.Decimal128 `bson:"amount"`
	MilestoneName string               `bson:"milestone_name,omitempty"`
	ProjectID     string               `bson:"project_id,omitempty"`
}

type billingPeriodDoc struct {
	Start time.Time `bson:"start_date"`
	End   time.Time `bson:"end_date"`
	Type  string    `bson:"period_type"`
}

type invoiceDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	InvoiceNumber string             `bson:"invoice_number"`
	ClientID      string             `bson:"client_id"`
	BillingPeriod billingPeriodDoc   `bson:"billing_period"`
	Status        string             `bson:"status"`

	SnapshotRefs []string      `bson:"timesheet_snapshots,omitempty"`
	Expenses     []expenseDoc  `bson:"expense_entries,omitempty"`
	FixedFees    []fixedFeeDoc `bson:"fixed_fees,omitempty"`

	Subtotal           primitive.Decimal128 `bson:"subtotal"`
	DiscountAmount     primitive.Decimal128 `bson:"discount_amount"`
	DiscountPercentage primitive.Decimal128 `bson:"discount_percentage"`
	TaxRate            primitive.Decimal128 `bson:"tax_rate"`
	TaxAmount          primitive.Decimal128 `bson:"tax_amount"`
	TotalAmount        primitive.Decimal128 `bson:"total_amount"`
	Currency           string               `bson:"currency"`

	PaymentTermsDays  int                  `bson:"payment_terms_days"`
	DueDate           time.Time            `bson:"due_date"`
	LateFeePercentage primitive.Decimal128 `bson:"late_fee_percentage"`

	CreatedBy  string     `bson:"created_by"`
	ApprovedBy string     `bson:"approved_by,omitempty"`
	ApprovedAt *time.Time `bson:"approved_at,omitempty"`
	SentAt     *time.Time `bson:"sent_at,omitempty"`

	Notes          string `bson:"notes,omitempty"`
	ClientPONumber string `bson:"client_po_number,omitempty"`

	PaymentsReceived primitive.Decimal128 `bson:"payments_received"`
	BalanceDue       primitive.Decimal128 `bson:"balance_due"`

	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty"`
}

func toInvoiceDoc(inv *domain.Invoice) (*invoiceDoc, error) {
	doc := &invoiceDoc{
		InvoiceNumber: inv.InvoiceNumber,
		ClientID:      inv.ClientID,
		BillingPeriod: billingPeriodDoc{
			Start: inv.BillingPeriod.Start,
			End:   inv.BillingPeriod.End,
			Type:  string(inv.BillingPeriod.Type),
		},
		Status:           string(inv.Status),
		SnapshotRefs:     inv.SnapshotRefs,
		Currency:         inv.Currency,
		PaymentTermsDays: inv.PaymentTermsDays,
		DueDate:          inv.DueDate,
		CreatedBy:        inv.CreatedBy,
		ApprovedBy:       inv.ApprovedBy,
		ApprovedAt:       inv.ApprovedAt,
		SentAt:           inv.SentAt,
		Notes:            inv.Notes,
		ClientPONumber:   inv.ClientPONumber,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
		DeletedAt:        inv.DeletedAt,
	}
	if inv.ID != "" {
		oid, err := primitive.ObjectIDFromHex(inv.ID)
		if err != nil {
			return nil, domain.ErrInvoiceNotFound
		}
		doc.ID = oid
	}

	var err error
	for _, pair := range []struct {
		dst *primitive.Decimal128
		src decimal.Decimal
	}{
		{&doc.Subtotal, inv.Subtotal},
		{&doc.DiscountAmount, inv.DiscountAmount},
		{&doc.DiscountPercentage, inv.DiscountPercentage},
		{&doc.TaxRate, inv.TaxRate},
		{&doc.TaxAmount, inv.TaxAmount},
		{&doc.TotalAmount, inv.TotalAmount},
		{&doc.LateFeePercentage, inv.LateFeePercentage},
		{&doc.PaymentsReceived, inv.PaymentsReceived},
		{&doc.BalanceDue, inv.BalanceDue},
	} {
		if *pair.dst, err = toDecimal128(pair.src); err != nil {
			return nil, err
		}
	}

	for _, e := range inv.Expenses {
		amount, err := toDecimal128(e.Amount)
		if err != nil {
			return nil, err
		}
		markup, err := toDecimal128(e.MarkupPercentage)
		if err != nil {
			return nil, err
		}
		doc.Expenses = append(doc.Expenses, expenseDoc{
			Description:      e.Description,
			Amount:           amount,
			Category:         e.Category,
			IsBillable:       e.IsBillable,
			MarkupPercentage: markup,
		})
	}
	for _, f := range inv.FixedFees {
		amount, err := toDecimal128(f.Amount)
		if err != nil {
			return nil, err
		}
		doc.FixedFees = append(doc.FixedFees, fixedFeeDoc{
			Description:   f.Description,
			Amount:        amount,
			MilestoneName: f.MilestoneName,
			ProjectID:     f.ProjectID,
		})
	}
	return doc, nil
}

func (d *invoiceDoc) toDomain() (*domain.Invoice, error) {
	inv := &domain.Invoice{
		ID:            d.ID.Hex(),
		InvoiceNumber: d.InvoiceNumber,
		ClientID:      d.ClientID,
		BillingPeriod: domain.BillingPeriod{
			Start: d.BillingPeriod.Start,
			End:   d.BillingPeriod.End,
			Type:  domain.PeriodType(d.BillingPeriod.Type),
		},
		Status:           domain.InvoiceStatus(d.Status),
		SnapshotRefs:     d.SnapshotRefs,
		Currency:         d.Currency,
		PaymentTermsDays: d.PaymentTermsDays,
		DueDate:          d.DueDate,
		CreatedBy:        d.CreatedBy,
		ApprovedBy:       d.ApprovedBy,
		ApprovedAt:       d.ApprovedAt,
		SentAt:           d.SentAt,
		Notes:            d.Notes,
		ClientPONumber:   d.ClientPONumber,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		DeletedAt:        d.DeletedAt,
	}

	var err error
	for _, pair := range []struct {
		dst *decimal.Decimal
		src primitive.Decimal128
	}{
		{&inv.Subtotal, d.Subtotal},
		{&inv.DiscountAmount, d.DiscountAmount},
		{&inv.DiscountPercentage, d.DiscountPercentage},
		{&inv.TaxRate, d.TaxRate},
		{&inv.TaxAmount, d.TaxAmount},
		{&inv.TotalAmount, d.TotalAmount},
		{&inv.LateFeePercentage, d.LateFeePercentage},
		{&inv.PaymentsReceived, d.PaymentsReceived},
		{&inv.BalanceDue, d.BalanceDue},
	} {
		if *pair.dst, err = fromDecimal128(pair.src); err != nil {
			return nil, err
		}
	}

	for _, e := range d.Expenses {
		amount, err := fromDecimal128(e.Amount)
		if err != nil {
			return nil, err
		}
		markup, err := fromDecimal128(e.MarkupPercentage)
		if err != nil {
			return nil, err
		}
		inv.Expenses = append(inv.Expenses, domain.ExpenseLineItem{
			Description:      e.Description,
			Amount:           amount,
			Category:         e.Category,
			IsBillable:       e.IsBillable,
			MarkupPercentage: markup,
		})
	}
	for _, f := range d.FixedFees {
		amount, err := fromDecimal128(f.Amount)
		if err != nil {
			return nil, err
		}
		inv.FixedFees = append(inv.FixedFees, domain.FixedFeeLineItem{
			Description:   f.Description,
			Amount:        amount,
			MilestoneName: f.MilestoneName,
			ProjectID:     f.ProjectID,
		})
	}
	return inv, nil
}

// Insert persists a new invoice. The unique index on invoice_number is the
// authority on number allocation; a duplicate key maps to the domain error
// so the caller can re-allocate.
func (r *InvoiceRepository) Insert(ctx context.Context, inv *domain.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := toInvoiceDoc(inv)
	if err != nil {
		return err
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateInvoiceNumber
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		inv.ID = oid.Hex()
	}
	return nil
}

// FindByID retrieves a non-deleted invoice by id.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvoiceNotFound
	}

	var doc invoiceDoc
	err = r.col.FindOne(ctx, bson.M{"_id": oid, "deleted_at": nil}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

// Update replaces the stored invoice document.
func (r *InvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := toInvoiceDoc(inv)
	if err != nil {
		return err
	}
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "deleted_at": nil}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// List returns a page of invoices matching the filter, newest first, plus
// the total match count.
func (r *InvoiceRepository) List(ctx context.Context, filter ports.InvoiceFilter) ([]*domain.Invoice, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{"deleted_at": nil}
	if filter.ClientID != "" {
		query["client_id"] = filter.ClientID
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var out []*domain.Invoice
	for cursor.Next(ctx) {
		var doc invoiceDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, err
		}
		inv, err := doc.toDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, cursor.Err()
}

// MaxInvoiceSequence scans the year's invoice numbers for the highest
// allocated sequence. Deleted invoices keep their number so the sequence
// never regresses.
func (r *InvoiceRepository) MaxInvoiceSequence(ctx context.Context, year int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	prefix := domain.InvoiceNumberPrefixFor(year)
	filter := bson.M{"invoice_number": bson.M{"$regex": "^" + prefix}}
	opts := options.Find().
		SetSort(bson.D{{Key: "invoice_number", Value: -1}}).
		SetProjection(bson.M{"invoice_number": 1})

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	// Lexicographic order only matches numeric order while the zero padding
	// holds, so scan the full year instead of trusting the first row.
	max := 0
	for cursor.Next(ctx) {
		var doc struct {
			InvoiceNumber string `bson:"invoice_number"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return 0, err
		}
		if seq := domain.ParseInvoiceSequence(doc.InvoiceNumber, year); seq > max {
			max = seq
		}
	}
	return max, cursor.Err()
}

// CountByStatus groups non-deleted invoices by status.
func (r *InvoiceRepository) CountByStatus(ctx context.Context) (map[domain.InvoiceStatus]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"deleted_at": nil}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[domain.InvoiceStatus]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[domain.InvoiceStatus(row.Status)] = row.Count
	}
	return counts, cursor.Err()
}

// OutstandingBalance sums balance_due over sent and approved invoices that
// still carry a balance.
func (r *InvoiceRepository) OutstandingBalance(ctx context.Context) (decimal.Decimal, error) {
	zero, err := toDecimal128(decimal.Zero)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return r.sumDecimal(ctx, bson.M{
		"deleted_at":  nil,
		"status":      bson.M{"$in": []string{string(domain.StatusSent), string(domain.StatusApproved)}},
		"balance_due": bson.M{"$gt": zero},
	}, "$balance_due")
}

// CountOverdue counts sent and approved invoices past their due date with a
// balance outstanding.
func (r *InvoiceRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	zero, err := toDecimal128(decimal.Zero)
	if err != nil {
		return 0, err
	}
	return r.col.CountDocuments(ctx, bson.M{
		"deleted_at":  nil,
		"status":      bson.M{"$in": []string{string(domain.StatusSent), string(domain.StatusApproved)}},
		"due_date":    bson.M{"$lt": now},
		"balance_due": bson.M{"$gt": zero},
	})
}

// RevenueSince sums the totals of approved, sent, and paid invoices created
// on or after since.
func (r *InvoiceRepository) RevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	return r.sumDecimal(ctx, bson.M{
		"deleted_at": nil,
		"status": bson.M{"$in": []string{
			string(domain.StatusApproved), string(domain.StatusSent), string(domain.StatusPaid),
		}},
		"created_at": bson.M{"$gte": since},
	}, "$total_amount")
}

func (r *InvoiceRepository) sumDecimal(ctx context.Context, match bson.M, field string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": field}}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.Zero, nil
	}
	var row struct {
		Total primitive.Decimal128 `bson:"total"`
	}
	if err := cursor.Decode(&row); err != nil {
		return decimal.Decimal{}, err
	}
	return fromDecimal128(row.Total)
}

// MarkOverdueBefore flips sent invoices with an outstanding balance past
// their due date to overdue.
func (r *InvoiceRepository) MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	zero, err := toDecimal128(decimal.Zero)
	if err != nil {
		return 0, err
	}
	res, err := r.col.UpdateMany(ctx,
		bson.M{
			"deleted_at":  nil,
			"status":      string(domain.StatusSent),
			"due_date":    bson.M{"$lt": now},
			"balance_due": bson.M{"$gt": zero},
		},
		bson.M{"$set": bson.M{
			"status":     string(domain.StatusOverdue),
			"updated_at": now,
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// EnsureIndexes creates the invoice indexes. The unique index on
// invoice_number is the final authority on number allocation.
func (r *InvoiceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "invoice_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
