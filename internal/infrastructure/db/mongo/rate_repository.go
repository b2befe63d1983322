package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

const collectionBillingRates = "billing_rates"

type RateRepository struct {
	col *mongo.Collection
}

func NewRateRepository(db *mongo.Database) *RateRepository {
	return &RateRepository{col: db.Collection(collectionBillingRates)}
}

type rateDoc struct {
	ID               primitive.ObjectID    `bson:"_id,omitempty"`
	EntityType       string                `bson:"entity_type"`
	EntityID         string                `bson:"entity_id,omitempty"`
	RateType         string                `bson:"rate_type"`
	StandardRate     primitive.Decimal128  `bson:"standard_rate"`
	OvertimeRate     *primitive.Decimal128 `bson:"overtime_rate,omitempty"`
	HolidayRate      *primitive.Decimal128 `bson:"holiday_rate,omitempty"`
	WeekendRate      *primitive.Decimal128 `bson:"weekend_rate,omitempty"`
	EffectiveFrom    time.Time             `bson:"effective_from"`
	EffectiveTo      *time.Time            `bson:"effective_to,omitempty"`
	MinimumIncrement int                   `bson:"minimum_increment"`
	RoundingRule     string                `bson:"rounding_rule"`
	Description      string                `bson:"description,omitempty"`
	IsActive         bool                  `bson:"is_active"`
	CreatedBy        string                `bson:"created_by"`
	CreatedAt        time.Time             `bson:"created_at"`
	UpdatedAt        time.Time             `bson:"updated_at"`
	DeletedAt        *time.Time            `bson:"deleted_at,omitempty"`
}

func toRateDoc(r *domain.BillingRate) (*rateDoc, error) {
	standard, err := toDecimal128(r.StandardRate)
	if err != nil {
		return nil, err
	}
	overtime, err := toDecimal128Ptr(r.OvertimeRate)
	if err != nil {
		return nil, err
	}
	holiday, err := toDecimal128Ptr(r.HolidayRate)
	if err != nil {
		return nil, err
	}
	weekend, err := toDecimal128Ptr(r.WeekendRate)
	if err != nil {
		return nil, err
	}

	doc := &rateDoc{
		EntityType:       string(r.EntityType),
		EntityID:         r.EntityID,
		RateType:         string(r.RateType),
		StandardRate:     standard,
		OvertimeRate:     overtime,
		HolidayRate:      holiday,
		WeekendRate:      weekend,
		EffectiveFrom:    r.EffectiveFrom,
		EffectiveTo:      r.EffectiveTo,
		MinimumIncrement: r.MinimumIncrement,
		RoundingRule:     string(r.RoundingRule),
		Description:      r.Description,
		IsActive:         r.IsActive,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		DeletedAt:        r.DeletedAt,
	}
	if r.ID != "" {
		oid, err := primitive.ObjectIDFromHex(r.ID)
		if err != nil {
			return nil, domain.ErrRateRecordNotFound
		}
		doc.ID = oid
	}
	return doc, nil
}

func (d *rateDoc) toDomain() (*domain.BillingRate, error) {
	standard, err := fromDecimal128(d.StandardRate)
	if err != nil {
		return nil, err
	}
	overtime, err := fromDecimal128Ptr(d.OvertimeRate)
	if err != nil {
		return nil, err
	}
	holiday, err := fromDecimal128Ptr(d.HolidayRate)
	if err != nil {
		return nil, err
	}
	weekend, err := fromDecimal128Ptr(d.WeekendRate)
	if err != nil {
		return nil, err
	}

	return &domain.BillingRate{
		ID:               d.ID.Hex(),
		EntityType:       domain.EntityType(d.EntityType),
		EntityID:         d.EntityID,
		RateType:         domain.RateType(d.RateType),
		StandardRate:     standard,
		OvertimeRate:     overtime,
		HolidayRate:      holiday,
		WeekendRate:      weekend,
		EffectiveFrom:    d.EffectiveFrom,
		EffectiveTo:      d.EffectiveTo,
		MinimumIncrement: d.MinimumIncrement,
		RoundingRule:     domain.RoundingRule(d.RoundingRule),
		Description:      d.Description,
		IsActive:         d.IsActive,
		CreatedBy:        d.CreatedBy,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		DeletedAt:        d.DeletedAt,
	}, nil
}

// Insert persists a new rate document and writes the generated id back.
func (r *RateRepository) Insert(ctx context.Context, rate *domain.BillingRate) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := toRateDoc(rate)
	if err != nil {
		return err
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rate.ID = oid.Hex()
	}
	return nil
}

// FindByID retrieves a non-deleted rate by id.
func (r *RateRepository) FindByID(ctx context.Context, id string) (*domain.BillingRate, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrRateRecordNotFound
	}

	var doc rateDoc
	err = r.col.FindOne(ctx, bson.M{"_id": oid, "deleted_at": nil}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRateRecordNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

// FindActive retrieves the active rate covering the query date for a scope.
// When overlapping windows exist the most recently effective one wins.
func (r *RateRepository) FindActive(ctx context.Context, q ports.ActiveRateQuery) (*domain.BillingRate, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"entity_type":    string(q.EntityType),
		"is_active":      true,
		"deleted_at":     nil,
		"effective_from": bson.M{"$lte": q.Date},
		"$or": []bson.M{
			{"effective_to": nil},
			{"effective_to": bson.M{"$gte": q.Date}},
		},
	}
	if q.EntityType != domain.EntityGlobal {
		filter["entity_id"] = q.EntityID
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "effective_from", Value: -1}})
	var doc rateDoc
	err := r.col.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRateRecordNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

// ExistsOverlapping reports whether an active rate for the scope intersects
// the window [from, to]. A nil to means open-ended.
func (r *RateRepository) ExistsOverlapping(ctx context.Context, entityType domain.EntityType, entityID string, from time.Time, to *time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"entity_type": string(entityType),
		"entity_id":   entityID,
		"is_active":   true,
		"deleted_at":  nil,
		"$or": []bson.M{
			{"effective_to": nil},
			{"effective_to": bson.M{"$gte": from}},
		},
	}
	if to != nil {
		filter["effective_from"] = bson.M{"$lte": *to}
	}

	n, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByEntity returns the non-deleted version history for a scope, most
// recently effective first.
func (r *RateRepository) ListByEntity(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.BillingRate, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"entity_type": string(entityType),
		"entity_id":   entityID,
		"deleted_at":  nil,
	}
	opts := options.Find().SetSort(bson.D{{Key: "effective_from", Value: -1}})

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*domain.BillingRate
	for cursor.Next(ctx) {
		var doc rateDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		rate, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	return out, cursor.Err()
}

// Deactivate closes a rate version's validity window.
func (r *RateRepository) Deactivate(ctx context.Context, id string, effectiveTo time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrRateRecordNotFound
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "deleted_at": nil},
		bson.M{"$set": bson.M{
			"is_active":    false,
			"effective_to": effectiveTo,
			"updated_at":   effectiveTo,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrRateRecordNotFound
	}
	return nil
}

// SoftDelete marks a rate deleted; history queries exclude it afterwards.
func (r *RateRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrRateRecordNotFound
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "deleted_at": nil},
		bson.M{"$set": bson.M{
			"is_active":  false,
			"deleted_at": at,
			"updated_at": at,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrRateRecordNotFound
	}
	return nil
}

// EnsureIndexes creates the indexes backing resolution and history queries.
func (r *RateRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "entity_type", Value: 1},
			{Key: "entity_id", Value: 1},
			{Key: "is_active", Value: 1},
			{Key: "effective_from", Value: -1},
		}},
		{Keys: bson.D{{Key: "effective_to", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
