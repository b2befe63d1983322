package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

const collectionSnapshots = "billing_snapshots"

// SnapshotGateway is read-only access to the frozen weekly billing snapshots
// produced by the timesheet approval pipeline.
type SnapshotGateway struct {
	col *mongo.Collection
}

func NewSnapshotGateway(db *mongo.Database) *SnapshotGateway {
	return &SnapshotGateway{col: db.Collection(collectionSnapshots)}
}

type snapshotLineDoc struct {
	ProjectID   string               `bson:"project_id"`
	ProjectName string               `bson:"project_name"`
	ClientID    string               `bson:"client_id"`
	Hours       primitive.Decimal128 `bson:"hours"`
}

type snapshotDoc struct {
	ID             primitive.ObjectID   `bson:"_id"`
	UserID         string               `bson:"user_id"`
	UserName       string               `bson:"user_name"`
	WeekStart      time.Time            `bson:"week_start"`
	WeekEnd        time.Time            `bson:"week_end"`
	BillableAmount primitive.Decimal128 `bson:"billable_amount"`
	HourlyRate     primitive.Decimal128 `bson:"hourly_rate"`
	LineItems      []snapshotLineDoc    `bson:"line_items"`
}

func (d *snapshotDoc) toPort() (ports.Snapshot, error) {
	amount, err := fromDecimal128(d.BillableAmount)
	if err != nil {
		return ports.Snapshot{}, err
	}
	rate, err := fromDecimal128(d.HourlyRate)
	if err != nil {
		return ports.Snapshot{}, err
	}

	snap := ports.Snapshot{
		ID:             d.ID.Hex(),
		UserID:         d.UserID,
		UserName:       d.UserName,
		WeekStart:      d.WeekStart,
		WeekEnd:        d.WeekEnd,
		BillableAmount: amount,
		HourlyRate:     rate,
	}
	for _, item := range d.LineItems {
		hours, err := fromDecimal128(item.Hours)
		if err != nil {
			return ports.Snapshot{}, err
		}
		snap.LineItems = append(snap.LineItems, ports.SnapshotLineItem{
			ProjectID:   item.ProjectID,
			ProjectName: item.ProjectName,
			ClientID:    item.ClientID,
			Hours:       hours,
		})
	}
	return snap, nil
}

// FindSnapshots returns the snapshots whose week falls inside [start, end].
// clientID narrows the query to snapshots carrying at least one line item of
// the client; the workflow engine re-filters per item.
func (g *SnapshotGateway) FindSnapshots(ctx context.Context, start, end time.Time, clientID string) ([]ports.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"week_start": bson.M{"$gte": start},
		"week_end":   bson.M{"$lte": end},
	}
	if clientID != "" {
		filter["line_items.client_id"] = clientID
	}

	opts := options.Find().SetSort(bson.D{{Key: "week_start", Value: 1}})
	return g.find(ctx, filter, opts)
}

// FindSnapshotsByIDs resolves snapshot references, silently skipping ids
// that are malformed or no longer present.
func (g *SnapshotGateway) FindSnapshotsByIDs(ctx context.Context, ids []string) ([]ports.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}

	filter := bson.M{"_id": bson.M{"$in": oids}}
	opts := options.Find().SetSort(bson.D{{Key: "week_start", Value: 1}})
	return g.find(ctx, filter, opts)
}

func (g *SnapshotGateway) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]ports.Snapshot, error) {
	cursor, err := g.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []ports.Snapshot
	for cursor.Next(ctx) {
		var doc snapshotDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		snap, err := doc.toPort()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, cursor.Err()
}
