package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
)

const (
	collectionUsers    = "users"
	collectionProjects = "projects"
	collectionClients  = "clients"
)

// Directory is read-only access to the user, project and client collections
// owned by the surrounding timesheet system. The billing core never writes
// them.
type Directory struct {
	users    *mongo.Collection
	projects *mongo.Collection
	clients  *mongo.Collection
}

func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{
		users:    db.Collection(collectionUsers),
		projects: db.Collection(collectionProjects),
		clients:  db.Collection(collectionClients),
	}
}

// GetUserRole returns the role string for a user id.
func (d *Directory) GetUserRole(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc struct {
		Role string `bson:"role"`
	}
	err := d.users.FindOne(ctx, idFilter(userID)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrValidation
		}
		return "", err
	}
	return doc.Role, nil
}

func (d *Directory) ProjectExists(ctx context.Context, id string) (bool, error) {
	return d.exists(ctx, d.projects, id)
}

func (d *Directory) ClientExists(ctx context.Context, id string) (bool, error) {
	return d.exists(ctx, d.clients, id)
}

func (d *Directory) UserExists(ctx context.Context, id string) (bool, error) {
	return d.exists(ctx, d.users, id)
}

func (d *Directory) exists(ctx context.Context, col *mongo.Collection, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := col.CountDocuments(ctx, idFilter(id))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// idFilter matches by ObjectID when the id parses as one, falling back to a
// string _id for records imported from other systems.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": id}
}
