package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gigconnect/gigconnect/internal/models"
)

// MongoTicketRepository stores each ticket as one document. Save is a
// single-document replace filtered on the expected version.
type MongoTicketRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoTicketRepository(coll *mongo.Collection) *MongoTicketRepository {
	return &MongoTicketRepository{coll: coll, now: time.Now}
}

// EnsureIndexes creates the participant lookup indexes.
func (r *MongoTicketRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sellerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "buyerId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("repository: ensure ticket indexes: %w", err)
	}
	return nil
}

func (r *MongoTicketRepository) FindByID(ctx context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find ticket %s: %w", id, err)
	}
	return &t, nil
}

func (r *MongoTicketRepository) FindByParticipant(ctx context.Context, userID string) ([]*models.Ticket, error) {
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "sellerId", Value: userID}},
		bson.D{{Key: "buyerId", Value: userID}},
	}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("repository: find tickets for %s: %w", userID, err)
	}
	defer cur.Close(ctx)

	out := make([]*models.Ticket, 0)
	for cur.Next(ctx) {
		var t models.Ticket
		if err := cur.Decode(&t); err != nil {
			return nil, fmt.Errorf("repository: decode ticket: %w", err)
		}
		out = append(out, &t)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterate tickets: %w", err)
	}
	return out, nil
}

func (r *MongoTicketRepository) Insert(ctx context.Context, t *models.Ticket) error {
	if t.Version == 0 {
		t.Version = 1
	}
	if _, err := r.coll.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrTicketExists
		}
		return fmt.Errorf("repository: insert ticket %s: %w", t.ID, err)
	}
	return nil
}

// Save replaces the document only if its version still matches t.Version.
func (r *MongoTicketRepository) Save(ctx context.Context, t *models.Ticket) error {
	expected := t.Version
	next := t.Clone()
	next.Version = expected + 1
	next.UpdatedAt = r.now()

	filter := bson.D{{Key: "_id", Value: t.ID}, {Key: "version", Value: expected}}
	res, err := r.coll.ReplaceOne(ctx, filter, next)
	if err != nil {
		return fmt.Errorf("repository: save ticket %s: %w", t.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: t.ID}})
		if err != nil {
			return fmt.Errorf("repository: save ticket %s: %w", t.ID, err)
		}
		if n == 0 {
			return ErrTicketNotFound
		}
		return ErrVersionConflict
	}

	t.Version = next.Version
	t.UpdatedAt = next.UpdatedAt
	return nil
}
