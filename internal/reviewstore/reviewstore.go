// Package reviewstore is an optional Mongo-backed audit log of ARBITER and
// low-margin CALCULATED outcomes, for operators who route uncertain
// matches to a human review queue downstream of the batch cascade. The
// cascade itself never blocks on this; it is a side-channel write.
package reviewstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/supplier-resolver/resolver/internal/domain"
)

// Status is the review workflow state for a queued result.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Entry is one persisted review item: the cascade's own result plus the
// alternatives it considered, pending a human decision.
type Entry struct {
	InputID    string             `bson:"input_id" json:"input_id"`
	Result     domain.MatchResult `bson:"result" json:"result"`
	Status     Status             `bson:"status" json:"status"`
	ReviewerID *string            `bson:"reviewer_id,omitempty" json:"reviewer_id,omitempty"`
	ReviewedAt *time.Time         `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// NewEntry builds a pending review entry for result.
func NewEntry(result domain.MatchResult) Entry {
	return Entry{InputID: result.InputID, Result: result, Status: StatusPending, CreatedAt: time.Now()}
}

// Store is the Mongo-backed review queue.
type Store struct {
	collection *mongo.Collection
}

// Open connects to mongoURL and returns a Store bound to the review
// collection in database dbName.
func Open(ctx context.Context, mongoURL, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &Store{collection: client.Database(dbName).Collection("reviews")}, nil
}

// Enqueue inserts a new review entry. Callers typically call this only for
// method=ARBITER results, or CALCULATED results close to the ARBITER
// threshold, since the rest are confident enough not to need review.
func (s *Store) Enqueue(ctx context.Context, entry Entry) error {
	_, err := s.collection.InsertOne(ctx, entry)
	return err
}

// Pending returns up to limit entries awaiting review, oldest first.
func (s *Store) Pending(ctx context.Context, limit int64) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit)
	cur, err := s.collection.Find(ctx, bson.M{"status": StatusPending}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Entry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decide records a human reviewer's verdict for inputID.
func (s *Store) Decide(ctx context.Context, inputID string, status Status, reviewerID string) error {
	now := time.Now()
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"input_id": inputID},
		bson.M{"$set": bson.M{"status": status, "reviewer_id": reviewerID, "reviewed_at": now}},
	)
	return err
}
