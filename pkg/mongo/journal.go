package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

// Journal stores one document per checkout attempt.
type Journal struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewJournal(db *mongo.Database) *Journal {
	return &Journal{collection: db.Collection(attemptsCollection), timeout: 5 * time.Second}
}

func (j *Journal) Record(ctx context.Context, attempt models.CheckoutAttempt) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if attempt.TotalText == "" {
		attempt.TotalText = attempt.TotalUSD.StringFixed(2)
	}
	if _, err := j.collection.InsertOne(ctx, attempt); err != nil {
		return fmt.Errorf("insert checkout attempt %s: %w", attempt.AttemptID, err)
	}
	return nil
}

// RecentAttempts lists the newest attempts for a buyer.
func (j *Journal) RecentAttempts(ctx context.Context, email string, limit int64) ([]models.CheckoutAttempt, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit)
	cursor, err := j.collection.Find(ctx, bson.D{{Key: "buyer_email", Value: email}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var attempts []models.CheckoutAttempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}
