package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type IndexConfig struct {
	CollectionName string
	IndexModel     mongo.IndexModel
}

var requiredIndexes = []IndexConfig{
	{
		CollectionName: attemptsCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "attempt_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_attempt_id_unique"),
		},
	},
	// Buyer history, newest first
	{
		CollectionName: attemptsCollection,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "buyer_email", Value: 1},
				{Key: "started_at", Value: -1},
			},
			Options: options.Index().SetName("idx_buyer_attempts"),
		},
	},
	// Reconciliation of partial submissions
	{
		CollectionName: attemptsCollection,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "submitted", Value: 1},
				{Key: "started_at", Value: -1},
			},
			Options: options.Index().SetName("idx_status_submitted"),
		},
	},
}

func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	for _, idxConfig := range requiredIndexes {
		indexName, err := db.Collection(idxConfig.CollectionName).Indexes().CreateOne(ctx, idxConfig.IndexModel)
		if err != nil {
			return fmt.Errorf("create index on %s: %w", idxConfig.CollectionName, err)
		}
		logger.Debug("index ready", zap.String("index", indexName), zap.String("collection", idxConfig.CollectionName))
	}
	return nil
}
