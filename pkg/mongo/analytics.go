package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type AttemptSummary struct {
	Status        string `json:"status" bson:"_id"`
	Attempts      int    `json:"attempts" bson:"attempts"`
	OrdersCreated int    `json:"orders_created" bson:"orders_created"`
	Partial       int    `json:"partial" bson:"partial"`
	AuthFailures  int    `json:"auth_failures" bson:"auth_failures"`
}

// SummarizeAttempts groups attempts by status. Partial counts failed attempts
// that still created at least one order and may need reconciliation.
func (j *Journal) SummarizeAttempts(ctx context.Context) ([]AttemptSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	pipeline := bson.A{
		bson.D{
			{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$status"},
				{Key: "attempts", Value: bson.D{{Key: "$sum", Value: 1}}},
				{Key: "orders_created", Value: bson.D{{Key: "$sum", Value: "$submitted"}}},
				{Key: "partial", Value: bson.D{{Key: "$sum", Value: bson.D{
					{Key: "$cond", Value: bson.A{
						bson.D{{Key: "$and", Value: bson.A{
							bson.D{{Key: "$eq", Value: bson.A{"$status", "failed"}}},
							bson.D{{Key: "$gt", Value: bson.A{"$submitted", 0}}},
						}}},
						1,
						0,
					}},
				}}}},
				{Key: "auth_failures", Value: bson.D{{Key: "$sum", Value: bson.D{
					{Key: "$cond", Value: bson.A{"$auth_failure", 1, 0}},
				}}}},
			}},
		},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := j.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var summaries []AttemptSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}
