package services

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EmailIndexName is the unique index that rejects duplicate registrations.
const EmailIndexName = "email_1"

var collectionIndexes = map[string][]mongo.IndexModel{
	usersCollection: {
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(EmailIndexName).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("role_1"),
		},
	},
	tripsCollection: {
		{
			Keys:    bson.D{{Key: "traveler", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("traveler_1_created_at_-1"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "start_date", Value: 1}},
			Options: options.Index().SetName("status_1_start_date_1"),
		},
	},
	bidsCollection: {
		{
			Keys:    bson.D{{Key: "trip", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("trip_1_created_at_1"),
		},
		{
			Keys:    bson.D{{Key: "agent", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("agent_1_status_1"),
		},
		{
			Keys:    bson.D{{Key: "payment_status", Value: 1}, {Key: "paid_at", Value: -1}},
			Options: options.Index().SetName("payment_status_1_paid_at_-1"),
		},
	},
	messagesCollection: {
		{
			Keys:    bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("sender_1_receiver_1_timestamp_1"),
		},
		{
			Keys:    bson.D{{Key: "receiver", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("receiver_1_timestamp_1"),
		},
	},
	apiConfigCollection: {
		{
			Keys:    bson.D{{Key: "method", Value: 1}, {Key: "endpoint", Value: 1}},
			Options: options.Index().SetName("method_1_endpoint_1").SetUnique(true),
		},
	},
	configCollection: {
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetName("key_1").SetUnique(true),
		},
	},
}

// EnsureIndexes creates the indexes the queries rely on. Existing indexes
// with the same definition are left alone.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	for collection, models := range collectionIndexes {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for '%s' collection: %w", collection, err)
		}
	}
	log.Printf("Ensured indexes for %d collections.", len(collectionIndexes))
	return nil
}
