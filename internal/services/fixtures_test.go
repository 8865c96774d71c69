package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		JwtSecret:         "test-secret",
		JwtTTL:            time.Hour,
		PasswordMinLength: 6,
		PaymentCurrency:   "usd",
		AppName:           "TravelBid",
	}
}

// setupMarketDB returns a clean database with the indexes in place.
func setupMarketDB(t *testing.T, dbName string) *mongo.Database {
	t.Helper()
	database := utils.SetupTestDB(t, dbName,
		usersCollection, tripsCollection, bidsCollection, messagesCollection,
		configCollection, apiConfigCollection, "payment_intents")
	require.NoError(t, EnsureIndexes(context.Background(), database))
	return database
}

type notification struct {
	event BidEvent
	trip  primitive.ObjectID
	bid   primitive.ObjectID
}

// recordingNotifier keeps every notification for later assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) NotifyBid(_ context.Context, event BidEvent, trip *models.Trip, bid *models.Bid) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{event: event, trip: trip.ID, bid: bid.ID})
}

func (n *recordingNotifier) count(event BidEvent) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.event == event {
			c++
		}
	}
	return c
}

func mustRegister(t *testing.T, users IUserService, name, email string, role models.Role) *models.User {
	t.Helper()
	user, _, err := users.Register(context.Background(), name, email, "secret123", role)
	require.NoError(t, err)
	return user
}

func mustCreateTrip(t *testing.T, trips ITripService, traveler primitive.ObjectID, start time.Time) *models.Trip {
	t.Helper()
	trip, err := trips.CreateTrip(context.Background(), traveler, TripInput{
		Title:       "Lisbon week",
		Destination: "Lisbon, Portugal",
		StartDate:   start,
		EndDate:     start.Add(7 * 24 * time.Hour),
		Budget:      2500,
	})
	require.NoError(t, err)
	return trip
}

func loadStats(t *testing.T, database *mongo.Database, agentID primitive.ObjectID) models.AgentStats {
	t.Helper()
	var user models.User
	require.NoError(t, database.Collection(usersCollection).FindOne(context.Background(), bson.M{"_id": agentID}).Decode(&user))
	return user.Stats
}

func loadTrip(t *testing.T, database *mongo.Database, tripID primitive.ObjectID) models.Trip {
	t.Helper()
	var trip models.Trip
	require.NoError(t, database.Collection(tripsCollection).FindOne(context.Background(), bson.M{"_id": tripID}).Decode(&trip))
	return trip
}
