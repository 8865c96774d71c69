// Command seed loads users, trips and bids from a YAML fixture into MongoDB
// for local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Meekal-Jamil/travelbid/internal/auth"
	"github.com/Meekal-Jamil/travelbid/internal/cache"
	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/db"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// Collections dropped by --reset.
var seededCollections = []string{"users", "trips", "bids", "messages", "payment_intents", "configuration"}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	fixturePath := flagSet.StringP("file", "f", "cmd/seed/fixture.example.yaml", "YAML fixture to load")
	reset := flagSet.Bool("reset", false, "drop seeded collections before loading")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load("seed")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.IsProduction() {
		return errors.New("refusing to seed with APP_ENV=production")
	}

	fixture, err := loadFixture(*fixturePath)
	if err != nil {
		return err
	}

	client, database, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.DisconnectDB(client); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *reset {
		for _, name := range seededCollections {
			if err := database.Collection(name).Drop(ctx); err != nil {
				return fmt.Errorf("failed to drop %s: %w", name, err)
			}
		}
		log.Printf("Dropped %d collections", len(seededCollections))
	}
	if err := services.EnsureIndexes(ctx, database); err != nil {
		return err
	}

	// Running servers reload settings when Redis is reachable; otherwise
	// they pick the values up on their next start.
	var rdb *redis.Client
	if len(fixture.Settings) > 0 {
		if rdb, err = cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
			log.Printf("WARNING: %v. Settings will not be broadcast.", err)
			rdb = nil
		} else {
			defer func() {
				if err := cache.DisconnectRedis(rdb); err != nil {
					log.Printf("Error disconnecting from Redis: %v", err)
				}
			}()
		}
	}

	summary, err := newSeeder(database, cfg, rdb).load(ctx, fixture)
	if err != nil {
		return err
	}
	log.Printf("Seed complete: %d settings written, %d users created, %d trips created, %d bids placed",
		summary.settings, summary.users, summary.trips, summary.bids)
	return nil
}

type seedSummary struct {
	settings, users, trips, bids int
}

type seeder struct {
	db       *mongo.Database
	settings services.ISettingsService
	users    services.IUserService
	trips    services.ITripService
	bids     services.IBidService
}

// newSeeder accepts a nil rdb.
func newSeeder(database *mongo.Database, cfg *config.Config, rdb *redis.Client) *seeder {
	return &seeder{
		db:       database,
		settings: services.NewSettingsService(database, cfg, rdb),
		users:    services.NewUserService(database, cfg),
		trips:    services.NewTripService(database, nil, nil),
		bids:     services.NewBidService(database, nil),
	}
}

// load is safe to run twice: settings are upserted, existing users are
// reused and a trip whose traveler already has one with the same title is
// skipped with its bids.
func (s *seeder) load(ctx context.Context, f *Fixture) (seedSummary, error) {
	var sum seedSummary
	for _, st := range f.Settings {
		if err := s.settings.SetValue(ctx, st.Key, st.Value, st.Public); err != nil {
			return sum, err
		}
		sum.settings++
	}

	ids := make(map[string]primitive.ObjectID, len(f.Users))

	for _, u := range f.Users {
		id, created, err := s.ensureUser(ctx, u)
		if err != nil {
			return sum, err
		}
		ids[u.Email] = id
		if created {
			sum.users++
		}
	}

	for _, t := range f.Trips {
		travelerID := ids[t.Traveler]
		n, err := s.db.Collection("trips").CountDocuments(ctx, bson.M{"traveler": travelerID, "title": t.Title})
		if err != nil {
			return sum, fmt.Errorf("failed to check trip %q: %w", t.Title, err)
		}
		if n > 0 {
			log.Printf("Trip %q already exists, skipping", t.Title)
			continue
		}

		start, end, _ := t.dates()
		trip, err := s.trips.CreateTrip(ctx, travelerID, services.TripInput{
			Title:       t.Title,
			Destination: t.Destination,
			StartDate:   start,
			EndDate:     end,
			Budget:      t.Budget,
			Preferences: t.Preferences,
			Description: t.Description,
		})
		if err != nil {
			return sum, fmt.Errorf("trip %q: %w", t.Title, err)
		}
		sum.trips++

		for _, b := range t.Bids {
			if _, err := s.bids.SubmitBid(ctx, ids[b.Agent], trip.ID, b.Price, b.Services); err != nil {
				return sum, fmt.Errorf("bid by %s on %q: %w", b.Agent, t.Title, err)
			}
			sum.bids++
		}
	}
	return sum, nil
}

func (s *seeder) ensureUser(ctx context.Context, u UserFixture) (primitive.ObjectID, bool, error) {
	var existing models.User
	err := s.db.Collection("users").FindOne(ctx, bson.M{"email": u.Email}).Decode(&existing)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return primitive.NilObjectID, false, fmt.Errorf("failed to look up %s: %w", u.Email, err)
	}

	if u.Role.SelfAssignable() {
		user, _, err := s.users.Register(ctx, u.Name, u.Email, u.Password, u.Role)
		if err != nil {
			return primitive.NilObjectID, false, fmt.Errorf("user %s: %w", u.Email, err)
		}
		return user.ID, true, nil
	}

	// Admins cannot register through the API.
	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return primitive.NilObjectID, false, err
	}
	now := time.Now().UTC()
	admin := &models.User{
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: hash,
		Role:         u.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = db.Try(func() error {
		admin.GenID()
		_, insertErr := s.db.Collection("users").InsertOne(ctx, admin)
		return insertErr
	})
	if err != nil {
		return primitive.NilObjectID, false, fmt.Errorf("failed to insert admin %s: %w", u.Email, err)
	}
	return admin.ID, true, nil
}
