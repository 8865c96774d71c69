package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Meekal-Jamil/travelbid/internal/db"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/storage"
)

// TripInput carries the traveler-supplied fields of a new trip.
type TripInput struct {
	Title       string
	Destination string
	StartDate   time.Time
	EndDate     time.Time
	Budget      float64
	Preferences string
	Description string
}

// ITripService defines the interface for trip operations.
type ITripService interface {
	CreateTrip(ctx context.Context, travelerID primitive.ObjectID, input TripInput) (*models.Trip, error)
	GetTrip(ctx context.Context, tripID, viewerID primitive.ObjectID, role models.Role) (*models.TripListing, error)
	ListTrips(ctx context.Context, userID primitive.ObjectID, role models.Role) ([]models.TripListing, error)
	SearchTrips(ctx context.Context, search models.TripSearch, viewerID primitive.ObjectID, role models.Role) ([]models.TripListing, error)
	UpdateStatus(ctx context.Context, tripID, userID primitive.ObjectID, status models.TripStatus) (*models.Trip, error)
	RequestImageUpload(ctx context.Context, tripID, userID primitive.ObjectID, filename, contentType string) (string, string, error)
	ConfirmImageUpload(ctx context.Context, tripID, userID primitive.ObjectID, key string) error
	AddImage(ctx context.Context, tripID primitive.ObjectID, key string) error
}

type tripService struct {
	db      *mongo.Database
	ledger  *bidLedger
	storage storage.IS3Storage
}

// NewTripService creates a new TripService. store may be nil when uploads are not configured.
func NewTripService(db *mongo.Database, notifier INotifier, store storage.IS3Storage) ITripService {
	return &tripService{db: db, ledger: newBidLedger(db, notifier), storage: store}
}

func (s *tripService) trips() *mongo.Collection { return s.db.Collection(tripsCollection) }

// CreateTrip stores a new open trip owned by travelerID.
func (s *tripService) CreateTrip(ctx context.Context, travelerID primitive.ObjectID, input TripInput) (*models.Trip, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Destination = strings.TrimSpace(input.Destination)
	switch {
	case input.Title == "":
		return nil, validationError("title is required")
	case input.Destination == "":
		return nil, validationError("destination is required")
	case input.StartDate.IsZero() || input.EndDate.IsZero():
		return nil, validationError("start and end dates are required")
	case input.EndDate.Before(input.StartDate):
		return nil, validationError("end date cannot be before start date")
	case input.Budget <= 0:
		return nil, validationError("budget must be greater than zero")
	}

	now := time.Now().UTC()
	trip := &models.Trip{
		Title:       input.Title,
		Traveler:    travelerID,
		Destination: input.Destination,
		StartDate:   input.StartDate.UTC(),
		EndDate:     input.EndDate.UTC(),
		Budget:      input.Budget,
		Preferences: strings.TrimSpace(input.Preferences),
		Description: strings.TrimSpace(input.Description),
		Status:      models.TripOpen,
		Bids:        []models.Bid{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := db.Try(func() error {
		trip.GenID()
		_, insertErr := s.trips().InsertOne(ctx, trip)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert trip: %w", err)
	}
	return trip, nil
}

// GetTrip returns a trip with its traveler's details. Travelers may only
// read their own trips.
func (s *tripService) GetTrip(ctx context.Context, tripID, viewerID primitive.ObjectID, role models.Role) (*models.TripListing, error) {
	trips, err := s.listings(ctx, bson.M{"_id": tripID}, viewerID, role)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, ErrTripNotFound
	}
	if role == models.RoleTraveler && trips[0].Traveler != viewerID {
		return nil, ErrForbidden
	}
	return &trips[0], nil
}

// ListTrips shows agents and admins every trip and travelers their own.
func (s *tripService) ListTrips(ctx context.Context, userID primitive.ObjectID, role models.Role) ([]models.TripListing, error) {
	filter := bson.M{}
	if role == models.RoleTraveler {
		filter["traveler"] = userID
	}
	return s.listings(ctx, filter, userID, role)
}

// SearchTrips filters trips by destination substring, budget range, status and date window.
func (s *tripService) SearchTrips(ctx context.Context, search models.TripSearch, viewerID primitive.ObjectID, role models.Role) ([]models.TripListing, error) {
	filter := bson.M{}
	if d := strings.TrimSpace(search.Destination); d != "" {
		filter["destination"] = primitive.Regex{Pattern: regexp.QuoteMeta(d), Options: "i"}
	}
	if search.MinBudget != nil || search.MaxBudget != nil {
		budget := bson.M{}
		if search.MinBudget != nil {
			budget["$gte"] = *search.MinBudget
		}
		if search.MaxBudget != nil {
			budget["$lte"] = *search.MaxBudget
		}
		filter["budget"] = budget
	}
	if search.Status != "" {
		if !search.Status.Valid() {
			return nil, validationError("unknown status %q", search.Status)
		}
		filter["status"] = search.Status
	}
	if search.From != nil {
		filter["start_date"] = bson.M{"$gte": search.From.UTC()}
	}
	if search.To != nil {
		filter["end_date"] = bson.M{"$lte": search.To.UTC()}
	}
	return s.listings(ctx, filter, viewerID, role)
}

// listings trims each trip's embedded bids to what the viewer may see:
// admins and the owning traveler get all of them, an agent only their own,
// anyone else none.
func (s *tripService) listings(ctx context.Context, filter bson.M, viewerID primitive.ObjectID, role models.Role) ([]models.TripListing, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
	}
	if role != models.RoleAdmin {
		pipeline = append(pipeline, bson.D{{Key: "$addFields", Value: bson.M{
			"bids": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$bids", bson.A{}}},
				"as":    "bid",
				"cond": bson.M{"$or": bson.A{
					bson.M{"$eq": bson.A{"$traveler", viewerID}},
					bson.M{"$eq": bson.A{"$$bid.agent", viewerID}},
				}},
			}},
		}}})
	}
	pipeline = append(pipeline, lookupUser("traveler", "traveler_info")...)

	cursor, err := s.trips().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer cursor.Close(ctx)

	trips := []models.TripListing{}
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, fmt.Errorf("failed to decode trips: %w", err)
	}
	return trips, nil
}

// UpdateStatus moves an owned trip along its lifecycle. Cancelling an open
// trip rejects its pending bids.
func (s *tripService) UpdateStatus(ctx context.Context, tripID, userID primitive.ObjectID, status models.TripStatus) (*models.Trip, error) {
	if !status.Valid() {
		return nil, validationError("unknown status %q", status)
	}
	trip, err := s.ledger.findTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Traveler != userID {
		return nil, ErrForbidden
	}
	if !trip.Status.CanTransitionTo(status) {
		return nil, ErrInvalidTransition
	}

	if trip.Status == models.TripOpen {
		claimed, err := s.ledger.claimTrip(ctx, tripID, bson.M{"traveler": userID}, bson.M{"status": status})
		if err != nil {
			if errors.Is(err, ErrTripNotOpen) {
				return nil, ErrInvalidTransition
			}
			return nil, err
		}
		rejected, err := s.ledger.closePending(ctx, claimed, primitive.NilObjectID, models.BidRejected)
		if err != nil {
			return nil, err
		}
		for i := range rejected {
			s.ledger.notifier.NotifyBid(ctx, EventBidRejected, claimed, &rejected[i])
		}
		return s.ledger.findTrip(ctx, tripID)
	}

	res, err := s.trips().UpdateOne(ctx,
		bson.M{"_id": tripID, "traveler": userID, "status": trip.Status},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return nil, fmt.Errorf("db error updating trip %s status: %w", tripID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrInvalidTransition
	}
	trip.Status = status
	return trip, nil
}

// RequestImageUpload returns a presigned PUT URL and the object key for a trip photo.
func (s *tripService) RequestImageUpload(ctx context.Context, tripID, userID primitive.ObjectID, filename, contentType string) (string, string, error) {
	if s.storage == nil {
		return "", "", errors.New("image storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", validationError("content type must be an image")
	}
	if err := s.checkOwner(ctx, tripID, userID); err != nil {
		return "", "", err
	}
	return s.storage.GeneratePresignedPutURL(ctx, tripID.Hex(), filename, contentType)
}

// ConfirmImageUpload verifies that key belongs to an owned trip. The caller
// then queues the image for processing.
func (s *tripService) ConfirmImageUpload(ctx context.Context, tripID, userID primitive.ObjectID, key string) error {
	if !strings.HasPrefix(key, storage.TripKeyPrefix(tripID.Hex())) {
		return validationError("image key does not belong to this trip")
	}
	return s.checkOwner(ctx, tripID, userID)
}

// AddImage records a processed image key on the trip.
func (s *tripService) AddImage(ctx context.Context, tripID primitive.ObjectID, key string) error {
	res, err := s.trips().UpdateOne(ctx,
		bson.M{"_id": tripID},
		bson.M{
			"$addToSet": bson.M{"images": key},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("db error adding image %s to trip %s: %w", key, tripID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrTripNotFound
	}
	if res.ModifiedCount == 0 {
		log.Printf("Image key %s already present on trip %s", key, tripID.Hex())
	}
	return nil
}

func (s *tripService) checkOwner(ctx context.Context, tripID, userID primitive.ObjectID) error {
	trip, err := s.ledger.findTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if trip.Traveler != userID {
		return ErrForbidden
	}
	return nil
}
