package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Meekal-Jamil/travelbid/internal/db"
	"github.com/Meekal-Jamil/travelbid/internal/models"
)

// Bid actions accepted by HandleBidAction.
const (
	BidActionAccept = "accept"
	BidActionReject = "reject"
)

// IBidService defines the bid lifecycle operations.
type IBidService interface {
	SubmitBid(ctx context.Context, agentID, tripID primitive.ObjectID, price float64, services string) (*models.Bid, error)
	GetBidsByTrip(ctx context.Context, tripID, viewerID primitive.ObjectID, role models.Role) ([]models.BidWithAgent, error)
	HandleBidAction(ctx context.Context, tripID, bidID, userID primitive.ObjectID, action string) (*models.Bid, error)
	AcceptBid(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, error)
	RejectBid(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, error)
	ConfirmPayment(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, error)
	RateBid(ctx context.Context, bidID, userID primitive.ObjectID, rating int) (*models.Bid, error)
	GetTravelerBookings(ctx context.Context, travelerID primitive.ObjectID) ([]models.Booking, error)
	ExpireStaleBids(ctx context.Context, now time.Time) (int, error)
}

type bidService struct {
	ledger *bidLedger
}

// NewBidService creates a new BidService.
func NewBidService(db *mongo.Database, notifier INotifier) IBidService {
	return &bidService{ledger: newBidLedger(db, notifier)}
}

// SubmitBid records a new pending bid from an agent on an open trip.
func (s *bidService) SubmitBid(ctx context.Context, agentID, tripID primitive.ObjectID, price float64, services string) (*models.Bid, error) {
	services = strings.TrimSpace(services)
	if price <= 0 {
		return nil, validationError("price must be greater than zero")
	}
	if services == "" {
		return nil, validationError("services are required")
	}

	trip, err := s.ledger.findTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripOpen {
		return nil, ErrTripNotOpen
	}

	now := time.Now().UTC()
	bid := &models.Bid{
		Trip:          tripID,
		Agent:         agentID,
		Price:         price,
		Services:      services,
		Status:        models.BidPending,
		PaymentStatus: models.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = db.Try(func() error {
		bid.GenID()
		_, insertErr := s.ledger.bids().InsertOne(ctx, bid)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert bid on trip %s: %w", tripID.Hex(), err)
	}

	// The push only lands while the trip is still open; otherwise drop the bid.
	res, err := s.ledger.trips().UpdateOne(ctx,
		bson.M{"_id": tripID, "status": models.TripOpen},
		bson.M{"$push": bson.M{"bids": bid}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil || res.MatchedCount == 0 {
		if _, delErr := s.ledger.bids().DeleteOne(ctx, bson.M{"_id": bid.ID}); delErr != nil {
			log.Printf("ERROR removing orphan bid %s: %v", bid.ID.Hex(), delErr)
		}
		if err != nil {
			return nil, fmt.Errorf("db error attaching bid %s to trip %s: %w", bid.ID.Hex(), tripID.Hex(), err)
		}
		return nil, ErrTripNotOpen
	}

	if err := s.ledger.applyStats(ctx, []statsChange{{agent: agentID, inc: statsDelta("", models.BidPending)}}); err != nil {
		return nil, err
	}

	s.ledger.notifier.NotifyBid(ctx, EventBidReceived, trip, bid)
	return bid, nil
}

// GetBidsByTrip lists a trip's bids with agent details. Owners and admins
// see every bid, agents only their own.
func (s *bidService) GetBidsByTrip(ctx context.Context, tripID, viewerID primitive.ObjectID, role models.Role) ([]models.BidWithAgent, error) {
	trip, err := s.ledger.findTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	match := bson.M{"trip": tripID}
	switch {
	case role == models.RoleAdmin || trip.Traveler == viewerID:
	case role == models.RoleAgent:
		match["agent"] = viewerID
	default:
		return nil, ErrForbidden
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	pipeline = append(pipeline, lookupUser("agent", "agent_info")...)

	cursor, err := s.ledger.bids().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids for trip %s: %w", tripID.Hex(), err)
	}
	defer cursor.Close(ctx)

	bids := []models.BidWithAgent{}
	if err := cursor.All(ctx, &bids); err != nil {
		return nil, fmt.Errorf("failed to decode bids for trip %s: %w", tripID.Hex(), err)
	}
	return bids, nil
}

// HandleBidAction accepts or rejects a bid addressed through its trip.
func (s *bidService) HandleBidAction(ctx context.Context, tripID, bidID, userID primitive.ObjectID, action string) (*models.Bid, error) {
	if action != BidActionAccept && action != BidActionReject {
		return nil, ErrInvalidAction
	}
	bid, err := s.ledger.findBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Trip != tripID {
		return nil, ErrBidNotFound
	}
	if action == BidActionAccept {
		return s.AcceptBid(ctx, bidID, userID)
	}
	return s.RejectBid(ctx, bidID, userID)
}

// AcceptBid books the bid's trip. See bidLedger.accept.
func (s *bidService) AcceptBid(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, error) {
	bid, trip, err := s.ledger.loadOwned(ctx, bidID, userID)
	if err != nil {
		return nil, err
	}
	return s.ledger.accept(ctx, bid, trip)
}

// RejectBid declines a single pending bid. The trip stays open.
func (s *bidService) RejectBid(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, error) {
	bid, trip, err := s.ledger.loadOwned(ctx, bidID, userID)
	if err != nil {
		return nil, err
	}
	if bid.Status != models.BidPending {
		return nil, ErrBidNotPending
	}

	ok, err := s.ledger.transition(ctx, bid.ID, models.BidPending, models.BidRejected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBidNotPending
	}
	if err := s.ledger.mirror(ctx, trip.ID, []primitive.ObjectID{bid.ID}, bson.M{"status": models.BidRejected}); err != nil {
		return nil, err
	}
	if err := s.ledger.applyStats(ctx, []statsChange{{agent: bid.Agent, inc: statsDelta(models.BidPending, models.BidRejected)}}); err != nil {
		return nil, err
	}

	bid.Status = models.BidRejected
	s.ledger.notifier.NotifyBid(ctx, EventBidRejected, trip, bid)
	return bid, nil
}

// ConfirmPayment marks a bid paid. A pending bid is accepted first so a
// paid bid is always an accepted one.
func (s *bidService) ConfirmPayment(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, error) {
	bid, trip, err := s.ledger.loadOwned(ctx, bidID, userID)
	if err != nil {
		return nil, err
	}
	if bid.PaymentStatus == models.PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if !bid.Payable() || !trip.PaymentOpen(bid) {
		return nil, ErrNotPayable
	}

	if bid.Status == models.BidPending {
		if bid, err = s.ledger.accept(ctx, bid, trip); err != nil {
			return nil, err
		}
		trip.Status = models.TripBooked
	}

	now := time.Now().UTC()
	res, err := s.ledger.bids().UpdateOne(ctx,
		bson.M{"_id": bid.ID, "status": models.BidAccepted, "payment_status": models.PaymentUnpaid},
		bson.M{"$set": bson.M{"payment_status": models.PaymentPaid, "paid_at": now, "updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("db error recording payment for bid %s: %w", bid.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrAlreadyPaid
	}
	if err := s.ledger.mirror(ctx, trip.ID, []primitive.ObjectID{bid.ID},
		bson.M{"payment_status": models.PaymentPaid, "paid_at": now}); err != nil {
		return nil, err
	}
	if err := s.ledger.applyStats(ctx, []statsChange{{agent: bid.Agent, inc: earningsDelta(bid.Price)}}); err != nil {
		return nil, err
	}

	bid.PaymentStatus = models.PaymentPaid
	bid.PaidAt = &now
	s.ledger.notifier.NotifyBid(ctx, EventPaymentConfirmed, trip, bid)
	return bid, nil
}

// RateBid stores the traveler's 1-5 rating of a paid booking. A booking can be rated once.
func (s *bidService) RateBid(ctx context.Context, bidID, userID primitive.ObjectID, rating int) (*models.Bid, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, ErrInvalidRating
	}
	bid, trip, err := s.ledger.loadOwned(ctx, bidID, userID)
	if err != nil {
		return nil, err
	}
	if bid.PaymentStatus != models.PaymentPaid {
		return nil, ErrNotPaid
	}
	if bid.Rating != nil {
		return nil, ErrAlreadyRated
	}

	res, err := s.ledger.bids().UpdateOne(ctx,
		bson.M{"_id": bid.ID, "payment_status": models.PaymentPaid, "rating": nil},
		bson.M{"$set": bson.M{"rating": rating, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return nil, fmt.Errorf("db error rating bid %s: %w", bid.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrAlreadyRated
	}
	if err := s.ledger.mirror(ctx, trip.ID, []primitive.ObjectID{bid.ID}, bson.M{"rating": rating}); err != nil {
		return nil, err
	}

	bid.Rating = &rating
	return bid, nil
}

// GetTravelerBookings lists the paid bids on the traveler's trips, newest first.
func (s *bidService) GetTravelerBookings(ctx context.Context, travelerID primitive.ObjectID) ([]models.Booking, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"payment_status": models.PaymentPaid}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         tripsCollection,
			"localField":   "trip",
			"foreignField": "_id",
			"as":           "trip_info",
		}}},
		{{Key: "$unwind", Value: "$trip_info"}},
		{{Key: "$match", Value: bson.M{"trip_info.traveler": travelerID}}},
		{{Key: "$project", Value: bson.M{"trip_info.bids": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "paid_at", Value: -1}}}},
	}
	pipeline = append(pipeline, lookupUser("agent", "agent_info")...)

	cursor, err := s.ledger.bids().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings for traveler %s: %w", travelerID.Hex(), err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

// ExpireStaleBids cancels open trips whose start date has passed and marks
// their pending bids expired. It returns the number of bids expired.
func (s *bidService) ExpireStaleBids(ctx context.Context, now time.Time) (int, error) {
	cursor, err := s.ledger.trips().Find(ctx, bson.M{
		"status":     models.TripOpen,
		"start_date": bson.M{"$lt": now},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query stale trips: %w", err)
	}
	var stale []models.Trip
	if err := cursor.All(ctx, &stale); err != nil {
		return 0, fmt.Errorf("failed to decode stale trips: %w", err)
	}

	expired := 0
	for _, t := range stale {
		claimed, err := s.ledger.claimTrip(ctx, t.ID, nil, bson.M{"status": models.TripCancelled})
		if err != nil {
			if errors.Is(err, ErrTripNotOpen) {
				continue
			}
			return expired, err
		}
		closed, err := s.ledger.closePending(ctx, claimed, primitive.NilObjectID, models.BidExpired)
		expired += len(closed)
		if err != nil {
			return expired, err
		}
	}
	if len(stale) > 0 {
		log.Printf("Expired %d bids across %d stale trips", expired, len(stale))
	}
	return expired, nil
}

// lookupUser resolves a user reference into a public summary at field as.
func lookupUser(localField, as string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         usersCollection,
			"localField":   localField,
			"foreignField": "_id",
			"as":           as,
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$" + as, "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{as + ".password": 0, as + ".stats": 0}}},
	}
}
