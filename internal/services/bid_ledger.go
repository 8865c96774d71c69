package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Meekal-Jamil/travelbid/internal/models"
)

const (
	usersCollection = "users"
	tripsCollection = "trips"
	bidsCollection  = "bids"
)

// bidLedger owns every write that changes a bid's status. The standalone
// bids collection is authoritative; each write is mirrored into the trip's
// embedded bids array and reflected in the agent stats here and nowhere else.
//
// Write order for any multi-bid change is: trip claim, standalone bids,
// embedded mirror, stats. A crash part way leaves stats behind the bid
// documents, which ReconcileAgentStats repairs.
type bidLedger struct {
	db       *mongo.Database
	notifier INotifier
}

func newBidLedger(db *mongo.Database, notifier INotifier) *bidLedger {
	return &bidLedger{db: db, notifier: notifierOrNop(notifier)}
}

func (l *bidLedger) bids() *mongo.Collection  { return l.db.Collection(bidsCollection) }
func (l *bidLedger) trips() *mongo.Collection { return l.db.Collection(tripsCollection) }
func (l *bidLedger) users() *mongo.Collection { return l.db.Collection(usersCollection) }

func (l *bidLedger) findBid(ctx context.Context, bidID primitive.ObjectID) (*models.Bid, error) {
	var bid models.Bid
	if err := l.bids().FindOne(ctx, bson.M{"_id": bidID}).Decode(&bid); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBidNotFound
		}
		return nil, fmt.Errorf("error finding bid %s: %w", bidID.Hex(), err)
	}
	return &bid, nil
}

func (l *bidLedger) findTrip(ctx context.Context, tripID primitive.ObjectID) (*models.Trip, error) {
	var trip models.Trip
	if err := l.trips().FindOne(ctx, bson.M{"_id": tripID}).Decode(&trip); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTripNotFound
		}
		return nil, fmt.Errorf("error finding trip %s: %w", tripID.Hex(), err)
	}
	return &trip, nil
}

// loadOwned returns a bid and its trip, checking that userID owns the trip.
func (l *bidLedger) loadOwned(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, *models.Trip, error) {
	bid, err := l.findBid(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	trip, err := l.findTrip(ctx, bid.Trip)
	if err != nil {
		return nil, nil, err
	}
	if trip.Traveler != userID {
		return nil, nil, ErrForbidden
	}
	return bid, trip, nil
}

// transition moves one standalone bid from -> to if it is still in from.
// It reports false when the bid was no longer in from.
func (l *bidLedger) transition(ctx context.Context, bidID primitive.ObjectID, from, to models.BidStatus) (bool, error) {
	res, err := l.bids().UpdateOne(ctx,
		bson.M{"_id": bidID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("db error moving bid %s to %s: %w", bidID.Hex(), to, err)
	}
	return res.MatchedCount == 1, nil
}

// mirror copies fields onto the embedded copies of bidIDs inside the trip.
func (l *bidLedger) mirror(ctx context.Context, tripID primitive.ObjectID, bidIDs []primitive.ObjectID, fields bson.M) error {
	if len(bidIDs) == 0 || len(fields) == 0 {
		return nil
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set["bids.$[b]."+k] = v
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"b._id": bson.M{"$in": bidIDs}}},
	})
	if _, err := l.trips().UpdateOne(ctx, bson.M{"_id": tripID}, bson.M{"$set": set}, opts); err != nil {
		return fmt.Errorf("db error mirroring %d bids into trip %s: %w", len(bidIDs), tripID.Hex(), err)
	}
	return nil
}

func (l *bidLedger) applyStats(ctx context.Context, changes []statsChange) error {
	return applyStats(ctx, l.users(), changes)
}

// closePending moves every pending embedded bid of trip, except keep, to
// status to (rejected or expired). trip must already be claimed out of the
// open state so no new bid can join. Bids that changed concurrently are skipped.
func (l *bidLedger) closePending(ctx context.Context, trip *models.Trip, keep primitive.ObjectID, to models.BidStatus) ([]models.Bid, error) {
	var closed []models.Bid
	var ids []primitive.ObjectID
	var changes []statsChange
	for _, b := range trip.Bids {
		if b.ID == keep || b.Status != models.BidPending {
			continue
		}
		ok, err := l.transition(ctx, b.ID, models.BidPending, to)
		if err != nil {
			return closed, err
		}
		if !ok {
			continue
		}
		b.Status = to
		closed = append(closed, b)
		ids = append(ids, b.ID)
		changes = append(changes, statsChange{agent: b.Agent, inc: statsDelta(models.BidPending, to)})
	}
	if err := l.mirror(ctx, trip.ID, ids, bson.M{"status": to}); err != nil {
		return closed, err
	}
	if err := l.applyStats(ctx, changes); err != nil {
		return closed, err
	}
	return closed, nil
}

// claimTrip atomically moves trip from open to status and returns the trip
// as it is after the change. ErrTripNotOpen means another request got there first.
func (l *bidLedger) claimTrip(ctx context.Context, tripID primitive.ObjectID, filter bson.M, set bson.M) (*models.Trip, error) {
	f := bson.M{"_id": tripID, "status": models.TripOpen}
	for k, v := range filter {
		f[k] = v
	}
	set["updated_at"] = time.Now().UTC()

	var trip models.Trip
	err := l.trips().FindOneAndUpdate(ctx, f, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&trip)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTripNotOpen
		}
		return nil, fmt.Errorf("db error claiming trip %s: %w", tripID.Hex(), err)
	}
	return &trip, nil
}

// releaseTrip undoes claimTrip for a booking that could not complete.
func (l *bidLedger) releaseTrip(ctx context.Context, tripID, bidID primitive.ObjectID) {
	_, err := l.trips().UpdateOne(ctx,
		bson.M{"_id": tripID, "status": models.TripBooked, "accepted_bid": bidID},
		bson.M{
			"$set":   bson.M{"status": models.TripOpen, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"accepted_bid": ""},
		},
	)
	if err != nil {
		log.Printf("ERROR releasing trip %s after failed accept of bid %s: %v", tripID.Hex(), bidID.Hex(), err)
	}
}

// accept books trip with bid and rejects every other pending bid on it.
// The open -> booked claim on the trip is the point where concurrent
// accepts are decided: exactly one caller gets past it.
func (l *bidLedger) accept(ctx context.Context, bid *models.Bid, trip *models.Trip) (*models.Bid, error) {
	if bid.Status != models.BidPending {
		return nil, ErrBidNotPending
	}
	if trip.Status != models.TripOpen {
		return nil, ErrTripNotOpen
	}

	claimed, err := l.claimTrip(ctx, trip.ID, bson.M{"traveler": trip.Traveler},
		bson.M{"status": models.TripBooked, "accepted_bid": bid.ID})
	if err != nil {
		return nil, err
	}

	ok, err := l.transition(ctx, bid.ID, models.BidPending, models.BidAccepted)
	if err != nil || !ok {
		l.releaseTrip(ctx, trip.ID, bid.ID)
		if err != nil {
			return nil, err
		}
		return nil, ErrBidNotPending
	}
	if err := l.mirror(ctx, trip.ID, []primitive.ObjectID{bid.ID}, bson.M{"status": models.BidAccepted}); err != nil {
		return nil, err
	}
	if err := l.applyStats(ctx, []statsChange{{agent: bid.Agent, inc: statsDelta(models.BidPending, models.BidAccepted)}}); err != nil {
		return nil, err
	}

	losers, err := l.closePending(ctx, claimed, bid.ID, models.BidRejected)
	if err != nil {
		return nil, err
	}

	bid.Status = models.BidAccepted
	claimed.Status = models.TripBooked
	log.Printf("Trip %s booked with bid %s; %d competing bids rejected", trip.ID.Hex(), bid.ID.Hex(), len(losers))

	l.notifier.NotifyBid(ctx, EventBidAccepted, claimed, bid)
	for i := range losers {
		l.notifier.NotifyBid(ctx, EventBidRejected, claimed, &losers[i])
	}
	return bid, nil
}
