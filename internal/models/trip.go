package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TripStatus is the lifecycle state of a trip request.
type TripStatus string

const (
	TripOpen       TripStatus = "open"
	TripBooked     TripStatus = "booked"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

// tripTransitions lists the states reachable from each state by an owner
// status update. open -> booked is absent: only bid acceptance books a trip.
var tripTransitions = map[TripStatus][]TripStatus{
	TripOpen:       {TripCancelled},
	TripBooked:     {TripInProgress, TripCancelled},
	TripInProgress: {TripCompleted},
}

// Valid reports whether s is a known trip status.
func (s TripStatus) Valid() bool {
	switch s {
	case TripOpen, TripBooked, TripInProgress, TripCompleted, TripCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an owner may move a trip from s to next.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentOpen reports whether b may still be paid given the trip's state.
// Paying a pending bid accepts it, so it needs an open trip. An accepted bid
// is payable while the trip is booked or in progress.
func (t *Trip) PaymentOpen(b *Bid) bool {
	switch b.Status {
	case BidPending:
		return t.Status == TripOpen
	case BidAccepted:
		return t.Status == TripBooked || t.Status == TripInProgress
	}
	return false
}

// Trip is a travel request posted by a traveler.
// Bids holds a mirror of every bid in the standalone bids collection
// that targets this trip.
type Trip struct {
	Base        `bson:",inline"`
	Title       string              `bson:"title" json:"title"`
	Traveler    primitive.ObjectID  `bson:"traveler" json:"traveler"`
	Destination string              `bson:"destination" json:"destination"`
	StartDate   time.Time           `bson:"start_date" json:"startDate"`
	EndDate     time.Time           `bson:"end_date" json:"endDate"`
	Budget      float64             `bson:"budget" json:"budget"`
	Preferences string              `bson:"preferences,omitempty" json:"preferences,omitempty"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Status      TripStatus          `bson:"status" json:"status"`
	Bids        []Bid               `bson:"bids" json:"bids"`
	AcceptedBid *primitive.ObjectID `bson:"accepted_bid,omitempty" json:"acceptedBid,omitempty"`
	Images      []string            `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updatedAt"`
}

// FindBid returns the embedded bid with the given id.
func (t *Trip) FindBid(bidID primitive.ObjectID) (*Bid, bool) {
	for i := range t.Bids {
		if t.Bids[i].ID == bidID {
			return &t.Bids[i], true
		}
	}
	return nil, false
}

// TripListing is a trip with its traveler's public details resolved.
type TripListing struct {
	Trip         `bson:",inline"`
	TravelerInfo *UserSummary `bson:"traveler_info,omitempty" json:"travelerInfo,omitempty"`
}

// TripSearch holds the optional filters of a trip search.
type TripSearch struct {
	Destination string
	MinBudget   *float64
	MaxBudget   *float64
	Status      TripStatus
	From        *time.Time
	To          *time.Time
}
