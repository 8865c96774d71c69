package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BidStatus is the decision state of a bid.
type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
	BidExpired  BidStatus = "expired"
)

// PaymentStatus tracks whether the traveler has paid for a bid.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Bid is an agent's priced offer against a trip. The same document shape is
// stored standalone in the bids collection and mirrored inside its trip.
type Bid struct {
	Base          `bson:",inline"`
	Trip          primitive.ObjectID `bson:"trip" json:"trip"`
	Agent         primitive.ObjectID `bson:"agent" json:"agent"`
	Price         float64            `bson:"price" json:"price"`
	Services      string             `bson:"services" json:"services"`
	Status        BidStatus          `bson:"status" json:"status"`
	PaymentStatus PaymentStatus      `bson:"payment_status" json:"paymentStatus"`
	Rating        *int               `bson:"rating" json:"rating"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
	PaidAt        *time.Time         `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
}

// Payable reports whether a payment may be recorded against the bid.
func (b *Bid) Payable() bool {
	if b.PaymentStatus == PaymentPaid {
		return false
	}
	return b.Status == BidPending || b.Status == BidAccepted
}

// BidWithAgent is a bid with the bidding agent's public details resolved.
type BidWithAgent struct {
	Bid       `bson:",inline"`
	AgentInfo *UserSummary `bson:"agent_info,omitempty" json:"agentInfo,omitempty"`
}

// Booking is a paid bid as seen by the traveler who paid it.
type Booking struct {
	Bid       `bson:",inline"`
	TripInfo  *BookingTrip `bson:"trip_info,omitempty" json:"tripInfo,omitempty"`
	AgentInfo *UserSummary `bson:"agent_info,omitempty" json:"agentInfo,omitempty"`
}

// BookingTrip is the subset of trip fields shown with a booking.
type BookingTrip struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Title       string             `bson:"title" json:"title"`
	Destination string             `bson:"destination" json:"destination"`
	StartDate   time.Time          `bson:"start_date" json:"startDate"`
	EndDate     time.Time          `bson:"end_date" json:"endDate"`
	Status      TripStatus         `bson:"status" json:"status"`
}
