package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IntentStatus is the state of a payment intent.
type IntentStatus string

const (
	IntentRequiresConfirmation IntentStatus = "requires_confirmation"
	IntentSucceeded            IntentStatus = "succeeded"
)

// PaymentIntent records a traveler's intention to pay for a bid.
// Amount is in minor currency units.
type PaymentIntent struct {
	ID           string             `bson:"_id" json:"id"`
	Trip         primitive.ObjectID `bson:"trip" json:"trip"`
	Bid          primitive.ObjectID `bson:"bid" json:"bid"`
	User         primitive.ObjectID `bson:"user" json:"user"`
	Amount       int64              `bson:"amount" json:"amount"`
	Currency     string             `bson:"currency" json:"currency"`
	ClientSecret string             `bson:"client_secret" json:"-"`
	Status       IntentStatus       `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	SucceededAt  *time.Time         `bson:"succeeded_at,omitempty" json:"succeededAt,omitempty"`
}
