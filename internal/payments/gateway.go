package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Meekal-Jamil/travelbid/internal/db"
	"github.com/Meekal-Jamil/travelbid/internal/models"
)

const intentsCollection = "payment_intents"

// ErrIntentNotFound is returned when no intent has the given id.
var ErrIntentNotFound = errors.New("Payment intent not found")

// IntentRequest describes a payment to be collected for a bid.
type IntentRequest struct {
	Trip     primitive.ObjectID
	Bid      primitive.ObjectID
	User     primitive.ObjectID
	Amount   int64
	Currency string
}

// Gateway is the contract a card processor integration fulfils.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*models.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
	MarkSucceeded(ctx context.Context, id string) error
}

// ledgerGateway records intents in MongoDB without talking to a processor.
type ledgerGateway struct {
	db *mongo.Database
}

// NewLedgerGateway creates a Gateway backed by the payment_intents collection.
func NewLedgerGateway(db *mongo.Database) Gateway {
	return &ledgerGateway{db: db}
}

func (g *ledgerGateway) intents() *mongo.Collection { return g.db.Collection(intentsCollection) }

// AmountFromPrice converts a decimal price to minor units.
func AmountFromPrice(price float64) int64 {
	if price < 0 {
		return 0
	}
	return int64(price*100 + 0.5)
}

func (g *ledgerGateway) CreateIntent(ctx context.Context, req IntentRequest) (*models.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("invalid payment amount %d", req.Amount)
	}
	intent := &models.PaymentIntent{
		Trip:      req.Trip,
		Bid:       req.Bid,
		User:      req.User,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Status:    models.IntentRequiresConfirmation,
		CreatedAt: time.Now().UTC(),
	}
	err := db.Try(func() error {
		intent.ID = "pi_" + uuid.NewString()
		intent.ClientSecret = intent.ID + "_secret_" + uuid.NewString()
		_, insertErr := g.intents().InsertOne(ctx, intent)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record payment intent for bid %s: %w", req.Bid.Hex(), err)
	}
	log.Printf("Created payment intent %s for bid %s (%d %s)", intent.ID, req.Bid.Hex(), intent.Amount, intent.Currency)
	return intent, nil
}

func (g *ledgerGateway) GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := g.intents().FindOne(ctx, bson.M{"_id": id}).Decode(&intent); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("error finding payment intent %s: %w", id, err)
	}
	return &intent, nil
}

// MarkSucceeded is idempotent.
func (g *ledgerGateway) MarkSucceeded(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := g.intents().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.IntentRequiresConfirmation},
		bson.M{"$set": bson.M{"status": models.IntentSucceeded, "succeeded_at": now}},
	)
	if err != nil {
		return fmt.Errorf("db error completing payment intent %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		if _, err := g.GetIntent(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
