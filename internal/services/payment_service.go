package services

import (
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/payments"
)

// IPaymentService drives the two-step payment flow for a booking.
type IPaymentService interface {
	CreatePaymentIntent(ctx context.Context, tripID, bidID, userID primitive.ObjectID) (*models.PaymentIntent, error)
	HandleSuccessfulPayment(ctx context.Context, tripID, bidID, userID primitive.ObjectID, intentID string) (*models.Bid, error)
}

type paymentService struct {
	cfg     *config.Config
	ledger  *bidLedger
	bids    IBidService
	gateway payments.Gateway
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(db *mongo.Database, cfg *config.Config, bids IBidService, gateway payments.Gateway) IPaymentService {
	return &paymentService{
		cfg:     cfg,
		ledger:  newBidLedger(db, nil),
		bids:    bids,
		gateway: gateway,
	}
}

// CreatePaymentIntent opens an intent for the bid's price on a trip the caller owns.
func (s *paymentService) CreatePaymentIntent(ctx context.Context, tripID, bidID, userID primitive.ObjectID) (*models.PaymentIntent, error) {
	bid, trip, err := s.ownedBid(ctx, tripID, bidID, userID)
	if err != nil {
		return nil, err
	}
	if bid.PaymentStatus == models.PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if !bid.Payable() || !trip.PaymentOpen(bid) {
		return nil, ErrNotPayable
	}

	return s.gateway.CreateIntent(ctx, payments.IntentRequest{
		Trip:     tripID,
		Bid:      bidID,
		User:     userID,
		Amount:   payments.AmountFromPrice(bid.Price),
		Currency: s.cfg.PaymentCurrency,
	})
}

// HandleSuccessfulPayment confirms the payment of a bid, accepting it if it
// is still pending. When intentID is set the intent must belong to this bid
// and caller.
func (s *paymentService) HandleSuccessfulPayment(ctx context.Context, tripID, bidID, userID primitive.ObjectID, intentID string) (*models.Bid, error) {
	if intentID != "" {
		intent, err := s.gateway.GetIntent(ctx, intentID)
		if err != nil {
			if errors.Is(err, payments.ErrIntentNotFound) {
				return nil, ErrIntentMismatch
			}
			return nil, err
		}
		if intent.Bid != bidID || intent.Trip != tripID || intent.User != userID {
			return nil, ErrIntentMismatch
		}
	}

	if _, _, err := s.ownedBid(ctx, tripID, bidID, userID); err != nil {
		return nil, err
	}
	bid, err := s.bids.ConfirmPayment(ctx, bidID, userID)
	if err != nil {
		return nil, err
	}

	if intentID != "" {
		if err := s.gateway.MarkSucceeded(ctx, intentID); err != nil {
			log.Printf("ERROR marking payment intent %s succeeded after bid %s was paid: %v", intentID, bidID.Hex(), err)
		}
	}
	return bid, nil
}

// ownedBid resolves a bid through its trip's embedded copy and returns the
// authoritative standalone document with its trip.
func (s *paymentService) ownedBid(ctx context.Context, tripID, bidID, userID primitive.ObjectID) (*models.Bid, *models.Trip, error) {
	trip, err := s.ledger.findTrip(ctx, tripID)
	if err != nil {
		return nil, nil, err
	}
	if trip.Traveler != userID {
		return nil, nil, ErrForbidden
	}
	if _, ok := trip.FindBid(bidID); !ok {
		return nil, nil, ErrBidNotFound
	}
	bid, err := s.ledger.findBid(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	if bid.Trip != tripID {
		return nil, nil, ErrBidNotFound
	}
	return bid, trip, nil
}
