package services

import (
	"context"

	"github.com/Meekal-Jamil/travelbid/internal/models"
)

// BidEvent names a bid lifecycle change that users are told about.
type BidEvent string

const (
	EventBidReceived      BidEvent = "bid_received"
	EventBidAccepted      BidEvent = "bid_accepted"
	EventBidRejected      BidEvent = "bid_rejected"
	EventPaymentConfirmed BidEvent = "payment_confirmed"
)

// INotifier delivers bid lifecycle notifications. Implementations must not
// block the request on delivery; failures are theirs to log.
type INotifier interface {
	NotifyBid(ctx context.Context, event BidEvent, trip *models.Trip, bid *models.Bid)
}

type nopNotifier struct{}

func (nopNotifier) NotifyBid(context.Context, BidEvent, *models.Trip, *models.Bid) {}

func notifierOrNop(n INotifier) INotifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
