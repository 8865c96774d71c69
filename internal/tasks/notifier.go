package tasks

import (
	"context"
	"log"

	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// EmailNotifier turns bid lifecycle events into email:deliver tasks.
type EmailNotifier struct {
	enqueuer Enqueuer
}

func NewEmailNotifier(enqueuer Enqueuer) *EmailNotifier {
	return &EmailNotifier{enqueuer: enqueuer}
}

// NotifyBid emails the traveler about new bids and the agent about everything else.
func (n *EmailNotifier) NotifyBid(ctx context.Context, event services.BidEvent, trip *models.Trip, bid *models.Bid) {
	recipient, counterparty := bid.Agent, trip.Traveler
	if event == services.EventBidReceived {
		recipient, counterparty = trip.Traveler, bid.Agent
	}

	task, err := NewEmailDeliveryTask(EmailTaskPayload{
		UserID:         recipient.Hex(),
		CounterpartyID: counterparty.Hex(),
		Template:       string(event),
		TripTitle:      trip.Title,
		Destination:    trip.Destination,
		Price:          bid.Price,
	})
	if err != nil {
		log.Printf("ERROR building %s email for bid %s: %v", event, bid.ID.Hex(), err)
		return
	}
	if _, err := n.enqueuer.EnqueueContext(ctx, task); err != nil {
		log.Printf("ERROR enqueuing %s email for bid %s: %v", event, bid.ID.Hex(), err)
	}
}

var _ services.INotifier = (*EmailNotifier)(nil)
