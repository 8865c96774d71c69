package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/payments"
)

func TestPaymentService_IntentAndSuccess(t *testing.T) {
	f := newBidFixture(t, "travelbid_test_payments_flow")
	gateway := payments.NewLedgerGateway(f.db)
	svc := NewPaymentService(f.db, testConfig(), f.bids, gateway)
	ctx := context.Background()
	bid := f.submit(t, f.agentA, 1234.5)

	_, err := svc.CreatePaymentIntent(ctx, f.trip.ID, bid.ID, f.agentA.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.CreatePaymentIntent(ctx, f.trip.ID, primitive.NewObjectID(), f.traveler.ID)
	assert.ErrorIs(t, err, ErrBidNotFound)

	intent, err := svc.CreatePaymentIntent(ctx, f.trip.ID, bid.ID, f.traveler.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(123450), intent.Amount)
	assert.Equal(t, "usd", intent.Currency)
	assert.NotEmpty(t, intent.ClientSecret)

	_, err = svc.HandleSuccessfulPayment(ctx, f.trip.ID, bid.ID, f.traveler.ID, "pi_unknown")
	assert.ErrorIs(t, err, ErrIntentMismatch)

	paid, err := svc.HandleSuccessfulPayment(ctx, f.trip.ID, bid.ID, f.traveler.ID, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidAccepted, paid.Status)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)

	stored, err := gateway.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentSucceeded, stored.Status)

	_, err = svc.CreatePaymentIntent(ctx, f.trip.ID, bid.ID, f.traveler.ID)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	_, err = svc.HandleSuccessfulPayment(ctx, f.trip.ID, bid.ID, f.traveler.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestPaymentService_RejectedBidNotPayable(t *testing.T) {
	f := newBidFixture(t, "travelbid_test_payments_rejected")
	svc := NewPaymentService(f.db, testConfig(), f.bids, payments.NewLedgerGateway(f.db))
	ctx := context.Background()
	bid := f.submit(t, f.agentA, 500)
	_, err := f.bids.RejectBid(ctx, bid.ID, f.traveler.ID)
	require.NoError(t, err)

	_, err = svc.CreatePaymentIntent(ctx, f.trip.ID, bid.ID, f.traveler.ID)
	assert.ErrorIs(t, err, ErrNotPayable)
}

func TestPaymentService_CancelledTripNotPayable(t *testing.T) {
	f := newBidFixture(t, "travelbid_test_payments_cancelled")
	svc := NewPaymentService(f.db, testConfig(), f.bids, payments.NewLedgerGateway(f.db))
	ctx := context.Background()
	bid := f.submit(t, f.agentA, 700)

	intent, err := svc.CreatePaymentIntent(ctx, f.trip.ID, bid.ID, f.traveler.ID)
	require.NoError(t, err)
	_, err = f.bids.AcceptBid(ctx, bid.ID, f.traveler.ID)
	require.NoError(t, err)
	_, err = f.trips.UpdateStatus(ctx, f.trip.ID, f.traveler.ID, models.TripCancelled)
	require.NoError(t, err)

	_, err = svc.CreatePaymentIntent(ctx, f.trip.ID, bid.ID, f.traveler.ID)
	assert.ErrorIs(t, err, ErrNotPayable)
	_, err = svc.HandleSuccessfulPayment(ctx, f.trip.ID, bid.ID, f.traveler.ID, intent.ID)
	assert.ErrorIs(t, err, ErrNotPayable)
}

func TestPaymentService_IntentForOtherBid(t *testing.T) {
	f := newBidFixture(t, "travelbid_test_payments_mismatch")
	svc := NewPaymentService(f.db, testConfig(), f.bids, payments.NewLedgerGateway(f.db))
	ctx := context.Background()
	first := f.submit(t, f.agentA, 500)
	second := f.submit(t, f.agentB, 600)

	intent, err := svc.CreatePaymentIntent(ctx, f.trip.ID, first.ID, f.traveler.ID)
	require.NoError(t, err)

	_, err = svc.HandleSuccessfulPayment(ctx, f.trip.ID, second.ID, f.traveler.ID, intent.ID)
	assert.ErrorIs(t, err, ErrIntentMismatch)
}
