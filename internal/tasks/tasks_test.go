package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/services"
	"github.com/Meekal-Jamil/travelbid/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		AppName:           "TravelBid",
		SmtpFromAddress:   "noreply@travelbid.com",
		ImageMaxDimension: 64,
		ImageMaxSizeMB:    1,
	}
}

func emailTask(t *testing.T, payload EmailTaskPayload) *asynq.Task {
	t.Helper()
	task, err := NewEmailDeliveryTask(payload)
	require.NoError(t, err)
	return task
}

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	sender := new(MockEmailSender)
	users := new(MockUserService)
	p := NewTaskProcessor(testConfig(), sender, nil, users, nil, nil)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	agent := &models.User{Base: models.NewBase(), Name: "Globe Tours", Email: "globe@agency.com", Role: models.RoleAgent}
	traveler := &models.User{Base: models.NewBase(), Name: "Tia", Email: "tia@example.com", Role: models.RoleTraveler}
	users.On("FindByID", mock.Anything, agent.ID).Return(agent, nil)
	users.On("FindByID", mock.Anything, traveler.ID).Return(traveler, nil)

	sender.On("Send", mock.Anything, []string{"globe@agency.com"}, `Your bid on "Lisbon week" was accepted`,
		mock.MatchedBy(func(raw []byte) bool {
			return bytes.Contains(raw, []byte("To: globe@agency.com\r\n")) &&
				bytes.Contains(raw, []byte("X-Template: bid_accepted\r\n")) &&
				bytes.Contains(raw, []byte("Tia accepted your bid of 1800.00"))
		}),
	).Return(nil).Once()

	err := p.HandleEmailDeliveryTask(context.Background(), emailTask(t, EmailTaskPayload{
		UserID:         agent.ID.Hex(),
		CounterpartyID: traveler.ID.Hex(),
		Template:       "bid_accepted",
		TripTitle:      "Lisbon week",
		Destination:    "Lisbon",
		Price:          1800,
	}))
	require.NoError(t, err)
	sender.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_SkipRetry(t *testing.T) {
	sender := new(MockEmailSender)
	users := new(MockUserService)
	p := NewTaskProcessor(testConfig(), sender, nil, users, nil, nil)
	ctx := context.Background()

	err := p.HandleEmailDeliveryTask(ctx, asynq.NewTask(TypeEmailDelivery, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.HandleEmailDeliveryTask(ctx, emailTask(t, EmailTaskPayload{UserID: primitive.NewObjectID().Hex(), Template: "welcome"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	missing := primitive.NewObjectID()
	users.On("FindByID", mock.Anything, missing).Return(nil, services.ErrUserNotFound).Once()
	err = p.HandleEmailDeliveryTask(ctx, emailTask(t, EmailTaskPayload{UserID: missing.Hex(), Template: "bid_rejected"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEmailDeliveryTask_SendFailureRetries(t *testing.T) {
	sender := new(MockEmailSender)
	users := new(MockUserService)
	p := NewTaskProcessor(testConfig(), sender, nil, users, nil, nil)

	agent := &models.User{Base: models.NewBase(), Name: "A", Email: "a@agency.com"}
	users.On("FindByID", mock.Anything, agent.ID).Return(agent, nil)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := p.HandleEmailDeliveryTask(context.Background(), emailTask(t, EmailTaskPayload{UserID: agent.ID.Hex(), Template: "bid_rejected"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageTask(t *testing.T, tripID, key string) *asynq.Task {
	t.Helper()
	task, err := NewImageProcessTask(tripID, key)
	require.NoError(t, err)
	return task
}

func TestHandleImageProcessTask_ResizesLargeImage(t *testing.T) {
	store := new(MockStorage)
	trips := new(MockTripService)
	p := NewTaskProcessor(testConfig(), nil, store, nil, trips, nil)
	tripID := primitive.NewObjectID()
	key := storage.TripKeyPrefix(tripID.Hex()) + "abc_big.png"

	store.On("GetObject", mock.Anything, key).Return(pngBytes(t, 200, 100), "image/png", nil)
	store.On("PutObject", mock.Anything, key, mock.MatchedBy(func(data []byte) bool {
		img, format, err := image.Decode(bytes.NewReader(data))
		return err == nil && format == "jpeg" && img.Bounds().Dx() == 64 && img.Bounds().Dy() == 32
	}), "image/jpeg").Return(nil).Once()
	trips.On("AddImage", mock.Anything, tripID, key).Return(nil).Once()

	require.NoError(t, p.HandleImageProcessTask(context.Background(), imageTask(t, tripID.Hex(), key)))
	store.AssertExpectations(t)
	trips.AssertExpectations(t)
}

func TestHandleImageProcessTask_KeepsSmallImage(t *testing.T) {
	store := new(MockStorage)
	trips := new(MockTripService)
	p := NewTaskProcessor(testConfig(), nil, store, nil, trips, nil)
	tripID := primitive.NewObjectID()
	key := storage.TripKeyPrefix(tripID.Hex()) + "abc_small.png"

	store.On("GetObject", mock.Anything, key).Return(pngBytes(t, 32, 32), "image/png", nil)
	trips.On("AddImage", mock.Anything, tripID, key).Return(nil).Once()

	require.NoError(t, p.HandleImageProcessTask(context.Background(), imageTask(t, tripID.Hex(), key)))
	store.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	trips.AssertExpectations(t)
}

func TestHandleImageProcessTask_SkipRetry(t *testing.T) {
	store := new(MockStorage)
	trips := new(MockTripService)
	p := NewTaskProcessor(testConfig(), nil, store, nil, trips, nil)
	ctx := context.Background()
	tripID := primitive.NewObjectID()
	prefix := storage.TripKeyPrefix(tripID.Hex())

	err := p.HandleImageProcessTask(ctx, imageTask(t, "not-an-id", prefix+"x.png"))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.HandleImageProcessTask(ctx, imageTask(t, tripID.Hex(), "trips/someone-else/x.png"))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	store.On("GetObject", mock.Anything, prefix+"gone.png").Return(nil, "", &types.NoSuchKey{}).Once()
	err = p.HandleImageProcessTask(ctx, imageTask(t, tripID.Hex(), prefix+"gone.png"))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	store.On("GetObject", mock.Anything, prefix+"junk.png").Return([]byte("not an image"), "image/png", nil).Once()
	err = p.HandleImageProcessTask(ctx, imageTask(t, tripID.Hex(), prefix+"junk.png"))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	store.On("GetObject", mock.Anything, prefix+"ok.png").Return(pngBytes(t, 8, 8), "image/png", nil).Once()
	trips.On("AddImage", mock.Anything, tripID, prefix+"ok.png").Return(services.ErrTripNotFound).Once()
	err = p.HandleImageProcessTask(ctx, imageTask(t, tripID.Hex(), prefix+"ok.png"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleExpireSweepTask(t *testing.T) {
	bids := new(MockBidService)
	p := NewTaskProcessor(testConfig(), nil, nil, nil, nil, bids)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	bids.On("ExpireStaleBids", mock.Anything, fixed).Return(3, nil).Once()
	require.NoError(t, p.HandleExpireSweepTask(context.Background(), NewExpireSweepTask()))

	bids.On("ExpireStaleBids", mock.Anything, fixed).Return(1, errors.New("db down")).Once()
	assert.Error(t, p.HandleExpireSweepTask(context.Background(), NewExpireSweepTask()))
	bids.AssertExpectations(t)
}

func TestHandleStatsReconcileTask(t *testing.T) {
	users := new(MockUserService)
	p := NewTaskProcessor(testConfig(), nil, nil, users, nil, nil)
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	users.On("ListAgentIDs", mock.Anything).Return([]primitive.ObjectID{a, b}, nil).Once()
	users.On("ReconcileAgentStats", mock.Anything, a).Return(&models.AgentStats{}, nil)
	users.On("ReconcileAgentStats", mock.Anything, b).Return(nil, errors.New("db down")).Once()

	all, err := NewStatsReconcileTask("")
	require.NoError(t, err)
	assert.Error(t, p.HandleStatsReconcileTask(ctx, all), "a failed agent fails the run")

	one, err := NewStatsReconcileTask(a.Hex())
	require.NoError(t, err)
	require.NoError(t, p.HandleStatsReconcileTask(ctx, one))

	bad, err := NewStatsReconcileTask("xyz")
	require.NoError(t, err)
	assert.ErrorIs(t, p.HandleStatsReconcileTask(ctx, bad), asynq.SkipRetry)

	users.AssertExpectations(t)
}

func TestEmailNotifier(t *testing.T) {
	enq := &recordingEnqueuer{}
	n := NewEmailNotifier(enq)
	trip := &models.Trip{Base: models.NewBase(), Title: "Lisbon week", Destination: "Lisbon", Traveler: primitive.NewObjectID()}
	bid := &models.Bid{Base: models.NewBase(), Agent: primitive.NewObjectID(), Price: 900}

	n.NotifyBid(context.Background(), services.EventBidReceived, trip, bid)
	n.NotifyBid(context.Background(), services.EventBidRejected, trip, bid)
	require.Len(t, enq.tasks, 2)

	var received, rejected EmailTaskPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &received))
	require.NoError(t, json.Unmarshal(enq.tasks[1].Payload(), &rejected))

	assert.Equal(t, TypeEmailDelivery, enq.tasks[0].Type())
	assert.Equal(t, trip.Traveler.Hex(), received.UserID, "new bids go to the traveler")
	assert.Equal(t, bid.Agent.Hex(), received.CounterpartyID)
	assert.Equal(t, "bid_received", received.Template)
	assert.Equal(t, bid.Agent.Hex(), rejected.UserID, "decisions go to the agent")
	assert.Equal(t, 900.0, rejected.Price)

	failing := NewEmailNotifier(&recordingEnqueuer{err: errors.New("redis down")})
	assert.NotPanics(t, func() {
		failing.NotifyBid(context.Background(), services.EventBidAccepted, trip, bid)
	})
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	cfg := testConfig()
	cfg.BidExpirySchedule = "every so often"
	_, err := NewScheduler(rdb, cfg)
	assert.Error(t, err)

	cfg.BidExpirySchedule = "@every 1h"
	cfg.StatsReconcileSchedule = "@daily"
	s, err := NewScheduler(rdb, cfg)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestRedisOptCarriesCredentials(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "cache:6380", Password: "pw", DB: 2})
	defer rdb.Close()
	opt := RedisOpt(rdb)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}
