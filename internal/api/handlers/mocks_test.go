package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// --- Mocks ---

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, name, email, password string, role models.Role) (*models.User, string, error) {
	args := m.Called(ctx, name, email, password, role)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.String(1), args.Error(2)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.String(1), args.Error(2)
}

func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, name, password *string) (*models.User, error) {
	args := m.Called(ctx, userID, name, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserService) ListAgentIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]primitive.ObjectID), args.Error(1)
}

func (m *MockUserService) GetAgentStats(ctx context.Context, agentID primitive.ObjectID) (*models.AgentStats, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AgentStats), args.Error(1)
}

func (m *MockUserService) ReconcileAgentStats(ctx context.Context, agentID primitive.ObjectID) (*models.AgentStats, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AgentStats), args.Error(1)
}

type MockTripService struct {
	mock.Mock
}

func (m *MockTripService) CreateTrip(ctx context.Context, travelerID primitive.ObjectID, input services.TripInput) (*models.Trip, error) {
	args := m.Called(ctx, travelerID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *MockTripService) GetTrip(ctx context.Context, tripID, viewerID primitive.ObjectID, role models.Role) (*models.TripListing, error) {
	args := m.Called(ctx, tripID, viewerID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TripListing), args.Error(1)
}

func (m *MockTripService) ListTrips(ctx context.Context, userID primitive.ObjectID, role models.Role) ([]models.TripListing, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TripListing), args.Error(1)
}

func (m *MockTripService) SearchTrips(ctx context.Context, search models.TripSearch, viewerID primitive.ObjectID, role models.Role) ([]models.TripListing, error) {
	args := m.Called(ctx, search, viewerID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TripListing), args.Error(1)
}

func (m *MockTripService) UpdateStatus(ctx context.Context, tripID, userID primitive.ObjectID, status models.TripStatus) (*models.Trip, error) {
	args := m.Called(ctx, tripID, userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *MockTripService) RequestImageUpload(ctx context.Context, tripID, userID primitive.ObjectID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, tripID, userID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockTripService) ConfirmImageUpload(ctx context.Context, tripID, userID primitive.ObjectID, key string) error {
	return m.Called(ctx, tripID, userID, key).Error(0)
}

func (m *MockTripService) AddImage(ctx context.Context, tripID primitive.ObjectID, key string) error {
	return m.Called(ctx, tripID, key).Error(0)
}

type MockBidService struct {
	mock.Mock
}

func (m *MockBidService) bid(args mock.Arguments) (*models.Bid, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *MockBidService) SubmitBid(ctx context.Context, agentID, tripID primitive.ObjectID, price float64, services string) (*models.Bid, error) {
	return m.bid(m.Called(ctx, agentID, tripID, price, services))
}

func (m *MockBidService) GetBidsByTrip(ctx context.Context, tripID, viewerID primitive.ObjectID, role models.Role) ([]models.BidWithAgent, error) {
	args := m.Called(ctx, tripID, viewerID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BidWithAgent), args.Error(1)
}

func (m *MockBidService) HandleBidAction(ctx context.Context, tripID, bidID, userID primitive.ObjectID, action string) (*models.Bid, error) {
	return m.bid(m.Called(ctx, tripID, bidID, userID, action))
}

func (m *MockBidService) AcceptBid(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, error) {
	return m.bid(m.Called(ctx, bidID, userID))
}

func (m *MockBidService) RejectBid(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, error) {
	return m.bid(m.Called(ctx, bidID, userID))
}

func (m *MockBidService) ConfirmPayment(ctx context.Context, bidID, userID primitive.ObjectID) (*models.Bid, error) {
	return m.bid(m.Called(ctx, bidID, userID))
}

func (m *MockBidService) RateBid(ctx context.Context, bidID, userID primitive.ObjectID, rating int) (*models.Bid, error) {
	return m.bid(m.Called(ctx, bidID, userID, rating))
}

func (m *MockBidService) GetTravelerBookings(ctx context.Context, travelerID primitive.ObjectID) ([]models.Booking, error) {
	args := m.Called(ctx, travelerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBidService) ExpireStaleBids(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, senderID, receiverID primitive.ObjectID, content string) (*models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) GetMessages(ctx context.Context, userID primitive.ObjectID) ([]models.MessageView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MessageView), args.Error(1)
}

func (m *MockMessageService) GetChatPartners(ctx context.Context, userID primitive.ObjectID) ([]models.ChatPartner, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatPartner), args.Error(1)
}

func (m *MockMessageService) GetConversation(ctx context.Context, userID, otherID primitive.ObjectID) ([]models.MessageView, error) {
	args := m.Called(ctx, userID, otherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MessageView), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePaymentIntent(ctx context.Context, tripID, bidID, userID primitive.ObjectID) (*models.PaymentIntent, error) {
	args := m.Called(ctx, tripID, bidID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentIntent), args.Error(1)
}

func (m *MockPaymentService) HandleSuccessfulPayment(ctx context.Context, tripID, bidID, userID primitive.ObjectID, intentID string) (*models.Bid, error) {
	args := m.Called(ctx, tripID, bidID, userID, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

type MockSettingsService struct {
	mock.Mock
}

func (m *MockSettingsService) Load(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSettingsService) SubscribeToChanges(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSettingsService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockSettingsService) GetInt(key string, defaultValue int) int {
	return m.Called(key, defaultValue).Int(0)
}

func (m *MockSettingsService) SetValue(ctx context.Context, key string, value interface{}, public bool) error {
	return m.Called(ctx, key, value, public).Error(0)
}

func (m *MockSettingsService) GetEndpointConfig(method, endpoint string) *models.APIEndpointConfig {
	args := m.Called(method, endpoint)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.APIEndpointConfig)
}

// MockAsynqClient implements tasks.Enqueuer
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
