package tasks

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	return m.Called(ctx, to, subject, rawMessage).Error(0)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GeneratePresignedPutURL(ctx context.Context, tripID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, tripID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockStorage) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockStorage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

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

// MockBidService only needs the sweep; the rest panic if a test reaches them.
type MockBidService struct {
	mock.Mock
	services.IBidService
}

func (m *MockBidService) ExpireStaleBids(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}
