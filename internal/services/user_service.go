package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Meekal-Jamil/travelbid/internal/auth"
	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/db"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/utils"
)

// IUserService defines the interface for user-related operations.
type IUserService interface {
	Register(ctx context.Context, name, email, password string, role models.Role) (*models.User, string, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, string, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, name, password *string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListAgentIDs(ctx context.Context) ([]primitive.ObjectID, error)
	GetAgentStats(ctx context.Context, agentID primitive.ObjectID) (*models.AgentStats, error)
	ReconcileAgentStats(ctx context.Context, agentID primitive.ObjectID) (*models.AgentStats, error)
}

// userService implements IUserService.
type userService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database, cfg *config.Config) IUserService {
	return &userService{db: db, cfg: cfg}
}

func (s *userService) users() *mongo.Collection { return s.db.Collection(usersCollection) }

func (s *userService) issueToken(user *models.User) (string, error) {
	return auth.GenerateJWT(user.ID, user.Role, s.cfg.JwtSecret, s.cfg.JwtTTL)
}

func (s *userService) checkPassword(password string) error {
	if !auth.PasswordLongEnough(password, s.cfg.PasswordMinLength) {
		return validationError("password must be at least %d characters", s.cfg.PasswordMinLength)
	}
	if !auth.PasswordShortEnough(password) {
		return validationError("password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	return nil
}

// Register creates a traveler or agent account and returns it with a session token.
func (s *userService) Register(ctx context.Context, name, email, password string, role models.Role) (*models.User, string, error) {
	name = strings.TrimSpace(name)
	email = utils.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, "", validationError("name, email and password are required")
	}
	if !utils.ValidEmail(email, s.cfg.AllowedEmailDomain) {
		if s.cfg.AllowedEmailDomain != "" {
			return nil, "", validationError("email must be a valid @%s address", s.cfg.AllowedEmailDomain)
		}
		return nil, "", validationError("email is not valid")
	}
	if !role.SelfAssignable() {
		return nil, "", validationError("role must be traveler or agent")
	}
	if err := s.checkPassword(password); err != nil {
		return nil, "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = db.Try(func() error {
		user.GenID()
		_, insertErr := s.users().InsertOne(ctx, user)
		return insertErr
	})
	if err != nil {
		if db.IsDuplicateOn(err, EmailIndexName) {
			return nil, "", ErrEmailExists
		}
		return nil, "", fmt.Errorf("failed to insert user %s: %w", email, err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	log.Printf("Registered %s account %s", role, user.ID.Hex())
	return user, token, nil
}

// Authenticate checks email and password and returns a fresh token.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, string, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", validationError("email and password are required")
	}

	var user models.User
	err := s.users().FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("error finding user by email: %w", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(&user)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// FindByID returns ErrUserNotFound when no such user exists.
func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.users().FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error finding user %s: %w", userID.Hex(), err)
	}
	return &user, nil
}

// UpdateProfile changes the caller's name and/or password. Nil fields are left alone.
func (s *userService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, name, password *string) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, validationError("name cannot be empty")
		}
		set["name"] = n
	}
	if password != nil {
		if err := s.checkPassword(*password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*password)
		if err != nil {
			return nil, err
		}
		set["password"] = hash
	}

	var user models.User
	err := s.users().FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("db error updating user %s: %w", userID.Hex(), err)
	}
	return &user, nil
}

// ListUsers returns every account, newest first.
func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"password": 0})
	cursor, err := s.users().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (s *userService) ListAgentIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cursor, err := s.users().Find(ctx, bson.M{"role": models.RoleAgent}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode agent ids: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// GetAgentStats returns the stored aggregate for an agent.
func (s *userService) GetAgentStats(ctx context.Context, agentID primitive.ObjectID) (*models.AgentStats, error) {
	user, err := s.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleAgent {
		return nil, ErrForbidden
	}
	return &user.Stats, nil
}

// ReconcileAgentStats recomputes an agent's stats from the bids collection
// and overwrites the stored aggregate.
func (s *userService) ReconcileAgentStats(ctx context.Context, agentID primitive.ObjectID) (*models.AgentStats, error) {
	countIf := func(cond interface{}) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"agent": agentID}}},
		{{Key: "$group", Value: bson.M{
			"_id":            nil,
			"total_bids":     bson.M{"$sum": 1},
			"pending_bids":   countIf(bson.M{"$eq": bson.A{"$status", models.BidPending}}),
			"accepted_bids":  countIf(bson.M{"$eq": bson.A{"$status", models.BidAccepted}}),
			"rejected_bids":  countIf(bson.M{"$in": bson.A{"$status", bson.A{models.BidRejected, models.BidExpired}}}),
			"total_earnings": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$payment_status", models.PaymentPaid}}, "$price", 0}}},
		}}},
	}

	cursor, err := s.db.Collection(bidsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bids for agent %s: %w", agentID.Hex(), err)
	}
	var rows []models.AgentStats
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode stats for agent %s: %w", agentID.Hex(), err)
	}
	stats := models.AgentStats{}
	if len(rows) > 0 {
		stats = rows[0]
	}

	res, err := s.users().UpdateOne(ctx,
		bson.M{"_id": agentID, "role": models.RoleAgent},
		bson.M{"$set": bson.M{"stats": stats, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return nil, fmt.Errorf("db error storing stats for agent %s: %w", agentID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrUserNotFound
	}
	return &stats, nil
}
