package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Meekal-Jamil/travelbid/internal/db"
	"github.com/Meekal-Jamil/travelbid/internal/models"
)

const messagesCollection = "messages"

// IMessageService defines direct messaging between users.
type IMessageService interface {
	Send(ctx context.Context, senderID, receiverID primitive.ObjectID, content string) (*models.Message, error)
	GetMessages(ctx context.Context, userID primitive.ObjectID) ([]models.MessageView, error)
	GetChatPartners(ctx context.Context, userID primitive.ObjectID) ([]models.ChatPartner, error)
	GetConversation(ctx context.Context, userID, otherID primitive.ObjectID) ([]models.MessageView, error)
}

type messageService struct {
	db *mongo.Database
}

// NewMessageService creates a new MessageService.
func NewMessageService(db *mongo.Database) IMessageService {
	return &messageService{db: db}
}

func (s *messageService) messages() *mongo.Collection { return s.db.Collection(messagesCollection) }

// Send stores a message from senderID to an existing receiver.
func (s *messageService) Send(ctx context.Context, senderID, receiverID primitive.ObjectID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("message content is required")
	}
	if senderID == receiverID {
		return nil, validationError("cannot send a message to yourself")
	}

	n, err := s.db.Collection(usersCollection).CountDocuments(ctx, bson.M{"_id": receiverID})
	if err != nil {
		return nil, fmt.Errorf("error checking receiver %s: %w", receiverID.Hex(), err)
	}
	if n == 0 {
		return nil, ErrUserNotFound
	}

	msg := &models.Message{
		Sender:    senderID,
		Receiver:  receiverID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	err = db.Try(func() error {
		msg.GenID()
		_, insertErr := s.messages().InsertOne(ctx, msg)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// GetMessages returns every message the user sent or received, oldest first.
func (s *messageService) GetMessages(ctx context.Context, userID primitive.ObjectID) ([]models.MessageView, error) {
	return s.views(ctx, bson.M{"$or": bson.A{
		bson.M{"sender": userID},
		bson.M{"receiver": userID},
	}})
}

// GetConversation returns the messages exchanged between two users, oldest first.
func (s *messageService) GetConversation(ctx context.Context, userID, otherID primitive.ObjectID) ([]models.MessageView, error) {
	return s.views(ctx, bson.M{"$or": bson.A{
		bson.M{"sender": userID, "receiver": otherID},
		bson.M{"sender": otherID, "receiver": userID},
	}})
}

func (s *messageService) views(ctx context.Context, filter bson.M) ([]models.MessageView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	pipeline = append(pipeline, lookupUser("sender", "sender_info")...)
	pipeline = append(pipeline, lookupUser("receiver", "receiver_info")...)

	cursor, err := s.messages().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := []models.MessageView{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return msgs, nil
}

// GetChatPartners lists everyone the user has exchanged messages with, with
// the latest message of each conversation, most recent first.
func (s *messageService) GetChatPartners(ctx context.Context, userID primitive.ObjectID) ([]models.ChatPartner, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender": userID},
			bson.M{"receiver": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender", userID}},
				"$receiver",
				"$sender",
			}},
			"last_message":    bson.M{"$last": "$content"},
			"last_message_at": bson.M{"$last": "$timestamp"},
			"last_id":         bson.M{"$last": "$_id"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message_at", Value: -1}, {Key: "last_id", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         usersCollection,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$project", Value: bson.M{
			"_id":             0,
			"user._id":        1,
			"user.name":       1,
			"user.email":      1,
			"user.role":       1,
			"last_message":    1,
			"last_message_at": 1,
		}}},
	}

	cursor, err := s.messages().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat partners for %s: %w", userID.Hex(), err)
	}
	defer cursor.Close(ctx)

	partners := []models.ChatPartner{}
	if err := cursor.All(ctx, &partners); err != nil {
		return nil, fmt.Errorf("failed to decode chat partners: %w", err)
	}
	return partners, nil
}
