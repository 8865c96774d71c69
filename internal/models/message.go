package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is a direct message between two users.
type Message struct {
	Base      `bson:",inline"`
	Sender    primitive.ObjectID `bson:"sender" json:"sender"`
	Receiver  primitive.ObjectID `bson:"receiver" json:"receiver"`
	Content   string             `bson:"content" json:"content"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// MessageView is a message with both participants' names resolved.
type MessageView struct {
	Message      `bson:",inline"`
	SenderInfo   *UserSummary `bson:"sender_info,omitempty" json:"senderInfo,omitempty"`
	ReceiverInfo *UserSummary `bson:"receiver_info,omitempty" json:"receiverInfo,omitempty"`
}

// ChatPartner is one row of a user's conversation list.
type ChatPartner struct {
	User          UserSummary `bson:"user" json:"user"`
	LastMessage   string      `bson:"last_message" json:"lastMessage"`
	LastMessageAt time.Time   `bson:"last_message_at" json:"lastMessageAt"`
}
