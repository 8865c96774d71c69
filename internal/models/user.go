package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the account type. It decides which routes a user may call.
type Role string

const (
	RoleTraveler Role = "traveler"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleTraveler, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether r may be chosen at registration.
func (r Role) SelfAssignable() bool {
	return r == RoleTraveler || r == RoleAgent
}

// AgentStats is the per-agent aggregate of bid outcomes.
// Expired bids are counted as rejected.
type AgentStats struct {
	TotalBids     int     `bson:"total_bids" json:"totalBids"`
	PendingBids   int     `bson:"pending_bids" json:"pendingBids"`
	AcceptedBids  int     `bson:"accepted_bids" json:"acceptedBids"`
	RejectedBids  int     `bson:"rejected_bids" json:"rejectedBids"`
	TotalEarnings float64 `bson:"total_earnings" json:"totalEarnings"`
}

// Consistent reports whether the counters add up.
func (s AgentStats) Consistent() bool {
	return s.TotalBids == s.PendingBids+s.AcceptedBids+s.RejectedBids
}

// User represents a traveler, agent or administrator account.
type User struct {
	Base         `bson:",inline"`
	Name         string     `bson:"name" json:"name"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password" json:"-"`
	Role         Role       `bson:"role" json:"role"`
	Stats        AgentStats `bson:"stats" json:"stats"`
	CreatedAt    time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updatedAt"`
}

// UserSummary is the public projection of a user embedded in other responses.
type UserSummary struct {
	ID    primitive.ObjectID `bson:"_id" json:"_id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
	Role  Role               `bson:"role,omitempty" json:"role,omitempty"`
}

// Summary returns the public projection of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
