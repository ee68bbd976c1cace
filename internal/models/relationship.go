package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RelationshipStatus string

const (
	StatusNone     RelationshipStatus = "none"
	StatusPending  RelationshipStatus = "pending"
	StatusAccepted RelationshipStatus = "accepted"
	StatusRejected RelationshipStatus = "rejected"
	StatusBlocked  RelationshipStatus = "blocked"
)

// Relationship is the single row describing an unordered pair of users.
// The pair is always stored with UserLow < UserHigh in uuid byte order.
// Each side's block is recorded separately; a blocked row stays blocked
// while either flag is set.
type Relationship struct {
	UserLow       uuid.UUID          `json:"user_low" gorm:"type:uuid;primaryKey"`
	UserHigh      uuid.UUID          `json:"user_high" gorm:"type:uuid;primaryKey;index"`
	InitiatorID   uuid.UUID          `json:"initiator_id" gorm:"type:uuid;not null"`
	Status        RelationshipStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	BlockedByLow  bool               `json:"-" gorm:"not null;default:false"`
	BlockedByHigh bool               `json:"-" gorm:"not null;default:false"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// BlockedBy reports whether user has a block in force on this pair.
func (r *Relationship) BlockedBy(user uuid.UUID) bool {
	if r.Status != StatusBlocked {
		return false
	}
	switch user {
	case r.UserLow:
		return r.BlockedByLow
	case r.UserHigh:
		return r.BlockedByHigh
	}
	return false
}

// Blockers lists the users with a block in force, low side first.
func (r *Relationship) Blockers() []uuid.UUID {
	out := []uuid.UUID{}
	if r.Status != StatusBlocked {
		return out
	}
	if r.BlockedByLow {
		out = append(out, r.UserLow)
	}
	if r.BlockedByHigh {
		out = append(out, r.UserHigh)
	}
	return out
}

// SetBlock records or clears user's block flag.
func (r *Relationship) SetBlock(user uuid.UUID, blocked bool) {
	if user == r.UserLow {
		r.BlockedByLow = blocked
	} else {
		r.BlockedByHigh = blocked
	}
}

// MarshalJSON exposes the block flags as the list of blocking users.
func (r Relationship) MarshalJSON() ([]byte, error) {
	type plain Relationship
	return json.Marshal(struct {
		plain
		BlockedBy []uuid.UUID `json:"blocked_by,omitempty"`
	}{plain: plain(r), BlockedBy: r.Blockers()})
}

// Other returns the member of the pair that is not user.
func (r *Relationship) Other(user uuid.UUID) uuid.UUID {
	if r.UserLow == user {
		return r.UserHigh
	}
	return r.UserLow
}

// Pair is a canonically ordered pair of user ids.
type Pair struct {
	Low  uuid.UUID
	High uuid.UUID
}

// NewPair orders a and b so that {a,b} and {b,a} produce the same Pair.
func NewPair(a, b uuid.UUID) Pair {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return Pair{Low: a, High: b}
	}
	return Pair{Low: b, High: a}
}

// Key renders the pair as "<low>:<high>".
func (p Pair) Key() string {
	return p.Low.String() + ":" + p.High.String()
}

// BlockColumn names the column holding user's block flag.
func (p Pair) BlockColumn(user uuid.UUID) string {
	if user == p.Low {
		return "blocked_by_low"
	}
	return "blocked_by_high"
}

// Contains reports whether id is one of the two members.
func (p Pair) Contains(id uuid.UUID) bool {
	return p.Low == id || p.High == id
}

// RelationshipList groups a user's relationships by how they present to that user.
type RelationshipList struct {
	Accepted        []Relationship `json:"accepted"`
	InboundPending  []Relationship `json:"inbound_pending"`
	OutboundPending []Relationship `json:"outbound_pending"`
	Blocked         []Relationship `json:"blocked"`
	// Friends carries the presence of every accepted counterpart.
	Friends []FriendPresence `json:"friends"`
}

type FriendRequestByHandle struct {
	Target string `json:"target" validate:"required,min=4,max=60"`
}

type RespondFriendRequest struct {
	Decision RelationshipStatus `json:"decision" validate:"required,oneof=accepted rejected"`
}
