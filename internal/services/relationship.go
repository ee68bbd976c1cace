package services

import (
	"context"
	"errors"
	"sort"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RelationshipService owns the pairwise friendship state machine:
//
//	(none)   --request-->           pending
//	pending  --accept/reject-->     accepted | rejected   (non-initiator only)
//	any      --block-->             blocked
//	blocked  --unblock(blocker)-->  (none) once neither side still blocks
//
// A rejected pair may be requested again; the new request replaces the row.
// Either side may block; each block is lifted only by the user who imposed it.
type RelationshipService struct {
	config
	relationships repositories.RelationshipRepository
	identity      *IdentityService
	logger        *zap.Logger
}

// NewRelationshipService creates a RelationshipService. identity resolves
// request targets and checks that blocked users exist.
func NewRelationshipService(relationships repositories.RelationshipRepository, identity *IdentityService, opts ...Option) *RelationshipService {
	cfg := newConfig(opts)
	return &RelationshipService{
		config:        cfg,
		relationships: relationships,
		identity:      identity,
		logger:        cfg.logger.Named("relationships"),
	}
}

// Request sends a friend request to the identity targetHandle resolves to.
func (s *RelationshipService) Request(ctx context.Context, requester uuid.UUID, targetHandle string) (*models.Relationship, error) {
	target, err := s.identity.Resolve(ctx, targetHandle)
	if err != nil {
		return nil, err
	}
	return s.request(ctx, requester, target.ID)
}

// RequestByID sends a friend request to a known identity id.
func (s *RelationshipService) RequestByID(ctx context.Context, requester, target uuid.UUID) (*models.Relationship, error) {
	if requester == target {
		return nil, apperrors.SelfReference("cannot send a friend request to yourself")
	}
	if _, err := s.identity.GetByID(ctx, target); err != nil {
		return nil, err
	}
	return s.request(ctx, requester, target)
}

func (s *RelationshipService) request(ctx context.Context, requester, target uuid.UUID) (*models.Relationship, error) {
	if requester == target {
		return nil, apperrors.SelfReference("cannot send a friend request to yourself")
	}

	rel, inserted, err := s.relationships.InsertRequest(ctx, models.NewPair(requester, target), requester, s.now())
	if err != nil {
		return nil, storageError(err, "insert friend request")
	}
	if !inserted {
		return nil, conflictFor(rel)
	}

	s.logger.Debug("Friend request sent", zap.String("from", requester.String()), zap.String("to", target.String()))
	s.publish(ctx, events.Event{Type: models.NotificationFriendRequest, Recipient: target, Actor: requester})
	return rel, nil
}

func conflictFor(rel *models.Relationship) error {
	if rel == nil {
		return apperrors.Conflict("", "relationship changed concurrently, retry")
	}
	switch rel.Status {
	case models.StatusPending:
		return apperrors.Conflict(apperrors.ReasonPending, "a friend request is already pending")
	case models.StatusAccepted:
		return apperrors.Conflict(apperrors.ReasonAlreadyFriends, "you are already friends")
	case models.StatusBlocked:
		return apperrors.Conflict(apperrors.ReasonBlocked, "friend requests are not possible")
	default:
		return apperrors.Conflict("", "relationship is %s", rel.Status)
	}
}

// Respond accepts or rejects a pending request. Only the non-initiator may respond.
func (s *RelationshipService) Respond(ctx context.Context, responder, other uuid.UUID, decision models.RelationshipStatus) (*models.Relationship, error) {
	if decision != models.StatusAccepted && decision != models.StatusRejected {
		return nil, apperrors.InvalidState("", "decision must be accepted or rejected")
	}
	if responder == other {
		return nil, apperrors.SelfReference("cannot respond to yourself")
	}

	rel, err := s.relationships.Respond(ctx, models.NewPair(responder, other), responder, decision, s.now())
	if errors.Is(err, repositories.ErrStaleState) {
		return nil, apperrors.InvalidState(apperrors.ReasonNotPending, "no pending request from this user")
	}
	if err != nil {
		return nil, storageError(err, "respond to friend request")
	}

	if decision == models.StatusAccepted {
		s.publish(ctx, events.Event{Type: models.NotificationFriendAccept, Recipient: rel.InitiatorID, Actor: responder})
	}
	return rel, nil
}

// Block blocks other. It is idempotent per user; when other already blocks
// blocker the pair carries both blocks.
func (s *RelationshipService) Block(ctx context.Context, blocker, other uuid.UUID) (*models.Relationship, error) {
	if blocker == other {
		return nil, apperrors.SelfReference("cannot block yourself")
	}
	if _, err := s.identity.GetByID(ctx, other); err != nil {
		return nil, err
	}
	rel, err := s.relationships.Block(ctx, models.NewPair(blocker, other), blocker, s.now())
	if err != nil {
		return nil, storageError(err, "block user")
	}
	s.logger.Info("User blocked", zap.String("blocker", blocker.String()), zap.String("blocked", other.String()))
	return rel, nil
}

// Unblock lifts blocker's own block. The pair stays blocked while other
// still blocks blocker.
func (s *RelationshipService) Unblock(ctx context.Context, blocker, other uuid.UUID) error {
	err := s.relationships.Unblock(ctx, models.NewPair(blocker, other), blocker, s.now())
	if errors.Is(err, repositories.ErrStaleState) {
		return apperrors.InvalidState(apperrors.ReasonNotBlocker, "you have not blocked this user")
	}
	if err != nil {
		return storageError(err, "unblock user")
	}
	return nil
}

// Unfriend removes an accepted friendship.
func (s *RelationshipService) Unfriend(ctx context.Context, user, other uuid.UUID) error {
	err := s.relationships.DeleteAccepted(ctx, models.NewPair(user, other))
	if errors.Is(err, repositories.ErrStaleState) {
		return apperrors.InvalidState(apperrors.ReasonNotFriends, "you are not friends")
	}
	if err != nil {
		return storageError(err, "unfriend")
	}
	return nil
}

// CancelRequest withdraws a pending request the user sent.
func (s *RelationshipService) CancelRequest(ctx context.Context, user, other uuid.UUID) error {
	err := s.relationships.CancelPending(ctx, models.NewPair(user, other), user)
	if errors.Is(err, repositories.ErrStaleState) {
		return apperrors.InvalidState(apperrors.ReasonNotPending, "no pending request to cancel")
	}
	if err != nil {
		return storageError(err, "cancel friend request")
	}
	return nil
}

// Status returns the pair's current status, or StatusNone when no row exists.
func (s *RelationshipService) Status(ctx context.Context, a, b uuid.UUID) (models.RelationshipStatus, error) {
	rel, err := s.relationships.GetRelationship(ctx, models.NewPair(a, b))
	if isNotFound(err) {
		return models.StatusNone, nil
	}
	if err != nil {
		return "", storageError(err, "get relationship")
	}
	return rel.Status, nil
}

// ListRelationships classifies every pair containing user from user's point of view.
func (s *RelationshipService) ListRelationships(ctx context.Context, user uuid.UUID) (*models.RelationshipList, error) {
	rels, err := s.relationships.ListForUser(ctx, user)
	if err != nil {
		return nil, storageError(err, "list relationships")
	}

	list := &models.RelationshipList{
		Accepted:        []models.Relationship{},
		InboundPending:  []models.Relationship{},
		OutboundPending: []models.Relationship{},
		Blocked:         []models.Relationship{},
	}
	var friendIDs []uuid.UUID
	for _, rel := range rels {
		switch rel.Status {
		case models.StatusAccepted:
			list.Accepted = append(list.Accepted, rel)
			friendIDs = append(friendIDs, rel.Other(user))
		case models.StatusPending:
			if rel.InitiatorID == user {
				list.OutboundPending = append(list.OutboundPending, rel)
			} else {
				list.InboundPending = append(list.InboundPending, rel)
			}
		case models.StatusBlocked:
			if rel.BlockedBy(user) {
				list.Blocked = append(list.Blocked, rel)
			}
		}
	}

	list.Friends, err = s.friendPresence(ctx, friendIDs, false)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListFriends returns user's friends with their presence, ordered by handle.
// With onlineOnly only friends currently online are returned.
func (s *RelationshipService) ListFriends(ctx context.Context, user uuid.UUID, onlineOnly bool) ([]models.FriendPresence, error) {
	rels, err := s.relationships.ListForUser(ctx, user)
	if err != nil {
		return nil, storageError(err, "list relationships")
	}
	var ids []uuid.UUID
	for i := range rels {
		if rels[i].Status == models.StatusAccepted {
			ids = append(ids, rels[i].Other(user))
		}
	}
	return s.friendPresence(ctx, ids, onlineOnly)
}

func (s *RelationshipService) friendPresence(ctx context.Context, ids []uuid.UUID, onlineOnly bool) ([]models.FriendPresence, error) {
	friends := []models.FriendPresence{}
	if len(ids) == 0 {
		return friends, nil
	}
	users, err := s.identity.byIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if onlineOnly && users[i].Presence != models.PresenceOnline {
			continue
		}
		friends = append(friends, users[i].ToFriendPresence())
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].Handle < friends[j].Handle })
	return friends, nil
}

// statusesFor maps each counterpart of user to the pair status.
func (s *RelationshipService) statusesFor(ctx context.Context, user uuid.UUID) (map[uuid.UUID]models.RelationshipStatus, error) {
	rels, err := s.relationships.ListForUser(ctx, user)
	if err != nil {
		return nil, storageError(err, "list relationships")
	}
	out := make(map[uuid.UUID]models.RelationshipStatus, len(rels))
	for i := range rels {
		out[rels[i].Other(user)] = rels[i].Status
	}
	return out, nil
}
