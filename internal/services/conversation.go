package services

import (
	"context"
	"errors"
	"strings"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationService maps user pairs to direct conversations and carries messages.
//
// Whether a direct message is a "request" is never stored. It is derived from
// the pair's relationship every time messages are read, so accepting a friend
// request promotes the whole history at once.
type ConversationService struct {
	config
	conversations repositories.ConversationRepository
	relationships *RelationshipService
	identity      IdentityLookup
	logger        *zap.Logger
}

// NewConversationService creates a ConversationService. relationships gates
// direct messages and classifies them as requests.
func NewConversationService(conversations repositories.ConversationRepository, relationships *RelationshipService, identity IdentityLookup, opts ...Option) *ConversationService {
	cfg := newConfig(opts)
	return &ConversationService{
		config:        cfg,
		conversations: conversations,
		relationships: relationships,
		identity:      identity,
		logger:        cfg.logger.Named("conversations"),
	}
}

// GetOrCreateDirect returns the single direct conversation between a and b,
// creating it on first use. Argument order does not matter.
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	if a == b {
		return nil, apperrors.SelfReference("cannot start a conversation with yourself")
	}
	if _, err := s.identity.GetByID(ctx, b); err != nil {
		return nil, err
	}

	conv, created, err := s.conversations.GetOrCreateDirect(ctx, models.NewPair(a, b), a, s.now())
	if err != nil {
		return nil, storageError(err, "get or create direct conversation")
	}
	if created {
		s.logger.Debug("Direct conversation created", zap.String("id", conv.ID.String()))
	}
	return conv, nil
}

// CreateGroup creates a group conversation. The creator is always a member.
func (s *ConversationService) CreateGroup(ctx context.Context, creator uuid.UUID, title string, members []uuid.UUID) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.InvalidState("", "group title is required")
	}

	now := s.now()
	seen := map[uuid.UUID]bool{creator: true}
	list := []models.ConversationMember{{UserID: creator, JoinedAt: now}}
	for _, id := range members {
		if seen[id] {
			continue
		}
		if _, err := s.identity.GetByID(ctx, id); err != nil {
			return nil, err
		}
		seen[id] = true
		list = append(list, models.ConversationMember{UserID: id, JoinedAt: now})
	}
	if len(list) < 2 {
		return nil, apperrors.InvalidState("", "a group needs at least one other member")
	}

	conv := &models.Conversation{
		ID:        uuid.New(),
		Kind:      models.ConversationGroup,
		Title:     title,
		CreatedBy: creator,
		Members:   list,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.CreateGroup(ctx, conv); err != nil {
		return nil, storageError(err, "create group conversation")
	}
	return conv, nil
}

// memberConversation loads a conversation and checks that user belongs to it.
func (s *ConversationService) memberConversation(ctx context.Context, id, user uuid.UUID) (*models.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, id)
	if isNotFound(err) {
		return nil, apperrors.NotFound("conversation %s not found", id)
	}
	if err != nil {
		return nil, storageError(err, "get conversation")
	}
	for _, m := range conv.Members {
		if m.UserID == user {
			return conv, nil
		}
	}
	return nil, apperrors.InvalidState(apperrors.ReasonNotMember, "you are not a member of this conversation")
}

// counterpart returns the other member of a direct conversation.
func counterpart(conv *models.Conversation, user uuid.UUID) (uuid.UUID, bool) {
	if conv.Kind != models.ConversationDirect {
		return uuid.Nil, false
	}
	for _, m := range conv.Members {
		if m.UserID != user {
			return m.UserID, true
		}
	}
	return uuid.Nil, false
}

// classify derives the message kind of a conversation as seen by user.
func (s *ConversationService) classify(ctx context.Context, conv *models.Conversation, user uuid.UUID) (models.MessageKind, models.RelationshipStatus, error) {
	other, ok := counterpart(conv, user)
	if !ok {
		return models.MessageDirect, models.StatusNone, nil
	}
	status, err := s.relationships.Status(ctx, user, other)
	if err != nil {
		return "", "", err
	}
	return kindFor(status), status, nil
}

func kindFor(status models.RelationshipStatus) models.MessageKind {
	if status == models.StatusAccepted {
		return models.MessageDirect
	}
	return models.MessageRequest
}

// PostMessage appends a message and advances the author's read position to it.
func (s *ConversationService) PostMessage(ctx context.Context, conversationID, author uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.InvalidState("", "message content is required")
	}

	conv, err := s.memberConversation(ctx, conversationID, author)
	if err != nil {
		return nil, err
	}
	kind, status, err := s.classify(ctx, conv, author)
	if err != nil {
		return nil, err
	}
	if status == models.StatusBlocked {
		return nil, apperrors.Conflict(apperrors.ReasonBlocked, "you cannot message this user")
	}

	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		AuthorID:       author,
		Content:        content,
		CreatedAt:      s.now(),
	}
	err = s.conversations.AppendMessage(ctx, msg)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, apperrors.NotFound("conversation %s not found", conversationID)
	case errors.Is(err, repositories.ErrNotMember):
		return nil, apperrors.InvalidState(apperrors.ReasonNotMember, "you are not a member of this conversation")
	case err != nil:
		return nil, storageError(err, "append message")
	}
	msg.Kind = kind

	for _, m := range conv.Members {
		s.publish(ctx, events.Event{
			Type:       models.NotificationMessage,
			Recipient:  m.UserID,
			Actor:      author,
			Entity:     conversationID.String(),
			OccurredAt: msg.CreatedAt,
		})
	}
	return msg, nil
}

// ListMessages returns one page of a conversation, newest first, with every
// message classified for viewer.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID, viewer uuid.UUID, token string, limit int) (*pagination.Page[models.Message], error) {
	cursor, err := decodeUUIDCursor(token)
	if err != nil {
		return nil, err
	}
	limit = pagination.ClampLimit(limit)

	conv, err := s.memberConversation(ctx, conversationID, viewer)
	if err != nil {
		return nil, err
	}
	kind, _, err := s.classify(ctx, conv, viewer)
	if err != nil {
		return nil, err
	}

	msgs, err := s.conversations.ListMessages(ctx, conversationID, cursor, limit)
	if err != nil {
		return nil, storageError(err, "list messages")
	}
	for i := range msgs {
		msgs[i].Kind = kind
	}
	page := pagination.NewPage(msgs, limit)
	return &page, nil
}

// ListConversations returns the user's conversations, most recently active
// first, with unread counts and the request classification of direct chats.
func (s *ConversationService) ListConversations(ctx context.Context, user uuid.UUID) ([]models.ConversationSummary, error) {
	summaries, err := s.conversations.ListForUser(ctx, user)
	if err != nil {
		return nil, storageError(err, "list conversations")
	}
	statuses, err := s.relationships.statusesFor(ctx, user)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if other, ok := counterpart(&summaries[i].Conversation, user); ok {
			summaries[i].Classified = kindFor(statuses[other])
		} else {
			summaries[i].Classified = models.MessageDirect
		}
	}
	return summaries, nil
}

// MarkRead moves the user's read position in a conversation to now.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, user uuid.UUID) error {
	if _, err := s.memberConversation(ctx, conversationID, user); err != nil {
		return err
	}
	err := s.conversations.MarkRead(ctx, conversationID, user, s.now())
	if errors.Is(err, repositories.ErrNotMember) {
		return apperrors.InvalidState(apperrors.ReasonNotMember, "you are not a member of this conversation")
	}
	if err != nil {
		return storageError(err, "mark conversation read")
	}
	return nil
}
