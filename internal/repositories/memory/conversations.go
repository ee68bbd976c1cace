package memory

import (
	"context"
	"sort"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
)

type ConversationRepository struct{ s *Store }

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

func (r *ConversationRepository) GetOrCreateDirect(_ context.Context, pair models.Pair, creator uuid.UUID, at time.Time) (*models.Conversation, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := pair.Key()
	if id, ok := r.s.directKeys[key]; ok {
		return r.load(id), false, nil
	}
	conv := models.Conversation{
		ID:        uuid.New(),
		Kind:      models.ConversationDirect,
		DirectKey: &key,
		CreatedBy: creator,
		CreatedAt: at,
		UpdatedAt: at,
	}
	r.s.conversations[conv.ID] = conv
	r.s.directKeys[key] = conv.ID
	r.s.members[conv.ID] = map[uuid.UUID]models.ConversationMember{
		pair.Low:  {ConversationID: conv.ID, UserID: pair.Low, JoinedAt: at},
		pair.High: {ConversationID: conv.ID, UserID: pair.High, JoinedAt: at},
	}
	return r.load(conv.ID), true, nil
}

func (r *ConversationRepository) CreateGroup(_ context.Context, conv *models.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[conv.ID]; ok {
		return &repositories.DuplicateKeyError{Constraint: "conversations_pkey"}
	}
	members := make(map[uuid.UUID]models.ConversationMember, len(conv.Members))
	for i := range conv.Members {
		conv.Members[i].ConversationID = conv.ID
		members[conv.Members[i].UserID] = conv.Members[i]
	}
	stored := *conv
	stored.Members = nil
	r.s.conversations[conv.ID] = stored
	r.s.members[conv.ID] = members
	return nil
}

// load copies a conversation with its members. Callers hold the lock.
func (r *ConversationRepository) load(id uuid.UUID) *models.Conversation {
	conv, ok := r.s.conversations[id]
	if !ok {
		return nil
	}
	conv.Members = make([]models.ConversationMember, 0, len(r.s.members[id]))
	for _, m := range r.s.members[id] {
		conv.Members = append(conv.Members, m)
	}
	sort.Slice(conv.Members, func(i, j int) bool {
		return conv.Members[i].UserID.String() < conv.Members[j].UserID.String()
	})
	return &conv
}

func (r *ConversationRepository) GetConversation(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv := r.load(id)
	if conv == nil {
		return nil, repositories.ErrNotFound
	}
	return conv, nil
}

func (r *ConversationRepository) AppendMessage(_ context.Context, msg *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conv, ok := r.s.conversations[msg.ConversationID]
	if !ok {
		return repositories.ErrNotFound
	}
	member, ok := r.s.members[msg.ConversationID][msg.AuthorID]
	if !ok {
		return repositories.ErrNotMember
	}

	stored := *msg
	stored.Kind = ""
	r.s.messages[msg.ConversationID] = append(r.s.messages[msg.ConversationID], stored)
	if member.LastReadAt == nil || member.LastReadAt.Before(msg.CreatedAt) {
		at := msg.CreatedAt
		member.LastReadAt = &at
		r.s.members[msg.ConversationID][msg.AuthorID] = member
	}
	conv.UpdatedAt = msg.CreatedAt
	r.s.conversations[conv.ID] = conv
	return nil
}

func (r *ConversationRepository) ListMessages(_ context.Context, conversationID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Message, error) {
	r.s.mu.Lock()
	msgs := append([]models.Message(nil), r.s.messages[conversationID]...)
	r.s.mu.Unlock()

	return pagination.Slice(msgs, cursor, limit).Items, nil
}

func (r *ConversationRepository) ListForUser(_ context.Context, user uuid.UUID) ([]models.ConversationSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []models.ConversationSummary{}
	for id, members := range r.s.members {
		m, ok := members[user]
		if !ok {
			continue
		}
		var unread int64
		for _, msg := range r.s.messages[id] {
			if msg.AuthorID != user && (m.LastReadAt == nil || msg.CreatedAt.After(*m.LastReadAt)) {
				unread++
			}
		}
		out = append(out, models.ConversationSummary{
			Conversation: *r.load(id),
			UnreadCount:  unread,
			LastReadAt:   m.LastReadAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *ConversationRepository) MarkRead(_ context.Context, conversationID, user uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.members[conversationID][user]
	if !ok {
		return repositories.ErrNotMember
	}
	if m.LastReadAt == nil || m.LastReadAt.Before(at) {
		m.LastReadAt = &at
		r.s.members[conversationID][user] = m
	}
	return nil
}
