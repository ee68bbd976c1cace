// Package memory is an in-process implementation of every repository
// interface. It enforces the same unique keys and conditional writes as the
// SQL schema by running each operation under one store lock, which makes it
// usable for tests and for single-node development without Postgres or MongoDB.
package memory

import (
	"sync"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
)

type likeKey struct {
	postID string
	userID uuid.UUID
}

type followKey struct {
	follower  uuid.UUID
	following uuid.UUID
}

// Store holds all tables.
type Store struct {
	mu sync.Mutex

	users           map[uuid.UUID]models.User
	usersByTag      map[string]uuid.UUID
	usersByFirebase map[string]uuid.UUID

	relationships map[models.Pair]models.Relationship

	conversations map[uuid.UUID]models.Conversation
	directKeys    map[string]uuid.UUID
	members       map[uuid.UUID]map[uuid.UUID]models.ConversationMember
	messages      map[uuid.UUID][]models.Message

	notifications map[uuid.UUID][]models.Notification
	preferences   map[uuid.UUID]models.NotificationPreferences

	posts    map[string]models.Post
	comments map[string][]models.Comment
	likes    map[likeKey]models.Like
	follows  map[followKey]models.Follow
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:           make(map[uuid.UUID]models.User),
		usersByTag:      make(map[string]uuid.UUID),
		usersByFirebase: make(map[string]uuid.UUID),
		relationships:   make(map[models.Pair]models.Relationship),
		conversations:   make(map[uuid.UUID]models.Conversation),
		directKeys:      make(map[string]uuid.UUID),
		members:         make(map[uuid.UUID]map[uuid.UUID]models.ConversationMember),
		messages:        make(map[uuid.UUID][]models.Message),
		notifications:   make(map[uuid.UUID][]models.Notification),
		preferences:     make(map[uuid.UUID]models.NotificationPreferences),
		posts:           make(map[string]models.Post),
		comments:        make(map[string][]models.Comment),
		likes:           make(map[likeKey]models.Like),
		follows:         make(map[followKey]models.Follow),
	}
}

func (s *Store) Users() *UserRepository                 { return &UserRepository{s: s} }
func (s *Store) Relationships() *RelationshipRepository { return &RelationshipRepository{s: s} }
func (s *Store) Conversations() *ConversationRepository { return &ConversationRepository{s: s} }
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s: s} }
func (s *Store) Posts() *PostRepository                 { return &PostRepository{s: s} }
func (s *Store) Comments() *CommentRepository           { return &CommentRepository{s: s} }
func (s *Store) Likes() *LikeRepository                 { return &LikeRepository{s: s} }
func (s *Store) Follows() *FollowRepository             { return &FollowRepository{s: s} }

// RelationshipCount returns the number of stored relationship rows.
func (s *Store) RelationshipCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.relationships)
}

// DirectConversationCount returns the number of stored direct conversations.
func (s *Store) DirectConversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.directKeys)
}
