package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
)

// UserRepository indexes identities by id, tag and Firebase UID.
type UserRepository struct{ s *Store }

var _ repositories.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) CreateUser(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Tag = strings.ToUpper(user.Tag)
	if user.Presence == "" {
		user.Presence = models.PresenceOffline
	}
	if _, ok := r.s.users[user.ID]; ok {
		return &repositories.DuplicateKeyError{Constraint: repositories.ConstraintUserPrimaryKey}
	}
	if _, ok := r.s.usersByTag[user.Tag]; ok {
		return &repositories.DuplicateKeyError{Constraint: repositories.ConstraintUserTag}
	}
	if user.FirebaseUID != nil {
		if _, ok := r.s.usersByFirebase[*user.FirebaseUID]; ok {
			return &repositories.DuplicateKeyError{Constraint: repositories.ConstraintUserFirebaseUID}
		}
		r.s.usersByFirebase[*user.FirebaseUID] = user.ID
	}
	r.s.users[user.ID] = *user
	r.s.usersByTag[user.Tag] = user.ID
	return nil
}

func (r *UserRepository) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *UserRepository) get(id uuid.UUID) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetUserByTag(_ context.Context, tag string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.usersByTag[strings.ToUpper(tag)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return r.get(id)
}

func (r *UserRepository) GetUserByFirebaseUID(_ context.Context, firebaseUID string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.usersByFirebase[firebaseUID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return r.get(id)
}

func (r *UserRepository) GetUsersByIDs(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := []models.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (r *UserRepository) UpdateHandle(_ context.Context, id uuid.UUID, handle string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	u.Handle = handle
	r.s.users[id] = u
	return &u, nil
}

func (r *UserRepository) UpdatePresence(_ context.Context, id uuid.UUID, update models.PresenceUpdate) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	at := update.At
	u.Presence = update.Presence
	u.CurrentActivity = update.CurrentActivity
	if update.CustomStatus != nil {
		u.CustomStatus = *update.CustomStatus
	}
	u.LastSeenAt = &at
	u.UpdatedAt = at
	r.s.users[id] = u
	return &u, nil
}

func (r *UserRepository) SearchUsers(_ context.Context, query string, limit int) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(query)
	users := []models.User{}
	for _, u := range r.s.users {
		if strings.Contains(strings.ToLower(u.Handle), q) || u.Tag == strings.ToUpper(query) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Handle < users[j].Handle })
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
