package memory

import (
	"context"
	"sort"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
)

// RelationshipRepository keeps one row per canonical pair, guarded by the
// store mutex.
type RelationshipRepository struct{ s *Store }

var _ repositories.RelationshipRepository = (*RelationshipRepository)(nil)

func (r *RelationshipRepository) GetRelationship(_ context.Context, pair models.Pair) (*models.Relationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rel, ok := r.s.relationships[pair]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &rel, nil
}

func (r *RelationshipRepository) InsertRequest(_ context.Context, pair models.Pair, initiator uuid.UUID, at time.Time) (*models.Relationship, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.relationships[pair]; ok && existing.Status != models.StatusRejected {
		return &existing, false, nil
	}
	rel := models.Relationship{
		UserLow:     pair.Low,
		UserHigh:    pair.High,
		InitiatorID: initiator,
		Status:      models.StatusPending,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	r.s.relationships[pair] = rel
	return &rel, true, nil
}

func (r *RelationshipRepository) Respond(_ context.Context, pair models.Pair, responder uuid.UUID, decision models.RelationshipStatus, at time.Time) (*models.Relationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rel, ok := r.s.relationships[pair]
	if !ok || rel.Status != models.StatusPending || rel.InitiatorID == responder {
		return nil, repositories.ErrStaleState
	}
	rel.Status = decision
	rel.UpdatedAt = at
	r.s.relationships[pair] = rel
	return &rel, nil
}

func (r *RelationshipRepository) Block(_ context.Context, pair models.Pair, blocker uuid.UUID, at time.Time) (*models.Relationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rel, ok := r.s.relationships[pair]
	if !ok {
		rel = models.Relationship{UserLow: pair.Low, UserHigh: pair.High, InitiatorID: blocker, CreatedAt: at}
	}
	rel.Status = models.StatusBlocked
	rel.SetBlock(blocker, true)
	rel.UpdatedAt = at
	r.s.relationships[pair] = rel
	return &rel, nil
}

func (r *RelationshipRepository) Unblock(_ context.Context, pair models.Pair, blocker uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rel, ok := r.s.relationships[pair]
	if !ok || !rel.BlockedBy(blocker) {
		return repositories.ErrStaleState
	}
	rel.SetBlock(blocker, false)
	if !rel.BlockedByLow && !rel.BlockedByHigh {
		delete(r.s.relationships, pair)
		return nil
	}
	rel.UpdatedAt = at
	r.s.relationships[pair] = rel
	return nil
}

func (r *RelationshipRepository) DeleteAccepted(_ context.Context, pair models.Pair) error {
	return r.deleteIf(pair, func(rel models.Relationship) bool {
		return rel.Status == models.StatusAccepted
	})
}

func (r *RelationshipRepository) CancelPending(_ context.Context, pair models.Pair, initiator uuid.UUID) error {
	return r.deleteIf(pair, func(rel models.Relationship) bool {
		return rel.Status == models.StatusPending && rel.InitiatorID == initiator
	})
}

func (r *RelationshipRepository) deleteIf(pair models.Pair, match func(models.Relationship) bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rel, ok := r.s.relationships[pair]
	if !ok || !match(rel) {
		return repositories.ErrStaleState
	}
	delete(r.s.relationships, pair)
	return nil
}

func (r *RelationshipRepository) ListForUser(_ context.Context, user uuid.UUID) ([]models.Relationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rels := []models.Relationship{}
	for pair, rel := range r.s.relationships {
		if pair.Contains(user) {
			rels = append(rels, rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].UpdatedAt.After(rels[j].UpdatedAt) })
	return rels, nil
}
