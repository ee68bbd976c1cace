package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// MaxTagAttempts bounds tag generation when tags collide.
	MaxTagAttempts = 5

	defaultSearchLimit = 5
	maxSearchLimit     = 25
)

var tagPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}$`)

// IdentityCache is an optional read-through cache of identities by tag.
type IdentityCache interface {
	Get(ctx context.Context, tag string) (*models.User, bool, error)
	Set(ctx context.Context, user *models.User) error
	Invalidate(ctx context.Context, tag string) error
}

// ExtractTag returns the tag segment of "handle#TAG" or of a bare tag:
// everything after the last '#', trimmed and upper-cased.
func ExtractTag(input string) string {
	s := strings.TrimSpace(input)
	if i := strings.LastIndex(s, "#"); i >= 0 {
		s = s[i+1:]
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidTag reports whether tag has the two letters, two digits shape.
func ValidTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// GenerateTag draws a random tag such as "QX07". Uniqueness is not implied;
// callers insert and retry on collision.
func GenerateTag() string {
	b := []byte{
		byte('A' + rand.IntN(26)),
		byte('A' + rand.IntN(26)),
		byte('0' + rand.IntN(10)),
		byte('0' + rand.IntN(10)),
	}
	return string(b)
}

// IdentityService resolves handles to identities and provisions new ones.
type IdentityService struct {
	config
	users   repositories.UserRepository
	cache   IdentityCache
	lookups singleflight.Group
	logger  *zap.Logger
}

// NewIdentityService creates an IdentityService. cache may be nil.
func NewIdentityService(users repositories.UserRepository, cache IdentityCache, opts ...Option) *IdentityService {
	cfg := newConfig(opts)
	return &IdentityService{
		config: cfg,
		users:  users,
		cache:  cache,
		logger: cfg.logger.Named("identity"),
	}
}

// Resolve maps "handle#TAG" or "TAG" to the identity owning the tag.
func (s *IdentityService) Resolve(ctx context.Context, input string) (*models.User, error) {
	tag := ExtractTag(input)
	if !ValidTag(tag) {
		return nil, apperrors.NotFound("no identity owns tag %q", tag)
	}

	if s.cache != nil {
		user, ok, err := s.cache.Get(ctx, tag)
		if err != nil {
			s.logger.Warn("Identity cache read failed", zap.String("tag", tag), zap.Error(err))
		} else if ok {
			return user, nil
		}
	}

	// Shared by every caller waiting on tag; detached from the one that started it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.lookups.Do(tag, func() (any, error) {
		user, err := s.users.GetUserByTag(shared, tag)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(shared, user); err != nil {
				s.logger.Warn("Identity cache write failed", zap.String("tag", tag), zap.Error(err))
			}
		}
		return user, nil
	})
	if isNotFound(err) {
		return nil, apperrors.NotFound("no identity owns tag %q", tag)
	}
	if err != nil {
		return nil, storageError(err, "resolve identity")
	}
	user := *v.(*models.User)
	return &user, nil
}

// GetByID loads an identity by its stable id.
func (s *IdentityService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if isNotFound(err) {
		return nil, apperrors.NotFound("identity %s not found", id)
	}
	if err != nil {
		return nil, storageError(err, "get identity")
	}
	return user, nil
}

// GetByFirebaseUID loads the identity linked to a Firebase account.
func (s *IdentityService) GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	user, err := s.users.GetUserByFirebaseUID(ctx, uid)
	if isNotFound(err) {
		return nil, apperrors.NotFound("no identity linked to this account")
	}
	if err != nil {
		return nil, storageError(err, "get identity by firebase uid")
	}
	return user, nil
}

// ProvisionParams describes a new identity. A zero ID is replaced with a random one.
type ProvisionParams struct {
	ID          uuid.UUID
	Handle      string
	Email       string
	FirebaseUID string
}

// Provision creates an identity with a freshly generated tag, retrying on
// tag collisions up to MaxTagAttempts times.
func (s *IdentityService) Provision(ctx context.Context, p ProvisionParams) (*models.User, error) {
	handle := strings.TrimSpace(p.Handle)
	if handle == "" {
		return nil, apperrors.InvalidState("", "handle is required")
	}
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var (
		created  *models.User
		attempts int
	)
	op := func() error {
		attempts++
		user := &models.User{
			ID:        id,
			Handle:    handle,
			Presence:  models.PresenceOffline,
			Tag:       s.newTag(),
			Email:     p.Email,
			CreatedAt: s.now(),
			UpdatedAt: s.now(),
		}
		if p.FirebaseUID != "" {
			uid := p.FirebaseUID
			user.FirebaseUID = &uid
		}

		err := s.users.CreateUser(ctx, user)
		var dup *repositories.DuplicateKeyError
		switch {
		case err == nil:
			created = user
			return nil
		case errors.As(err, &dup) && (dup.Constraint == repositories.ConstraintUserTag || dup.Constraint == ""):
			s.logger.Debug("Tag collision, retrying", zap.String("tag", user.Tag), zap.Int("attempt", attempts))
			return err
		case errors.As(err, &dup):
			return backoff.Permanent(apperrors.Conflict("already-provisioned", "identity already exists for this account"))
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, MaxTagAttempts-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			s.logger.Error("Tag space exhausted for provisioning", zap.Int("attempts", attempts))
			return nil, apperrors.Storage(err, true, "allocate unique tag")
		}
		return nil, storageError(err, "provision identity")
	}

	s.logger.Info("Identity provisioned", zap.String("id", created.ID.String()), zap.String("tag", created.Tag))
	return created, nil
}

// UpdateHandle changes the display handle. The tag is immutable.
func (s *IdentityService) UpdateHandle(ctx context.Context, id uuid.UUID, handle string) (*models.User, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, apperrors.InvalidState("", "handle is required")
	}
	user, err := s.users.UpdateHandle(ctx, id, handle)
	if isNotFound(err) {
		return nil, apperrors.NotFound("identity %s not found", id)
	}
	if err != nil {
		return nil, storageError(err, "update handle")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, user.Tag); err != nil {
			s.logger.Warn("Identity cache invalidation failed", zap.String("tag", user.Tag), zap.Error(err))
		}
	}
	return user, nil
}

// UpdatePresence sets the user's presence and current activity and stamps
// last seen. customStatus is left unchanged when nil.
func (s *IdentityService) UpdatePresence(ctx context.Context, id uuid.UUID, presence models.Presence, activity string, customStatus *string) (*models.User, error) {
	if !presence.Valid() {
		return nil, apperrors.InvalidState("", "presence must be online, offline, away or dnd")
	}
	if customStatus != nil {
		trimmed := strings.TrimSpace(*customStatus)
		customStatus = &trimmed
	}
	user, err := s.users.UpdatePresence(ctx, id, models.PresenceUpdate{
		Presence:        presence,
		CurrentActivity: strings.TrimSpace(activity),
		CustomStatus:    customStatus,
		At:              s.now(),
	})
	if isNotFound(err) {
		return nil, apperrors.NotFound("identity %s not found", id)
	}
	if err != nil {
		return nil, storageError(err, "update presence")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, user.Tag); err != nil {
			s.logger.Warn("Identity cache invalidation failed", zap.String("tag", user.Tag), zap.Error(err))
		}
	}
	s.logger.Debug("Presence updated", zap.String("id", id.String()), zap.String("presence", string(presence)))
	return user, nil
}

// Search finds identities by handle substring or exact tag. A "handle#TAG"
// query resolves directly.
func (s *IdentityService) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.User{}, nil
	}
	if limit < 1 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if strings.Contains(query, "#") {
		user, err := s.Resolve(ctx, query)
		if errors.Is(err, apperrors.ErrNotFound) {
			return []models.User{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []models.User{*user}, nil
	}

	users, err := s.users.SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, storageError(err, "search identities")
	}
	return users, nil
}

// byIDs loads every identity in ids that exists.
func (s *IdentityService) byIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storageError(err, "load identities")
	}
	return users, nil
}

// Compact loads the public shape of several identities, keyed by id.
func (s *IdentityService) Compact(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserCompact, error) {
	users, err := s.byIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.UserCompact, len(users))
	for i := range users {
		out[users[i].ID] = users[i].ToCompact()
	}
	return out, nil
}
