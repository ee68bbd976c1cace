package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("duplicate key")
	ErrStaleState = errors.New("record not in expected state")
	ErrNotMember  = errors.New("user is not a conversation member")
)

// Unique constraints that callers branch on.
const (
	ConstraintUserPrimaryKey  = "users_pkey"
	ConstraintUserTag         = "idx_users_tag"
	ConstraintUserFirebaseUID = "idx_users_firebase_uid"
)

// DuplicateKeyError is returned when an insert hits a unique constraint.
type DuplicateKeyError struct {
	Constraint string
	Err        error
}

func (e *DuplicateKeyError) Error() string {
	if e.Constraint == "" {
		return "duplicate key"
	}
	return "duplicate key violates " + e.Constraint
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicate }

// translate maps driver errors onto the repository sentinels. Anything it does
// not recognise becomes a StorageFailure carrying the retry classification.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &DuplicateKeyError{Constraint: pgErr.ConstraintName, Err: err}
	}
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{Err: err}
	}
	return apperrors.Storage(err, IsRetryableError(err), op)
}

// IsRetryableError reports whether a storage error is transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		class := pgErr.Code
		if len(class) > 2 {
			class = class[:2]
		}
		switch class {
		case "08", // connection exception
			"40", // transaction rollback: serialization failure, deadlock
			"53", // insufficient resources
			"57": // operator intervention: shutdown, cannot connect now
			return true
		}
		switch pgErr.Code {
		case "55P03": // lock_not_available
			return true
		}
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout")
}
