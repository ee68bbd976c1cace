package memory

import (
	"context"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostRepository struct{ s *Store }

var _ repositories.PostRepository = (*PostRepository)(nil)

func (r *PostRepository) CreatePost(_ context.Context, post *models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	post.ID = primitive.NewObjectID()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.CreatedAt = post.CreatedAt.UTC().Truncate(time.Millisecond)
	post.UpdatedAt = post.CreatedAt
	r.s.posts[post.ID.Hex()] = *post
	return nil
}

func (r *PostRepository) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (r *PostRepository) ListPosts(_ context.Context, authorID string, cursor *pagination.Cursor, limit int) ([]models.Post, error) {
	if cursor != nil {
		if _, err := primitive.ObjectIDFromHex(cursor.ID); err != nil {
			return nil, pagination.ErrInvalidCursor
		}
	}
	r.s.mu.Lock()
	posts := make([]models.Post, 0, len(r.s.posts))
	for _, p := range r.s.posts {
		if authorID == "" || p.UserID == authorID {
			posts = append(posts, p)
		}
	}
	r.s.mu.Unlock()
	return pagination.Slice(posts, cursor, limit).Items, nil
}

func (r *PostRepository) IncrementLikesCount(_ context.Context, postID string, delta int) error {
	return r.update(postID, func(p *models.Post) { p.LikesCount += delta })
}

func (r *PostRepository) IncrementCommentsCount(_ context.Context, postID string, delta int) error {
	return r.update(postID, func(p *models.Post) { p.CommentsCount += delta })
}

func (r *PostRepository) update(postID string, fn func(*models.Post)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[postID]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&p)
	r.s.posts[postID] = p
	return nil
}

type CommentRepository struct{ s *Store }

var _ repositories.CommentRepository = (*CommentRepository)(nil)

func (r *CommentRepository) CreateComment(_ context.Context, comment *models.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.comments[comment.PostID] = append(r.s.comments[comment.PostID], *comment)
	return nil
}

func (r *CommentRepository) ListByPost(_ context.Context, postID string, cursor *pagination.Cursor, limit int) ([]models.Comment, error) {
	r.s.mu.Lock()
	comments := append([]models.Comment(nil), r.s.comments[postID]...)
	r.s.mu.Unlock()
	return pagination.Slice(comments, cursor, limit).Items, nil
}

type LikeRepository struct{ s *Store }

var _ repositories.LikeRepository = (*LikeRepository)(nil)

func (r *LikeRepository) CreateLike(_ context.Context, like *models.Like) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := likeKey{postID: like.PostID, userID: like.UserID}
	if _, ok := r.s.likes[key]; ok {
		return &repositories.DuplicateKeyError{Constraint: "likes_pkey"}
	}
	r.s.likes[key] = *like
	return nil
}

func (r *LikeRepository) DeleteLike(_ context.Context, postID string, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := likeKey{postID: postID, userID: userID}
	if _, ok := r.s.likes[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.likes, key)
	return nil
}

func (r *LikeRepository) HasUserLikedPost(_ context.Context, postID string, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.likes[likeKey{postID: postID, userID: userID}]
	return ok, nil
}

func (r *LikeRepository) LikedPostIDs(_ context.Context, userID uuid.UUID, postIDs []string) (map[string]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	liked := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		if _, ok := r.s.likes[likeKey{postID: id, userID: userID}]; ok {
			liked[id] = true
		}
	}
	return liked, nil
}

type FollowRepository struct{ s *Store }

var _ repositories.FollowRepository = (*FollowRepository)(nil)

func (r *FollowRepository) CreateFollow(_ context.Context, follow *models.Follow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := followKey{follower: follow.FollowerID, following: follow.FollowingID}
	if _, ok := r.s.follows[key]; ok {
		return &repositories.DuplicateKeyError{Constraint: "follows_pkey"}
	}
	r.s.follows[key] = *follow
	return nil
}

func (r *FollowRepository) DeleteFollow(_ context.Context, followerID, followingID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := followKey{follower: followerID, following: followingID}
	if _, ok := r.s.follows[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.follows, key)
	return nil
}

func (r *FollowRepository) IsFollowing(_ context.Context, followerID, followingID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.follows[followKey{follower: followerID, following: followingID}]
	return ok, nil
}

func (r *FollowRepository) GetFollowerIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return r.collect(func(k followKey) (uuid.UUID, bool) { return k.follower, k.following == userID }), nil
}

func (r *FollowRepository) GetFollowingIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return r.collect(func(k followKey) (uuid.UUID, bool) { return k.following, k.follower == userID }), nil
}

func (r *FollowRepository) GetFollowersCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	ids, _ := r.GetFollowerIDs(ctx, userID)
	return int64(len(ids)), nil
}

func (r *FollowRepository) GetFollowingCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	ids, _ := r.GetFollowingIDs(ctx, userID)
	return int64(len(ids)), nil
}

func (r *FollowRepository) collect(pick func(followKey) (uuid.UUID, bool)) []uuid.UUID {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []uuid.UUID{}
	for k := range r.s.follows {
		if id, ok := pick(k); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
