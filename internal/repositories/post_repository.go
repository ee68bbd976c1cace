package repositories

import (
	"context"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const postsCollection = "posts"

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	// ListPosts returns one keyset page; an empty authorID lists every author.
	ListPosts(ctx context.Context, authorID string, cursor *pagination.Cursor, limit int) ([]models.Post, error)
	IncrementLikesCount(ctx context.Context, postID string, delta int) error
	IncrementCommentsCount(ctx context.Context, postID string, delta int) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection(postsCollection)}
}

// CreatePost creates a new post in MongoDB. Timestamps are truncated to the
// millisecond precision MongoDB stores so cursors built from the returned
// post match the stored value.
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.CreatedAt = post.CreatedAt.UTC().Truncate(time.Millisecond)
	post.UpdatedAt = post.CreatedAt
	_, err := r.collection.InsertOne(ctx, post)
	return translate(err, "create post")
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var post models.Post
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post); err != nil {
		return nil, translate(err, "get post")
	}
	return &post, nil
}

func (r *MongoPostRepository) ListPosts(ctx context.Context, authorID string, cursor *pagination.Cursor, limit int) ([]models.Post, error) {
	filter := bson.M{}
	if authorID != "" {
		filter["user_id"] = authorID
	}
	if cursor != nil {
		lastID, err := primitive.ObjectIDFromHex(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidCursor
		}
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": cursor.CreatedAt}},
			bson.M{"created_at": cursor.CreatedAt, "_id": bson.M{"$lt": lastID}},
		}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, translate(err, "list posts")
	}
	defer cur.Close(ctx)

	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, translate(err, "decode posts")
	}
	return posts, nil
}

// IncrementLikesCount adjusts the denormalized like counter of a post
func (r *MongoPostRepository) IncrementLikesCount(ctx context.Context, postID string, delta int) error {
	return r.increment(ctx, postID, "likes_count", delta)
}

// IncrementCommentsCount adjusts the denormalized comment counter of a post
func (r *MongoPostRepository) IncrementCommentsCount(ctx context.Context, postID string, delta int) error {
	return r.increment(ctx, postID, "comments_count", delta)
}

func (r *MongoPostRepository) increment(ctx context.Context, postID, field string, delta int) error {
	objID, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return translate(err, "increment "+field)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
