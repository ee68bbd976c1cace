package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a feed item stored in MongoDB.
type Post struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID        string             `json:"user_id" bson:"user_id"`
	Content       string             `json:"content" bson:"content"`
	ImageURLs     []string           `json:"image_urls,omitempty" bson:"image_urls,omitempty"`
	LikesCount    int                `json:"likes_count" bson:"likes_count"`
	CommentsCount int                `json:"comments_count" bson:"comments_count"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

func (p Post) CursorKey() (time.Time, string) {
	return p.CreatedAt, p.ID.Hex()
}

type CreatePostRequest struct {
	Content   string   `json:"content" validate:"required,min=1,max=280"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,dive,url"`
}
