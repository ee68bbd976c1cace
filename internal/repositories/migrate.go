package repositories

import (
	"context"

	"github.com/anonto42/migo/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the relational schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Relationship{},
		&models.Conversation{},
		&models.ConversationMember{},
		&models.Message{},
		&models.Notification{},
		&models.NotificationPreferences{},
		&models.Comment{},
		&models.Like{},
		&models.Follow{},
	)
}

// EnsurePostIndexes creates the keyset indexes the feed queries rely on.
func EnsurePostIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("feed_keyset"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("author_feed_keyset"),
		},
	})
	return err
}
