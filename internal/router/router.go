package router

import (
	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/handlers"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/anonto42/migo/backend/internal/repositories/memory"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stores is the set of repositories the services run against.
type Stores struct {
	Users         repositories.UserRepository
	Relationships repositories.RelationshipRepository
	Conversations repositories.ConversationRepository
	Notifications repositories.NotificationRepository
	Posts         repositories.PostRepository
	Comments      repositories.CommentRepository
	Likes         repositories.LikeRepository
	Follows       repositories.FollowRepository
}

// PostgresStores backs everything with PostgreSQL except posts, which live in MongoDB.
func PostgresStores(pgdb *gorm.DB, mongoDB *mongo.Database) Stores {
	return Stores{
		Users:         repositories.NewPostgresUserRepository(pgdb),
		Relationships: repositories.NewPostgresRelationshipRepository(pgdb),
		Conversations: repositories.NewPostgresConversationRepository(pgdb),
		Notifications: repositories.NewPostgresNotificationRepository(pgdb),
		Posts:         repositories.NewMongoPostRepository(mongoDB),
		Comments:      repositories.NewPostgresCommentRepository(pgdb),
		Likes:         repositories.NewPostgresLikeRepository(pgdb),
		Follows:       repositories.NewPostgresFollowRepository(pgdb),
	}
}

func MemoryStores(s *memory.Store) Stores {
	return Stores{
		Users:         s.Users(),
		Relationships: s.Relationships(),
		Conversations: s.Conversations(),
		Notifications: s.Notifications(),
		Posts:         s.Posts(),
		Comments:      s.Comments(),
		Likes:         s.Likes(),
		Follows:       s.Follows(),
	}
}

// Services are the wired domain services.
type Services struct {
	Identity      *services.IdentityService
	Relationships *services.RelationshipService
	Conversations *services.ConversationService
	Notifications *services.NotificationService
	Feed          *services.FeedService
	Engagement    *services.EngagementService
	Follows       *services.FollowService
}

// NewServices wires the services over stores. cache may be nil. With a nil
// publisher events are delivered in-process straight to the notification
// service; otherwise the caller is responsible for subscribing
// Notifications.HandleEvent to the publisher's transport.
func NewServices(stores Stores, cache services.IdentityCache, publisher events.Publisher, logger *zap.Logger) *Services {
	notifications := services.NewNotificationService(stores.Notifications, services.WithLogger(logger))
	if publisher == nil {
		publisher = events.NewInProcess(notifications.HandleEvent)
	}
	opts := []services.Option{services.WithLogger(logger), services.WithPublisher(publisher)}

	identity := services.NewIdentityService(stores.Users, cache, opts...)
	relationships := services.NewRelationshipService(stores.Relationships, identity, opts...)
	return &Services{
		Identity:      identity,
		Relationships: relationships,
		Conversations: services.NewConversationService(stores.Conversations, relationships, identity, opts...),
		Notifications: notifications,
		Feed:          services.NewFeedService(stores.Posts, stores.Comments, opts...),
		Engagement:    services.NewEngagementService(stores.Posts, stores.Comments, stores.Likes, opts...),
		Follows:       services.NewFollowService(stores.Follows, relationships, identity, opts...),
	}
}

// SetupRoutes registers every route. auth guards the /api/v1 group.
func SetupRoutes(e *echo.Echo, svc *Services, auth echo.MiddlewareFunc) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	api := e.Group("/api/v1")
	api.Use(auth)

	handlers.NewUserHandler(svc.Identity).RegisterProfileRoutes(api)
	handlers.NewRelationshipHandler(svc.Relationships).RegisterRelationshipRoutes(api)
	handlers.NewConversationHandler(svc.Conversations).RegisterConversationRoutes(api)
	handlers.NewNotificationHandler(svc.Notifications, svc.Identity).RegisterNotificationRoutes(api)
	handlers.NewFeedHandler(svc.Feed, svc.Engagement, svc.Identity).RegisterFeedRoutes(api)
	handlers.NewPostHandler(svc.Engagement).RegisterPostRoutes(api)
	handlers.NewLikeHandler(svc.Engagement).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(svc.Engagement, svc.Feed).RegisterCommentRoutes(api)
	handlers.NewFollowHandler(svc.Follows).RegisterFollowRoutes(api)
}
