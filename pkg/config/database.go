package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connections
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	logger   *zap.Logger
}

// InitDB opens PostgreSQL and MongoDB and verifies both with a ping.
func InitDB(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	postgresDB, err := initPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	logger.Info("Connected to PostgreSQL")

	mongoClient, err := initMongo(ctx, cfg.MongoURI)
	if err != nil {
		if sqlDB, dbErr := postgresDB.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	logger.Info("Connected to MongoDB")

	return &DB{
		Postgres: postgresDB,
		Mongo:    mongoClient,
		logger:   logger,
	}, nil
}

// initPostgres opens the GORM connection. Driver errors are left untranslated;
// the repositories classify them by SQLSTATE.
func initPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = sqlDB.PingContext(pingCtx); err != nil {
		return nil, err
	}
	return db, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// CloseDB closes the database connections
func (db *DB) CloseDB() {
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err != nil {
			db.logger.Error("Error getting SQL DB from GORM", zap.Error(err))
		} else if err := sqlDB.Close(); err != nil {
			db.logger.Error("Error closing PostgreSQL connection", zap.Error(err))
		} else {
			db.logger.Info("PostgreSQL connection closed")
		}
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			db.logger.Error("Error closing MongoDB connection", zap.Error(err))
		} else {
			db.logger.Info("MongoDB connection closed")
		}
	}
}
