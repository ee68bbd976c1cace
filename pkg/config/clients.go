package config

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedis connects the identity cache client. It returns nil, nil when
// REDIS_ADDR is unset; the cache is optional.
func InitRedis(ctx context.Context, cfg *Config, logger *zap.Logger) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, identity cache disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	return client, nil
}

// InitNATS connects to the event bus with unlimited reconnects.
func InitNATS(cfg *Config, logger *zap.Logger) (*nats.Conn, error) {
	log := logger.Named("nats")
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("migo-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("Disconnected from NATS", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("Connected to NATS", zap.String("url", conn.ConnectedUrl()))
	return conn, nil
}
