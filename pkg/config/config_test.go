package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anonto42/migo/backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithMemoryStore(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.Equal(t, config.EventBusInProcess, cfg.EventBus)
	assert.Equal(t, config.AuthJWT, cfg.AuthProvider)
	assert.Equal(t, 10*time.Minute, cfg.IdentityCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadParsesEnvironment(t *testing.T) {
	t.Setenv("STORE", "POSTGRES")
	t.Setenv("POSTGRES_CONN_STR", "postgres://localhost/migo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("IDENTITY_CACHE_TTL", "90s")
	t.Setenv("EVENT_BUS", "nats")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("AUTH_PROVIDER", "firebase")
	t.Setenv("FIREBASE_CREDENTIALS_PATH", "/etc/firebase.json")
	t.Setenv("ENV", "production")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.StorePostgres, cfg.Store)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 90*time.Second, cfg.IdentityCacheTTL)
	assert.Equal(t, config.EventBusNATS, cfg.EventBus)
	assert.Equal(t, config.AuthFirebase, cfg.AuthProvider)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("STORE: memory\nJWT_SECRET: from-file\nPORT: \"9000\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "9100", cfg.Port, "environment overrides the file")
}

func TestValidateRejectsInconsistentSettings(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"postgres without dsn", config.Config{Store: "postgres", MongoURI: "m", EventBus: "inproc", AuthProvider: "jwt", JWTSecret: "s", ShutdownTimeout: time.Second}, "POSTGRES_CONN_STR"},
		{"unknown store", config.Config{Store: "sqlite", EventBus: "inproc", AuthProvider: "jwt", JWTSecret: "s", ShutdownTimeout: time.Second}, "unknown STORE"},
		{"nats without url", config.Config{Store: "memory", EventBus: "nats", AuthProvider: "jwt", JWTSecret: "s", ShutdownTimeout: time.Second}, "NATS_URL"},
		{"jwt without secret", config.Config{Store: "memory", EventBus: "inproc", AuthProvider: "jwt", ShutdownTimeout: time.Second}, "JWT_SECRET"},
		{"firebase without credentials", config.Config{Store: "memory", EventBus: "inproc", AuthProvider: "firebase", ShutdownTimeout: time.Second}, "FIREBASE_CREDENTIALS_PATH"},
		{"zero shutdown", config.Config{Store: "memory", EventBus: "inproc", AuthProvider: "jwt", JWTSecret: "s"}, "SHUTDOWN_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
