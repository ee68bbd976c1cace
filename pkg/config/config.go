package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Store selects the repository backend: postgres (with MongoDB posts) or memory.
	Store         string `mapstructure:"STORE"`
	PostgresDSN   string `mapstructure:"POSTGRES_CONN_STR"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int           `mapstructure:"REDIS_DB"`
	IdentityCacheTTL time.Duration `mapstructure:"IDENTITY_CACHE_TTL"`

	EventBus string `mapstructure:"EVENT_BUS"`
	NATSURL  string `mapstructure:"NATS_URL"`

	AuthProvider            string `mapstructure:"AUTH_PROVIDER"`
	JWTSecret               string `mapstructure:"JWT_SECRET"`
	FirebaseCredentialsPath string `mapstructure:"FIREBASE_CREDENTIALS_PATH"`

	SentryDSN       string        `mapstructure:"SENTRY_DSN"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	EventBusInProcess = "inproc"
	EventBusNATS      = "nats"

	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STORE", "POSTGRES_CONN_STR", "MONGO_URI", "MONGO_DATABASE",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "IDENTITY_CACHE_TTL",
	"EVENT_BUS", "NATS_URL",
	"AUTH_PROVIDER", "JWT_SECRET", "FIREBASE_CREDENTIALS_PATH",
	"SENTRY_DSN", "SHUTDOWN_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("MONGO_DATABASE", "socialmedia")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("IDENTITY_CACHE_TTL", 10*time.Minute)
	v.SetDefault("EVENT_BUS", EventBusInProcess)
	v.SetDefault("AUTH_PROVIDER", AuthJWT)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
}

// Load reads configuration from the environment, a .env file when present,
// and an optional YAML file named by CONFIG_FILE. Environment wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Store = strings.ToLower(cfg.Store)
	cfg.EventBus = strings.ToLower(cfg.EventBus)
	cfg.AuthProvider = strings.ToLower(cfg.AuthProvider)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_CONN_STR is required for the postgres store"))
		}
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE %q", c.Store))
	}

	switch c.EventBus {
	case EventBusInProcess:
	case EventBusNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required for the nats event bus"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_BUS %q", c.EventBus))
	}

	switch c.AuthProvider {
	case AuthJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required for jwt auth"))
		}
	case AuthFirebase:
		if c.FirebaseCredentialsPath == "" {
			errs = append(errs, errors.New("FIREBASE_CREDENTIALS_PATH is required for firebase auth"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
