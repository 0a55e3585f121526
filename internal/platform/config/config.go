package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	dErrors "proposals/pkg/domain-errors"
	platformstrings "proposals/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	JWTIssuer     string
	LogLevel      string
	LogFormat     string
	// TxTimeout bounds every lifecycle transaction.
	TxTimeout       time.Duration
	ShutdownTimeout time.Duration

	// ReviewerIDs seeds the static reviewer directory used without Postgres.
	ReviewerIDs []string

	Redis        RedisConfig
	Notification NotificationConfig
	Tracing      TracingConfig
}

// RedisConfig configures the reviewer directory cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ReviewerTTL is how long a cached reviewer list is served.
	ReviewerTTL time.Duration
}

// NotificationConfig sizes the asynchronous fan-out dispatcher.
type NotificationConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
}

// TracingConfig configures OTLP span export. An empty endpoint leaves the
// global tracer provider untouched.
type TracingConfig struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
	SampleRate   float64
	BatchTimeout time.Duration
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func FromEnv() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, dErrors.Wrap(err, dErrors.CodeValidation, "load .env")
	}
	return parse(os.Getenv)
}

func parse(getenv func(string) string) (Server, error) {
	e := env{getenv: getenv}
	cfg := Server{
		Addr:            e.str("PROPOSALS_ADDR", ":8080"),
		DatabaseURL:     e.str("DATABASE_URL", ""),
		JWTSigningKey:   e.str("JWT_SIGNING_KEY", ""),
		JWTIssuer:       e.str("JWT_ISSUER", "proposals"),
		LogLevel:        e.str("LOG_LEVEL", "info"),
		LogFormat:       e.str("LOG_FORMAT", "json"),
		TxTimeout:       e.duration("TX_TIMEOUT", 5*time.Second),
		ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		ReviewerIDs:     e.list("REVIEWER_IDS"),
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			ReviewerTTL:  e.duration("REVIEWER_CACHE_TTL", time.Minute),
		},
		Notification: NotificationConfig{
			Workers:    e.int("NOTIFY_WORKERS", 4),
			QueueSize:  e.int("NOTIFY_QUEUE_SIZE", 256),
			MaxRetries: uint64(e.int("NOTIFY_MAX_RETRIES", 5)),
		},
		Tracing: TracingConfig{
			ServiceName:  e.str("OTEL_SERVICE_NAME", "proposals"),
			OTLPEndpoint: e.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:     e.bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRate:   e.float("OTEL_TRACES_SAMPLE_RATE", 1.0),
			BatchTimeout: e.duration("OTEL_BATCH_TIMEOUT", 5*time.Second),
		},
	}
	if e.err != nil {
		return Server{}, e.err
	}

	if cfg.JWTSigningKey == "" {
		if cfg.DatabaseURL != "" {
			return Server{}, dErrors.New(dErrors.CodeValidation, "JWT_SIGNING_KEY is required when DATABASE_URL is set")
		}
		// In-memory development mode only.
		cfg.JWTSigningKey = devSigningKey
	}
	if cfg.Notification.Workers < 1 || cfg.Notification.QueueSize < 1 {
		return Server{}, dErrors.New(dErrors.CodeValidation, "NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be positive")
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return Server{}, dErrors.New(dErrors.CodeValidation, "OTEL_TRACES_SAMPLE_RATE must be between 0 and 1")
	}
	if cfg.TxTimeout <= 0 {
		return Server{}, dErrors.New(dErrors.CodeValidation, "TX_TIMEOUT must be positive")
	}
	return cfg, nil
}

// UsesPostgres reports whether durable storage is configured.
func (s Server) UsesPostgres() bool {
	return s.DatabaseURL != ""
}

// env reads typed values and keeps the first parse error.
type env struct {
	getenv func(string) string
	err    error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) list(key string) []string {
	return platformstrings.SplitList(e.getenv(key))
}

func (e *env) int(key string, def int) int {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil && e.err == nil {
		e.err = dErrors.New(dErrors.CodeValidation, key+" must be an integer")
	}
	return v
}

func (e *env) bool(key string, def bool) bool {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil && e.err == nil {
		e.err = dErrors.New(dErrors.CodeValidation, key+" must be a boolean")
	}
	return v
}

func (e *env) float(key string, def float64) float64 {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && e.err == nil {
		e.err = dErrors.New(dErrors.CodeValidation, key+" must be a number")
	}
	return v
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil && e.err == nil {
		e.err = dErrors.New(dErrors.CodeValidation, key+" must be a duration")
	}
	return v
}
