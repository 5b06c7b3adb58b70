package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete process configuration, read from the environment.
type Config struct {
	Server    Server
	Auth      Auth
	Log       Log
	Limits    Limits
	OCR       Collaborator
	LLM       LLM
	Retry     Retry
	Breaker   Breaker
	Matcher   Matcher
	Storage   Storage
	Postgres  PostgresConfig
	MinIO     ObjectStoreConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Jobs      Jobs
	RateLimit RateLimit

	// ReferenceDataFile is an optional YAML file with the document-type
	// catalog and validity overrides. Empty means built-in defaults.
	ReferenceDataFile   string
	DefaultValidityDays int
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Auth configures the optional bearer-token check on /v1 and the admin token.
type Auth struct {
	JWTSigningKey string
	AdminToken    string
}

type Log struct {
	Level  string
	Format string // "json" or "text"
}

// Limits bound what an upload may be.
type Limits struct {
	MaxFileBytes int64
	MaxPDFPages  int
}

// Collaborator is an HTTP dependency.
type Collaborator struct {
	URL     string
	Timeout time.Duration
}

type LLM struct {
	Collaborator
	Model  string
	APIKey string
}

type Retry struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

type Breaker struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

type Matcher struct {
	Fuzzy     bool
	Threshold float64
}

// Storage selects the backends for uploaded files and final artifacts.
type Storage struct {
	SourceBackend string // "fs" or "minio"
	SourceDir     string
	ResultBackend string // "fs" or "postgres"
	ResultDir     string
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables run-completed events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RateLimit bounds /v1 requests per caller. Requests <= 0 disables it. The
// window is shared across replicas when Redis is configured.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

type Jobs struct {
	Workers int
	Backend string // "memory" or "redis"
	TTL     time.Duration
}

// LoadDotEnv reads a .env file into the environment when it exists.
// Variables already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds the configuration from environment variables so main stays
// lean. Every malformed variable is reported, not just the first.
func FromEnv() (Config, error) {
	var r reader
	cfg := Config{
		Server: Server{
			Addr:            r.str("DOCVERIFY_ADDR", ":8080"),
			ReadTimeout:     r.duration("DOCVERIFY_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    r.duration("DOCVERIFY_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: r.duration("DOCVERIFY_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: Auth{
			JWTSigningKey: r.str("JWT_SIGNING_KEY", ""),
			AdminToken:    r.str("ADMIN_API_TOKEN", ""),
		},
		Log: Log{
			Level:  r.str("LOG_LEVEL", "info"),
			Format: r.str("LOG_FORMAT", "json"),
		},
		Limits: Limits{
			MaxFileBytes: int64(r.integer("MAX_FILE_BYTES", 20<<20)),
			MaxPDFPages:  r.integer("MAX_PDF_PAGES", 20),
		},
		OCR: Collaborator{
			URL:     r.str("OCR_URL", "http://localhost:8001/ocr"),
			Timeout: r.duration("OCR_TIMEOUT", 60*time.Second),
		},
		LLM: LLM{
			Collaborator: Collaborator{
				URL:     r.str("LLM_URL", "http://localhost:8002/v1"),
				Timeout: r.duration("LLM_TIMEOUT", 90*time.Second),
			},
			Model:  r.str("LLM_MODEL", "gpt-4o-mini"),
			APIKey: r.str("LLM_API_KEY", ""),
		},
		Retry: Retry{
			MaxAttempts:     r.integer("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay:    r.duration("RETRY_INITIAL_DELAY", time.Second),
			MaxDelay:        r.duration("RETRY_MAX_DELAY", 10*time.Second),
			ExponentialBase: r.float("RETRY_EXPONENTIAL_BASE", 2.0),
			Jitter:          r.boolean("RETRY_JITTER", true),
		},
		Breaker: Breaker{
			FailureThreshold: r.integer("BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: r.integer("BREAKER_SUCCESS_THRESHOLD", 2),
			Timeout:          r.duration("BREAKER_TIMEOUT", 60*time.Second),
		},
		Matcher: Matcher{
			Fuzzy:     r.boolean("FIO_FUZZY_ENABLED", true),
			Threshold: r.float("FIO_FUZZY_THRESHOLD", 85),
		},
		Storage: Storage{
			SourceBackend: r.str("SOURCE_BACKEND", "fs"),
			SourceDir:     r.str("SOURCE_DIR", "data/sources"),
			ResultBackend: r.str("RESULT_BACKEND", "fs"),
			ResultDir:     r.str("RESULT_DIR", "data/runs"),
		},
		Postgres: PostgresConfig{
			URL:             r.str("DATABASE_URL", ""),
			MaxOpenConns:    r.integer("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    r.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			PingTimeout:     r.duration("DATABASE_PING_TIMEOUT", 2*time.Second),
		},
		MinIO: ObjectStoreConfig{
			Endpoint:  r.str("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: r.str("MINIO_ACCESS_KEY", ""),
			SecretKey: r.str("MINIO_SECRET_KEY", ""),
			Region:    r.str("MINIO_REGION", "us-east-1"),
			UseSSL:    r.boolean("MINIO_USE_SSL", false),
			Bucket:    r.str("MINIO_BUCKET", "docverify-sources"),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: r.list("KAFKA_BROKERS"),
			Topic:   r.str("KAFKA_TOPIC", "docverify.runs.completed"),
		},
		Jobs: Jobs{
			Workers: r.integer("JOB_WORKERS", 4),
			Backend: r.str("JOB_BACKEND", "memory"),
			TTL:     r.duration("JOB_TTL", 24*time.Hour),
		},
		RateLimit: RateLimit{
			Requests: r.integer("RATE_LIMIT_REQUESTS", 60),
			Window:   r.duration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ReferenceDataFile:   r.str("REFERENCE_DATA_FILE", ""),
		DefaultValidityDays: r.integer("DEFAULT_VALIDITY_DAYS", 40),
	}
	if r.err != nil {
		return Config{}, r.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.Limits.MaxFileBytes <= 0 {
		errs = append(errs, errors.New("MAX_FILE_BYTES must be positive"))
	}
	if c.Limits.MaxPDFPages <= 0 {
		errs = append(errs, errors.New("MAX_PDF_PAGES must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be >= 1"))
	}
	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 100 {
		errs = append(errs, errors.New("FIO_FUZZY_THRESHOLD must be within [0, 100]"))
	}
	switch c.Storage.SourceBackend {
	case "fs":
	case "minio":
		if c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for SOURCE_BACKEND=minio"))
		}
		if strings.Contains(c.MinIO.Endpoint, "://") {
			errs = append(errs, fmt.Errorf("MINIO_ENDPOINT must not include a scheme: %q", c.MinIO.Endpoint))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SOURCE_BACKEND %q", c.Storage.SourceBackend))
	}
	switch c.Storage.ResultBackend {
	case "fs":
	case "postgres":
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for RESULT_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RESULT_BACKEND %q", c.Storage.ResultBackend))
	}
	switch c.Jobs.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for JOB_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown JOB_BACKEND %q", c.Jobs.Backend))
	}
	if c.Jobs.Workers < 1 {
		errs = append(errs, errors.New("JOB_WORKERS must be >= 1"))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive when RATE_LIMIT_REQUESTS is set"))
	}
	return errors.Join(errs...)
}

// reader collects parse errors so FromEnv can report all of them.
type reader struct {
	err error
}

func (r *reader) fail(key string, err error) {
	r.err = errors.Join(r.err, fmt.Errorf("parse %s: %w", key, err))
}

func (r *reader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.fail(key, err)
		return def
	}
	return i
}

func (r *reader) float(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *reader) list(key string) []string {
	var out []string
	for part := range strings.SplitSeq(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
