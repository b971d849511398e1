// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Port       string
	DataDir    string
	SchemaPath string
	ModelDir   string

	DatabaseURL  string
	LoadPostgres bool
	dbURL        *url.URL

	AirflowURL   string
	AirflowUser  string
	AirflowPass  string
	GeneratorDAG string
	PipelineDAG  string

	GeminiAPIKey string
	GeminiModel  string

	BatchSize      int
	BatchThreshold int
	Seed           int64
	SampleSize     int

	PollInterval    time.Duration
	RunTimeout      time.Duration
	QueryTimeout    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SessionTTL      time.Duration

	CORSOrigin string
	// RateLimit is the number of API requests allowed per client IP per minute.
	RateLimit float64
	LogLevel  slog.Level
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (silently ignore if missing)
	_ = godotenv.Load()

	c := &Config{
		Port:         getenv("PORT", "8080"),
		DataDir:      getenv("DATA_DIR", "data"),
		SchemaPath:   getenv("SCHEMA_PATH", "schema.hcl"),
		ModelDir:     getenv("MODEL_DIR", "models"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		AirflowURL:   strings.TrimRight(os.Getenv("AIRFLOW_API_URL"), "/"),
		AirflowUser:  getenv("AIRFLOW_USER", "airflow"),
		AirflowPass:  getenv("AIRFLOW_PASS", "airflow"),
		GeneratorDAG: getenv("GENERATOR_DAG_ID", "synthetic_db_generator"),
		PipelineDAG:  getenv("PIPELINE_DAG_ID", "fraud_detection_ml_pipeline"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.5-pro"),
		CORSOrigin:   os.Getenv("CORS_ORIGIN"),
	}

	var err error
	p := parser{}
	c.LoadPostgres = p.bool("LOAD_POSTGRES", false)
	c.BatchSize = p.int("BATCH_SIZE", 100_000)
	c.BatchThreshold = p.int("BATCH_THRESHOLD", 100_000)
	c.Seed = int64(p.int("SEED", 42))
	c.SampleSize = p.int("SAMPLE_SIZE", 200_000)
	c.PollInterval = p.duration("POLL_INTERVAL", 10*time.Second)
	c.RunTimeout = p.duration("RUN_TIMEOUT", time.Hour)
	c.QueryTimeout = p.duration("QUERY_TIMEOUT", 30*time.Second)
	c.ReadTimeout = p.duration("READ_TIMEOUT", 15*time.Second)
	c.WriteTimeout = p.duration("WRITE_TIMEOUT", 5*time.Minute)
	c.ShutdownTimeout = p.duration("SHUTDOWN_TIMEOUT", 10*time.Second)
	c.SessionTTL = p.duration("SESSION_TTL", 2*time.Hour)
	c.RateLimit = p.float("RATE_LIMIT", 100)
	if p.err != nil {
		return nil, p.err
	}

	if err = c.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.BatchSize <= 0 || c.BatchThreshold <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE and BATCH_THRESHOLD must be positive")
	}
	if c.SampleSize <= 0 {
		return nil, fmt.Errorf("SAMPLE_SIZE must be positive")
	}
	if c.DatabaseURL != "" {
		if c.dbURL, err = url.Parse(c.DatabaseURL); err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	}
	if c.LoadPostgres && c.DatabaseURL == "" {
		return nil, fmt.Errorf("LOAD_POSTGRES requires DATABASE_URL")
	}
	if c.AirflowURL != "" {
		if _, err := url.ParseRequestURI(c.AirflowURL); err != nil {
			return nil, fmt.Errorf("invalid AIRFLOW_API_URL: %w", err)
		}
	}
	return c, nil
}

// RequireDatabase returns an error when no database is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return nil
}

// RedactedDatabaseURL returns the database URL with the password masked,
// for logging.
func (c *Config) RedactedDatabaseURL() string {
	if c.dbURL == nil {
		return ""
	}
	return c.dbURL.Redacted()
}

// CurrentDatabase returns the database name from the current connection URL.
func (c *Config) CurrentDatabase() string {
	if c.dbURL == nil || c.dbURL.Path == "" {
		return ""
	}
	return c.dbURL.Path[1:] // Remove leading slash
}

// UseAirflow reports whether runs go to the external scheduler.
func (c *Config) UseAirflow() bool {
	return c.AirflowURL != ""
}

// NewLogger builds a logger at the configured level. JSON output is used
// for the server, text for interactive commands.
func (c *Config) NewLogger(w io.Writer, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parser reads typed variables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}
