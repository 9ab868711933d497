package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"voterfield/internal/adapters/objectstore"
)

type Config struct {
	Env                string
	ListenAddr         string
	DatabaseURL        string
	MigrateOnStart     bool
	JWTSecret          string
	TokenTTL           time.Duration
	InternalAdminToken string
	ImportWorkers      int
	JobPollInterval    time.Duration
	JobMaxRuntime      time.Duration
	ImportMaxRecords   int
	CORSOrigins        []string
	ObjectStore        objectstore.Config
}

func (c Config) Production() bool { return c.Env == "production" }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvList splits a comma-separated value, dropping blank entries.
func getenvList(key string, def []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseBool(v); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if out, err := time.ParseDuration(v); err == nil {
			return out
		}
	}
	return def
}

// Load reads configuration from the environment, after loading a .env file
// when one is present. Production refuses to fall back to development
// secrets.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getenv("APP_ENV", "development"),
		ListenAddr:         getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrateOnStart:     getenvBool("MIGRATE_ON_START", true),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           getenvDuration("TOKEN_TTL", 12*time.Hour),
		InternalAdminToken: os.Getenv("INTERNAL_ADMIN_TOKEN"),
		ImportWorkers:      getenvInt("IMPORT_WORKERS", 2),
		JobPollInterval:    getenvDuration("JOB_POLL_INTERVAL", 500*time.Millisecond),
		JobMaxRuntime:      getenvDuration("JOB_MAX_RUNTIME", 10*time.Minute),
		ImportMaxRecords:   getenvInt("IMPORT_MAX_RECORDS", 100000),
		CORSOrigins:        getenvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ObjectStore: objectstore.Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getenv("S3_REGION", "us-east-1"),
			ForcePathStyle:  getenvBool("S3_FORCE_PATH_STYLE", false),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
	}

	var missing []error
	if cfg.DatabaseURL == "" {
		missing = append(missing, errors.New("DATABASE_URL not set"))
	}
	if cfg.Production() {
		if cfg.JWTSecret == "" {
			missing = append(missing, errors.New("JWT_SECRET not set"))
		}
		if cfg.InternalAdminToken == "" {
			missing = append(missing, errors.New("INTERNAL_ADMIN_TOKEN not set"))
		}
	} else {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "dev_secret"
		}
		if cfg.InternalAdminToken == "" {
			cfg.InternalAdminToken = "internal_dev_token"
		}
	}
	for name, d := range map[string]time.Duration{
		"TOKEN_TTL":         cfg.TokenTTL,
		"JOB_POLL_INTERVAL": cfg.JobPollInterval,
		"JOB_MAX_RUNTIME":   cfg.JobMaxRuntime,
	} {
		if d <= 0 {
			missing = append(missing, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if cfg.JobPollInterval > 0 && cfg.JobMaxRuntime < 2*cfg.JobPollInterval {
		missing = append(missing, fmt.Errorf("JOB_MAX_RUNTIME (%s) must be at least twice JOB_POLL_INTERVAL (%s)",
			cfg.JobMaxRuntime, cfg.JobPollInterval))
	}
	return cfg, errors.Join(missing...)
}

// ReapInterval is how often stuck jobs are looked for.
func (c Config) ReapInterval() time.Duration {
	return c.JobMaxRuntime / 2
}
