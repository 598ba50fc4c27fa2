package config

import (
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppEnv  string
	Port    string
	DataDir string

	// Meal history persistence (json: meals.json and goals.json in DataDir, sqlite/pgx: database)
	StoreDriver  string
	DBConnection string

	// Image blobs (local: DataDir/meal_images, s3: bucket)
	BlobBackend string

	// Remote analysis service
	APIBaseURL       string
	UploadSlotMethod string
	HTTPTimeout      time.Duration
	MaxImageBytes    int

	// Local API guard on analysis starts (each costs three remote calls)
	AnalysisRateLimit  int
	AnalysisRateWindow time.Duration
	// Reverse proxies allowed to set X-Forwarded-For / X-Real-IP
	TrustedProxies []netip.Prefix

	// Session collaborator
	SessionToken     string
	SessionTokenFile string

	// Retention
	RetentionDays int
	PruneSchedule string

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)

	// Development stand-in for the remote service
	DevServerSecret string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	dataDir := envString("DATA_DIR", "./data")

	cfg := &Config{
		// Application
		AppEnv:  envString("APP_ENV", "development"),
		Port:    envString("PORT", "8090"),
		DataDir: dataDir,

		// Persistence
		StoreDriver:  envString("STORE_DRIVER", "json"),
		DBConnection: envString("DB_CONNECTION", filepath.Join(dataDir, "foodlog.db")+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),
		BlobBackend:  envString("BLOB_BACKEND", "local"),

		// Remote analysis service. The hosted service only answers GET on
		// /v1/food/upload_url; set UPLOAD_SLOT_METHOD=GET when pointing at it.
		APIBaseURL:       envString("API_BASE_URL", "https://ecs191-sms-authentication.uc.r.appspot.com"),
		UploadSlotMethod: envString("UPLOAD_SLOT_METHOD", "POST"),
		HTTPTimeout:      envDuration("HTTP_TIMEOUT", 60*time.Second),
		MaxImageBytes:    envInt("MAX_IMAGE_BYTES", 3_750_000),

		AnalysisRateLimit:  envInt("ANALYSIS_RATE_LIMIT", 30),
		AnalysisRateWindow: envDuration("ANALYSIS_RATE_WINDOW", 10*time.Minute),
		TrustedProxies:     envPrefixes("TRUSTED_PROXIES"),

		// Session
		SessionToken:     envString("SESSION_TOKEN", ""),
		SessionTokenFile: envString("SESSION_TOKEN_FILE", ""),

		// Retention
		RetentionDays: envInt("RETENTION_DAYS", 7),
		PruneSchedule: envString("PRUNE_SCHEDULE", "@every 1h"),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage (only read when BLOB_BACKEND=s3)
		S3Region:    envString("S3_REGION", ""),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),

		DevServerSecret: envString("DEVSERVER_SECRET", "dev-secret"),
	}

	if cfg.BlobBackend == "s3" {
		validateS3(cfg)
	}

	return cfg
}

// validateS3 ensures the bucket settings are present before the S3 blob backend is selected.
func validateS3(cfg *Config) {
	if cfg.S3Bucket == "" || cfg.S3Region == "" {
		slog.Error("s3 blob backend requires S3_BUCKET and S3_REGION",
			"hint", "set BLOB_BACKEND=local to keep images on disk")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envPrefixes reads a comma-separated list of addresses or CIDR ranges.
func envPrefixes(key string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, field := range strings.Split(os.Getenv(key), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if p, err := netip.ParsePrefix(field); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(field); err == nil {
			a = a.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		slog.Warn("config invalid proxy address, ignoring", "key", key, "value", field)
	}
	return prefixes
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MealsPath is the records file used by the json store driver.
func (c *Config) MealsPath() string {
	return filepath.Join(c.DataDir, "meals.json")
}

// GoalsPath is the goals file used by the json store driver.
func (c *Config) GoalsPath() string {
	return filepath.Join(c.DataDir, "goals.json")
}

// ImagesDir holds one <mealID>.jpg per record for the local blob backend.
func (c *Config) ImagesDir() string {
	return filepath.Join(c.DataDir, "meal_images")
}

// Retention is the meal retention window.
func (c *Config) Retention() int {
	if c.RetentionDays <= 0 {
		return 7
	}
	return c.RetentionDays
}
