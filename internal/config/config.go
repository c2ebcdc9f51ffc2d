package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/felipemotter/gestor-sub001/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values are loaded from environment variables (optionally seeded by a .env
// file) with sensible defaults.
type Config struct {
	// Server
	Port           int
	LogLevel       string
	MaxUploadBytes int64

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	JWTSecret          string // SUPABASE_JWT_SECRET; empty disables token checks

	// Engine
	RuleWorkers    int
	Reconciliation domain.ReconciliationSettings
}

// Load reads configuration from the environment. envFile, when non-empty and
// present on disk, supplies values for variables that are not set.
func Load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("max_upload_bytes", 5<<20)
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("initial_backoff", 100*time.Millisecond)
	v.SetDefault("max_concurrency", 50)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4317")
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_anon_key", "")
	v.SetDefault("supabase_service_role_key", "")
	v.SetDefault("supabase_jwt_secret", "")
	v.SetDefault("rule_workers", 4)
	v.SetDefault("reconcile_date_tolerance_days", 3)
	v.SetDefault("reconcile_amount_tolerance", "1.00")
	v.SetDefault("reconcile_description_matching", false)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !isMissingFile(err) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	tolerance, err := decimal.NewFromString(v.GetString("reconcile_amount_tolerance"))
	if err != nil {
		return nil, fmt.Errorf("RECONCILE_AMOUNT_TOLERANCE: %w", err)
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("RECONCILE_AMOUNT_TOLERANCE must not be negative")
	}

	cfg := &Config{
		Port:           v.GetInt("port"),
		LogLevel:       v.GetString("log_level"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),

		HTTPTimeout: v.GetDuration("http_timeout"),

		MaxRetries:     v.GetInt("max_retries"),
		InitialBackoff: v.GetDuration("initial_backoff"),
		MaxConcurrency: v.GetInt("max_concurrency"),

		CacheTTL: v.GetDuration("cache_ttl"),

		OTLPEndpoint: v.GetString("otel_exporter_otlp_endpoint"),

		SupabaseURL:        v.GetString("supabase_url"),
		SupabaseAnonKey:    v.GetString("supabase_anon_key"),
		SupabaseServiceKey: v.GetString("supabase_service_role_key"),
		JWTSecret:          v.GetString("supabase_jwt_secret"),

		RuleWorkers: v.GetInt("rule_workers"),
		Reconciliation: domain.ReconciliationSettings{
			DateToleranceDays:   v.GetInt("reconcile_date_tolerance_days"),
			AmountTolerance:     tolerance,
			DescriptionMatching: v.GetBool("reconcile_description_matching"),
		},
	}

	if cfg.Reconciliation.DateToleranceDays < 0 {
		return nil, fmt.Errorf("RECONCILE_DATE_TOLERANCE_DAYS must not be negative")
	}
	return cfg, nil
}

// UseSupabase reports whether a backend is configured.
func (c *Config) UseSupabase() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}
