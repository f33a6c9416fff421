package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL             string
	Port                    string
	GoEnv                   string
	Auth0Domain             string
	Auth0Audience           string
	CRMScope                string // scope required on /crm routes, empty to skip
	AWSRegion               string
	AWSS3Bucket             string
	AWSAccessKeyID          string
	AWSSecretAccessKey      string
	FileStorage             string // "local" or "s3"
	UploadDir               string
	RedisURL                string
	AnalyticsCacheTTL       time.Duration
	StrictStatusTransitions bool
	IDGenerationAttempts    int
	CORSAllowedOrigins      []string
	LogLevel                string
}

var currentConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			// Deployed environments set variables directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	ttl, err := time.ParseDuration(getEnv("ANALYTICS_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("ANALYTICS_CACHE_TTL is not a valid duration: %w", err)
	}

	attempts, err := strconv.Atoi(getEnv("ID_GENERATION_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("ID_GENERATION_ATTEMPTS must be an integer: %w", err)
	}

	strict, err := strconv.ParseBool(getEnv("STRICT_STATUS_TRANSITIONS", "false"))
	if err != nil {
		return nil, fmt.Errorf("STRICT_STATUS_TRANSITIONS must be a boolean: %w", err)
	}

	config := &Config{
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		Port:                    getEnv("PORT", "8080"),
		GoEnv:                   getEnv("GO_ENV", "development"),
		Auth0Domain:             getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:           getEnv("AUTH0_AUDIENCE", ""),
		CRMScope:                getEnv("AUTH0_CRM_SCOPE", ""),
		AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:             getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		FileStorage:             strings.ToLower(getEnv("FILE_STORAGE", "local")),
		UploadDir:               getEnv("UPLOAD_DIR", "./uploads"),
		RedisURL:                getEnv("REDIS_URL", ""),
		AnalyticsCacheTTL:       ttl,
		StrictStatusTransitions: strict,
		IDGenerationAttempts:    attempts,
		CORSAllowedOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	currentConfig = config
	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.FileStorage {
	case "local":
	case "s3":
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when FILE_STORAGE=s3")
		}
	default:
		return fmt.Errorf("FILE_STORAGE must be 'local' or 's3', got %q", c.FileStorage)
	}
	if c.IDGenerationAttempts < 1 {
		return fmt.Errorf("ID_GENERATION_ATTEMPTS must be at least 1")
	}
	return nil
}

// GetConfig returns the configuration produced by the last successful Load
func GetConfig() *Config {
	return currentConfig
}

// SetConfig replaces the current configuration (primarily for testing)
func SetConfig(cfg *Config) {
	currentConfig = cfg
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
