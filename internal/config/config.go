package config

import (
	"fmt"
	"strings"
	"time"

	"marketplace_ops_backend/pkg/utils"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the server.
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	Database    DatabaseConfig
	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins []string

	RedisAddress string
	WaveLockTTL  time.Duration
	WaveLockWait time.Duration

	PickSessionTTL         time.Duration
	IntegrityCheckInterval time.Duration
}

// DatabaseConfig is the PostgreSQL connection setup.
type DatabaseConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SchemaPath string
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads an optional .env file and then the environment.
// Precedence: explicit env var > .env file > default.
func Load() Config {
	// .env is optional; a missing file is not an error here.
	_ = godotenv.Load()

	cfg := Config{
		Port:     utils.Getenv("PORT", "8080"),
		Env:      utils.Getenv("APP_ENV", "development"),
		LogLevel: utils.Getenv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:       utils.Getenv("DB_HOST", "localhost"),
			Port:       utils.Getenv("DB_PORT", "5432"),
			User:       utils.Getenv("DB_USER", "marketplace_ops"),
			Password:   utils.Getenv("DB_PASSWORD", "marketplace_ops"),
			Name:       utils.Getenv("DB_NAME", "marketplace_ops"),
			SSLMode:    utils.Getenv("DB_SSLMODE", "disable"),
			SchemaPath: utils.Getenv("DB_SCHEMA_PATH", ""),
		},
		JWTSecret:              utils.Getenv("JWT_SECRET", ""),
		JWTTTL:                 utils.GetenvDuration("JWT_TTL", 12*time.Hour),
		RedisAddress:           utils.Getenv("REDIS_ADDRESS", ""),
		WaveLockTTL:            utils.GetenvDuration("WAVE_LOCK_TTL", 30*time.Second),
		WaveLockWait:           utils.GetenvDuration("WAVE_LOCK_WAIT", 5*time.Second),
		PickSessionTTL:         utils.GetenvDuration("PICK_SESSION_TTL", 30*time.Minute),
		IntegrityCheckInterval: utils.GetenvDuration("INTEGRITY_CHECK_INTERVAL", 10*time.Minute),
	}

	origins := utils.Getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	return cfg
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	return nil
}
