package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    Server    `yaml:"server"`
	LinkedIn  LinkedIn  `yaml:"linkedin"`
	Database  Database  `yaml:"database"`
	Scheduler Scheduler `yaml:"scheduler"`
	S3        S3        `yaml:"s3"`
}

// S3 holds S3/MinIO storage configuration for post image attachments
type S3 struct {
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"http://localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET" env-default:"media"`
	Region          string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
}

// Address returns the full server address
func (s Server) Address() string {
	return s.Host + ":" + s.Port
}

// LinkedIn holds LinkedIn API configuration
type LinkedIn struct {
	BaseURL string `yaml:"base_url" env:"LINKEDIN_BASE_URL" env-default:"https://api.linkedin.com"`
}

// Database holds database configuration
type Database struct {
	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_URL"`
}

// Scheduler holds scheduling configuration
type Scheduler struct {
	// Enabled controls the internal due-time poller. Disable when an
	// external cron drives the fire endpoint instead.
	Enabled  bool          `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`
	Interval time.Duration `yaml:"interval" env:"SCHEDULER_INTERVAL" env-default:"1m"`

	// LeadTime is the minimum gap between "now" and an auto-allocated slot
	LeadTime time.Duration `yaml:"lead_time" env:"SCHEDULER_LEAD_TIME" env-default:"0s"`

	// HorizonWeeks bounds how far forward the allocator searches
	HorizonWeeks int `yaml:"horizon_weeks" env:"SCHEDULER_HORIZON_WEEKS" env-default:"52"`

	// Timezone the preferred slots are defined in, e.g. "Europe/Berlin"
	Timezone string `yaml:"timezone" env:"SCHEDULER_TIMEZONE" env-default:"UTC"`

	// PublishTimeout bounds one platform publish call
	PublishTimeout time.Duration `yaml:"publish_timeout" env:"SCHEDULER_PUBLISH_TIMEOUT" env-default:"30s"`
}

// MustLoad loads configuration from environment and panics on error
func MustLoad() Config {
	// Load .env file if exists (for development)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	return cfg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
