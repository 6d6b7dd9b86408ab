package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	AWS        AWSConfig
	Email      EmailConfig
	Discord    DiscordConfig
	Cron       CronConfig
	Volunteers VolunteerConfig
	Digest     DigestConfig
	Queue      QueueConfig
	Worker     WorkerConfig
}

// EmailConfig for SMTP delivery.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	AppBaseURL  string // used for links inside emails
}

// DiscordConfig holds the bot token used to post to channels.
type DiscordConfig struct {
	BotToken         string
	DefaultChannelID string
	APIBaseURL       string
}

// CronConfig holds the shared secret scheduled jobs authenticate with.
type CronConfig struct {
	Secret string
}

// VolunteerConfig holds volunteer directory rules.
type VolunteerConfig struct {
	PromotionThreshold int // event links needed before a volunteer can become a member
}

// DigestConfig controls the weekly digest job.
type DigestConfig struct {
	BatchSize     int
	LookaheadDays int
}

// QueueConfig controls notification job retries.
type QueueConfig struct {
	MaxRetries   int
	InlineWorker bool // also run the notification worker inside the API process
}

// WorkerConfig holds settings for the standalone notification worker.
type WorkerConfig struct {
	MetricsPort string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/meetup?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret            string
	AccessExpireMins  int
	RefreshExpireDays int
}

// AWSConfig holds AWS credentials and the media bucket (speaker headshots, venue photos).
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	MediaBucket          string
	PresignExpireMinutes int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "meetup"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "change-me-in-production"),
			AccessExpireMins:  getEnvInt("JWT_ACCESS_EXPIRE_MINUTES", 15),
			RefreshExpireDays: getEnvInt("JWT_REFRESH_EXPIRE_DAYS", 30),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MediaBucket:          getEnv("AWS_S3_MEDIA_BUCKET", "meetup-media-bucket"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Meetup Ops"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
			AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:3000"),
		},
		Discord: DiscordConfig{
			BotToken:         getEnv("DISCORD_BOT_TOKEN", ""),
			DefaultChannelID: getEnv("DISCORD_CHANNEL_ID", ""),
			APIBaseURL:       getEnv("DISCORD_API_BASE_URL", "https://discord.com/api/v10"),
		},
		Cron: CronConfig{
			Secret: getEnv("CRON_SECRET", ""),
		},
		Volunteers: VolunteerConfig{
			PromotionThreshold: getEnvInt("VOLUNTEER_PROMOTION_THRESHOLD", 3),
		},
		Digest: DigestConfig{
			BatchSize:     getEnvInt("DIGEST_BATCH_SIZE", 25),
			LookaheadDays: getEnvInt("DIGEST_LOOKAHEAD_DAYS", 7),
		},
		Queue: QueueConfig{
			MaxRetries:   getEnvInt("QUEUE_MAX_RETRIES", 3),
			InlineWorker: getEnvBool("QUEUE_INLINE_WORKER", false),
		},
		Worker: WorkerConfig{
			MetricsPort: getEnv("WORKER_METRICS_PORT", "9091"),
		},
	}
	if cfg.Volunteers.PromotionThreshold < 1 {
		return nil, fmt.Errorf("VOLUNTEER_PROMOTION_THRESHOLD must be at least 1")
	}
	if cfg.Digest.BatchSize < 1 {
		return nil, fmt.Errorf("DIGEST_BATCH_SIZE must be at least 1")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// SplitTrim splits a comma-separated env value, dropping blanks.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
