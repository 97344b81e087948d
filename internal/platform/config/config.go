package config

import (
	"bytes"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	APIPort       string
	PublicBaseURL string
	ClubName      string
	LogLevel      string
	LogFormat     string

	JWTKey []byte
	JWTExp time.Duration

	// Signs confirm/reset links. Kept apart from the session key.
	TokenSecret    []byte
	TokenTTL       time.Duration
	TokenSingleUse bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MailServer        string
	MailPort          int
	MailUsername      string
	MailPassword      string
	MailDefaultSender string
	MailQueueName     string
	MailMaxAttempts   int

	UseCaptcha     bool
	HCaptchaSecret string
	HCaptchaSite   string

	BlobBackend    string
	BlobPath       string
	BlobCacheSize  int
	BlobCacheTTL   time.Duration
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	B2AccountID    string
	B2AppKey       string
	B2Bucket       string

	SubmitRatePerSec   float64
	SubmitBurst        float64
	ScoreboardCacheTTL time.Duration

	JanitorSchedule string
	JanitorLockKey  string
	JanitorLockTTL  time.Duration
}

var AppConfig *Config

var (
	ErrMissingTokenSecret = errors.New("TOKEN_SECRET is not set")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET_KEY is not set")
	ErrSharedSecret       = errors.New("TOKEN_SECRET and JWT_SECRET_KEY must differ")
)

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		ClubName:      getEnv("CLUB_NAME", "CTF Club"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),

		JWTKey: []byte(getEnv("JWT_SECRET_KEY", "")),
		JWTExp: time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,

		TokenSecret:    []byte(getEnv("TOKEN_SECRET", "")),
		TokenTTL:       time.Duration(getEnvAsInt("TOKEN_TTL_SECONDS", 1800)) * time.Second,
		TokenSingleUse: getEnvAsBool("TOKEN_SINGLE_USE", true),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "ctf"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "ctf_zone"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		MailServer:        getEnv("MAIL_SERVER", ""),
		MailPort:          getEnvAsInt("MAIL_PORT", 587),
		MailUsername:      getEnv("MAIL_USERNAME", ""),
		MailPassword:      getEnv("MAIL_PASSWORD", ""),
		MailDefaultSender: getEnv("MAIL_DEFAULT_SENDER", "noreply@example.com"),
		MailQueueName:     getEnv("MAIL_QUEUE_NAME", "ctf:mail:outbox"),
		MailMaxAttempts:   getEnvAsInt("MAIL_MAX_ATTEMPTS", 3),

		UseCaptcha:     getEnvAsBool("USE_CAPTCHA", false),
		HCaptchaSecret: getEnv("HCAPTCHA_SECRET", ""),
		HCaptchaSite:   getEnv("HCAPTCHA_SITE", ""),

		BlobBackend:    strings.ToLower(getEnv("BLOB_BACKEND", "bolt")),
		BlobPath:       getEnv("BLOB_PATH", "metadata.db"),
		BlobCacheSize:  getEnvAsInt("BLOB_CACHE_SIZE", 512),
		BlobCacheTTL:   getEnvAsDuration("BLOB_CACHE_TTL", 5*time.Minute),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvAsBool("S3_USE_PATH_STYLE", false),
		B2AccountID:    getEnv("B2_ACCOUNT_ID", ""),
		B2AppKey:       getEnv("B2_APP_KEY", ""),
		B2Bucket:       getEnv("B2_BUCKET", ""),

		SubmitRatePerSec:   getEnvAsFloat("SUBMIT_RATE_PER_SEC", 1),
		SubmitBurst:        getEnvAsFloat("SUBMIT_BURST", 10),
		ScoreboardCacheTTL: getEnvAsDuration("SCOREBOARD_CACHE_TTL", 15*time.Second),

		JanitorSchedule: getEnv("JANITOR_SCHEDULE", "@every 10m"),
		JanitorLockKey:  getEnv("JANITOR_LOCK_KEY", "ctf:janitor:lock"),
		JanitorLockTTL:  getEnvAsDuration("JANITOR_LOCK_TTL", 5*time.Minute),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

// Validate reports configuration the process cannot run without.
func (c *Config) Validate() error {
	if len(c.TokenSecret) == 0 {
		return ErrMissingTokenSecret
	}
	if len(c.JWTKey) == 0 {
		return ErrMissingJWTSecret
	}
	if bytes.Equal(c.TokenSecret, c.JWTKey) {
		return ErrSharedSecret
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
