package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string

	// Database
	DBDriver   string // "mysql" or "sqlite"
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string // sqlite file, only used when DBDriver is "sqlite"

	// Audio storage
	AudioStore       string   // "disk" or "minio"
	UploadDir        string   // Base directory for all uploads
	AudioDir         string   // Directory holding uploaded audio files when AudioStore is "disk"
	SupportedFormats []string // Accepted audio extensions, e.g. ".mp3"
	MaxUploadSizeMB  int64

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	// Redis配置
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	TokenTTL  time.Duration
	DevMode   bool // 本地开发，允许未配置 JWT_SECRET

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma separated variable, lowercasing and dot-prefixing
// each entry so "mp3, .WAV" becomes [".mp3", ".wav"].
func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// DefaultSupportedFormats lists the audio extensions accepted when
// SUPPORTED_FORMATS is not set.
var DefaultSupportedFormats = []string{".mp3", ".flac", ".wav", ".ogg", ".m4a", ".aac"}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() *Config {
	uploadBase := getEnv("UPLOAD_DIR", "uploads")

	return &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBHost:           getEnv("DB_HOST", "127.0.0.1"),
		DBPort:           getEnv("DB_PORT", "3306"),
		DBUser:           getEnv("DB_USER", "root"),
		DBPassword:       os.Getenv("DB_PASSWORD"), // no hardcoded default for the password
		DBName:           getEnv("DB_NAME", "albumvault"),
		DBPath:           getEnv("DB_PATH", "albumvault.db"),
		AudioStore:       strings.ToLower(getEnv("AUDIO_STORE", "disk")),
		UploadDir:        uploadBase,
		AudioDir:         getEnv("AUDIO_DIR", filepath.Join(uploadBase, "audio")),
		SupportedFormats: getEnvList("SUPPORTED_FORMATS", DefaultSupportedFormats),
		MaxUploadSizeMB:  int64(getEnvInt("MAX_UPLOAD_SIZE_MB", 50)),
		MinioEndpoint:    getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey:   os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:   os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:      getEnv("MINIO_BUCKET", "albumvault"),
		MinioUseSSL:      getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:      getEnv("MINIO_REGION", "us-east-1"),
		RedisEnabled:     getEnvBool("REDIS_ENABLED", false),
		RedisHost:        getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:          getEnvInt("REDIS_DB", 0),     // 默认使用0号数据库
		JWTSecret:        os.Getenv("JWT_SECRET"), // no hardcoded default for the signing key
		TokenTTL:         getEnvDuration("TOKEN_TTL", 24*time.Hour),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          os.Getenv("LOG_FILE"),
		DevMode:          getEnvBool("DEV_MODE", false),
	}
}

// MaxUploadBytes returns the request body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB << 20
}

// ErrInsecureJWTSecret is returned when tokens would be signed with a missing
// or placeholder key.
var ErrInsecureJWTSecret = errors.New("JWT_SECRET is not set or uses a placeholder value")

var placeholderSecrets = map[string]bool{
	"":          true,
	"change-me": true,
	"changeme":  true,
	"secret":    true,
}

// CheckJWTSecret rejects a missing or placeholder JWT_SECRET. Local setups
// (DB_DRIVER=sqlite or DEV_MODE=true) get a random secret for this process
// instead, so tokens do not survive a restart.
func (c *Config) CheckJWTSecret() error {
	if !placeholderSecrets[strings.ToLower(strings.TrimSpace(c.JWTSecret))] {
		return nil
	}
	if c.DBDriver == "sqlite" || c.DevMode {
		c.JWTSecret = uuid.NewString() + uuid.NewString()
		log.Println("JWT_SECRET not set, using a random secret for this process (development only)")
		return nil
	}
	return ErrInsecureJWTSecret
}
