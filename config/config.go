package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Identity tokens are issued upstream and verified here.
	JWTSecret string

	// ✅ Redis Config
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ✅ Kafka Config
	KafkaBrokers []string
	KafkaTopic   string

	// ✅ FCM / Firebase Config
	FCMCredentialsPath string
	FCMProjectID       string
	StorageBucket      string
	ImageCDNURL        string

	// ✅ Model provider
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	Model             string
	FallbackModels    []string
	ModelTimeout      time.Duration

	// ✅ Tracing
	LangfuseHost      string
	LangfusePublicKey string
	LangfuseSecretKey string

	PostHogAPIKey   string
	PostHogEndpoint string

	ReadabilityURL string
	AppURL         string
	CORSOrigins    []string
	AIRateLimit    string

	BackgroundTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// MinJWTSecretLen is the shortest HS256 key the API accepts.
const MinJWTSecretLen = 32

var ErrJWTSecret = errors.New("JWT_SECRET is not set")

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "soonlist")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_TOPIC", "event.created")
	v.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("MODEL", "google/gemini-2.5-flash")
	v.SetDefault("FALLBACK_MODELS", "openai/gpt-4o-mini")
	v.SetDefault("MODEL_TIMEOUT", "60s")
	v.SetDefault("LANGFUSE_HOST", "https://cloud.langfuse.com/api/public/otel")
	v.SetDefault("APP_URL", "https://www.soonlist.com")
	v.SetDefault("CORS_ORIGINS", "http://localhost:8081,https://www.soonlist.com")
	v.SetDefault("AI_RATE_LIMIT", "20-M")
	v.SetDefault("BACKGROUND_TIMEOUT", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
}

// Load reads .env (if present) and the environment and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Env:  v.GetString("ENV"),
		Port: v.GetString("PORT"),

		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),

		JWTSecret: v.GetString("JWT_SECRET"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		KafkaBrokers: list(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),

		FCMCredentialsPath: firstOf(v, "GOOGLE_APPLICATION_CREDENTIALS", "FCM_CREDENTIALS_PATH"),
		FCMProjectID:       firstOf(v, "FIREBASE_PROJECT_ID", "FCM_PROJECT_ID"),
		StorageBucket:      v.GetString("FIREBASE_STORAGE_BUCKET"),
		ImageCDNURL:        v.GetString("IMAGE_CDN_URL"),

		OpenRouterAPIKey:  v.GetString("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: v.GetString("OPENROUTER_BASE_URL"),
		Model:             v.GetString("MODEL"),
		FallbackModels:    list(v.GetString("FALLBACK_MODELS")),
		ModelTimeout:      v.GetDuration("MODEL_TIMEOUT"),

		LangfuseHost:      v.GetString("LANGFUSE_HOST"),
		LangfusePublicKey: v.GetString("LANGFUSE_PUBLIC_KEY"),
		LangfuseSecretKey: v.GetString("LANGFUSE_SECRET_KEY"),

		PostHogAPIKey:   v.GetString("POSTHOG_API_KEY"),
		PostHogEndpoint: v.GetString("POSTHOG_ENDPOINT"),

		ReadabilityURL: v.GetString("READABILITY_URL"),
		AppURL:         v.GetString("APP_URL"),
		CORSOrigins:    list(v.GetString("CORS_ORIGINS")),
		AIRateLimit:    v.GetString("AI_RATE_LIMIT"),

		BackgroundTimeout: v.GetDuration("BACKGROUND_TIMEOUT"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
	}
}

// DSN is the postgres connection string for gorm and migrate.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=" + c.DBSSLMode
}

// MigrateURL is the same database in URL form.
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// ValidateServe checks the settings the HTTP API cannot run without.
func (c *Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return ErrJWTSecret
	}
	if len(c.JWTSecret) < MinJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", MinJWTSecretLen, len(c.JWTSecret))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func firstOf(v *viper.Viper, keys ...string) string {
	for _, k := range keys {
		if s := v.GetString(k); s != "" {
			return s
		}
	}
	return ""
}

func list(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
