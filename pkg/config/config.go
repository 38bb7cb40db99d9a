package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	LLM        LLMConfig
	Storage    StorageConfig
	Xray       XrayConfig
	Worker     WorkerConfig
}

// DefaultJWTSecret is only good for development; Validate rejects it in
// production.
const DefaultJWTSecret = "change-me-in-production"

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	AllowedOrigins []string
	TrustProxy     bool
}

type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite file path
	LogSQL   bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	Enabled  bool
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
	// LLMRequests caps model calls per user per window. 0 disables it.
	LLMRequests int
}

// LLMConfig holds defaults for outbound completion calls. Base URLs are
// overridable so self-hosted or OpenAI-compatible gateways can be used.
type LLMConfig struct {
	TimeoutSeconds   int
	DefaultProvider  string
	DefaultModel     string
	OpenAIBaseURL    string
	AnthropicBaseURL string
	GeminiBaseURL    string
	OllamaBaseURL    string
	DeepSeekBaseURL  string
}

type StorageConfig struct {
	Backend  string // local, s3 or gcs
	LocalDir string
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string

	// Static S3 credentials; empty means the default AWS chain.
	AccessKeyID     string
	SecretAccessKey string
	// GCS service account file; empty means application default credentials.
	CredentialsFile string
}

type XrayConfig struct {
	BaseURL string
}

type WorkerConfig struct {
	Concurrency        int
	SessionCleanupCron string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (d *DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (l *LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func (r *RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "")
	v.SetDefault("SERVER_TRUST_PROXY", false)
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "testforge")
	v.SetDefault("DATABASE_PASSWORD", "testforge_secret")
	v.SetDefault("DATABASE_NAME", "testforge")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_PATH", "testforge.db")
	v.SetDefault("DATABASE_LOG_SQL", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("JWT_SECRET", DefaultJWTSecret)
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_LLM_REQUESTS", 20)
	v.SetDefault("LLM_TIMEOUT_SECONDS", 120)
	v.SetDefault("LLM_DEFAULT_PROVIDER", "openai")
	v.SetDefault("LLM_DEFAULT_MODEL", "gpt-4o")
	v.SetDefault("LLM_OPENAI_BASE_URL", "")
	v.SetDefault("LLM_ANTHROPIC_BASE_URL", "https://api.anthropic.com")
	v.SetDefault("LLM_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("LLM_OLLAMA_BASE_URL", "http://localhost:11434/v1")
	v.SetDefault("LLM_DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1")
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "data")
	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_PREFIX", "")
	v.SetDefault("STORAGE_ACCESS_KEY_ID", "")
	v.SetDefault("STORAGE_SECRET_ACCESS_KEY", "")
	v.SetDefault("STORAGE_CREDENTIALS_FILE", "")
	v.SetDefault("XRAY_BASE_URL", "https://xray.cloud.getxray.app")
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("SESSION_CLEANUP_CRON", "0 * * * *")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
			TrustProxy:     v.GetBool("SERVER_TRUST_PROXY"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DATABASE_DRIVER")),
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
			Path:     v.GetString("DATABASE_PATH"),
			LogSQL:   v.GetBool("DATABASE_LOG_SQL"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			Enabled:  v.GetBool("REDIS_ENABLED"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			LLMRequests:   v.GetInt("RATE_LIMIT_LLM_REQUESTS"),
		},
		LLM: LLMConfig{
			TimeoutSeconds:   v.GetInt("LLM_TIMEOUT_SECONDS"),
			DefaultProvider:  v.GetString("LLM_DEFAULT_PROVIDER"),
			DefaultModel:     v.GetString("LLM_DEFAULT_MODEL"),
			OpenAIBaseURL:    v.GetString("LLM_OPENAI_BASE_URL"),
			AnthropicBaseURL: v.GetString("LLM_ANTHROPIC_BASE_URL"),
			GeminiBaseURL:    v.GetString("LLM_GEMINI_BASE_URL"),
			OllamaBaseURL:    v.GetString("LLM_OLLAMA_BASE_URL"),
			DeepSeekBaseURL:  v.GetString("LLM_DEEPSEEK_BASE_URL"),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(v.GetString("STORAGE_BACKEND")),
			LocalDir: v.GetString("STORAGE_LOCAL_DIR"),
			Bucket:   v.GetString("STORAGE_BUCKET"),
			Region:   v.GetString("STORAGE_REGION"),
			Endpoint: v.GetString("STORAGE_ENDPOINT"),
			Prefix:   v.GetString("STORAGE_PREFIX"),

			AccessKeyID:     v.GetString("STORAGE_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("STORAGE_SECRET_ACCESS_KEY"),
			CredentialsFile: v.GetString("STORAGE_CREDENTIALS_FILE"),
		},
		Xray: XrayConfig{
			BaseURL: v.GetString("XRAY_BASE_URL"),
		},
		Worker: WorkerConfig{
			Concurrency:        v.GetInt("WORKER_CONCURRENCY"),
			SessionCleanupCron: v.GetString("SESSION_CLEANUP_CRON"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3", "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("STORAGE_BUCKET is required for %s storage", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Server.Env == "production" && c.JWT.Secret == DefaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be changed from the default in production")
	}

	if c.JWT.ExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive")
	}

	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
