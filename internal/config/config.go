// Package config loads service configuration from defaults, an optional YAML
// file and GIGCONNECT_* environment variables.
package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Email     EmailConfig     `mapstructure:"email"`
	MailQueue MailQueueConfig `mapstructure:"mail_queue"`
	AI        AIConfig        `mapstructure:"ai"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Env     string `mapstructure:"env"`
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// MongoConfig selects the document store for tickets. An empty URI keeps
// tickets in memory.
type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RedisConfig backs the shared rate limiter. An empty Addr keeps limits in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EmailConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	AuthType   string `mapstructure:"auth_type"`
	TLS        bool   `mapstructure:"tls"`
	TLSMode    string `mapstructure:"tls_mode"`
	SkipVerify bool   `mapstructure:"skip_verify"`
}

type MailQueueConfig struct {
	Schedule        string        `mapstructure:"schedule"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	FailedRetention time.Duration `mapstructure:"failed_retention"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Driver    string   `mapstructure:"driver"`
	LocalDir  string   `mapstructure:"local_dir"`
	PublicURL string   `mapstructure:"public_url"`
	MaxBytes  int64    `mapstructure:"max_bytes"`
	S3        S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type RateLimitConfig struct {
	Messages    LimitRule `mapstructure:"messages"`
	Attachments LimitRule `mapstructure:"attachments"`
}

// LimitRule allows Limit calls per Window for one identity.
type LimitRule struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

var (
	mu      sync.RWMutex
	current *Config
)

// Get returns the last loaded configuration, or nil before Load.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set replaces the global configuration. Tests use it to inject values.
func Set(cfg *Config) {
	mu.Lock()
	current = cfg
	mu.Unlock()
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.name", "Gig Connect")
	v.SetDefault("app.base_url", "http://localhost:3000")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.access_token_ttl", 24*time.Hour)

	// Keys without a meaningful default are still registered so that
	// AutomaticEnv picks them up during Unmarshal.
	for _, key := range []string{
		"mongo.uri", "redis.addr", "redis.password",
		"email.smtp.host", "email.smtp.user", "email.smtp.password", "email.smtp.tls_mode",
		"ai.api_key",
		"storage.s3.bucket", "storage.s3.region", "storage.s3.endpoint",
		"storage.s3.access_key", "storage.s3.secret_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("redis.db", 0)
	v.SetDefault("email.smtp.tls", false)
	v.SetDefault("email.smtp.skip_verify", false)
	v.SetDefault("ai.enabled", false)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:gigconnect.db?_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("mongo.database", "gigconnect")
	v.SetDefault("mongo.collection", "tickets")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.from", "no-reply@gigconnect.local")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.auth_type", "plain")

	v.SetDefault("mail_queue.schedule", "@every 30s")
	v.SetDefault("mail_queue.batch_size", 50)
	v.SetDefault("mail_queue.max_retries", 5)
	v.SetDefault("mail_queue.retry_backoff", time.Minute)
	v.SetDefault("mail_queue.failed_retention", 7*24*time.Hour)

	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", 30*time.Second)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.public_url", "/uploads")
	v.SetDefault("storage.max_bytes", 10<<20)

	v.SetDefault("rate_limit.messages.limit", 5)
	v.SetDefault("rate_limit.messages.window", time.Minute)
	v.SetDefault("rate_limit.attachments.limit", 5)
	v.SetDefault("rate_limit.attachments.window", 15*time.Minute)
}

// Load reads configuration from path (optional) and the environment, stores
// it as the global config and returns it.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("GIGCONNECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	Set(cfg)

	if path != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			reloaded, err := decode(v)
			if err != nil {
				log.Printf("config: reload %s failed: %v", e.Name, err)
				return
			}
			// Only the log level is safe to change without a restart.
			if prev := Get(); prev != nil {
				next := *prev
				next.Log = reloaded.Log
				Set(&next)
			}
			log.Printf("config: reloaded %s (log level %s)", e.Name, reloaded.Log.Level)
		})
		v.WatchConfig()
	}

	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if strings.EqualFold(c.App.Env, "production") && len(c.Auth.JWT.Secret) < 32 {
		return fmt.Errorf("config: auth.jwt.secret must be at least 32 characters in production")
	}
	if c.RateLimit.Messages.Limit <= 0 || c.RateLimit.Attachments.Limit <= 0 {
		return fmt.Errorf("config: rate limits must be positive")
	}
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// DebugEnabled reports whether verbose logging is on.
func DebugEnabled() bool {
	cfg := Get()
	return cfg != nil && strings.EqualFold(cfg.Log.Level, "debug")
}
