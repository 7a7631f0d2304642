package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEDRETURN_DB_HOST.
const EnvPrefix = "MEDRETURN"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" envconfig:"SERVER"`
	Database  DatabaseConfig  `mapstructure:"database" envconfig:"DB"`
	Redis     RedisConfig     `mapstructure:"redis" envconfig:"REDIS"`
	JWT       JWTConfig       `mapstructure:"jwt" envconfig:"JWT"`
	Log       LogConfig       `mapstructure:"log" envconfig:"LOG"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" envconfig:"RATE_LIMIT"`
	CORS      CORSConfig      `mapstructure:"cors" envconfig:"CORS"`
	Outbox    OutboxConfig    `mapstructure:"outbox" envconfig:"OUTBOX"`
	Prompt    PromptConfig    `mapstructure:"prompt" envconfig:"PROMPT"`
	Retention RetentionConfig `mapstructure:"retention" envconfig:"RETENTION"`
	Email     EmailConfig     `mapstructure:"email" envconfig:"EMAIL"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" split_words:"true"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	HealthPort      int           `mapstructure:"health_port" split_words:"true"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" split_words:"true"`
	Port         int    `mapstructure:"port" split_words:"true"`
	User         string `mapstructure:"user" split_words:"true"`
	Password     string `mapstructure:"password" split_words:"true"`
	Name         string `mapstructure:"name" split_words:"true"`
	SSLMode      string `mapstructure:"sslmode" split_words:"true"`
	MaxOpenConns int    `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" split_words:"true"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" split_words:"true"`
	Channel      string        `mapstructure:"channel" split_words:"true"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret" split_words:"true"`
	Issuer string        `mapstructure:"issuer" split_words:"true"`
	Expiry time.Duration `mapstructure:"expiry" split_words:"true"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" split_words:"true"`
	Console bool   `mapstructure:"console" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled" split_words:"true"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int           `mapstructure:"burst" split_words:"true"`
	ClientTTL         time.Duration `mapstructure:"client_ttl" split_words:"true"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" split_words:"true"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval  time.Duration `mapstructure:"poll_interval" split_words:"true"`
	RetryAttempts int           `mapstructure:"retry_attempts" split_words:"true"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" split_words:"true"`
	RetainFor     time.Duration `mapstructure:"retain_for" split_words:"true"`
}

// PromptConfig drives the delayed chatbot prompt shown to idle visitors.
type PromptConfig struct {
	Delay      time.Duration `mapstructure:"delay" split_words:"true"`
	SessionTTL time.Duration `mapstructure:"session_ttl" split_words:"true"`
	Title      string        `mapstructure:"title" split_words:"true"`
	Message    string        `mapstructure:"message" split_words:"true"`
}

type RetentionConfig struct {
	ArchivedDays int           `mapstructure:"archived_days" split_words:"true"`
	Interval     time.Duration `mapstructure:"interval" split_words:"true"`
}

type EmailConfig struct {
	Enabled         bool     `mapstructure:"enabled" split_words:"true"`
	Host            string   `mapstructure:"host" split_words:"true"`
	Port            int      `mapstructure:"port" split_words:"true"`
	Username        string   `mapstructure:"username" split_words:"true"`
	Password        string   `mapstructure:"password" split_words:"true"`
	From            string   `mapstructure:"from" split_words:"true"`
	AdminRecipients []string `mapstructure:"admin_recipients" split_words:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.health_port", 8081)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "medreturn")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.channel", "notifications")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.issuer", "medreturn")
	v.SetDefault("jwt.expiry", 24*time.Hour)

	v.SetDefault("log.level", "info")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.client_ttl", 10*time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", 5*time.Second)
	v.SetDefault("outbox.retain_for", 7*24*time.Hour)

	v.SetDefault("prompt.delay", 30*time.Second)
	v.SetDefault("prompt.session_ttl", 30*time.Minute)
	v.SetDefault("prompt.title", "Trợ lý ảo")
	v.SetDefault("prompt.message", "Xin chào! Tôi có thể giúp gì cho bạn?")

	v.SetDefault("retention.archived_days", 90)
	v.SetDefault("retention.interval", time.Hour)

	v.SetDefault("email.port", 587)
}

// LoadConfig reads config.yml from the usual locations, then applies
// MEDRETURN_* environment overrides. A missing file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Prompt.Delay <= 0 {
		return errors.New("prompt.delay must be positive")
	}
	// An idle session evicted before its delay elapses never fires.
	if c.Prompt.SessionTTL <= c.Prompt.Delay {
		return errors.New("prompt.session_ttl must be longer than prompt.delay")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 {
		return errors.New("outbox.batch_size and outbox.poll_interval must be positive")
	}
	if c.Email.Enabled && (c.Email.Host == "" || c.Email.From == "") {
		return errors.New("email.host and email.from are required when email is enabled")
	}
	return nil
}
