package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sfutchko/giddyapp-sub002/internal/domain/fee"
	"github.com/spf13/viper"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Payments      PaymentsConfig      `mapstructure:"payments"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// PaymentsConfig configures the processor integration, fees and escrow.
type PaymentsConfig struct {
	Provider                string        `mapstructure:"provider"`
	SecretKey               string        `mapstructure:"secret_key"`
	APIBaseURL              string        `mapstructure:"api_base_url"`
	WebhookSecret           string        `mapstructure:"webhook_secret"`
	WebhookTolerance        time.Duration `mapstructure:"webhook_tolerance"`
	PlatformFeePercent      string        `mapstructure:"platform_fee_percent"`
	ProcessorFeePercent     string        `mapstructure:"processor_fee_percent"`
	ProcessorFixedFeeCents  int64         `mapstructure:"processor_fixed_fee_cents"`
	EscrowHoldDays          int           `mapstructure:"escrow_hold_days"`
	Currency                string        `mapstructure:"currency"`
	ProviderTimeout         time.Duration `mapstructure:"provider_timeout"`
	LockTTL                 time.Duration `mapstructure:"lock_ttl"`
	IdempotencyTTL          time.Duration `mapstructure:"idempotency_ttl"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
}

type WorkerConfig struct {
	BatchSize          int           `mapstructure:"batch_size"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	EventStream        string        `mapstructure:"event_stream"`
	StreamMaxLen       int64         `mapstructure:"stream_max_len"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// GIDDYAPP_PAYMENTS_WEBHOOK_SECRET -> payments.webhook_secret
	v.SetEnvPrefix("GIDDYAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/giddyapp")

	// Config file is optional
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// IsProduction reports whether production-only checks apply.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}

	errs = append(errs, c.Payments.validate()...)

	if c.IsProduction() {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
		if c.Payments.WebhookSecret == "" {
			errs = append(errs, fmt.Errorf("payments.webhook_secret required in production"))
		}
		if c.Payments.Provider != "mock" && c.Payments.SecretKey == "" {
			errs = append(errs, fmt.Errorf("payments.secret_key required in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func (p *PaymentsConfig) validate() []error {
	var errs []error

	switch p.Provider {
	case "mock", "stripe":
	default:
		errs = append(errs, fmt.Errorf("payments.provider must be mock or stripe, got %q", p.Provider))
	}
	if _, err := p.FeeSchedule(); err != nil {
		errs = append(errs, fmt.Errorf("payments fee schedule: %w", err))
	}
	if p.EscrowHoldDays < 0 {
		errs = append(errs, fmt.Errorf("payments.escrow_hold_days cannot be negative"))
	}
	if len(p.Currency) != 3 {
		errs = append(errs, fmt.Errorf("payments.currency must be a 3-letter ISO code"))
	}
	if p.WebhookTolerance <= 0 {
		errs = append(errs, fmt.Errorf("payments.webhook_tolerance must be positive"))
	}
	if p.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("payments.provider_timeout must be positive"))
	}
	if p.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("payments.lock_ttl must be positive"))
	}
	return errs
}

// FeeSchedule parses the configured percentages into a fee schedule.
func (p *PaymentsConfig) FeeSchedule() (fee.Schedule, error) {
	platform, err := fee.ParseRate(p.PlatformFeePercent)
	if err != nil {
		return fee.Schedule{}, fmt.Errorf("platform_fee_percent: %w", err)
	}
	processor, err := fee.ParseRate(p.ProcessorFeePercent)
	if err != nil {
		return fee.Schedule{}, fmt.Errorf("processor_fee_percent: %w", err)
	}
	s := fee.Schedule{
		PlatformRatePPM:     platform,
		ProcessorRatePPM:    processor,
		ProcessorFixedCents: p.ProcessorFixedFeeCents,
	}
	return s, s.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_limit_window", "1m")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "giddyapp")
	v.SetDefault("database.database", "giddyapp")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Payments defaults
	v.SetDefault("payments.provider", "mock")
	v.SetDefault("payments.api_base_url", "https://api.stripe.com")
	v.SetDefault("payments.webhook_tolerance", "5m")
	v.SetDefault("payments.platform_fee_percent", "5.0")
	v.SetDefault("payments.processor_fee_percent", "2.9")
	v.SetDefault("payments.processor_fixed_fee_cents", 30)
	v.SetDefault("payments.escrow_hold_days", 7)
	v.SetDefault("payments.currency", "usd")
	v.SetDefault("payments.provider_timeout", "10s")
	v.SetDefault("payments.lock_ttl", "30s")
	v.SetDefault("payments.idempotency_ttl", "24h")
	v.SetDefault("payments.circuit_breaker_threshold", 10)
	v.SetDefault("payments.circuit_breaker_timeout", "30s")

	// Worker defaults
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.outbox_poll_interval", "2s")
	v.SetDefault("worker.event_stream", "escrow:events")
	v.SetDefault("worker.stream_max_len", 100000)
	v.SetDefault("worker.cleanup_interval", "1h")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	v.SetDefault("instance_id", "giddyapp-payments-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MigrateURL is the DSN in the URL form golang-migrate expects.
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
