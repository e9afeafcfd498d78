package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Location  LocationConfig  `mapstructure:"location"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	// RequestTimeout bounds handler execution, in seconds.
	RequestTimeout int `mapstructure:"request_timeout"`
	// IdentityHeader carries the authenticated user id set by the gateway.
	IdentityHeader string `mapstructure:"identity_header"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

type LocationConfig struct {
	StaleAfter     time.Duration `mapstructure:"stale_after"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	Retention      time.Duration `mapstructure:"retention"`
	HistoryWorkers int           `mapstructure:"history_workers"`
}

type RoutingConfig struct {
	SpeedKmh      float64       `mapstructure:"speed_kmh"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	MaxCustomers  int           `mapstructure:"max_customers"`
	// CustomerCacheTTL enables the customer read-through cache when positive.
	CustomerCacheTTL time.Duration `mapstructure:"customer_cache_ttl"`
}

type AnalyticsConfig struct {
	CacheTTL              time.Duration `mapstructure:"cache_ttl"`
	Timeout               time.Duration `mapstructure:"timeout"`
	RecentCustomerDays    int           `mapstructure:"recent_customer_days"`
	RecentInteractionDays int           `mapstructure:"recent_interaction_days"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 10)
	v.SetDefault("server.identity_header", "X-User-ID")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "crm")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "crm")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("location.stale_after", "5m")
	v.SetDefault("location.sweep_interval", "1m")
	v.SetDefault("location.retention", "24h")
	v.SetDefault("location.history_workers", 4)
	v.SetDefault("routing.speed_kmh", 50.0)
	v.SetDefault("routing.lookup_timeout", "3s")
	v.SetDefault("routing.max_customers", 200)
	v.SetDefault("routing.customer_cache_ttl", "5m")
	v.SetDefault("analytics.cache_ttl", "0s")
	v.SetDefault("analytics.timeout", "5s")
	v.SetDefault("analytics.recent_customer_days", 30)
	v.SetDefault("analytics.recent_interaction_days", 7)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: FIELDGEO_DATABASE_HOST → database.host
	v.SetEnvPrefix("FIELDGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}
	if strings.TrimSpace(c.Server.IdentityHeader) == "" {
		errs = append(errs, "server.identity_header is required")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}
	if c.Location.StaleAfter <= 0 {
		errs = append(errs, "location.stale_after must be positive")
	}
	if c.Location.SweepInterval <= 0 {
		errs = append(errs, "location.sweep_interval must be positive")
	}
	if c.Location.Retention < c.Location.StaleAfter {
		errs = append(errs, "location.retention must not be shorter than location.stale_after")
	}
	if c.Routing.SpeedKmh <= 0 {
		errs = append(errs, fmt.Sprintf("routing.speed_kmh must be positive, got %v", c.Routing.SpeedKmh))
	}
	if c.Routing.LookupTimeout <= 0 {
		errs = append(errs, "routing.lookup_timeout must be positive")
	}
	if c.Routing.MaxCustomers < 0 {
		errs = append(errs, "routing.max_customers must not be negative")
	}
	if c.Analytics.CacheTTL < 0 {
		errs = append(errs, "analytics.cache_ttl must not be negative")
	}
	if c.Analytics.RecentCustomerDays <= 0 || c.Analytics.RecentInteractionDays <= 0 {
		errs = append(errs, "analytics recent windows must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RecentCustomerWindow returns the analytics customer look-back as a duration.
func (a AnalyticsConfig) RecentCustomerWindow() time.Duration {
	return time.Duration(a.RecentCustomerDays) * 24 * time.Hour
}

// RecentInteractionWindow returns the analytics interaction look-back as a duration.
func (a AnalyticsConfig) RecentInteractionWindow() time.Duration {
	return time.Duration(a.RecentInteractionDays) * 24 * time.Hour
}
