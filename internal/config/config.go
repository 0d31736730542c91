package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/es0612/health-insight-go/internal/models"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Insight     InsightConfig   `mapstructure:"insight"`
	Security    SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

// DSN returns the connection string, preferring an explicit database_url
// over the individual host fields.
func (c DatabaseConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" json:"-" yaml:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	Insecure   bool    `mapstructure:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// InsightConfig tunes the analysis pipeline defaults.
type InsightConfig struct {
	DefaultWindow      string  `mapstructure:"default_window"`
	MaxLagDays         int     `mapstructure:"max_lag_days"`
	DefaultSensitivity string  `mapstructure:"default_sensitivity"`
	AnomalyThreshold   float64 `mapstructure:"anomaly_threshold"`
	BaselineDays       int     `mapstructure:"baseline_days"`
	CacheTTL           string  `mapstructure:"cache_ttl"`
	AlertMinSeverity   string  `mapstructure:"alert_min_severity"`
}

// Window returns the default alignment window as a typed value.
func (c InsightConfig) Window() models.TimeWindow {
	return models.TimeWindow(c.DefaultWindow)
}

// Sensitivity returns the default pattern sensitivity as a typed value.
func (c InsightConfig) Sensitivity() models.Sensitivity {
	return models.Sensitivity(c.DefaultSensitivity)
}

// MinSeverity returns the lowest anomaly severity that triggers alerts.
func (c InsightConfig) MinSeverity() models.AnomalySeverity {
	return models.AnomalySeverity(c.AlertMinSeverity)
}

// CacheExpiry returns the insight cache TTL. The duration string is
// validated during Load, so parse failures only happen for zero values.
func (c InsightConfig) CacheExpiry() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

type SecurityConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry    string `mapstructure:"jwt_expiry"`
	BcryptCost   int    `mapstructure:"bcrypt_cost"`
	AdminKeyHash string `mapstructure:"admin_key_hash" json:"-" yaml:"-"`
}

// TokenDuration returns the JWT validity window.
func (c SecurityConfig) TokenDuration() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind secrets that never live in the config file
	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("security.admin_key_hash", "ADMIN_KEY_HASH"); err != nil {
		return nil, fmt.Errorf("failed to bind ADMIN_KEY_HASH environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(config *Config) error {
	if config.Environment != "development" && config.Security.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	if config.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Security.JWTExpiry); err != nil {
			return fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	if config.Security.BcryptCost < bcrypt.MinCost || config.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, config.Security.BcryptCost)
	}

	if !config.Insight.Window().IsValid() {
		return fmt.Errorf("invalid insight default window: %q", config.Insight.DefaultWindow)
	}

	if !config.Insight.Sensitivity().IsValid() {
		return fmt.Errorf("invalid insight default sensitivity: %q", config.Insight.DefaultSensitivity)
	}

	if config.Insight.MaxLagDays < 0 {
		return fmt.Errorf("insight max lag days must not be negative, got %d", config.Insight.MaxLagDays)
	}

	if config.Insight.AnomalyThreshold <= 0 {
		return fmt.Errorf("insight anomaly threshold must be positive, got %g", config.Insight.AnomalyThreshold)
	}

	if config.Insight.BaselineDays < 2 {
		return fmt.Errorf("insight baseline days must be at least 2, got %d", config.Insight.BaselineDays)
	}

	if _, err := time.ParseDuration(config.Insight.CacheTTL); err != nil {
		return fmt.Errorf("invalid insight cache TTL: %w", err)
	}

	switch config.Insight.MinSeverity() {
	case models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
	default:
		return fmt.Errorf("invalid insight alert min severity: %q", config.Insight.AlertMinSeverity)
	}

	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "health_insight")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	// Telemetry
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.endpoint", "")
	viper.SetDefault("telemetry.insecure", false)
	viper.SetDefault("telemetry.sample_rate", 0.2)

	// Insight analysis
	viper.SetDefault("insight.default_window", "daily")
	viper.SetDefault("insight.max_lag_days", 14)
	viper.SetDefault("insight.default_sensitivity", "medium")
	viper.SetDefault("insight.anomaly_threshold", 2.0)
	viper.SetDefault("insight.baseline_days", 30)
	viper.SetDefault("insight.cache_ttl", "15m")
	viper.SetDefault("insight.alert_min_severity", "high")

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.bcrypt_cost", 12)
	viper.SetDefault("security.admin_key_hash", "")
}
