// Package config loads service configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the billing service.
type Config struct {
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Database    DatabaseConfig  `yaml:"database"`
	Auth        AuthConfig      `yaml:"auth"`
	Mail        MailConfig      `yaml:"mail"`
	Razorpay    RazorpayConfig  `yaml:"razorpay"`
	Notifier    NotifierConfig  `yaml:"notifier"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bootstrap   BootstrapConfig `yaml:"bootstrap"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	OTPTTL    time.Duration `yaml:"otp_ttl"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type RazorpayConfig struct {
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
}

type NotifierConfig struct {
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	ThresholdMinutes float64       `yaml:"threshold_minutes"`
	BatchSize        int           `yaml:"batch_size"`
}

type TelemetryConfig struct {
	TracingEnabled   bool    `yaml:"tracing_enabled"`
	ServiceName      string  `yaml:"service_name"`
	ServiceVersion   string  `yaml:"service_version"`
	ExporterEndpoint string  `yaml:"exporter_endpoint"`
	ExporterProtocol string  `yaml:"exporter_protocol"`
	SamplingRatio    float64 `yaml:"sampling_ratio"`
}

type BootstrapConfig struct {
	EnsureAdminUser bool   `yaml:"ensure_admin_user"`
	AdminEmail      string `yaml:"admin_email"`
	AdminPassword   string `yaml:"admin_password"`
}

// IsProduction reports whether the service runs with production hardening.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads config.yaml when present, then applies environment overrides.
// A .env file in the working directory is loaded first, matching local
// development setups.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := envString("MEDAI_CONFIG", "config.yaml")
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		Environment: "development",
		HTTP:        HTTPConfig{Addr: ":8080"},
		Database: DatabaseConfig{
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			OTPTTL:   10 * time.Minute,
		},
		Mail: MailConfig{Port: 587},
		Notifier: NotifierConfig{
			SweepInterval:    20 * time.Minute,
			ThresholdMinutes: 5000,
			BatchSize:        200,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "medai-billing",
			ServiceVersion: "dev",
			SamplingRatio:  0.1,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Environment = envString("MEDAI_ENVIRONMENT", cfg.Environment)
	cfg.HTTP.Addr = envString("MEDAI_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Database.DSN = envString("DATABASE_URL", cfg.Database.DSN)
	cfg.Auth.JWTSecret = envString("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Mail.Host = envString("EMAIL_HOST", cfg.Mail.Host)
	cfg.Mail.Port = envInt("EMAIL_PORT", cfg.Mail.Port)
	cfg.Mail.Username = envString("EMAIL_USER", cfg.Mail.Username)
	cfg.Mail.Password = envString("EMAIL_PASS", cfg.Mail.Password)
	cfg.Mail.From = envString("EMAIL_FROM", cfg.Mail.From)
	cfg.Razorpay.KeyID = envString("RAZORPAY_KEY_ID", cfg.Razorpay.KeyID)
	cfg.Razorpay.KeySecret = envString("RAZORPAY_KEY_SECRET", cfg.Razorpay.KeySecret)
	cfg.Bootstrap.AdminEmail = envString("MEDAI_ADMIN_EMAIL", cfg.Bootstrap.AdminEmail)
	cfg.Bootstrap.AdminPassword = envString("MEDAI_ADMIN_PASSWORD", cfg.Bootstrap.AdminPassword)
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
