package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const QR_IMAGE_SIZE = 512

// Environment names. Anything but EnvDev is treated as production.
const (
	EnvDev        = "dev"
	EnvProduction = "production"
)

var (
	ErrMissingCookieSecret = errors.New("missing env COOKIE_SECRET")
	ErrMissingMasterKey    = errors.New("missing env ENCRYPTION_MASTER_KEY")
	ErrMissingAdmin        = errors.New("missing env ADMIN_EMAIL or ADMIN_PASSWORD")
)

type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type RateLimitConfig struct {
	// "memory" or "redis"
	Store    string        `mapstructure:"store"`
	Attempts int           `mapstructure:"attempts"`
	Window   time.Duration `mapstructure:"window"`
	Redis    RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type PushConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
	// VAPID key pair, base64url encoded. Generate one with `csv-share-access vapid`.
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	// Contact sent to push services, a mailto: or https: URL. Empty means
	// the admin email.
	Subject string `mapstructure:"subject"`
}

// Ready reports whether push is enabled and has a VAPID key pair.
func (p PushConfig) Ready() bool {
	return p.Enabled && p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

type RetentionConfig struct {
	AuditLogs        time.Duration `mapstructure:"audit_logs"`
	RecoveryRequests time.Duration `mapstructure:"recovery_requests"`
	Interval         time.Duration `mapstructure:"interval"`
}

type Config struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	Listen   string `mapstructure:"listen"`

	// Public base URL used when rendering link URLs and QR codes. Empty means
	// derive it from the request.
	BaseURL string `mapstructure:"base_url"`

	// Comma separated list of allowed CIDR networks for /admin. Empty means allow all.
	AllowedNetworks string `mapstructure:"allowed_networks"`

	// HMAC secret for signed cookies.
	CookieSecret string `mapstructure:"cookie_secret"`
	// Base64 encoded 32 byte key. Per-file keys are derived from it.
	EncryptionMasterKey string `mapstructure:"encryption_master_key"`
	// Shared secret for the cleanup endpoint. Empty disables the endpoint.
	CleanupSecret string `mapstructure:"cleanup_secret"`

	Admin     AdminConfig     `mapstructure:"admin"`
	Storage   Storage         `mapstructure:"storage"`
	Blob      BlobStorage     `mapstructure:"blob"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Email     EmailConfig     `mapstructure:"email"`
	Push      PushConfig      `mapstructure:"push"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// Dev reports whether cookies may be sent without the Secure flag.
func (c *Config) Dev() bool {
	return c.Env == EnvDev
}

var Cfg *Config

// Check if running in Docker container by checking for the presence of /.dockerenv file
func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// LoadConfig reads configuration from an optional config file and environment
// variables. Missing secrets are configuration errors.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")

	for _, path := range configFile {
		if path != "" {
			v.SetConfigFile(path)
		}
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	// ADMIN_EMAIL maps to admin.email and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Convert relative sqlite path to absolute instance folder
	if p := cfg.Storage.SQLite.Path; p != "" && p != ":memory:" && !os.IsPathSeparator(p[0]) {
		cfg.Storage.SQLite.Path = fmt.Sprintf("%s/%s", getConfigPath(), p)
	}
	if p := cfg.Blob.Path; p != "" && !os.IsPathSeparator(p[0]) {
		cfg.Blob.Path = fmt.Sprintf("%s/%s", getConfigPath(), p)
	}

	Cfg = &cfg
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.CookieSecret == "" {
		return ErrMissingCookieSecret
	}
	if c.EncryptionMasterKey == "" {
		return ErrMissingMasterKey
	}
	if c.Admin.Email == "" || c.Admin.Password == "" {
		return ErrMissingAdmin
	}
	if len(c.CookieSecret) < 32 {
		slog.Warn("COOKIE_SECRET is shorter than 32 characters. Do not use in production.")
	}
	if c.RateLimit.Attempts <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("invalid rate limit %d per %s", c.RateLimit.Attempts, c.RateLimit.Window)
	}
	if c.Push.Enabled && !c.Push.Ready() {
		slog.Warn("Push is enabled without PUSH_VAPID_PUBLIC_KEY and PUSH_VAPID_PRIVATE_KEY, push notifications are off")
	}
	if c.Push.Subject == "" {
		c.Push.Subject = "mailto:" + c.Admin.Email
	}
	if c.Env != EnvDev && c.Env != EnvProduction {
		slog.Warn("Unknown env, treating as production", "env", c.Env)
	}
	return nil
}
