// Package config handles loading, saving and validating Matchgate
// configuration. Settings live in a JSON file with defaults filled in for
// anything missing, and selected values can be overridden from the
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/matchgate/internal/protocol"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultHTTPPort   = 8080

	DefaultCertificateExpiry = 180
	PlaceholderCertificate   = "PLACEHOLDER_CERTIFICATE"
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	Service      ServiceConfig     `json:"service"`
	Certificates CertificateConfig `json:"certificates"`
	ReportLayout protocol.Layout   `json:"report_layout"`
	Archive      ArchiveConfig     `json:"archive"`
	MQTT         MQTTConfig        `json:"mqtt"`
	Discord      DiscordConfig     `json:"discord"`
	Security     SecurityConfig    `json:"security"`
	Logging      LoggingConfig     `json:"logging"`
	Timers       TimerConfig       `json:"timers"`
}

// ServiceConfig holds listener and storage settings.
type ServiceConfig struct {
	Name                string `json:"name"`
	Host                string `json:"host"`
	HTTPPort            int    `json:"http_port"`
	DatabasePath        string `json:"database_path"`
	MaxBodyBytes        int64  `json:"max_body_bytes"`
	ShutdownTimeoutSec  int    `json:"shutdown_timeout_sec"`
	InteractiveConsole  bool   `json:"interactive_console"`
	DebugLogRequestBody bool   `json:"debug_log_request_body"`
}

// CertificateConfig controls the certificate pool.
type CertificateConfig struct {
	ExpirySeconds int    `json:"expiry_seconds"`
	Placeholder   string `json:"placeholder"`
	SeedFile      string `json:"seed_file"`
	LowWater      int    `json:"low_water"`

	// ReclaimEnabled returns expired certificates to the pool. Off by
	// default: without it a handed-out certificate stays allocated forever.
	ReclaimEnabled     bool `json:"reclaim_enabled"`
	ReclaimIntervalSec int  `json:"reclaim_interval_sec"`
}

// Expiry returns the certificate lifetime.
func (c CertificateConfig) Expiry() time.Duration {
	return time.Duration(c.ExpirySeconds) * time.Second
}

// ArchiveConfig selects where raw report blobs are kept besides the database.
type ArchiveConfig struct {
	Backend   string `json:"backend"` // "disk", "s3" or "none"
	Directory string `json:"directory"`

	S3Bucket    string `json:"s3_bucket"`
	S3Prefix    string `json:"s3_prefix"`
	S3Endpoint  string `json:"s3_endpoint"`
	S3Region    string `json:"s3_region"`
	S3AccessKey string `json:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
}

// DiscordConfig holds operator notification settings.
type DiscordConfig struct {
	WebhookURL            string `json:"webhook_url"`
	NotifyOnDecodeFailure bool   `json:"notify_on_decode_failure"`
	NotifyOnPoolLow       bool   `json:"notify_on_pool_low"`
}

// SecurityConfig holds TLS, CORS and admin API settings.
type SecurityConfig struct {
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	AdminToken     string   `json:"admin_token"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	Console    bool   `json:"console"`
}

// TimerConfig holds intervals for scheduled jobs.
type TimerConfig struct {
	PoolHealthInterval int    `json:"pool_health_interval_sec"`
	StatusInterval     int    `json:"status_interval_sec"`
	DailyStatsTime     string `json:"daily_stats_time"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:               "matchgate",
			Host:               "0.0.0.0",
			HTTPPort:           DefaultHTTPPort,
			DatabasePath:       filepath.Join("data", "matchgate.db"),
			MaxBodyBytes:       1 << 20,
			ShutdownTimeoutSec: 30,
			InteractiveConsole: true,
		},
		Certificates: CertificateConfig{
			ExpirySeconds:      DefaultCertificateExpiry,
			Placeholder:        PlaceholderCertificate,
			SeedFile:           filepath.Join(DefaultConfigDir, "certificates.txt"),
			LowWater:           10,
			ReclaimEnabled:     false,
			ReclaimIntervalSec: 60,
		},
		ReportLayout: protocol.DefaultLayout(),
		Archive: ArchiveConfig{
			Backend:   "disk",
			Directory: "archive",
			S3Prefix:  "reports",
			S3Region:  "auto",
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Port:        1883,
			ClientID:    "matchgate",
			TopicPrefix: "matchgate",
		},
		Discord: DiscordConfig{
			NotifyOnDecodeFailure: true,
			NotifyOnPoolLow:       true,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"*"},
			RateLimitRPS:   100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
			Console:    true,
		},
		Timers: TimerConfig{
			PoolHealthInterval: 300,
			StatusInterval:     60,
			DailyStatsTime:     "04:00",
		},
	}
}

// Load reads the configuration from configDir/config.json. A missing file
// is created with defaults; an existing one is re-saved so new defaults are
// persisted.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

func (c *Config) GetService() ServiceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Service
}

func (c *Config) GetCertificates() CertificateConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Certificates
}

func (c *Config) GetReportLayout() protocol.Layout {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ReportLayout
}

func (c *Config) GetArchive() ArchiveConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Archive
}

func (c *Config) GetMQTT() MQTTConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MQTT
}

func (c *Config) GetDiscord() DiscordConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Discord
}

// GetSecurity returns a copy of the security configuration.
func (c *Config) GetSecurity() SecurityConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sec := c.Security
	sec.AllowedOrigins = append([]string(nil), c.Security.AllowedOrigins...)
	return sec
}

func (c *Config) GetLogging() LoggingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging
}

func (c *Config) GetTimers() TimerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Timers
}
