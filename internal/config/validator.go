package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks the whole configuration.
func Validate(cfg *Config) *ValidationResult {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	result := &ValidationResult{}

	validateService(&cfg.Service, result)
	validateCertificates(&cfg.Certificates, result)
	if err := cfg.ReportLayout.Validate(); err != nil {
		result.AddError("report_layout", err.Error())
	}
	validateArchive(&cfg.Archive, result)
	validateMQTT(&cfg.MQTT, result)
	validateSecurity(&cfg.Security, result)
	validateLogging(&cfg.Logging, result)
	validateTimers(&cfg.Timers, &cfg.Certificates, result)

	if cfg.Discord.WebhookURL != "" && !strings.HasPrefix(cfg.Discord.WebhookURL, "https://") {
		result.AddWarning("discord.webhook_url", "webhook URL is not https")
	}

	return result
}

func validateService(svc *ServiceConfig, result *ValidationResult) {
	validatePort(svc.HTTPPort, "service.http_port", result)

	if strings.TrimSpace(svc.DatabasePath) == "" {
		result.AddError("service.database_path", "database path is required")
	}
	if svc.MaxBodyBytes < 1024 {
		result.AddError("service.max_body_bytes", "body limit must be at least 1024 bytes")
	}
	if svc.ShutdownTimeoutSec < 1 {
		result.AddWarning("service.shutdown_timeout_sec", "shutdown timeout below 1s, in-flight requests will be cut")
	}
}

func validateCertificates(certs *CertificateConfig, result *ValidationResult) {
	if certs.ExpirySeconds < 1 {
		result.AddError("certificates.expiry_seconds", "expiry must be at least 1 second")
	} else if certs.ExpirySeconds != DefaultCertificateExpiry {
		result.AddWarning("certificates.expiry_seconds",
			fmt.Sprintf("expiry of %ds differs from the client's expected %ds", certs.ExpirySeconds, DefaultCertificateExpiry))
	}

	if certs.Placeholder == "" {
		result.AddError("certificates.placeholder", "placeholder certificate must not be empty")
	}

	if certs.ReclaimEnabled && certs.ReclaimIntervalSec < 1 {
		result.AddError("certificates.reclaim_interval_sec", "reclaim interval must be positive when reclaim is enabled")
	}

	if certs.LowWater < 0 {
		result.AddError("certificates.low_water", "low water mark must not be negative")
	}

	if certs.SeedFile != "" {
		if _, err := os.Stat(certs.SeedFile); os.IsNotExist(err) {
			result.AddWarning("certificates.seed_file",
				fmt.Sprintf("seed file does not exist: %s", certs.SeedFile))
		}
	}
}

func validateArchive(archive *ArchiveConfig, result *ValidationResult) {
	switch archive.Backend {
	case "none":
	case "disk":
		if strings.TrimSpace(archive.Directory) == "" {
			result.AddError("archive.directory", "archive directory is required for the disk backend")
		}
	case "s3":
		if strings.TrimSpace(archive.S3Bucket) == "" {
			result.AddError("archive.s3_bucket", "bucket is required for the s3 backend")
		}
		if archive.S3Endpoint != "" {
			if _, err := url.ParseRequestURI(archive.S3Endpoint); err != nil {
				result.AddError("archive.s3_endpoint", fmt.Sprintf("invalid endpoint: %v", err))
			}
		}
		if archive.S3AccessKey == "" || archive.S3SecretKey == "" {
			result.AddWarning("archive.s3_access_key", "no static credentials, falling back to the default AWS credential chain")
		}
	default:
		result.AddError("archive.backend", fmt.Sprintf("unknown backend %q (expected disk, s3 or none)", archive.Backend))
	}
}

func validateMQTT(mqtt *MQTTConfig, result *ValidationResult) {
	if !mqtt.Enabled {
		return
	}
	if strings.TrimSpace(mqtt.BrokerURL) == "" {
		result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
	}
	if mqtt.Port < 1 || mqtt.Port > 65535 {
		result.AddError("mqtt.port", "invalid MQTT port")
	}
}

func validateSecurity(sec *SecurityConfig, result *ValidationResult) {
	if sec.TLSEnabled {
		if strings.TrimSpace(sec.TLSCertFile) == "" {
			result.AddError("security.tls_cert_file", "TLS certificate file is required when TLS is enabled")
		}
		if strings.TrimSpace(sec.TLSKeyFile) == "" {
			result.AddError("security.tls_key_file", "TLS key file is required when TLS is enabled")
		}
	}

	if sec.RateLimitRPS < 1 {
		result.AddWarning("security.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the service to abuse")
	}

	if sec.AdminToken == "" {
		result.AddWarning("security.admin_token", "admin API is unauthenticated")
	} else if len(sec.AdminToken) < 16 {
		result.AddWarning("security.admin_token", "admin token is shorter than 16 characters")
	}
}

func validateLogging(logging *LoggingConfig, result *ValidationResult) {
	if _, err := zerolog.ParseLevel(logging.Level); err != nil {
		result.AddError("logging.level", fmt.Sprintf("unknown log level %q", logging.Level))
	}
}

func validateTimers(timers *TimerConfig, certs *CertificateConfig, result *ValidationResult) {
	if timers.PoolHealthInterval < 10 {
		result.AddWarning("timers.pool_health_interval_sec",
			"pool health interval less than 10s may flood notifications")
	}
	if timers.StatusInterval < 5 {
		result.AddWarning("timers.status_interval_sec", "status interval less than 5s may cause excessive traffic")
	}
	if _, err := time.Parse("15:04", timers.DailyStatsTime); err != nil {
		result.AddError("timers.daily_stats_time", fmt.Sprintf("expected HH:MM, got %q", timers.DailyStatsTime))
	}
	if certs.ReclaimEnabled && certs.ReclaimIntervalSec > certs.ExpirySeconds*10 {
		result.AddWarning("certificates.reclaim_interval_sec", "reclaim runs far less often than certificates expire")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}
