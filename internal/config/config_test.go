package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasError(result *ValidationResult, field string) bool {
	for _, e := range result.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPPort, cfg.GetService().HTTPPort)
	assert.FileExists(t, filepath.Join(dir, DefaultConfigFile))
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile),
		[]byte(`{"service": {"http_port": 9090}, "certificates": {"reclaim_enabled": true}}`), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.GetService().HTTPPort)
	assert.True(t, cfg.GetCertificates().ReclaimEnabled)
	assert.Equal(t, 180, cfg.GetCertificates().ExpirySeconds)
	assert.Equal(t, PlaceholderCertificate, cfg.GetCertificates().Placeholder)
	assert.Equal(t, 24, cfg.GetReportLayout().HeaderSize)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(`{`), 0600))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MATCHGATE_HTTP_PORT", "8181")
	t.Setenv("MATCHGATE_ADMIN_TOKEN", "secret-token-value")
	t.Setenv("MATCHGATE_RECLAIM_ENABLED", "true")
	t.Setenv("MATCHGATE_S3_BUCKET", "reports")

	cfg := DefaultConfig()
	applied := cfg.ApplyEnv()

	assert.Len(t, applied, 4)
	assert.Equal(t, 8181, cfg.GetService().HTTPPort)
	assert.Equal(t, "secret-token-value", cfg.GetSecurity().AdminToken)
	assert.True(t, cfg.GetCertificates().ReclaimEnabled)
	assert.Equal(t, "reports", cfg.GetArchive().S3Bucket)
}

func TestApplyEnvIgnoresBadNumbers(t *testing.T) {
	t.Setenv("MATCHGATE_HTTP_PORT", "eighty")

	cfg := DefaultConfig()
	assert.Empty(t, cfg.ApplyEnv())
	assert.Equal(t, DefaultHTTPPort, cfg.GetService().HTTPPort)
}

func TestLoadDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("MATCHGATE_LOG_LEVEL=debug\n"), 0600))
	t.Setenv("MATCHGATE_LOG_LEVEL", "")
	os.Unsetenv("MATCHGATE_LOG_LEVEL")

	LoadDotEnv(envFile, filepath.Join(t.TempDir(), "missing.env"))

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "debug", cfg.GetLogging().Level)
}

func TestValidateDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Certificates.SeedFile = ""

	result := Validate(cfg)
	assert.True(t, result.IsValid(), "%v", result.Errors)
	assert.NotEmpty(t, result.Warnings, "missing admin token is reported")
}

func TestValidateErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service.HTTPPort = 70000
	cfg.Certificates.ExpirySeconds = 0
	cfg.ReportLayout.HeaderSize = 4
	cfg.Archive.Backend = "tape"
	cfg.MQTT.Enabled = true
	cfg.Logging.Level = "loud"
	cfg.Timers.DailyStatsTime = "25:99"

	result := Validate(cfg)
	assert.False(t, result.IsValid())
	for _, field := range []string{
		"service.http_port",
		"certificates.expiry_seconds",
		"report_layout",
		"archive.backend",
		"mqtt.broker_url",
		"logging.level",
		"timers.daily_stats_time",
	} {
		assert.True(t, hasError(result, field), "expected error for %s", field)
	}
}

func TestValidateS3Archive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Archive.Backend = "s3"

	result := Validate(cfg)
	assert.True(t, hasError(result, "archive.s3_bucket"))

	cfg.Archive.S3Bucket = "matchgate"
	cfg.Archive.S3Endpoint = "https://account.r2.cloudflarestorage.com"
	result = Validate(cfg)
	assert.False(t, hasError(result, "archive.s3_bucket"))
	assert.False(t, hasError(result, "archive.s3_endpoint"))
}
