package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MATCHGATE_"

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn().Err(err).Str("file", f).Msg("failed to load env file")
			continue
		}
		log.Info().Str("file", f).Msg("environment file loaded")
	}
}

// ApplyEnv overrides configuration values from MATCHGATE_* variables. It
// returns the names of the variables that were applied.
func (c *Config) ApplyEnv() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var applied []string
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
			applied = append(applied, EnvPrefix+name)
		}
	}
	num := func(name string, dst *int) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			log.Warn().Str("variable", EnvPrefix+name).Str("value", v).Msg("ignoring non-numeric override")
			return
		}
		*dst = n
		applied = append(applied, EnvPrefix+name)
	}
	flag := func(name string, dst *bool) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			log.Warn().Str("variable", EnvPrefix+name).Str("value", v).Msg("ignoring non-boolean override")
			return
		}
		*dst = b
		applied = append(applied, EnvPrefix+name)
	}

	str("HOST", &c.Service.Host)
	num("HTTP_PORT", &c.Service.HTTPPort)
	str("DB_PATH", &c.Service.DatabasePath)
	str("ADMIN_TOKEN", &c.Security.AdminToken)
	str("LOG_LEVEL", &c.Logging.Level)
	str("DISCORD_WEBHOOK_URL", &c.Discord.WebhookURL)
	flag("RECLAIM_ENABLED", &c.Certificates.ReclaimEnabled)

	str("ARCHIVE_BACKEND", &c.Archive.Backend)
	str("S3_BUCKET", &c.Archive.S3Bucket)
	str("S3_ENDPOINT", &c.Archive.S3Endpoint)
	str("S3_REGION", &c.Archive.S3Region)
	str("S3_ACCESS_KEY", &c.Archive.S3AccessKey)
	str("S3_SECRET_KEY", &c.Archive.S3SecretKey)

	str("MQTT_USERNAME", &c.MQTT.Username)
	str("MQTT_PASSWORD", &c.MQTT.Password)

	return applied
}
