package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard prompts for the settings an operator usually changes and
// saves the result. Empty answers keep the current value.
func RunSetupWizard(cfg *Config, in io.Reader, out io.Writer) error {
	w := &wizard{reader: bufio.NewReader(in), out: out}
	return w.run(cfg, 3)
}

type wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

func (w *wizard) run(cfg *Config, attempts int) error {
	fmt.Fprintln(w.out, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(w.out, "║           Matchgate - Initial Setup          ║")
	fmt.Fprintln(w.out, "╚══════════════════════════════════════════════╝")
	fmt.Fprintln(w.out)

	cfg.mu.Lock()

	w.section("Service")
	cfg.Service.Host = w.promptString("Listen address", cfg.Service.Host)
	cfg.Service.HTTPPort = w.promptInt("HTTP port", cfg.Service.HTTPPort)
	cfg.Service.DatabasePath = w.promptString("Database file", cfg.Service.DatabasePath)

	w.section("Certificates")
	cfg.Certificates.SeedFile = w.promptString("Certificate seed file", cfg.Certificates.SeedFile)
	cfg.Certificates.ExpirySeconds = w.promptInt("Certificate lifetime (seconds)", cfg.Certificates.ExpirySeconds)
	cfg.Certificates.ReclaimEnabled = w.promptBool("Reclaim expired certificates", cfg.Certificates.ReclaimEnabled)

	w.section("Report Archive")
	cfg.Archive.Backend = strings.ToLower(w.promptString("Backend (disk, s3, none)", cfg.Archive.Backend))
	switch cfg.Archive.Backend {
	case "disk":
		cfg.Archive.Directory = w.promptString("Archive directory", cfg.Archive.Directory)
	case "s3":
		cfg.Archive.S3Bucket = w.promptString("S3 bucket", cfg.Archive.S3Bucket)
		cfg.Archive.S3Endpoint = w.promptString("S3 endpoint (blank for AWS)", cfg.Archive.S3Endpoint)
		cfg.Archive.S3Region = w.promptString("S3 region", cfg.Archive.S3Region)
	}

	w.section("Admin API")
	cfg.Security.AdminToken = w.promptSecret("Admin bearer token (blank keeps current)", cfg.Security.AdminToken)

	w.section("Discord")
	cfg.Discord.WebhookURL = w.promptString("Webhook URL", cfg.Discord.WebhookURL)

	w.section("MQTT Telemetry")
	cfg.MQTT.Enabled = w.promptBool("Enable MQTT telemetry", cfg.MQTT.Enabled)
	if cfg.MQTT.Enabled {
		cfg.MQTT.BrokerURL = w.promptString("Broker host", cfg.MQTT.BrokerURL)
		cfg.MQTT.Port = w.promptInt("Broker port", cfg.MQTT.Port)
	}

	cfg.mu.Unlock()

	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Fprintln(w.out, "\nConfiguration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(w.out, "  - [%s] %s\n", e.Field, e.Message)
		}
		if attempts > 1 && w.promptBool("Would you like to try again?", true) {
			return w.run(cfg, attempts-1)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, warn := range result.Warnings {
		log.Warn().Str("field", warn.Field).Msg(warn.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(w.out)
	fmt.Fprintf(w.out, "Configuration saved to %s\n", cfg.Path())
	fmt.Fprintln(w.out)
	return nil
}

func (w *wizard) section(name string) {
	fmt.Fprintf(w.out, "\n── %s ──\n", name)
}

func (w *wizard) readLine() string {
	input, _ := w.reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func (w *wizard) promptString(prompt, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(w.out, "  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(w.out, "  %s: ", prompt)
	}

	if input := w.readLine(); input != "" {
		return input
	}
	return defaultVal
}

func (w *wizard) promptSecret(prompt, current string) string {
	fmt.Fprintf(w.out, "  %s: ", prompt)
	if input := w.readLine(); input != "" {
		return input
	}
	return current
}

func (w *wizard) promptInt(prompt string, defaultVal int) int {
	fmt.Fprintf(w.out, "  %s [%d]: ", prompt, defaultVal)

	input := w.readLine()
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(w.out, "    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func (w *wizard) promptBool(prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}
	fmt.Fprintf(w.out, "  %s [%s]: ", prompt, defaultStr)

	input := strings.ToLower(w.readLine())
	if input == "" {
		return defaultVal
	}
	return input == "yes" || input == "y" || input == "true" || input == "1"
}
