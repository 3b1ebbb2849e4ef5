// Package config provides configuration loading for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sievefin/tradesift/internal/detect"
	"github.com/sievefin/tradesift/internal/ingest"
	"github.com/sievefin/tradesift/internal/notify"
	"github.com/sievefin/tradesift/internal/queue"
)

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DatabasePath returns the configured database path with a sensible default.
func DatabasePath() string {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "~/.local/share/tradesift/tradesift.db"
	}
	return ExpandPath(dbPath)
}

// DetectConfig builds the detector configuration from viper, falling back
// to defaults for unset keys.
func DetectConfig() detect.Config {
	cfg := detect.DefaultConfig()
	if d := viper.GetDuration("detection.lookback"); d > 0 {
		cfg.Lookback = d
	}
	if n := viper.GetInt("detection.max_corpus_rows"); n > 0 {
		cfg.MaxCorpusRows = n
	}
	return cfg
}

// QueueConfig builds the review queue configuration from viper.
func QueueConfig() queue.Config {
	cfg := queue.DefaultConfig()
	if n := viper.GetInt("queue.capacity"); n > 0 {
		cfg.Capacity = n
	}
	if d := viper.GetDuration("queue.escalation_age"); d > 0 {
		cfg.EscalationAge = d
	}
	if r := viper.GetFloat64("queue.escalation_risk"); r > 0 {
		cfg.EscalationRisk = r
	}
	if d := viper.GetDuration("queue.deferral_window"); d > 0 {
		cfg.DeferralWindow = d
	}
	if d := viper.GetDuration("queue.pending_ttl"); d > 0 {
		cfg.PendingTTL = d
	}
	return cfg
}

// IngestConfig builds the orchestrator configuration from viper.
func IngestConfig() ingest.Config {
	cfg := ingest.DefaultConfig()
	if n := viper.GetInt("ingest.fan_out"); n > 0 {
		cfg.FanOut = n
	}
	if n := viper.GetInt("ingest.retry_attempts"); n > 0 {
		cfg.Retry.MaxAttempts = n
	}
	if d := viper.GetDuration("ingest.retry_delay"); d > 0 {
		cfg.Retry.InitialDelay = d
	}
	return cfg
}

// EmailConfig builds the alert notifier configuration from viper. Alerts
// are disabled unless notifications.enabled is set.
func EmailConfig() notify.EmailConfig {
	return notify.EmailConfig{
		Enabled:    viper.GetBool("notifications.enabled"),
		SMTPServer: viper.GetString("notifications.smtp_server"),
		SMTPPort:   viper.GetInt("notifications.smtp_port"),
		SMTPUser:   viper.GetString("notifications.smtp_user"),
		SMTPPass:   viper.GetString("notifications.smtp_pass"),
		FromEmail:  viper.GetString("notifications.from_email"),
		ToEmail:    viper.GetString("notifications.to_email"),
	}
}
