package config

import (
	"fmt"
	"sort"
	"strings"
)

// Config is the bot configuration.
//
// Secrets (tokens, chat id) only ever come from the environment; the optional
// tuning file cannot carry them (json:"-" plus strict decoding rejects the keys).
type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Telegram  TelegramConfig  `json:"telegram"`
	Poll      PollConfig      `json:"poll"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
	Systemd   SystemdConfig   `json:"systemd,omitempty"`
}

type PracticumConfig struct {
	Token    string `json:"-"`
	Endpoint string `json:"endpoint,omitempty"`
	// RequestTimeout is a Go duration string; "0s" or empty keeps the transport default.
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"-"`
	ChatID int64  `json:"-"`

	ThreadID   int    `json:"thread_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	APIURL     string `json:"api_url,omitempty"`
	// RequestTimeout bounds one Bot API call; empty means "10s".
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// PollConfig controls the polling loop.
//
// Defaults (when fields are omitted/empty):
//   - interval: "10m"
//   - lookback: "168h" (initial from_date is now minus lookback)
//   - notify_initial: false
type PollConfig struct {
	Interval      string `json:"interval,omitempty"`
	Lookback      string `json:"lookback,omitempty"`
	NotifyInitial bool   `json:"notify_initial,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MetricsConfig controls the optional Prometheus listener.
//
// Prefer binding to localhost (e.g. "127.0.0.1:9108").
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9108"
}

// SystemdConfig toggles sd_notify readiness and watchdog pings.
// Both are no-ops when the process is not started by systemd.
//
// Watchdog pings stop while a poll cycle has been running longer than
// StallTimeout (default "5m"), so systemd restarts a hung bot.
type SystemdConfig struct {
	Enabled      bool   `json:"enabled"`
	StallTimeout string `json:"stall_timeout,omitempty"`
}

// Default returns the configuration used when no tuning file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Systemd: SystemdConfig{Enabled: true},
	}
}

// ConfigMissingError reports required environment variables that are unset.
// It is fatal: the process must not start without them.
type ConfigMissingError struct {
	Vars []string
}

func (e *ConfigMissingError) Error() string {
	vars := append([]string(nil), e.Vars...)
	sort.Strings(vars)
	return fmt.Sprintf("отсутствует обязательная переменная окружения: %s", strings.Join(vars, ", "))
}

// Validate checks field formats. It does not check secrets (see ConfigManager.Load).
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	d, err := ParseDurationField("poll.interval", cfg.Poll.Interval)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Poll.Interval) != "" && d == 0 {
		return fmt.Errorf("poll.interval: must be > 0")
	}
	if _, err := ParseDurationField("poll.lookback", cfg.Poll.Lookback); err != nil {
		return err
	}
	if _, err := ParseDurationField("practicum.request_timeout", cfg.Practicum.RequestTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("telegram.request_timeout", cfg.Telegram.RequestTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("systemd.stall_timeout", cfg.Systemd.StallTimeout); err != nil {
		return err
	}
	if cfg.Telegram.RatePerSec < 0 {
		return fmt.Errorf("telegram.rate_per_sec: must be >= 0")
	}
	return nil
}
