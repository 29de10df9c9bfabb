package config

import (
	"strings"

	logx "hwbot/pkg/logx"
)

// SummarizeConfigChange returns the changed sections and safe structured
// fields for logging (never includes secrets).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if strings.TrimSpace(oldCfg.Practicum.Endpoint) != strings.TrimSpace(newCfg.Practicum.Endpoint) ||
		oldCfg.Practicum.RequestTimeout != newCfg.Practicum.RequestTimeout {
		changed = append(changed, "practicum")
		attrs = append(attrs,
			logx.String("practicum.endpoint", strings.TrimSpace(newCfg.Practicum.Endpoint)),
			logx.String("practicum.request_timeout", newCfg.Practicum.RequestTimeout),
		)
	}

	if oldCfg.Telegram.ThreadID != newCfg.Telegram.ThreadID ||
		oldCfg.Telegram.RatePerSec != newCfg.Telegram.RatePerSec ||
		oldCfg.Telegram.APIURL != newCfg.Telegram.APIURL ||
		oldCfg.Telegram.RequestTimeout != newCfg.Telegram.RequestTimeout {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.thread_id", newCfg.Telegram.ThreadID),
			logx.Int("telegram.rate_per_sec", newCfg.Telegram.RatePerSec),
			logx.String("telegram.request_timeout", newCfg.Telegram.RequestTimeout),
		)
	}

	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
		attrs = append(attrs,
			logx.String("poll.interval", newCfg.Poll.Interval),
			logx.String("poll.lookback", newCfg.Poll.Lookback),
			logx.Bool("poll.notify_initial", newCfg.Poll.NotifyInitial),
		)
	}

	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file.enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", newCfg.Metrics.Addr),
		)
	}

	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
		attrs = append(attrs,
			logx.Bool("systemd.enabled", newCfg.Systemd.Enabled),
			logx.String("systemd.stall_timeout", newCfg.Systemd.StallTimeout),
		)
	}

	return changed, attrs
}

// LiveSections are applied without a restart; others take effect on next start.
var LiveSections = map[string]bool{"logging": true, "metrics": true}
