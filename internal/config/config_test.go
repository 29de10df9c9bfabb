package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	logx "hwbot/pkg/logx"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func fullEnv() map[string]string {
	return map[string]string{
		EnvPracticumToken: "p-token",
		EnvTelegramToken:  "t-token",
		EnvTelegramChatID: "-100123",
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	t.Parallel()
	cfg, err := NewConfigManagerWithEnv("", envMap(fullEnv())).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Practicum.Token != "p-token" || cfg.Telegram.Token != "t-token" {
		t.Fatalf("tokens not loaded: %+v", cfg)
	}
	if cfg.Telegram.ChatID != -100123 {
		t.Fatalf("ChatID = %d", cfg.Telegram.ChatID)
	}
	if !cfg.Logging.Console || cfg.Logging.Level != "info" {
		t.Fatalf("logging defaults not applied: %+v", cfg.Logging)
	}
}

func TestLoadMissingSecrets(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		drop []string
	}{
		{name: "practicum", drop: []string{EnvPracticumToken}},
		{name: "telegram token", drop: []string{EnvTelegramToken}},
		{name: "chat id", drop: []string{EnvTelegramChatID}},
		{name: "all", drop: []string{EnvPracticumToken, EnvTelegramToken, EnvTelegramChatID}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			env := fullEnv()
			for _, k := range tt.drop {
				delete(env, k)
			}
			_, err := NewConfigManagerWithEnv("", envMap(env)).Load()
			var cme *ConfigMissingError
			if !errors.As(err, &cme) {
				t.Fatalf("err = %v, want *ConfigMissingError", err)
			}
			if !reflect.DeepEqual(cme.Vars, tt.drop) {
				t.Fatalf("Vars = %v, want %v", cme.Vars, tt.drop)
			}
		})
	}
}

func TestLoadBlankSecretCountsAsMissing(t *testing.T) {
	t.Parallel()
	env := fullEnv()
	env[EnvTelegramToken] = "   "
	_, err := NewConfigManagerWithEnv("", envMap(env)).Load()
	var cme *ConfigMissingError
	if !errors.As(err, &cme) {
		t.Fatalf("err = %v, want *ConfigMissingError", err)
	}
}

func TestLoadInvalidChatID(t *testing.T) {
	t.Parallel()
	env := fullEnv()
	env[EnvTelegramChatID] = "@channel"
	if _, err := NewConfigManagerWithEnv("", envMap(env)).Load(); err == nil {
		t.Fatal("expected error for non-numeric chat id")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadYAMLFileAndEnvOverride(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "hwbot.yaml", `
practicum:
  endpoint: http://localhost:8080/hw/
poll:
  interval: 30s
  notify_initial: true
logging:
  level: debug
  console: false
metrics:
  enabled: true
telegram:
  request_timeout: 20s
systemd:
  enabled: true
  stall_timeout: 2m
`)
	env := fullEnv()
	env[EnvPollInterval] = "45s"

	cfg, err := NewConfigManagerWithEnv(p, envMap(env)).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Practicum.Endpoint != "http://localhost:8080/hw/" {
		t.Fatalf("Endpoint = %q", cfg.Practicum.Endpoint)
	}
	if cfg.Poll.Interval != "45s" {
		t.Fatalf("Interval = %q, want env override", cfg.Poll.Interval)
	}
	if !cfg.Poll.NotifyInitial || !cfg.Metrics.Enabled {
		t.Fatalf("flags not decoded: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Telegram.RequestTimeout != "20s" || cfg.Systemd.StallTimeout != "2m" {
		t.Fatalf("timeouts not decoded: telegram=%+v systemd=%+v", cfg.Telegram, cfg.Systemd)
	}
}

func TestParseRejectsUnknownAndSecretKeys(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "unknown key", file: "c.json", body: `{"poll":{"intervall":"1m"}}`},
		{name: "token in file", file: "c.yaml", body: "telegram:\n  token: leaked\n"},
		{name: "trailing data", file: "c.json", body: `{"poll":{}}{"poll":{}}`},
		{name: "bad duration", file: "c.json", body: `{"poll":{"interval":"soon"}}`},
		{name: "zero interval", file: "c.json", body: `{"poll":{"interval":"0s"}}`},
		{name: "bad telegram timeout", file: "c.yaml", body: "telegram:\n  request_timeout: fast\n"},
		{name: "negative stall timeout", file: "c.yaml", body: "systemd:\n  stall_timeout: -1m\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, tt.file, tt.body)
			if _, err := NewConfigManagerWithEnv(p, envMap(fullEnv())).Parse(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("poll.interval", "", 10*time.Minute)
	if err != nil || d != 10*time.Minute {
		t.Fatalf("got %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("poll.interval", "90s", 10*time.Minute)
	if err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationField("poll.interval", "-1s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	b.Logging.Level = "debug"
	b.Poll.Interval = "1m"
	b.Practicum.Token = "changed-but-secret"

	changed, attrs := SummarizeConfigChange(a, b)
	if !reflect.DeepEqual(changed, []string{"poll", "logging"}) {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}
	if c, _ := SummarizeConfigChange(a, Default()); len(c) != 0 {
		t.Fatalf("identical configs reported changes: %v", c)
	}
}

func TestWatchPublishesReload(t *testing.T) {
	p := writeFile(t, "hwbot.json", `{"logging":{"level":"info","console":true}}`)
	m := NewConfigManagerWithEnv(p, envMap(fullEnv()))
	m.SetLogger(logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte(`{"logging":{"level":"debug","console":true}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("Level = %q", cfg.Logging.Level)
		}
		if cfg.Telegram.ChatID != -100123 {
			t.Fatalf("ChatID not carried over: %d", cfg.Telegram.ChatID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for reload")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch error: %v", err)
	}
}
