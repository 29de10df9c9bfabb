package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"hwbot/internal/config"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestNewFailsFastOnMissingConfig(t *testing.T) {
	t.Parallel()
	cfgm := config.NewConfigManagerWithEnv("", envMap(map[string]string{
		config.EnvPracticumToken: "p",
	}))
	_, err := New(cfgm)
	var cme *config.ConfigMissingError
	if !errors.As(err, &cme) {
		t.Fatalf("err = %v, want *config.ConfigMissingError", err)
	}
	if len(cme.Vars) != 2 {
		t.Fatalf("Vars = %v", cme.Vars)
	}
}

func TestRunDeliversStatusToChat(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "OAuth p-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"proj1","status":"approved"}],"current_date":1700000000}`))
	}))
	t.Cleanup(api.Close)

	var (
		mu   sync.Mutex
		sent []string
	)
	got := make(chan struct{}, 1)
	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		var params map[string]any
		_ = json.NewDecoder(r.Body).Decode(&params)
		mu.Lock()
		sent = append(sent, fmt.Sprint(params["text"]))
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
	}))
	t.Cleanup(bot.Close)

	cfgPath := filepath.Join(t.TempDir(), "hwbot.yaml")
	body := fmt.Sprintf("telegram:\n  api_url: %s\n  rate_per_sec: 50\npoll:\n  interval: 1h\n  notify_initial: true\nlogging:\n  level: error\n  console: true\nsystemd:\n  enabled: false\n", bot.URL)
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfgm := config.NewConfigManagerWithEnv(cfgPath, envMap(map[string]string{
		config.EnvPracticumToken:    "p-token",
		config.EnvTelegramToken:     "t-token",
		config.EnvTelegramChatID:    "42",
		config.EnvPracticumEndpoint: api.URL,
	}))
	a, err := New(cfgm)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-got:
	case <-ctx.Done():
		t.Fatal("timed out waiting for notification")
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := `Изменился статус проверки работы "proj1". Работа проверена: ревьюеру всё понравилось. Ура!`
	if len(sent) != 1 || sent[0] != want {
		t.Fatalf("sent = %q", sent)
	}
}
