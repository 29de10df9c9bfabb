package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	logx "hwbot/pkg/logx"
)

func waitForHTTP(ctx context.Context, url string) (string, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		reqCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
		if err != nil {
			cancel()
			return "", err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil && resp != nil {
			b, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			cancel()
			return string(b), nil
		}
		cancel()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func TestServerApplyEnableDisable(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "hwbot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	srv := NewServer(reg, logx.Nop())
	t.Cleanup(func() { srv.Stop(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := srv.Apply(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	addr := srv.Addr()
	if addr == "" {
		t.Fatal("expected metrics server to expose address")
	}

	body, err := waitForHTTP(ctx, "http://"+addr+"/metrics")
	if err != nil {
		t.Fatalf("metrics endpoint not reachable: %v", err)
	}
	if !strings.Contains(body, "hwbot_test_total 1") {
		t.Fatalf("counter missing from output:\n%s", body)
	}

	// Same config again keeps the listener.
	if err := srv.Apply(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got := srv.Addr(); got != addr {
		t.Fatalf("listener restarted: %s -> %s", addr, got)
	}

	if err := srv.Apply(ctx, Config{Enabled: false}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if addr := srv.Addr(); addr != "" {
		t.Fatalf("expected metrics server to stop, still at %s", addr)
	}
}

func TestNewRegistryGathers(t *testing.T) {
	t.Parallel()
	mfs, err := NewRegistry().Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected runtime metrics")
	}
}
