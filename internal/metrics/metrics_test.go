package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"serotonyl.ru/bear-tycoon/internal/events"
)

func TestObserveCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	now := time.Now()
	m.Observe(events.New(events.RewardGranted, 1, 1, now, map[string]string{"case": "common", "rarity": "rare"}))
	m.Observe(events.New(events.RewardGranted, 1, 1, now, map[string]string{"case": "common", "rarity": "rare"}))
	m.Observe(events.New(events.FusionCompleted, 1, 1, now, nil))

	if got := testutil.ToFloat64(m.Events.WithLabelValues(events.RewardGranted)); got != 2 {
		t.Fatalf("reward events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Rewards.WithLabelValues("common", "rare")); got != 2 {
		t.Fatalf("common/rare rewards = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Events.WithLabelValues(events.FusionCompleted)); got != 1 {
		t.Fatalf("fusion events = %v, want 1", got)
	}
}

func TestRouterServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Commands.WithLabelValues("daily").Inc()

	srv := httptest.NewServer(Router(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `bear_tycoon_bot_commands_total{command="daily"} 1`) {
		t.Fatalf("metrics body missing command counter:\n%s", body)
	}
}
