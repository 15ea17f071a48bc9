package loadtest

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skillforge/liveclass/internal/relay"
)

func TestCollector_Report(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.AddConnect(time.Duration(i) * time.Millisecond)
		c.AddSent()
		c.AddEcho(time.Duration(i) * time.Millisecond)
	}
	c.AddLost(2)
	c.AddError()

	s := c.Summary()
	if s.Connections != 100 || s.Sent != 100 || s.Echoed != 100 || s.Lost != 2 || s.Errors != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}

	var buf bytes.Buffer
	c.Report(&buf)
	for _, want := range []string{"Connections:  100", "Loss rate:    2.00%", "p95: 95ms", "max: 100ms"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRun_AgainstRelay(t *testing.T) {
	cfg := relay.DefaultServerConfig()
	cfg.Heartbeat.Interval = 0
	srv := relay.NewServer(cfg, relay.NewLocalBroker())
	r := chi.NewRouter()
	r.Handle("/ws/live-class/{id}/", srv)
	hs := httptest.NewServer(r)
	defer hs.Close()
	defer srv.Shutdown(context.Background())

	run := DefaultConfig()
	run.Channel.BaseURL = hs.URL
	run.SessionID = "42"
	run.Clients = 4
	run.Messages = 3
	run.Interval = 10 * time.Millisecond
	run.EchoTimeout = 2 * time.Second

	stats := NewCollector()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := Run(ctx, run, stats); err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := stats.Summary()
	if s.Connections != 4 || s.Sent != 12 || s.Errors != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.Echoed+s.Lost != s.Sent {
		t.Errorf("every sent line should be echoed or lost: %+v", s)
	}
}

func TestRun_InvalidSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clients = 0
	if err := Run(context.Background(), cfg, NewCollector()); err == nil {
		t.Error("expected error for zero clients")
	}
}
