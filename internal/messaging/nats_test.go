package messaging

import (
	"testing"
	"time"
)

func newTestNATS(t *testing.T) *NATSClient {
	t.Helper()
	cfg := DefaultNATSConfig()
	cfg.MaxReconnects = 0
	c, err := NewNATSClient(cfg)
	if err != nil {
		t.Skipf("NATS not available at %s: %v", cfg.URL, err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestLiveClassSubject(t *testing.T) {
	if got := LiveClassSubject("42"); got != "live_class.42" {
		t.Errorf("LiveClassSubject(42) = %q", got)
	}
}

func TestNATSClient_LiveClassFanout(t *testing.T) {
	c := newTestNATS(t)

	got1 := make(chan string, 1)
	got2 := make(chan string, 1)
	if err := c.SubscribeLiveClass("42", "a", func(data []byte) { got1 <- string(data) }); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if err := c.SubscribeLiveClass("42", "b", func(data []byte) { got2 <- string(data) }); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := c.PublishLiveClass("42", []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, ch := range []chan string{got1, got2} {
		select {
		case msg := <-ch:
			if msg != "hello" {
				t.Errorf("subscriber %d got %q", i, msg)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}

	if err := c.UnsubscribeLiveClass("a"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := c.UnsubscribeLiveClass("a"); err == nil {
		t.Error("expected error for a second unsubscribe")
	}
}

func TestNATSClient_LiveClassClosed(t *testing.T) {
	c := newTestNATS(t)

	ids := make(chan string, 1)
	if err := c.SubscribeLiveClassClosed(func(id string) { ids <- id }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	c.Flush()

	if err := c.PublishLiveClassClosed("17"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case id := <-ids:
		if id != "17" {
			t.Errorf("expected session 17, got %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no close notification")
	}
}
