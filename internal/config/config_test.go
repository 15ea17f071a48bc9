package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skillforge/liveclass/internal/channel"
	"github.com/skillforge/liveclass/internal/directory"
	"github.com/skillforge/liveclass/internal/liveclass"
	"github.com/skillforge/liveclass/internal/relay"
)

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API != directory.DefaultConfig() {
		t.Errorf("API defaults differ: %+v", cfg.API)
	}
	if cfg.Channel != channel.DefaultConfig() {
		t.Errorf("channel defaults differ: %+v", cfg.Channel)
	}
	if cfg.Viewer.Role != liveclass.RoleStudent {
		t.Errorf("expected student role by default, got %q", cfg.Viewer.Role)
	}
}

func TestLoadClient_Env(t *testing.T) {
	t.Setenv("LIVECLASS_API_URL", "https://example.test/api")
	t.Setenv("LIVECLASS_WS_URL", "https://example.test")
	t.Setenv("LIVECLASS_WS_DIAL_TIMEOUT", "3s")
	t.Setenv("LIVECLASS_USER_ID", "7")
	t.Setenv("LIVECLASS_USER_NAME", "ada")
	t.Setenv("LIVECLASS_USER_ROLE", "tutor")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "https://example.test/api" || cfg.Channel.BaseURL != "https://example.test" {
		t.Errorf("unexpected URLs %+v %+v", cfg.API, cfg.Channel)
	}
	if cfg.Channel.DialTimeout != 3*time.Second {
		t.Errorf("unexpected dial timeout %s", cfg.Channel.DialTimeout)
	}
	want := liveclass.Viewer{ID: 7, Name: "ada", Role: liveclass.RoleTutor}
	if cfg.Viewer != want {
		t.Errorf("viewer = %+v, want %+v", cfg.Viewer, want)
	}
}

func TestLoadDevstack(t *testing.T) {
	cfg, err := LoadDevstack()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store != StoreMemory || cfg.Broker != BrokerLocal || cfg.ListenAddr != ":8000" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Relay != relay.DefaultServerConfig() {
		t.Errorf("relay defaults differ: %+v", cfg.Relay)
	}

	t.Setenv("DEVSTACK_STORE", "postgres")
	if _, err := LoadDevstack(); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DEVSTACK_BROKER=nats\nDEVSTACK_NATS_URL=nats://broker:4222\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEVSTACK_BROKER", "")
	os.Unsetenv("DEVSTACK_BROKER")
	t.Setenv("DEVSTACK_NATS_URL", "")
	os.Unsetenv("DEVSTACK_NATS_URL")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	cfg, err := LoadDevstack()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Broker != BrokerNATS || cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("dotenv values not applied: %+v", cfg)
	}
}
