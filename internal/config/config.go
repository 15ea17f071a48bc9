// Package config loads the client and devstack settings from the environment,
// after reading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/skillforge/liveclass/internal/channel"
	"github.com/skillforge/liveclass/internal/directory"
	"github.com/skillforge/liveclass/internal/liveclass"
	"github.com/skillforge/liveclass/internal/messaging"
	"github.com/skillforge/liveclass/internal/relay"
)

// Store backends accepted by Devstack.Store.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Broker backends accepted by Devstack.Broker.
const (
	BrokerLocal = "local"
	BrokerNATS  = "nats"
)

// Client configures the liveclass CLI.
type Client struct {
	API         directory.Config `envPrefix:"LIVECLASS_API_"`
	Channel     channel.Config   `envPrefix:"LIVECLASS_WS_"`
	Viewer      liveclass.Viewer `envPrefix:"LIVECLASS_USER_"`
	MetricsAddr string           `env:"LIVECLASS_METRICS_ADDR"`
}

// Devstack configures the reference backend.
type Devstack struct {
	ListenAddr string `env:"DEVSTACK_LISTEN_ADDR" envDefault:":8000"`
	Store      string `env:"DEVSTACK_STORE" envDefault:"memory"`
	RedisAddr  string `env:"DEVSTACK_REDIS_ADDR" envDefault:"localhost:6379"`
	Broker     string `env:"DEVSTACK_BROKER" envDefault:"local"`
	RateLimit  bool   `env:"DEVSTACK_RATE_LIMIT" envDefault:"false"`

	NATS  messaging.NATSConfig `envPrefix:"DEVSTACK_NATS_"`
	Relay relay.ServerConfig   `envPrefix:"DEVSTACK_RELAY_"`

	// Community created at startup so the join-request panel has a target.
	SeedCommunity string `env:"DEVSTACK_SEED_COMMUNITY" envDefault:"maths"`
	SeedTutorID   int64  `env:"DEVSTACK_SEED_TUTOR_ID" envDefault:"1"`
}

// LoadDotEnv reads the given .env files, or ./.env when none are named.
// Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
		log.Printf("[config] loaded %s", f)
	}
	return nil
}

// LoadClient parses the CLI settings from the environment.
func LoadClient() (Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// LoadDevstack parses the backend settings from the environment and checks
// the backend selectors.
func LoadDevstack() (Devstack, error) {
	var cfg Devstack
	if err := env.Parse(&cfg); err != nil {
		return Devstack{}, fmt.Errorf("config: parse env: %w", err)
	}
	switch cfg.Store {
	case StoreMemory, StoreRedis:
	default:
		return Devstack{}, fmt.Errorf("config: unknown store %q", cfg.Store)
	}
	switch cfg.Broker {
	case BrokerLocal, BrokerNATS:
	default:
		return Devstack{}, fmt.Errorf("config: unknown broker %q", cfg.Broker)
	}
	return cfg, nil
}
