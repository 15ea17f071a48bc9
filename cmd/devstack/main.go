// Command devstack runs the reference live-class backend: the REST directory,
// the community join-request endpoints and the realtime chat relay, on one
// listener.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillforge/liveclass/internal/api"
	"github.com/skillforge/liveclass/internal/config"
	"github.com/skillforge/liveclass/internal/liveclass"
	"github.com/skillforge/liveclass/internal/messaging"
	"github.com/skillforge/liveclass/internal/ratelimit"
	"github.com/skillforge/liveclass/internal/relay"
	"github.com/skillforge/liveclass/internal/store"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("warning: %v", err)
	}
	cfg, err := config.LoadDevstack()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// --- Store ---
	var (
		st          store.Store
		redisClient *redis.Client
	)
	switch cfg.Store {
	case config.StoreRedis:
		rs, err := store.NewRedisStore(cfg.RedisAddr)
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		st, redisClient = rs, rs.Client()
	default:
		st = store.NewMemoryStore()
	}

	if cfg.SeedCommunity != "" {
		ctx := context.Background()
		if _, err := st.GetCommunity(ctx, cfg.SeedCommunity); errors.Is(err, store.ErrNotFound) {
			if err := st.PutCommunity(ctx, liveclass.Community{
				Slug:    cfg.SeedCommunity,
				Name:    cfg.SeedCommunity,
				TutorID: cfg.SeedTutorID,
			}); err != nil {
				log.Fatalf("failed to seed community: %v", err)
			}
		}
	}

	// --- Broker ---
	var (
		broker     relay.Broker
		natsClient *messaging.NATSClient
	)
	switch cfg.Broker {
	case config.BrokerNATS:
		natsClient, err = messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		broker = natsClient
	default:
		broker = relay.NewLocalBroker()
	}

	// --- Relay ---
	relayOpts := []relay.Option{relay.WithSessions(st)}
	if cfg.RateLimit {
		if redisClient == nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		}
		relayOpts = append(relayOpts, relay.WithLimiter(ratelimit.NewLimiter(redisClient)))
	}
	relayServer := relay.NewServer(cfg.Relay, broker, relayOpts...)

	// Closing a live class drops its chat connections on every instance.
	closeHook := func(id int64) {
		relayServer.CloseSession(strconv.FormatInt(id, 10))
	}
	if natsClient != nil {
		if err := natsClient.SubscribeLiveClassClosed(relayServer.CloseSession); err != nil {
			log.Fatalf("failed to subscribe to close events: %v", err)
		}
		closeHook = func(id int64) {
			if err := natsClient.PublishLiveClassClosed(strconv.FormatInt(id, 10)); err != nil {
				log.Printf("[devstack] publish close id=%d failed: %v", id, err)
				relayServer.CloseSession(strconv.FormatInt(id, 10))
			}
		}
	}

	handler := api.New(st, api.WithCloseHook(closeHook))
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler, relayServer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Live-class devstack starting")
	log.Printf("  listen_addr:     %s", cfg.ListenAddr)
	log.Printf("  store:           %s", cfg.Store)
	log.Printf("  broker:          %s", cfg.Broker)
	log.Printf("  rate_limit:      %v", cfg.RateLimit)
	log.Printf("  max_connections: %d", cfg.Relay.MaxConnections)
	log.Printf("  seed_community:  %s", cfg.SeedCommunity)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := relayServer.Shutdown(ctx); err != nil {
			log.Printf("relay shutdown error: %v", err)
		}
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	<-stopped

	if natsClient != nil {
		natsClient.Close()
	}
	if err := st.Close(); err != nil {
		log.Printf("store close error: %v", err)
	}
	if redisClient != nil && cfg.Store != config.StoreRedis {
		redisClient.Close()
	}
	log.Printf("devstack stopped")
}
