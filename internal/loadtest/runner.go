package loadtest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/skillforge/liveclass/internal/channel"
	"github.com/skillforge/liveclass/internal/protocol"
)

// Config describes one load run against a single live class.
type Config struct {
	Channel     channel.Config
	SessionID   string
	Clients     int           // concurrent connections
	Messages    int           // chat lines per client
	Interval    time.Duration // pause between lines of one client
	EchoTimeout time.Duration // how long to wait for outstanding echoes
}

// DefaultConfig returns a small run suitable for a local devstack.
func DefaultConfig() Config {
	return Config{
		Channel:     channel.DefaultConfig(),
		Clients:     10,
		Messages:    5,
		Interval:    500 * time.Millisecond,
		EchoTimeout: 5 * time.Second,
	}
}

// Run connects cfg.Clients channel clients to the live class, has each send
// cfg.Messages lines and measures how long each line takes to come back to
// its sender. It returns when every client is done or ctx is cancelled.
func Run(ctx context.Context, cfg Config, stats *Collector) error {
	if cfg.Clients <= 0 || cfg.Messages < 0 {
		return fmt.Errorf("loadtest: invalid run size clients=%d messages=%d", cfg.Clients, cfg.Messages)
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Clients; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runClient(ctx, cfg, n, stats)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func runClient(ctx context.Context, cfg Config, n int, stats *Collector) {
	user := protocol.Identity(fmt.Sprintf("load-%d", n))

	client, err := channel.New(cfg.Channel, cfg.SessionID, nil)
	if err != nil {
		log.Printf("[loadtest] client %d: %v", n, err)
		stats.AddError()
		return
	}
	defer client.Close()

	start := time.Now()
	if err := client.Connect(ctx); err != nil {
		log.Printf("[loadtest] client %d connect failed: %v", n, err)
		stats.AddError()
		return
	}
	stats.AddConnect(time.Since(start))

	var (
		mu      sync.Mutex
		pending = make(map[string]time.Time)
		allSent = make(chan struct{})
		drained = make(chan struct{})
	)

	// Match echoes of our own lines against their send time.
	go func() {
		defer close(drained)
		sentSignal := allSent
		var deadline <-chan time.Time
		for {
			select {
			case ev, ok := <-client.Events():
				if !ok {
					return
				}
				rcv, isMsg := ev.(channel.Received)
				if !isMsg {
					continue
				}
				msg, isChat := rcv.Message.(protocol.ChatMessage)
				if !isChat || msg.User != user {
					continue
				}
				mu.Lock()
				if sentAt, found := pending[msg.Content]; found {
					delete(pending, msg.Content)
					stats.AddEcho(time.Since(sentAt))
				}
				left := len(pending)
				mu.Unlock()
				if left == 0 && deadline != nil {
					return
				}
			case <-sentSignal:
				sentSignal = nil
				deadline = time.After(cfg.EchoTimeout)
				mu.Lock()
				left := len(pending)
				mu.Unlock()
				if left == 0 {
					return
				}
			case <-deadline:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < cfg.Messages; i++ {
		text := fmt.Sprintf("load %s line %d", user, i)
		mu.Lock()
		pending[text] = time.Now()
		mu.Unlock()

		if err := client.Send(text, user); err != nil {
			log.Printf("[loadtest] client %d send failed: %v", n, err)
			mu.Lock()
			delete(pending, text)
			mu.Unlock()
			stats.AddError()
			break
		}
		stats.AddSent()

		if cfg.Interval > 0 && i < cfg.Messages-1 {
			select {
			case <-time.After(cfg.Interval):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(allSent)
	<-drained

	mu.Lock()
	stats.AddLost(len(pending))
	mu.Unlock()
}
