// Package messaging provides a NATS client wrapper used to fan live-class
// chat out across reference backend instances. It handles connection
// lifecycle, subject naming, and keyed subscriptions so several local
// listeners can follow the same live class.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns.
const (
	SubjectLiveClass      = "live_class"        // + .<session_id>
	SubjectLiveClassClose = "live_class_closed" // + .<session_id>
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        `env:"URL" envDefault:"nats://localhost:4222"`
	Name          string        `env:"NAME" envDefault:"liveclass-devstack"` // client name for identification
	ReconnectWait time.Duration `env:"RECONNECT_WAIT" envDefault:"2s"`
	MaxReconnects int           `env:"MAX_RECONNECTS" envDefault:"-1"` // -1 for infinite
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "liveclass-devstack",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject under key and stores
// the subscription for later cleanup. An existing subscription under the
// same key is replaced.
func (c *NATSClient) Subscribe(key, subject string, handler func(data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	old := c.subs[key]
	c.subs[key] = sub
	c.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	return nil
}

// LiveClassSubject returns the chat subject of a live class.
func LiveClassSubject(sessionID string) string {
	return SubjectLiveClass + "." + sessionID
}

// PublishLiveClass publishes a chat frame to every instance following the
// live class.
func (c *NATSClient) PublishLiveClass(sessionID string, data []byte) error {
	return c.Publish(LiveClassSubject(sessionID), data)
}

// SubscribeLiveClass follows the chat of a live class. The subscription is
// keyed by subscriberID so several local subscribers can follow the same
// live class without overwriting each other.
func (c *NATSClient) SubscribeLiveClass(sessionID, subscriberID string, handler func(data []byte)) error {
	return c.Subscribe("live:"+subscriberID, LiveClassSubject(sessionID), handler)
}

// UnsubscribeLiveClass drops a subscriber's live-class subscription.
func (c *NATSClient) UnsubscribeLiveClass(subscriberID string) error {
	return c.unsubscribe("live:" + subscriberID)
}

// PublishLiveClassClosed tells every instance that the live class ended.
func (c *NATSClient) PublishLiveClassClosed(sessionID string) error {
	return c.Publish(SubjectLiveClassClose+"."+sessionID, nil)
}

// SubscribeLiveClassClosed registers handler for live-class close
// notifications of any session. The handler receives the session id.
func (c *NATSClient) SubscribeLiveClassClosed(handler func(sessionID string)) error {
	sub, err := c.conn.Subscribe(SubjectLiveClassClose+".*", func(msg *nats.Msg) {
		handler(msg.Subject[len(SubjectLiveClassClose)+1:])
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectLiveClassClose, err)
	}

	c.mu.Lock()
	c.subs["closed"] = sub
	c.mu.Unlock()
	return nil
}

// Flush waits until the server has processed everything published so far.
func (c *NATSClient) Flush() error {
	return c.conn.Flush()
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", key, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes a keyed subscription.
func (c *NATSClient) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for key %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
