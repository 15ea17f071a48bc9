// Package relay is a reference realtime relay for live-class chat. It accepts
// websocket connections at /ws/live-class/{id}/, validates chat frames and
// fans each one out to every connection following the same live class,
// including the sender. Fan-out goes through a Broker so several relay
// instances can share one NATS server.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/skillforge/liveclass/internal/metrics"
	"github.com/skillforge/liveclass/internal/protocol"
	"github.com/skillforge/liveclass/internal/ratelimit"
	"github.com/skillforge/liveclass/internal/store"
)

// ServerConfig holds tunable parameters for the relay.
type ServerConfig struct {
	MaxConnections int             `env:"MAX_CONNECTIONS" envDefault:"10000"` // hard cap on total connections
	WriteTimeout   time.Duration   `env:"WRITE_TIMEOUT" envDefault:"10s"`     // timeout for websocket writes
	Heartbeat      HeartbeatConfig `envPrefix:"HEARTBEAT_"`
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxConnections: 10000,
		WriteTimeout:   10 * time.Second,
		Heartbeat:      DefaultHeartbeatConfig(),
	}
}

// Limiter throttles chat and connect attempts. *ratelimit.Limiter
// implements it.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
	RetryAfter(ctx context.Context, identifier string, rule ratelimit.Rule) (time.Duration, error)
}

var _ Limiter = (*ratelimit.Limiter)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLimiter enables per-user chat and per-address connect rate limits.
func WithLimiter(l Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithSessions makes the relay refuse upgrades for live classes that are
// unknown or no longer active.
func WithSessions(st store.Store) Option {
	return func(s *Server) { s.sessions = st }
}

// Server upgrades HTTP requests to websocket connections and relays chat
// between the connections of each live class. Every connection is served by
// its own goroutine.
type Server struct {
	config   ServerConfig
	conns    *ConnectionManager
	broker   Broker
	limiter  Limiter
	sessions store.Store

	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a relay publishing through broker.
func NewServer(config ServerConfig, broker Broker, opts ...Option) *Server {
	s := &Server{
		config: config,
		conns:  NewConnectionManager(),
		broker: broker,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startHeartbeat()
	return s
}

// Connections returns the connection registry.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		sessionID = sessionIDFromPath(r.URL.Path)
	}
	id, err := strconv.ParseInt(sessionID, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid live class id", http.StatusBadRequest)
		return
	}

	select {
	case <-s.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	if s.config.MaxConnections > 0 && s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	if s.sessions != nil {
		sess, err := s.sessions.GetSession(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound) || (err == nil && !sess.IsActive):
			http.Error(w, "live class not found", http.StatusNotFound)
			return
		case err != nil:
			log.Printf("relay: session lookup failed id=%d: %v", id, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	remote := remoteHost(r.RemoteAddr)
	if s.limiter != nil {
		ok, _ := s.limiter.Allow(r.Context(), remote, ratelimit.RuleConnect)
		if !ok {
			metrics.RelayMessagesTotal.WithLabelValues("rate_limited").Inc()
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
	}

	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("relay: upgrade failed remote=%s: %v", r.RemoteAddr, err)
		return
	}

	c := newConnection(uuid.New().String(), sessionID, remote, netConn)
	if err := s.broker.SubscribeLiveClass(sessionID, c.ID, func(data []byte) {
		s.deliver(c, data)
	}); err != nil {
		log.Printf("relay: subscribe failed session=%s: %v", sessionID, err)
		_ = c.WriteClose(ws.StatusInternalServerError, "subscribe failed")
		c.Close()
		return
	}
	s.conns.Add(c)
	metrics.RelayConnections.Inc()
	log.Printf("relay: connection opened conn=%s session=%s remote=%s", c.ID, sessionID, remote)

	s.readLoop(c)
}

// readLoop reads frames until the connection fails or closes.
func (s *Server) readLoop(c *Connection) {
	defer s.removeConnection(c)

	for {
		header, reader, err := wsutil.NextReader(c.Conn, ws.StateServerSide)
		if err != nil {
			if !isClosedErr(err) {
				log.Printf("relay: read failed conn=%s: %v", c.ID, err)
			}
			return
		}
		c.touch()

		if header.OpCode.IsControl() {
			switch header.OpCode {
			case ws.OpClose:
				_ = c.WriteClose(ws.StatusNormalClosure, "")
				return
			case ws.OpPing:
				payload, _ := io.ReadAll(reader)
				c.writeMu.Lock()
				_ = ws.WriteFrame(c.Conn, ws.NewPongFrame(payload))
				c.writeMu.Unlock()
			default:
				_, _ = io.Copy(io.Discard, reader)
			}
			continue
		}

		if header.Length > MaxMessageBytes {
			s.sendError(c, "message_too_large", "message exceeds size limit")
			_ = c.WriteClose(ws.StatusMessageTooBig, "")
			return
		}
		if header.OpCode != ws.OpText {
			_, _ = io.Copy(io.Discard, reader)
			continue
		}

		data := make([]byte, header.Length)
		if _, err := io.ReadFull(reader, data); err != nil {
			return
		}
		if len(data) == 0 {
			continue
		}
		s.handleMessage(c, data)
	}
}

// handleMessage validates a chat frame and publishes it to the live class.
func (s *Server) handleMessage(c *Connection, data []byte) {
	msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		metrics.RelayMessagesTotal.WithLabelValues("invalid").Inc()
		s.sendError(c, "parse_error", err.Error())
		return
	}
	if err := ValidateMessage(msg.Message); err != nil {
		metrics.RelayMessagesTotal.WithLabelValues("invalid").Inc()
		s.sendError(c, "invalid_message", err.Error())
		return
	}

	if s.limiter != nil {
		ctx := context.Background()
		key := c.SessionID + ":" + msg.User.String()
		ok, _ := s.limiter.Allow(ctx, key, ratelimit.RuleChat)
		if !ok {
			metrics.RelayMessagesTotal.WithLabelValues("rate_limited").Inc()
			wait, _ := s.limiter.RetryAfter(ctx, key, ratelimit.RuleChat)
			s.send(c, protocol.TypeRateLimited, protocol.RateLimitedMsg{RetryAfter: retrySeconds(wait)})
			return
		}
	}

	evt, err := json.Marshal(Event{
		User:    msg.User.String(),
		Content: msg.Message,
		From:    c.ID,
		Ts:      time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("relay: marshal event failed: %v", err)
		return
	}
	if err := s.broker.PublishLiveClass(c.SessionID, evt); err != nil {
		log.Printf("relay: publish failed session=%s: %v", c.SessionID, err)
		s.sendError(c, "publish_failed", "message could not be delivered")
		return
	}
	metrics.RelayMessagesTotal.WithLabelValues("published").Inc()
}

// deliver writes a fanned-out event to one subscriber connection.
func (s *Server) deliver(c *Connection, data []byte) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Printf("relay: bad event for conn=%s: %v", c.ID, err)
		return
	}
	frame, err := protocol.NewServerMessage(protocol.TypeChatMessage, protocol.ChatMessage{
		User:    protocol.Identity(evt.User),
		Content: evt.Content,
	})
	if err != nil {
		log.Printf("relay: build frame failed: %v", err)
		return
	}
	if err := c.WriteMessage(frame, s.config.WriteTimeout); err != nil {
		log.Printf("relay: deliver failed conn=%s: %v", c.ID, err)
		s.removeConnection(c)
		return
	}
	metrics.RelayMessagesTotal.WithLabelValues("delivered").Inc()
	if evt.Ts > 0 {
		metrics.RelayFanoutLatency.Observe(time.Since(time.UnixMilli(evt.Ts)).Seconds())
	}
}

func (s *Server) send(c *Connection, msgType string, payload interface{}) {
	frame, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("relay: build %s frame failed: %v", msgType, err)
		return
	}
	if err := c.WriteMessage(frame, s.config.WriteTimeout); err != nil {
		log.Printf("relay: send %s failed conn=%s: %v", msgType, c.ID, err)
	}
}

func (s *Server) sendError(c *Connection, code, message string) {
	s.send(c, protocol.TypeError, protocol.ErrorMsg{Code: code, Message: message})
}

// removeConnection unsubscribes and closes c. Safe to call more than once.
func (s *Server) removeConnection(c *Connection) {
	if !s.conns.Remove(c.ID) {
		return
	}
	if err := s.broker.UnsubscribeLiveClass(c.ID); err != nil {
		log.Printf("relay: unsubscribe failed conn=%s: %v", c.ID, err)
	}
	metrics.RelayConnections.Dec()
	log.Printf("relay: connection closed conn=%s session=%s", c.ID, c.SessionID)
}

// CloseSession disconnects every connection following a live class with a
// going-away close frame.
func (s *Server) CloseSession(sessionID string) {
	room := s.conns.Room(sessionID)
	for _, c := range room {
		_ = c.WriteClose(ws.StatusGoingAway, "live class closed")
		s.removeConnection(c)
	}
	if len(room) > 0 {
		log.Printf("relay: closed live class session=%s connections=%d", sessionID, len(room))
	}
}

// Shutdown stops the heartbeat and closes every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	for _, c := range s.conns.All() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = c.WriteClose(ws.StatusGoingAway, "server shutting down")
		s.removeConnection(c)
	}
	return nil
}

func retrySeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func isClosedErr(err error) bool {
	var closed wsutil.ClosedError
	return errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// sessionIDFromPath extracts {id} from /ws/live-class/{id}/ when the request
// did not pass through chi.
func sessionIDFromPath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
