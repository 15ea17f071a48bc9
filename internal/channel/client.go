// Package channel implements the client side of a live-class realtime
// channel: one websocket connection per open session, an explicit connection
// state machine, inbound frame parsing, and outbound chat sends guarded by
// the local moderation pre-check.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/skillforge/liveclass/internal/metrics"
	"github.com/skillforge/liveclass/internal/moderation"
	"github.com/skillforge/liveclass/internal/protocol"
)

// Send precondition failures. None of them puts a frame on the wire.
var (
	ErrEmptyMessage = errors.New("channel: message is empty")
	ErrBlocked      = errors.New("channel: message blocked by moderation")
	ErrNotConnected = errors.New("channel: not connected")
)

// ErrAlreadyUsed is returned by Connect on a client that has connected
// before. Clients are single-use; open a new one per mounted session.
var ErrAlreadyUsed = errors.New("channel: client already used")

// Config holds realtime channel settings.
type Config struct {
	BaseURL      string        `env:"URL" envDefault:"http://127.0.0.1:8000"` // http(s) or ws(s) base address
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	EventBuffer  int           `env:"EVENT_BUFFER" envDefault:"64"`
}

// DefaultConfig returns the settings used by the original web client.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://127.0.0.1:8000",
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		EventBuffer:  64,
	}
}

// Event is delivered on Client.Events. The concrete type is StateChanged or
// Received.
type Event interface {
	isEvent()
}

// StateChanged reports a state machine transition. Err is set when the
// transition was caused by a transport failure.
type StateChanged struct {
	From State
	To   State
	Err  error
}

// Received carries one parsed inbound frame.
type Received struct {
	Message protocol.Inbound
}

func (StateChanged) isEvent() {}
func (Received) isEvent() {}

// Client owns exactly one websocket connection for one session.
type Client struct {
	config    Config
	sessionID string
	endpoint  string
	filter    *moderation.Filter

	mu     sync.Mutex // guards state, conn, used, closed, cancel
	state  State
	conn   net.Conn
	used   bool
	closed bool
	cancel context.CancelFunc

	writeMu sync.Mutex // serializes frames written to conn

	events    chan Event
	done      chan struct{}
	writers   sync.WaitGroup // goroutines that may still emit events
	closeOnce sync.Once
}

// New creates a Client for sessionID. No connection is made until Connect.
// A nil filter falls back to the default denylist.
func New(config Config, sessionID string, filter *moderation.Filter) (*Client, error) {
	endpoint, err := Endpoint(config.BaseURL, sessionID)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = moderation.NewFilter()
	}
	// Connect emits up to three events before its caller can start draining.
	if config.EventBuffer < 4 {
		config.EventBuffer = 4
	}

	return &Client{
		config:    config,
		sessionID: sessionID,
		endpoint:  endpoint,
		filter:    filter,
		state:     StateClosed,
		events:    make(chan Event, config.EventBuffer),
		done:      make(chan struct{}),
	}, nil
}

// Endpoint returns the realtime URL this client dials.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SessionID returns the session this client is bound to.
func (c *Client) SessionID() string {
	return c.sessionID
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the ordered stream of state changes and inbound frames. The
// channel is closed once Close has returned.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect dials the session endpoint and, on success, starts the read loop.
// It blocks until the connection is open or has failed. A failed dial leaves
// the client in StateClosed; there is no automatic retry.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.used {
		c.mu.Unlock()
		return ErrAlreadyUsed
	}
	c.used = true
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.writers.Add(1)
	c.mu.Unlock()
	defer c.writers.Done()

	c.transition(SignalDial, nil)

	dialer := ws.Dialer{Timeout: c.config.DialTimeout}
	conn, br, _, err := dialer.Dial(ctx, c.endpoint)
	if err != nil {
		err = fmt.Errorf("channel: dial %s: %w", c.endpoint, err)
		log.Printf("[channel] connect failed session=%s: %v", c.sessionID, err)
		c.transition(SignalFailed, err)
		c.transition(SignalClosed, nil)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	c.writers.Add(1)
	c.mu.Unlock()

	c.transition(SignalOpened, nil)
	log.Printf("[channel] open session=%s endpoint=%s", c.sessionID, c.endpoint)

	var src io.Reader = conn
	if br != nil {
		// The server may have sent frames right behind the handshake.
		src = br
	}
	go c.readLoop(conn, src)
	return nil
}

// Send transmits text as a chat frame attributed to user. Preconditions are
// checked in order: non-blank text, moderation pre-check, open connection.
// A nil error means the frame was handed to the connection, not that the
// server accepted it; the message appears in the log only when echoed back.
func (c *Client) Send(text string, user protocol.Identity) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if res := c.filter.Check(text); res.Blocked {
		metrics.MessagesTotal.WithLabelValues("blocked").Inc()
		return fmt.Errorf("%w: term %q", ErrBlocked, res.Term)
	}

	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if state != StateOpen || conn == nil {
		return ErrNotConnected
	}

	data, err := protocol.NewClientMessage(text, user)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := wsutil.WriteClientMessage(conn, ws.OpText, data); err != nil {
		log.Printf("[channel] send failed session=%s: %v", c.sessionID, err)
		return fmt.Errorf("channel: send: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues("sent").Inc()
	return nil
}

// Close forcibly closes the connection from whatever state the client is in.
// No close handshake is attempted. After Close returns no further events are
// delivered and the Events channel is closed. It is safe to call multiple
// times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.used = true
		conn := c.conn
		cancel := c.cancel
		c.mu.Unlock()

		close(c.done)
		if cancel != nil {
			cancel()
		}
		if conn != nil {
			err = conn.Close()
		}
		c.setState(StateClosed)

		c.writers.Wait()
		close(c.events)
		log.Printf("[channel] closed session=%s", c.sessionID)
	})
	return err
}

// readLoop reads frames until the connection fails or is closed. Frames are
// parsed and delivered in the order the connection yields them.
func (c *Client) readLoop(conn net.Conn, src io.Reader) {
	defer c.writers.Done()

	controlHandler := wsutil.ControlFrameHandler(lockedWriter{c: c, w: conn}, ws.StateClientSide)
	rd := wsutil.Reader{
		Source:         src,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: controlHandler,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			c.readFailed(err)
			return
		}

		if hdr.OpCode.IsControl() {
			if err := controlHandler(hdr, &rd); err != nil {
				c.readFailed(err)
				return
			}
			continue
		}

		if hdr.OpCode != ws.OpText {
			if err := rd.Discard(); err != nil {
				c.readFailed(err)
				return
			}
			continue
		}

		data, err := io.ReadAll(&rd)
		if err != nil {
			c.readFailed(err)
			return
		}

		msg, err := protocol.ParseServerMessage(data)
		if err != nil {
			metrics.MessagesTotal.WithLabelValues("malformed").Inc()
			log.Printf("[channel] dropping malformed frame session=%s: %v", c.sessionID, err)
			continue
		}

		switch msg.(type) {
		case protocol.ChatMessage:
			metrics.MessagesTotal.WithLabelValues("received").Inc()
		case protocol.ModerationRejected:
			metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		default:
			metrics.MessagesTotal.WithLabelValues("ignored").Inc()
		}

		if !c.emit(Received{Message: msg}) {
			return
		}
	}
}

// readFailed maps a read error to the state machine. A close frame from the
// server is a normal close; anything else is a transport failure. Errors
// caused by our own Close are not reported.
func (c *Client) readFailed(err error) {
	select {
	case <-c.done:
		return
	default:
	}

	var closed wsutil.ClosedError
	if errors.As(err, &closed) || errors.Is(err, io.EOF) {
		log.Printf("[channel] server closed session=%s: %v", c.sessionID, err)
		c.transition(SignalClosed, nil)
		return
	}

	log.Printf("[channel] read failed session=%s: %v", c.sessionID, err)
	c.transition(SignalFailed, fmt.Errorf("channel: read: %w", err))
	c.transition(SignalClosed, nil)
}

// transition feeds sig to the state machine and reports the change.
func (c *Client) transition(sig Signal, cause error) {
	c.mu.Lock()
	from := c.state
	to, err := Next(from, sig)
	if err != nil || c.closed {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	recordTransition(from, to)
	if from != to {
		c.emit(StateChanged{From: from, To: to, Err: cause})
	}
}

// setState forces the state without emitting an event. Only Close uses it.
func (c *Client) setState(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()
	if from != to {
		recordTransition(from, to)
	}
}

// emit delivers ev unless the client has been closed. It reports whether the
// event was delivered.
func (c *Client) emit(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func recordTransition(from, to State) {
	metrics.ChannelTransitions.WithLabelValues(to.String()).Inc()
	if to == StateOpen && from != StateOpen {
		metrics.ChannelsOpen.Inc()
	}
	if from == StateOpen && to != StateOpen {
		metrics.ChannelsOpen.Dec()
	}
}

// lockedWriter lets the read loop answer pings without interleaving with
// frames written by Send.
type lockedWriter struct {
	c *Client
	w io.Writer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.c.writeMu.Lock()
	defer lw.c.writeMu.Unlock()
	return lw.w.Write(p)
}
