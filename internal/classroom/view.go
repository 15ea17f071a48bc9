// Package classroom drives the chat panel of a live class: it owns the
// realtime channel for the displayed session, the ordered message log and the
// input buffer, and turns channel failures into user notices.
package classroom

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillforge/liveclass/internal/channel"
	"github.com/skillforge/liveclass/internal/liveclass"
	"github.com/skillforge/liveclass/internal/moderation"
	"github.com/skillforge/liveclass/internal/protocol"
)

// Config holds View settings.
type Config struct {
	Channel channel.Config
	// Filter is the local moderation pre-check. Nil means the default
	// denylist.
	Filter *moderation.Filter
}

// DefaultConfig returns a Config with default channel settings.
func DefaultConfig() Config {
	return Config{Channel: channel.DefaultConfig()}
}

// ChatMessage is one line of the chat log. Seq is the display order: it
// starts at 1 for every mounted session and follows arrival order.
type ChatMessage struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	User       protocol.Identity `json:"user"`
	Content    string            `json:"content"`
	ReceivedAt time.Time         `json:"received_at"`
}

// NoticeKind classifies a user-facing notification.
type NoticeKind int

const (
	// NoticeModerationRejected is a server-side rejection of a sent message.
	NoticeModerationRejected NoticeKind = iota
	// NoticeBlocked is the local moderation pre-check refusing a send.
	NoticeBlocked
	NoticeNotConnected
	NoticeEmpty
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeModerationRejected:
		return "moderation_rejected"
	case NoticeBlocked:
		return "blocked"
	case NoticeNotConnected:
		return "not_connected"
	case NoticeEmpty:
		return "empty"
	}
	return fmt.Sprintf("notice(%d)", int(k))
}

// Notice texts shown for local send failures.
const (
	TextBlocked      = "Message blocked by moderation"
	TextNotConnected = "Not connected"
	TextEmpty        = "Message is empty"
)

// Notice is a blocking user notification.
type Notice struct {
	Kind NoticeKind
	Text string
}

// Observer receives view updates. Calls for one session arrive from a single
// goroutine, in order. Observers must not call Open or Close from a callback.
type Observer interface {
	MessageAppended(msg ChatMessage)
	Notify(n Notice)
	StateChanged(from, to channel.State)
}

// View is the chat panel for at most one session at a time.
type View struct {
	config   Config
	viewer   liveclass.Viewer
	observer Observer
	filter   *moderation.Filter

	mu       sync.Mutex // guards everything below
	session  *liveclass.Session
	client   *channel.Client
	pumpDone chan struct{}
	messages []ChatMessage
	seq      uint64
	input    string
}

// New creates an unmounted View. A nil observer discards updates.
func New(config Config, viewer liveclass.Viewer, observer Observer) *View {
	filter := config.Filter
	if filter == nil {
		filter = moderation.NewFilter()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &View{
		config:   config,
		viewer:   viewer,
		observer: observer,
		filter:   filter,
	}
}

// Open mounts session. Any previously mounted session is closed first, so a
// View never holds more than one connection. The log and input buffer are
// reset. Connecting happens in the background; a connection failure is
// logged and only surfaces when the user tries to send.
func (v *View) Open(ctx context.Context, session liveclass.Session) error {
	v.closeCurrent()

	sessionID := strconv.FormatInt(session.ID, 10)
	client, err := channel.New(v.config.Channel, sessionID, v.filter)
	if err != nil {
		return fmt.Errorf("classroom: open session %s: %w", sessionID, err)
	}

	done := make(chan struct{})
	v.mu.Lock()
	v.session = &session
	v.client = client
	v.pumpDone = done
	v.messages = nil
	v.seq = 0
	v.input = ""
	v.mu.Unlock()

	log.Printf("[classroom] mounted session=%s title=%q", sessionID, session.Title)
	go v.pump(ctx, client, done)
	return nil
}

// Close unmounts the current session. The connection is closed from
// whatever state it is in, and once Close returns no further inbound frames
// are processed. It is a no-op when nothing is mounted.
func (v *View) Close() error {
	return v.closeCurrent()
}

func (v *View) closeCurrent() error {
	v.mu.Lock()
	client, done, session := v.client, v.pumpDone, v.session
	v.client = nil
	v.pumpDone = nil
	v.session = nil
	v.messages = nil
	v.input = ""
	v.mu.Unlock()

	if client == nil {
		return nil
	}
	err := client.Close()
	<-done
	if session != nil {
		log.Printf("[classroom] unmounted session=%d", session.ID)
	}
	return err
}

// pump connects client and then handles its events one at a time until the
// client is closed.
func (v *View) pump(ctx context.Context, client *channel.Client, done chan struct{}) {
	defer close(done)

	if err := client.Connect(ctx); err != nil && !errors.Is(err, channel.ErrNotConnected) {
		log.Printf("[classroom] connect session=%s: %v", client.SessionID(), err)
	}

	for ev := range client.Events() {
		if !v.handle(client, ev) {
			return
		}
	}
}

// handle applies one channel event. It reports false once client is no
// longer the mounted one.
func (v *View) handle(client *channel.Client, ev channel.Event) bool {
	switch e := ev.(type) {
	case channel.StateChanged:
		if !v.isCurrent(client) {
			return false
		}
		if e.Err != nil {
			log.Printf("[classroom] session=%s connection %s: %v", client.SessionID(), e.To, e.Err)
		}
		v.observer.StateChanged(e.From, e.To)

	case channel.Received:
		switch m := e.Message.(type) {
		case protocol.ChatMessage:
			v.mu.Lock()
			if v.client != client {
				v.mu.Unlock()
				return false
			}
			v.seq++
			msg := ChatMessage{
				ID:         uuid.NewString(),
				Seq:        v.seq,
				User:       m.User,
				Content:    m.Content,
				ReceivedAt: time.Now(),
			}
			v.messages = append(v.messages, msg)
			v.mu.Unlock()
			v.observer.MessageAppended(msg)

		case protocol.ModerationRejected:
			if !v.isCurrent(client) {
				return false
			}
			v.observer.Notify(Notice{Kind: NoticeModerationRejected, Text: m.Message})

		default:
			log.Printf("[classroom] session=%s ignoring %q frame", client.SessionID(), m.MessageType())
		}
	}
	return true
}

func (v *View) isCurrent(client *channel.Client) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.client == client
}

// SetInput replaces the input buffer.
func (v *View) SetInput(text string) {
	v.mu.Lock()
	v.input = text
	v.mu.Unlock()
}

// Input returns the input buffer.
func (v *View) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

// Submit sends the input buffer as the viewer. On success the buffer is
// cleared right away; the message itself only appears in the log once the
// server echoes it. On failure the buffer is kept, exactly one notice is
// emitted, and the error is returned.
func (v *View) Submit() error {
	v.mu.Lock()
	client, text := v.client, v.input
	v.mu.Unlock()

	var err error
	if client != nil {
		err = client.Send(text, v.viewer.Identity())
	} else {
		err = v.precheck(text)
	}
	if err != nil {
		v.observer.Notify(noticeFor(err))
		return err
	}

	v.mu.Lock()
	if v.input == text {
		v.input = ""
	}
	v.mu.Unlock()
	return nil
}

// precheck applies the send preconditions when no channel is mounted.
func (v *View) precheck(text string) error {
	if strings.TrimSpace(text) == "" {
		return channel.ErrEmptyMessage
	}
	if res := v.filter.Check(text); res.Blocked {
		return fmt.Errorf("%w: term %q", channel.ErrBlocked, res.Term)
	}
	return channel.ErrNotConnected
}

func noticeFor(err error) Notice {
	switch {
	case errors.Is(err, channel.ErrEmptyMessage):
		return Notice{Kind: NoticeEmpty, Text: TextEmpty}
	case errors.Is(err, channel.ErrBlocked):
		return Notice{Kind: NoticeBlocked, Text: TextBlocked}
	default:
		// Write failures mean the connection is gone.
		return Notice{Kind: NoticeNotConnected, Text: TextNotConnected}
	}
}

// Messages returns a copy of the chat log in display order.
func (v *View) Messages() []ChatMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ChatMessage, len(v.messages))
	copy(out, v.messages)
	return out
}

// State returns the connection state of the mounted session, or
// channel.StateClosed when nothing is mounted.
func (v *View) State() channel.State {
	v.mu.Lock()
	client := v.client
	v.mu.Unlock()
	if client == nil {
		return channel.StateClosed
	}
	return client.State()
}

// Session returns the mounted session.
func (v *View) Session() (liveclass.Session, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return liveclass.Session{}, false
	}
	return *v.session, true
}

type nopObserver struct{}

func (nopObserver) MessageAppended(ChatMessage) {}
func (nopObserver) Notify(Notice) {}
func (nopObserver) StateChanged(from, to channel.State) {}
