package classroom

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/skillforge/liveclass/internal/channel"
	"github.com/skillforge/liveclass/internal/liveclass"
	"github.com/skillforge/liveclass/internal/protocol"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// recorder is an Observer that exposes updates as channels.
type recorder struct {
	messages chan ChatMessage
	notices  chan Notice
	states   chan channel.State
}

func newRecorder() *recorder {
	return &recorder{
		messages: make(chan ChatMessage, 32),
		notices:  make(chan Notice, 32),
		states:   make(chan channel.State, 32),
	}
}

func (r *recorder) MessageAppended(msg ChatMessage) { r.messages <- msg }
func (r *recorder) Notify(n Notice) { r.notices <- n }
func (r *recorder) StateChanged(from, to channel.State) { r.states <- to }

func (r *recorder) waitState(t *testing.T, want channel.State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-r.states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func (r *recorder) nextMessage(t *testing.T) ChatMessage {
	t.Helper()
	select {
	case m := <-r.messages:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return ChatMessage{}
}

func (r *recorder) nextNotice(t *testing.T) Notice {
	t.Helper()
	select {
	case n := <-r.notices:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notice")
	}
	return Notice{}
}

func (r *recorder) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case m := <-r.messages:
		t.Errorf("unexpected message %+v", m)
	case n := <-r.notices:
		t.Errorf("unexpected notice %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

// liveServer is a scripted realtime endpoint. Each accepted connection is
// handed to script together with the session id taken from the path.
type liveServer struct {
	*httptest.Server
	active atomic.Int32
}

func newLiveServer(t *testing.T, script func(id string, conn net.Conn)) *liveServer {
	t.Helper()
	ls := &liveServer{}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"+channel.PathPrefix), "/")
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		ls.active.Add(1)
		defer ls.active.Add(-1)
		defer conn.Close()
		script(id, conn)
	}))
	t.Cleanup(ls.Close)
	return ls
}

func serverSend(conn net.Conn, s string) {
	wsutil.WriteServerMessage(conn, ws.OpText, []byte(s))
}

// drain reads client frames until the connection goes away.
func drain(conn net.Conn) {
	for {
		if _, err := wsutil.ReadClientText(conn); err != nil {
			return
		}
	}
}

func newTestView(t *testing.T, base string) (*View, *recorder) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Channel.BaseURL = base
	cfg.Channel.DialTimeout = 2 * time.Second
	rec := newRecorder()
	v := New(cfg, liveclass.Viewer{ID: 7, Name: "sam", Role: liveclass.RoleStudent}, rec)
	t.Cleanup(func() { v.Close() })
	return v, rec
}

// ---------------------------------------------------------------------------
// Test: Inbound handling
// ---------------------------------------------------------------------------

func TestView_ReceivesChatMessage(t *testing.T) {
	var gotID atomic.Value
	srv := newLiveServer(t, func(id string, conn net.Conn) {
		gotID.Store(id)
		serverSend(conn, `{"type":"chat_message","user":"alice","content":"hello"}`)
		drain(conn)
	})
	v, rec := newTestView(t, srv.URL)

	if err := v.Open(context.Background(), liveclass.Session{ID: 42, Title: "Algebra"}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	msg := rec.nextMessage(t)

	if gotID.Load() != "42" {
		t.Errorf("expected connection for session 42, got %v", gotID.Load())
	}
	log := v.Messages()
	if len(log) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(log))
	}
	if log[0].User != "alice" || log[0].Content != "hello" {
		t.Errorf("unexpected entry %+v", log[0])
	}
	if log[0].ID != msg.ID || log[0].ID == "" {
		t.Errorf("expected a generated id, got %q", log[0].ID)
	}
	if s, ok := v.Session(); !ok || s.ID != 42 {
		t.Errorf("expected mounted session 42, got %+v %v", s, ok)
	}
}

func TestView_LogPreservesArrivalOrder(t *testing.T) {
	const n = 20
	srv := newLiveServer(t, func(id string, conn net.Conn) {
		for i := 0; i < n; i++ {
			b, _ := json.Marshal(map[string]interface{}{
				"type": "chat_message", "user": i, "content": string(rune('a' + i)),
			})
			serverSend(conn, string(b))
		}
		drain(conn)
	})
	v, rec := newTestView(t, srv.URL)
	v.Open(context.Background(), liveclass.Session{ID: 1})

	for i := 0; i < n; i++ {
		rec.nextMessage(t)
	}
	log := v.Messages()
	if len(log) != n {
		t.Fatalf("expected %d entries, got %d", n, len(log))
	}
	for i, m := range log {
		if m.Content != string(rune('a'+i)) {
			t.Errorf("entry %d: content %q out of order", i, m.Content)
		}
		if m.Seq != uint64(i+1) {
			t.Errorf("entry %d: seq %d, want %d", i, m.Seq, i+1)
		}
		if m.User != protocol.IdentityFromInt(int64(i)) {
			t.Errorf("entry %d: user %q", i, m.User)
		}
	}
}

func TestView_ServerRejectionIsANotice(t *testing.T) {
	srv := newLiveServer(t, func(id string, conn net.Conn) {
		serverSend(conn, `{"type":"moderation_rejected","message":"Message contains banned words"}`)
		serverSend(conn, `{"type":"typing","user":"bob"}`)
		drain(conn)
	})
	v, rec := newTestView(t, srv.URL)
	v.Open(context.Background(), liveclass.Session{ID: 3})

	n := rec.nextNotice(t)
	if n.Kind != NoticeModerationRejected || n.Text != "Message contains banned words" {
		t.Errorf("unexpected notice %+v", n)
	}
	rec.expectQuiet(t)
	if len(v.Messages()) != 0 {
		t.Errorf("rejection must not touch the log, got %+v", v.Messages())
	}
}

func TestView_MalformedFrameLeavesLogUnchanged(t *testing.T) {
	srv := newLiveServer(t, func(id string, conn net.Conn) {
		serverSend(conn, `{"type":"chat_message","user":"a","content":"first"}`)
		serverSend(conn, `{"type":"chat_message",`)
		serverSend(conn, `{"type":"chat_message","user":"a","content":"second"}`)
		drain(conn)
	})
	v, rec := newTestView(t, srv.URL)
	v.Open(context.Background(), liveclass.Session{ID: 3})

	rec.nextMessage(t)
	rec.nextMessage(t)
	log := v.Messages()
	if len(log) != 2 || log[0].Content != "first" || log[1].Content != "second" {
		t.Errorf("unexpected log %+v", log)
	}
	if v.State() != channel.StateOpen {
		t.Errorf("expected open, got %s", v.State())
	}
}

// ---------------------------------------------------------------------------
// Test: Sending
// ---------------------------------------------------------------------------

func TestView_BlockedSendNeverReachesServer(t *testing.T) {
	frames := make(chan string, 4)
	srv := newLiveServer(t, func(id string, conn net.Conn) {
		for {
			data, err := wsutil.ReadClientText(conn)
			if err != nil {
				return
			}
			frames <- string(data)
		}
	})
	v, rec := newTestView(t, srv.URL)
	v.Open(context.Background(), liveclass.Session{ID: 8})
	rec.waitState(t, channel.StateOpen)

	v.SetInput("offensiveword1 hi")
	if err := v.Submit(); !errors.Is(err, channel.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if n := rec.nextNotice(t); n.Kind != NoticeBlocked || n.Text != TextBlocked {
		t.Errorf("unexpected notice %+v", n)
	}
	if v.Input() != "offensiveword1 hi" {
		t.Errorf("input must be kept on failure, got %q", v.Input())
	}
	if len(v.Messages()) != 0 {
		t.Errorf("log must be unchanged")
	}

	// A valid follow-up is the first frame the server sees.
	v.SetInput("hello class")
	if err := v.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case f := <-frames:
		var out protocol.OutboundChat
		if err := json.Unmarshal([]byte(f), &out); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		if out.Message != "hello class" || out.User != "7" || out.Type != protocol.TypeChat {
			t.Errorf("unexpected frame %+v", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server received nothing")
	}
}

func TestView_SubmitWaitsForEcho(t *testing.T) {
	srv := newLiveServer(t, func(id string, conn net.Conn) {
		for {
			data, err := wsutil.ReadClientText(conn)
			if err != nil {
				return
			}
			msg, _ := protocol.ParseClientMessage(data)
			out, _ := protocol.NewServerMessage(protocol.TypeChatMessage, protocol.ChatMessage{
				User: msg.User, Content: msg.Message,
			})
			// Delay the echo so the log can be checked before it lands.
			time.Sleep(50 * time.Millisecond)
			serverSend(conn, string(out))
		}
	})
	v, rec := newTestView(t, srv.URL)
	v.Open(context.Background(), liveclass.Session{ID: 8})
	rec.waitState(t, channel.StateOpen)

	v.SetInput("echo me")
	if err := v.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if v.Input() != "" {
		t.Errorf("input should be cleared on success, got %q", v.Input())
	}
	if len(v.Messages()) != 0 {
		t.Errorf("message must not be appended before the echo")
	}

	m := rec.nextMessage(t)
	if m.Content != "echo me" || m.User != "7" {
		t.Errorf("unexpected echoed message %+v", m)
	}
	if len(v.Messages()) != 1 {
		t.Errorf("expected one entry after echo, got %d", len(v.Messages()))
	}
}

func TestView_SubmitPreconditions(t *testing.T) {
	v, rec := newTestView(t, "http://127.0.0.1:1")

	cases := []struct {
		input string
		err   error
		kind  NoticeKind
		text  string
	}{
		{"   ", channel.ErrEmptyMessage, NoticeEmpty, TextEmpty},
		{"OFFENSIVEWORD2!", channel.ErrBlocked, NoticeBlocked, TextBlocked},
		{"hello", channel.ErrNotConnected, NoticeNotConnected, TextNotConnected},
	}

	for _, tc := range cases {
		v.SetInput(tc.input)
		if err := v.Submit(); !errors.Is(err, tc.err) {
			t.Errorf("Submit(%q) = %v, want %v", tc.input, err, tc.err)
		}
		n := rec.nextNotice(t)
		if n.Kind != tc.kind || n.Text != tc.text {
			t.Errorf("Submit(%q) notice %+v", tc.input, n)
		}
		if v.Input() != tc.input {
			t.Errorf("input changed to %q", v.Input())
		}
	}
	rec.expectQuiet(t)
}

func TestView_FailedConnectionOnlyNoticedOnSend(t *testing.T) {
	// Nothing listens on the discard port.
	v, rec := newTestView(t, "http://127.0.0.1:9")
	v.Open(context.Background(), liveclass.Session{ID: 2})
	rec.waitState(t, channel.StateClosed)
	rec.expectQuiet(t)

	v.SetInput("anyone there?")
	if err := v.Submit(); !errors.Is(err, channel.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if n := rec.nextNotice(t); n.Text != TextNotConnected {
		t.Errorf("unexpected notice %+v", n)
	}
}

// ---------------------------------------------------------------------------
// Test: Lifecycle
// ---------------------------------------------------------------------------

func TestView_CloseStopsProcessing(t *testing.T) {
	var mu sync.Mutex
	var serverConn net.Conn
	ready := make(chan struct{})
	gone := make(chan struct{})
	srv := newLiveServer(t, func(id string, conn net.Conn) {
		mu.Lock()
		serverConn = conn
		mu.Unlock()
		close(ready)
		drain(conn)
		close(gone)
	})
	v, rec := newTestView(t, srv.URL)
	v.Open(context.Background(), liveclass.Session{ID: 4})
	rec.waitState(t, channel.StateOpen)
	<-ready

	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if v.State() != channel.StateClosed {
		t.Errorf("expected closed, got %s", v.State())
	}
	select {
	case <-gone:
	case <-time.After(2 * time.Second):
		t.Fatal("server connection still open after Close")
	}

	mu.Lock()
	serverSend(serverConn, `{"type":"chat_message","user":"x","content":"late"}`)
	mu.Unlock()
	rec.expectQuiet(t)
	if len(v.Messages()) != 0 {
		t.Errorf("log must be empty after unmount")
	}
	if _, ok := v.Session(); ok {
		t.Error("expected no mounted session")
	}
}

func TestView_SwitchingSessionsClosesPrevious(t *testing.T) {
	srv := newLiveServer(t, func(id string, conn net.Conn) {
		serverSend(conn, `{"type":"chat_message","user":"srv","content":"welcome to `+id+`"}`)
		drain(conn)
	})
	v, rec := newTestView(t, srv.URL)

	v.Open(context.Background(), liveclass.Session{ID: 10})
	if m := rec.nextMessage(t); m.Content != "welcome to 10" {
		t.Fatalf("unexpected message %+v", m)
	}

	v.Open(context.Background(), liveclass.Session{ID: 11})
	if m := rec.nextMessage(t); m.Content != "welcome to 11" {
		t.Fatalf("unexpected message %+v", m)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.active.Load() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected exactly one open connection, got %d", srv.active.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}

	log := v.Messages()
	if len(log) != 1 || log[0].Content != "welcome to 11" || log[0].Seq != 1 {
		t.Errorf("log should only hold the new session's messages, got %+v", log)
	}
}
