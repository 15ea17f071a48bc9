package relay

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection is one websocket client attached to a live class, with a write
// mutex serializing outbound frames.
type Connection struct {
	ID         string   // connection ID (UUID)
	SessionID  string   // live class the connection is attached to
	Conn       net.Conn // underlying TCP connection
	RemoteAddr string
	CreatedAt  time.Time

	lastActive atomic.Int64 // unix nanos of the last frame read
	writeMu    sync.Mutex
	closeOnce  sync.Once
}

func newConnection(id, sessionID, remote string, conn net.Conn) *Connection {
	c := &Connection{
		ID:         id,
		SessionID:  sessionID,
		Conn:       conn,
		RemoteAddr: remote,
		CreatedAt:  time.Now(),
	}
	c.touch()
	return c
}

func (c *Connection) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns when a frame was last read from the client.
func (c *Connection) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// WriteMessage sends a text frame, bounded by timeout when it is positive.
func (c *Connection) WriteMessage(data []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(timeout))
		defer c.Conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a protocol-level ping frame.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// WriteClose sends a close frame with the given status and reason.
func (c *Connection) WriteClose(code ws.StatusCode, reason string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
}

// Write implements io.Writer for control frame replies.
func (c *Connection) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.Write(p)
}

// Close closes the underlying network connection once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.Conn.Close() })
	return err
}

// ConnectionManager is a registry of connections by ID and by live class.
type ConnectionManager struct {
	mu     sync.RWMutex
	byID   map[string]*Connection
	byRoom map[string]map[string]*Connection // session_id -> conn_id -> Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID:   make(map[string]*Connection),
		byRoom: make(map[string]map[string]*Connection),
	}
}

// Add registers a connection.
func (cm *ConnectionManager) Add(c *Connection) {
	cm.mu.Lock()
	cm.byID[c.ID] = c
	room, ok := cm.byRoom[c.SessionID]
	if !ok {
		room = make(map[string]*Connection)
		cm.byRoom[c.SessionID] = room
	}
	room[c.ID] = c
	cm.mu.Unlock()
}

// Remove unregisters a connection and closes it. It reports whether the
// connection was still registered.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	c, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		if room := cm.byRoom[c.SessionID]; room != nil {
			delete(room, id)
			if len(room) == 0 {
				delete(cm.byRoom, c.SessionID)
			}
		}
	}
	cm.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// Get returns the connection for id, or nil.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	c := cm.byID[id]
	cm.mu.RUnlock()
	return c
}

// Count returns the number of registered connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// Room returns a snapshot of the connections attached to a live class.
func (cm *ConnectionManager) Room(sessionID string) []*Connection {
	cm.mu.RLock()
	room := cm.byRoom[sessionID]
	conns := make([]*Connection, 0, len(room))
	for _, c := range room {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()
	return conns
}

// All returns a snapshot of all connections.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, c := range cm.byID {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()
	return conns
}
