package relay

import (
	"fmt"
	"sync"

	"github.com/skillforge/liveclass/internal/messaging"
)

// Event is the payload fanned out to every connection following a live
// class.
type Event struct {
	User    string `json:"user"`
	Content string `json:"content"`
	From    string `json:"from"` // sender connection ID
	Ts      int64  `json:"ts"`   // unix millis at publish
}

// Broker fans chat events out to subscribers of a live class.
// *messaging.NATSClient implements it across instances; LocalBroker does so
// within one process.
type Broker interface {
	PublishLiveClass(sessionID string, data []byte) error
	SubscribeLiveClass(sessionID, subscriberID string, handler func(data []byte)) error
	UnsubscribeLiveClass(subscriberID string) error
}

var _ Broker = (*messaging.NATSClient)(nil)

// LocalBroker is an in-process Broker. Handlers run synchronously on the
// publishing goroutine.
type LocalBroker struct {
	mu    sync.RWMutex
	rooms map[string]map[string]func([]byte) // session -> subscriber -> handler
	subs  map[string]string                  // subscriber -> session
}

// NewLocalBroker returns an empty LocalBroker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		rooms: make(map[string]map[string]func([]byte)),
		subs:  make(map[string]string),
	}
}

func (b *LocalBroker) PublishLiveClass(sessionID string, data []byte) error {
	b.mu.RLock()
	handlers := make([]func([]byte), 0, len(b.rooms[sessionID]))
	for _, h := range b.rooms[sessionID] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (b *LocalBroker) SubscribeLiveClass(sessionID, subscriberID string, handler func(data []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.subs[subscriberID]; ok {
		delete(b.rooms[prev], subscriberID)
	}
	room, ok := b.rooms[sessionID]
	if !ok {
		room = make(map[string]func([]byte))
		b.rooms[sessionID] = room
	}
	room[subscriberID] = handler
	b.subs[subscriberID] = sessionID
	return nil
}

func (b *LocalBroker) UnsubscribeLiveClass(subscriberID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sessionID, ok := b.subs[subscriberID]
	if !ok {
		return fmt.Errorf("relay: no subscription for %s", subscriberID)
	}
	delete(b.subs, subscriberID)
	delete(b.rooms[sessionID], subscriberID)
	if len(b.rooms[sessionID]) == 0 {
		delete(b.rooms, sessionID)
	}
	return nil
}
