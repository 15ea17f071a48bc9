package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skillforge/liveclass/internal/liveclass"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[int64]liveclass.Session
	communities map[string]*memCommunity
	lastSession int64
	lastRequest int64
}

type memCommunity struct {
	info         liveclass.Community
	participants map[int64]liveclass.Participant
	requests     map[int64]liveclass.JoinRequest
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[int64]liveclass.Session),
		communities: make(map[string]*memCommunity),
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *liveclass.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSession++
	s.ID = m.lastSession
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id int64) (*liveclass.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) ListSessions(_ context.Context) ([]liveclass.Session, error) {
	m.mu.RLock()
	out := make([]liveclass.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sortSessions(out)
	return out, nil
}

func (m *MemoryStore) SetSessionActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.IsActive = active
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) PutCommunity(_ context.Context, c liveclass.Community) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.communities[c.Slug]
	if !ok {
		mc = &memCommunity{
			participants: make(map[int64]liveclass.Participant),
			requests:     make(map[int64]liveclass.JoinRequest),
		}
		m.communities[c.Slug] = mc
	}
	mc.info = liveclass.Community{Slug: c.Slug, Name: c.Name, TutorID: c.TutorID}
	for _, p := range c.Participants {
		mc.participants[p.ID] = p
	}
	return nil
}

func (m *MemoryStore) GetCommunity(_ context.Context, slug string) (*liveclass.Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mc, ok := m.communities[slug]
	if !ok {
		return nil, ErrNotFound
	}
	c := mc.info
	c.Participants = make([]liveclass.Participant, 0, len(mc.participants))
	for _, p := range mc.participants {
		c.Participants = append(c.Participants, p)
	}
	sortParticipants(c.Participants)
	return &c, nil
}

func (m *MemoryStore) AddParticipant(_ context.Context, slug string, p liveclass.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.communities[slug]
	if !ok {
		return ErrNotFound
	}
	mc.participants[p.ID] = p
	return nil
}

func (m *MemoryStore) RemoveParticipant(_ context.Context, slug string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.communities[slug]
	if !ok {
		return ErrNotFound
	}
	if _, ok := mc.participants[userID]; !ok {
		return ErrNotMember
	}
	delete(mc.participants, userID)
	return nil
}

func (m *MemoryStore) SaveJoinRequest(_ context.Context, jr *liveclass.JoinRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.communities[jr.Community]
	if !ok {
		return ErrNotFound
	}
	if jr.ID == 0 {
		m.lastRequest++
		jr.ID = m.lastRequest
		if jr.CreatedAt.IsZero() {
			jr.CreatedAt = time.Now().UTC()
		}
	} else if _, ok := mc.requests[jr.ID]; !ok {
		return ErrNotFound
	}
	mc.requests[jr.ID] = *jr
	return nil
}

func (m *MemoryStore) GetJoinRequest(_ context.Context, slug string, id int64) (*liveclass.JoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mc, ok := m.communities[slug]
	if !ok {
		return nil, ErrNotFound
	}
	jr, ok := mc.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &jr, nil
}

func (m *MemoryStore) FindJoinRequest(_ context.Context, slug string, userID int64) (*liveclass.JoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mc, ok := m.communities[slug]
	if !ok {
		return nil, ErrNotFound
	}
	for _, jr := range mc.requests {
		if jr.UserID == userID {
			return &jr, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListJoinRequests(_ context.Context, slug string) ([]liveclass.JoinRequest, error) {
	m.mu.RLock()
	mc, ok := m.communities[slug]
	if !ok {
		m.mu.RUnlock()
		return nil, ErrNotFound
	}
	out := make([]liveclass.JoinRequest, 0, len(mc.requests))
	for _, jr := range mc.requests {
		out = append(out, jr)
	}
	m.mu.RUnlock()
	sortJoinRequests(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func sortSessions(s []liveclass.Session) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].CreatedAt.After(s[j].CreatedAt)
		}
		return s[i].ID > s[j].ID
	})
}

func sortJoinRequests(r []liveclass.JoinRequest) {
	sort.Slice(r, func(i, j int) bool {
		if !r[i].CreatedAt.Equal(r[j].CreatedAt) {
			return r[i].CreatedAt.After(r[j].CreatedAt)
		}
		return r[i].ID > r[j].ID
	})
}

func sortParticipants(p []liveclass.Participant) {
	sort.Slice(p, func(i, j int) bool { return p[i].ID < p[j].ID })
}
