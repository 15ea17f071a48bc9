// Package store holds the reference backend's live-class, community and
// join-request records. Two implementations exist: an in-process store for
// tests and single-instance runs, and a Redis store shared by several
// backend instances. Neither is durable; records carry no schema migrations.
package store

import (
	"context"
	"errors"

	"github.com/skillforge/liveclass/internal/liveclass"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrNotMember is returned when removing a user who is not a participant.
	ErrNotMember = errors.New("store: user not in community")
)

// Store is the record layer behind the REST handlers. It enforces no
// business rules beyond record existence.
type Store interface {
	// CreateSession assigns ID and, when zero, CreatedAt, then stores s.
	CreateSession(ctx context.Context, s *liveclass.Session) error
	GetSession(ctx context.Context, id int64) (*liveclass.Session, error)
	// ListSessions returns every session, newest first.
	ListSessions(ctx context.Context) ([]liveclass.Session, error)
	// SetSessionActive flips the active flag of an existing session.
	SetSessionActive(ctx context.Context, id int64, active bool) error

	PutCommunity(ctx context.Context, c liveclass.Community) error
	// GetCommunity returns the community with its participants ordered by id.
	GetCommunity(ctx context.Context, slug string) (*liveclass.Community, error)
	AddParticipant(ctx context.Context, slug string, p liveclass.Participant) error
	RemoveParticipant(ctx context.Context, slug string, userID int64) error

	// SaveJoinRequest inserts jr when its ID is zero and updates it otherwise.
	SaveJoinRequest(ctx context.Context, jr *liveclass.JoinRequest) error
	GetJoinRequest(ctx context.Context, slug string, id int64) (*liveclass.JoinRequest, error)
	// FindJoinRequest returns the request a user filed for a community.
	FindJoinRequest(ctx context.Context, slug string, userID int64) (*liveclass.JoinRequest, error)
	// ListJoinRequests returns a community's requests, newest first.
	ListJoinRequests(ctx context.Context, slug string) ([]liveclass.JoinRequest, error)

	Close() error
}
