// Package liveclass holds the domain types shared by the live-class client
// components and the reference backend: scheduled sessions, community join
// requests, participants, and the viewer identity injected into every
// component.
package liveclass

import (
	"fmt"
	"time"

	"github.com/skillforge/liveclass/internal/protocol"
)

// Session is a scheduled live video class with an attached chat channel.
type Session struct {
	ID        int64     `json:"id" yaml:"id"`
	Tutor     int64     `json:"tutor,omitempty" yaml:"tutor,omitempty"`
	TutorName string    `json:"tutor_name" yaml:"tutor_name"`
	Title     string    `json:"title" yaml:"title"`
	Topic     string    `json:"topic" yaml:"topic"`
	JitsiLink string    `json:"jitsi_link" yaml:"jitsi_link"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
}

// Status values of a JoinRequest.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Actions accepted when responding to a JoinRequest.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// JoinRequest is a student's request to join a tutor's community.
type JoinRequest struct {
	ID        int64     `json:"id" yaml:"id"`
	Community string    `json:"community,omitempty" yaml:"community,omitempty"`
	UserID    int64     `json:"user" yaml:"user"`
	UserName  string    `json:"user_name" yaml:"user_name"`
	Status    string    `json:"status" yaml:"status"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Participant is a member of a community.
type Participant struct {
	ID       int64  `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Profile  string `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// Community is the subset of a community resource the participants panel
// reads.
type Community struct {
	Slug         string        `json:"slug"`
	Name         string        `json:"name"`
	TutorID      int64         `json:"tutor"`
	Participants []Participant `json:"participants"`
}

// Roles a Viewer may hold.
const (
	RoleTutor   = "tutor"
	RoleStudent = "student"
)

// Headers carrying the viewer identity on REST calls. They pass identity
// through to the backend; they are not authentication.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
)

// Viewer is the read-only identity of the person using the client. It is
// passed explicitly to each component instead of living in global state.
type Viewer struct {
	ID   int64  `env:"ID"`
	Name string `env:"NAME"`
	Role string `env:"ROLE" envDefault:"student"`
}

// IsTutor reports whether the viewer may create classes and moderate
// communities.
func (v Viewer) IsTutor() bool {
	return v.Role == RoleTutor
}

// Identity returns the identity the viewer's chat lines are attributed to.
func (v Viewer) Identity() protocol.Identity {
	return protocol.IdentityFromInt(v.ID)
}

// ValidStatus reports whether s is a known JoinRequest status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ValidateAction checks a join-request response action.
func ValidateAction(action string) error {
	switch action {
	case ActionApprove, ActionReject:
		return nil
	}
	return fmt.Errorf("liveclass: invalid action %q", action)
}
