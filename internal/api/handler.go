// Package api implements the reference backend's REST surface for live
// classes, community join requests and participants.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skillforge/liveclass/internal/liveclass"
	"github.com/skillforge/liveclass/internal/store"
)

// Handler serves the REST resources.
type Handler struct {
	store   store.Store
	now     func() time.Time
	onClose func(sessionID int64)
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the clock used for meeting links.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithCloseHook registers fn to run after a live class is closed.
func WithCloseHook(fn func(sessionID int64)) Option {
	return func(h *Handler) { h.onClose = fn }
}

// New creates a Handler backed by s.
func New(s store.Store, opts ...Option) *Handler {
	h := &Handler{store: s, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the REST routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/live-classes/", h.handleListSessions)
	r.Post("/live-classes/", h.handleCreateSession)
	r.Get("/live-classes/{id}/", h.handleGetSession)
	r.Delete("/live-classes/{id}/", h.handleCloseSession)

	r.Get("/community/{slug}/", h.handleGetCommunity)
	r.Post("/community/{slug}/join/", h.handleJoin)
	r.Get("/community/{slug}/join-requests/", h.handleListJoinRequests)
	r.Post("/community/{slug}/join-requests/{pk}/approve/", h.handleRespondJoinRequest)
	r.Post("/community/{slug}/remove-participant/", h.handleRemoveParticipant)
}

// ---------------------------------------------------------------------------
// Live classes
// ---------------------------------------------------------------------------

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ListSessions(r.Context())
	if err != nil {
		internalError(w, "list sessions", err)
		return
	}
	active := make([]liveclass.Session, 0, len(all))
	for _, s := range all {
		if s.IsActive {
			active = append(active, s)
		}
	}
	respondJSON(w, http.StatusOK, active)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok || !viewer.IsTutor() {
		respondError(w, http.StatusForbidden, "Only tutors can create live classes.")
		return
	}

	var payload liveclass.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := liveclass.Check(payload); err != nil {
		respondValidation(w, err)
		return
	}

	link := payload.JitsiLink
	if link == "" {
		link = liveclass.MeetingLink(h.now())
	}
	sess := &liveclass.Session{
		Tutor:     viewer.ID,
		TutorName: viewer.Name,
		Title:     payload.Title,
		Topic:     payload.Topic,
		JitsiLink: link,
		CreatedAt: h.now().UTC(),
		IsActive:  true,
	}
	if err := h.store.CreateSession(r.Context(), sess); err != nil {
		internalError(w, "create session", err)
		return
	}

	log.Printf("[api] live class created id=%d tutor=%d title=%q", sess.ID, sess.Tutor, sess.Title)
	respondJSON(w, http.StatusCreated, sess)
}

// activeSession loads an active session from the {id} URL parameter. Closed
// sessions are reported as missing.
func (h *Handler) activeSession(w http.ResponseWriter, r *http.Request) (*liveclass.Session, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found.")
		return nil, false
	}
	sess, err := h.store.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !sess.IsActive) {
		respondError(w, http.StatusNotFound, "Not found.")
		return nil, false
	}
	if err != nil {
		internalError(w, "get session", err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok || !viewer.IsTutor() {
		respondError(w, http.StatusForbidden, "Only tutors can close live classes.")
		return
	}
	sess, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	if sess.Tutor != viewer.ID {
		respondError(w, http.StatusForbidden, "Only the tutor who created this class can delete it.")
		return
	}

	if err := h.store.SetSessionActive(r.Context(), sess.ID, false); err != nil {
		internalError(w, "close session", err)
		return
	}
	log.Printf("[api] live class closed id=%d", sess.ID)
	if h.onClose != nil {
		h.onClose(sess.ID)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "live class closed"})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondValidation writes field errors the way the client expects: an
// "error" summary plus per-field messages.
func respondValidation(w http.ResponseWriter, err error) {
	var verr *liveclass.ValidationError
	if !errors.As(err, &verr) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  verr.Error(),
		"fields": verr.Fields,
	})
}

func internalError(w http.ResponseWriter, op string, err error) {
	log.Printf("[api] %s: %v", op, err)
	respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
