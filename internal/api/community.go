package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skillforge/liveclass/internal/liveclass"
	"github.com/skillforge/liveclass/internal/store"
)

// Join responses. Students file a request; other roles join directly.
const (
	msgJoinSubmitted   = "Join request submitted. Please wait for tutor approval."
	msgJoinPending     = "Join request already pending."
	msgJoinApproved    = "You are already approved for this community."
	msgJoinResubmitted = "Join request re-submitted."
	msgJoined          = "Successfully joined the community"
)

func (h *Handler) community(w http.ResponseWriter, r *http.Request) (*liveclass.Community, bool) {
	c, err := h.store.GetCommunity(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Community not found")
		return nil, false
	}
	if err != nil {
		internalError(w, "get community", err)
		return nil, false
	}
	return c, true
}

// ownedCommunity loads the community and checks the viewer is its tutor.
func (h *Handler) ownedCommunity(w http.ResponseWriter, r *http.Request) (*liveclass.Community, bool) {
	c, ok := h.community(w, r)
	if !ok {
		return nil, false
	}
	viewer, _ := ViewerFrom(r.Context())
	if !isOwner(viewer, c) {
		respondError(w, http.StatusForbidden, "Not authorized")
		return nil, false
	}
	return c, true
}

func isOwner(v liveclass.Viewer, c *liveclass.Community) bool {
	return v.ID != 0 && v.IsTutor() && c.TutorID == v.ID
}

func isParticipant(c *liveclass.Community, userID int64) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

func (h *Handler) handleGetCommunity(w http.ResponseWriter, r *http.Request) {
	c, ok := h.community(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}
	c, ok := h.community(w, r)
	if !ok {
		return
	}
	if isParticipant(c, viewer.ID) {
		respondError(w, http.StatusBadRequest, "Already a member; you can view the community.")
		return
	}

	ctx := r.Context()
	if viewer.IsTutor() {
		p := liveclass.Participant{ID: viewer.ID, Username: viewer.Name}
		if err := h.store.AddParticipant(ctx, c.Slug, p); err != nil {
			internalError(w, "join community", err)
			return
		}
		respondMessage(w, msgJoined)
		return
	}

	jr, err := h.store.FindJoinRequest(ctx, c.Slug, viewer.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jr = &liveclass.JoinRequest{
			Community: c.Slug,
			UserID:    viewer.ID,
			UserName:  viewer.Name,
			Status:    liveclass.StatusPending,
		}
		if err := h.store.SaveJoinRequest(ctx, jr); err != nil {
			internalError(w, "save join request", err)
			return
		}
		log.Printf("[api] join request id=%d community=%s user=%d", jr.ID, c.Slug, viewer.ID)
		respondMessage(w, msgJoinSubmitted)
	case err != nil:
		internalError(w, "find join request", err)
	case jr.Status == liveclass.StatusPending:
		respondMessage(w, msgJoinPending)
	case jr.Status == liveclass.StatusApproved:
		respondMessage(w, msgJoinApproved)
	default:
		jr.Status = liveclass.StatusPending
		if err := h.store.SaveJoinRequest(ctx, jr); err != nil {
			internalError(w, "save join request", err)
			return
		}
		respondMessage(w, msgJoinResubmitted)
	}
}

// handleListJoinRequests lists a community's requests. Anyone but the owning
// tutor gets an empty list.
func (h *Handler) handleListJoinRequests(w http.ResponseWriter, r *http.Request) {
	c, ok := h.community(w, r)
	if !ok {
		return
	}
	viewer, _ := ViewerFrom(r.Context())
	if !isOwner(viewer, c) {
		respondJSON(w, http.StatusOK, []liveclass.JoinRequest{})
		return
	}
	list, err := h.store.ListJoinRequests(r.Context(), c.Slug)
	if err != nil {
		internalError(w, "list join requests", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleRespondJoinRequest(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownedCommunity(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	pk, err := strconv.ParseInt(chi.URLParam(r, "pk"), 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found.")
		return
	}
	jr, err := h.store.GetJoinRequest(ctx, c.Slug, pk)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Not found.")
		return
	}
	if err != nil {
		internalError(w, "get join request", err)
		return
	}

	var payload liveclass.RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || liveclass.Check(payload) != nil {
		respondError(w, http.StatusBadRequest, "Invalid action")
		return
	}

	switch payload.Action {
	case liveclass.ActionApprove:
		jr.Status = liveclass.StatusApproved
		if err := h.store.SaveJoinRequest(ctx, jr); err != nil {
			internalError(w, "approve join request", err)
			return
		}
		p := liveclass.Participant{ID: jr.UserID, Username: jr.UserName}
		if err := h.store.AddParticipant(ctx, c.Slug, p); err != nil {
			internalError(w, "add participant", err)
			return
		}
		log.Printf("[api] join request approved id=%d community=%s user=%d", jr.ID, c.Slug, jr.UserID)
		respondMessage(w, "User approved and added to community.")
	case liveclass.ActionReject:
		jr.Status = liveclass.StatusRejected
		if err := h.store.SaveJoinRequest(ctx, jr); err != nil {
			internalError(w, "reject join request", err)
			return
		}
		log.Printf("[api] join request rejected id=%d community=%s user=%d", jr.ID, c.Slug, jr.UserID)
		respondMessage(w, "Join request rejected.")
	}
}

func (h *Handler) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownedCommunity(w, r)
	if !ok {
		return
	}

	var payload liveclass.RemoveParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || liveclass.Check(payload) != nil {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	err := h.store.RemoveParticipant(r.Context(), c.Slug, payload.UserID)
	if errors.Is(err, store.ErrNotMember) {
		respondError(w, http.StatusBadRequest, "User not in community")
		return
	}
	if err != nil {
		internalError(w, "remove participant", err)
		return
	}
	log.Printf("[api] participant removed community=%s user=%d", c.Slug, payload.UserID)
	respondMessage(w, "User removed from community.")
}
