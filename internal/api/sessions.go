package api

import (
	"errors"
	"net/http"

	"example.com/wellnest/internal/motion"
	"example.com/wellnest/internal/tracking"
)

// StopSessionRequest is the optional payload for POST /v1/sessions/stop and /v1/sessions/save.
type StopSessionRequest struct {
	Notes string `json:"notes"`
}

// AdjustStepsRequest is the payload for POST /v1/sessions/steps.
type AdjustStepsRequest struct {
	Delta int `json:"delta"`
}

// SessionResponse wraps a session status with the sample a transition produced, if any.
type SessionResponse struct {
	Session tracking.Status `json:"session"`
	Sample  *SampleView     `json:"sample,omitempty"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	session := h.sessions.Session(owner)
	switch err := session.Start(); {
	case err == nil:
		writeJSON(w, http.StatusOK, SessionResponse{Session: session.Status()})
	case errors.Is(err, motion.ErrPermissionDenied):
		writeError(w, http.StatusConflict, "capability_unavailable",
			"motion permission denied; log steps manually with POST /v1/steps")
	case errors.Is(err, motion.ErrCapabilityUnavailable):
		writeError(w, http.StatusConflict, "capability_unavailable",
			"motion tracking unavailable; log steps manually with POST /v1/steps")
	case errors.Is(err, tracking.ErrAlreadyTracking):
		writeError(w, http.StatusConflict, "already_tracking", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func (h *Handler) stopSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req StopSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sample, err := session.Stop(req.Notes)
	switch {
	case err == nil:
		view := toSampleView(sample)
		writeJSON(w, http.StatusAccepted, SessionResponse{Session: session.Status(), Sample: &view})
	case errors.Is(err, tracking.ErrNotTracking):
		writeError(w, http.StatusConflict, "not_tracking", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func (h *Handler) adjustSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req AdjustStepsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if _, err := session.AddSteps(req.Delta); err != nil {
		writeEstimatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: session.Status()})
}

func (h *Handler) saveSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req StopSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sample, err := session.SaveNow(req.Notes)
	if err != nil {
		writeError(w, http.StatusConflict, "session_closed", err.Error())
		return
	}
	view := toSampleView(sample)
	writeJSON(w, http.StatusAccepted, SessionResponse{Session: session.Status(), Sample: &view})
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: session.Status()})
}

// lookupSession resolves the caller's existing session, writing an error response when there is none.
func (h *Handler) lookupSession(w http.ResponseWriter, r *http.Request) (*tracking.Session, bool) {
	owner, ok := ownerFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	session, ok := h.sessions.Lookup(owner.UserID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no session for user")
		return nil, false
	}
	session.SetToken(owner.Token)
	return session, true
}
