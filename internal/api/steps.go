package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"example.com/wellnest/internal/auth"
	"example.com/wellnest/internal/domain"
	"example.com/wellnest/internal/estimator"
)

// SaveStepsRequest is the payload for POST /v1/steps.
type SaveStepsRequest struct {
	Count    int      `json:"count"`
	Notes    string   `json:"notes"`
	WeightKg *float64 `json:"weight_kg,omitempty"`
}

// Validate ensures request correctness.
func (r SaveStepsRequest) Validate() error {
	if r.Count < 0 {
		return errors.New("count must be >= 0")
	}
	if r.WeightKg != nil {
		return estimator.ValidateWeight(*r.WeightKg)
	}
	return nil
}

func ownerFromRequest(r *http.Request) (domain.Owner, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		return domain.Owner{}, false
	}
	return domain.Owner{UserID: claims.Subject, Token: claims.Token}, true
}

func (h *Handler) saveSteps(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req SaveStepsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	entry := domain.ManualEntry{Count: req.Count, Notes: req.Notes}
	if req.WeightKg != nil {
		entry.WeightKg = *req.WeightKg
	}

	sample, err := h.steps.SaveManual(r.Context(), owner, entry)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, toSampleView(sample))
	case errors.Is(err, estimator.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrPersistenceFailure):
		h.logger.Warn("manual save not persisted", zap.String("user_id", owner.UserID), zap.Error(err))
		view := toSampleView(sample)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Type:   "persistence_failure",
			Detail: "steps were counted but could not be saved, try again",
			Sample: &view,
		})
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}
