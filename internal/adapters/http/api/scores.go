package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/streetwise/internal/app"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/pkg/logger"
)

// ScoreDependencies defines the submission operation.
type ScoreDependencies interface {
	SubmitScore(ctx context.Context, sub model.Submission) (service.SubmissionResult, error)
}

// ScoresHandler handles score submissions.
type ScoresHandler struct {
	deps    ScoreDependencies
	limiter *ipLimiter
	logger  logger.Logger
}

// NewScoresHandler creates a new scores handler. A nil limiter disables
// per-IP throttling.
func NewScoresHandler(deps ScoreDependencies, limiter *ipLimiter, log logger.Logger) *ScoresHandler {
	return &ScoresHandler{deps: deps, limiter: limiter, logger: log}
}

type submitResponse struct {
	Accepted bool         `json:"accepted"`
	Code     string       `json:"code,omitempty"`
	Entry    *model.Entry `json:"entry,omitempty"`
	Rank     int          `json:"rank,omitempty"`
}

// HandleSubmit handles POST /scores requests. Anti-cheat rejections are
// reported without a reason.
func (h *ScoresHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_score"
	if h.limiter != nil && !h.limiter.Allow(r) {
		writeFailure(r.Context(), h.logger, w, NewKind(op, ErrTooManyRequests))
		return
	}

	var sub model.Submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&sub); err != nil {
		writeFailure(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.SubmitScore(r.Context(), sub)
	if err != nil {
		if errors.Is(err, model.ErrIntegrityRejected) {
			tagFailure(w, "score_rejected")
			writeJSON(w, http.StatusUnprocessableEntity, submitResponse{Accepted: false, Code: "rejected"})
			return
		}
		writeFailure(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Accepted: true, Entry: &res.Entry, Rank: res.Rank})
}
