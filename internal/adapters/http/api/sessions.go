package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/streetwise/internal/adapters/http/auth"
	service "github.com/okian/streetwise/internal/app"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/pkg/logger"
)

// SessionDependencies defines the session operations used by the handlers.
type SessionDependencies interface {
	NewSession(ctx context.Context) (*model.Session, error)
	Session(ctx context.Context, id string) (*model.Session, error)
	Act(ctx context.Context, id string, a model.Action) (service.ActionResult, error)
}

// SessionsHandler handles session lifecycle and action requests.
type SessionsHandler struct {
	deps   SessionDependencies
	tokens *auth.Issuer
	logger logger.Logger
}

// NewSessionsHandler creates a new sessions handler. tokens may be nil.
func NewSessionsHandler(deps SessionDependencies, tokens *auth.Issuer, log logger.Logger) *SessionsHandler {
	return &SessionsHandler{deps: deps, tokens: tokens, logger: log}
}

type sessionResponse struct {
	Session *model.Session `json:"session"`
	Token   string         `json:"token,omitempty"`
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	sess, err := h.deps.NewSession(r.Context())
	if err != nil {
		writeFailure(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	resp := sessionResponse{Session: sess}
	if h.tokens != nil {
		token, err := h.tokens.Issue(sess.ID)
		if err != nil {
			writeFailure(r.Context(), h.logger, w, Wrap(op, err))
			return
		}
		resp.Token = token
	}
	writeJSON(w, http.StatusCreated, resp)
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	sess, err := h.deps.Session(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeFailure(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
}

// HandleAction handles POST /sessions/{id}/actions requests. Rejected
// actions answer 422 with the reason the player should see.
func (h *SessionsHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	const op = "api.action"
	id := mux.Vars(r)["id"]

	if h.tokens != nil {
		if err := h.tokens.Verify(auth.FromRequest(r), id); err != nil {
			h.logger.Debug(r.Context(), "session token refused", logger.String("session", id), logger.Error(err))
			writeFailure(r.Context(), h.logger, w, WrapKind(op, ErrUnauthorized, err))
			return
		}
	}

	var action model.Action
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&action); err != nil {
		writeFailure(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Act(r.Context(), id, action)
	if err != nil {
		if errors.Is(err, model.ErrValidationRejected) {
			tagFailure(w, "action_rejected")
			writeJSON(w, http.StatusUnprocessableEntity, actionResponse{Reason: model.Reason(err)})
			return
		}
		writeFailure(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newActionResponse(res))
}
