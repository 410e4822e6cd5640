package handlers

import (
	"errors"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/agent/persistence"
	"github.com/BaSui01/agentrun/types"
)

// maxListLimit caps the limit query parameter of HandleList.
const maxListLimit = 500

// ApprovalRecorder observes decisions accepted by HandleApprovals.
type ApprovalRecorder interface {
	RecordApproval(decision string)
}

// RunHandler exposes stored run states over HTTP.
type RunHandler struct {
	store    persistence.Store
	recorder ApprovalRecorder
	logger   *zap.Logger
}

// NewRunHandler creates a handler over store. recorder may be nil.
func NewRunHandler(store persistence.Store, recorder ApprovalRecorder, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{store: store, recorder: recorder, logger: logger}
}

// Register mounts the run routes on mux.
func (h *RunHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/runs", h.HandleList)
	mux.HandleFunc("GET /v1/runs/{id}", h.HandleGet)
	mux.HandleFunc("GET /v1/runs/{id}/state", h.HandleState)
	mux.HandleFunc("POST /v1/runs/{id}/approvals", h.HandleApprovals)
	mux.HandleFunc("DELETE /v1/runs/{id}", h.HandleDelete)
}

// RunSummary is the listing entry of a stored run.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	Status       agent.RunStatus `json:"status"`
	CurrentAgent string          `json:"current_agent"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RunDetail is a stored run with its state digest.
type RunDetail struct {
	RunSummary
	State *agent.StateSummary `json:"state"`
}

// ApprovalRequest maps pending call ids to decisions.
type ApprovalRequest struct {
	Decisions map[string]agent.ApprovalDecision `json:"decisions"`
}

// HandleList lists stored runs, newest first.
func (h *RunHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := persistence.ListFilter{Status: agent.RunStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 || limit > maxListLimit {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
				"limit must be an integer between 0 and "+strconv.Itoa(maxListLimit), h.logger)
			return
		}
		filter.Limit = limit
	}

	recs, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	out := make([]RunSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summaryOf(rec))
	}
	WriteSuccess(w, out)
}

// HandleGet returns the digest of one run.
func (h *RunHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	summary, err := agent.InspectState(rec.State)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	WriteSuccess(w, RunDetail{RunSummary: summaryOf(rec), State: summary})
}

// HandleState returns the serialized state as stored.
func (h *RunHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.State)
}

// HandleApprovals records decisions for pending calls of a suspended run.
// The run itself resumes wherever its agent graph lives.
// Decisions are written back only if the run was not modified since it was
// loaded; otherwise the request fails with 409 and nothing is applied.
func (h *RunHandler) HandleApprovals(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req ApprovalRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if len(req.Decisions) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "decisions must not be empty", h.logger)
		return
	}

	runID := r.PathValue("id")
	rec, err := h.store.Load(r.Context(), runID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if rec.Status != agent.StatusSuspended {
		WriteErrorMessage(w, http.StatusConflict, types.ErrConflict,
			"run "+runID+" is "+string(rec.Status)+", not suspended", h.logger)
		return
	}

	patched, err := agent.ApplyDecisions(rec.State, req.Decisions)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	saved, err := h.store.Update(r.Context(), patched, rec.Version)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	subject, _ := types.Subject(r.Context())
	for _, callID := range slices.Sorted(maps.Keys(req.Decisions)) {
		d := req.Decisions[callID]
		if h.recorder != nil {
			h.recorder.RecordApproval(string(d))
		}
		h.logger.Info("approval recorded",
			zap.String("run_id", runID),
			zap.String("call_id", callID),
			zap.String("decision", string(d)),
			zap.String("subject", subject),
		)
	}

	summary, err := agent.InspectState(saved.State)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	WriteSuccess(w, RunDetail{RunSummary: summaryOf(saved), State: summary})
}

// HandleDelete removes a stored run.
func (h *RunHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RunHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		WriteError(w, types.NewError(types.ErrNotFound, err.Error()).WithCause(err), h.logger)
	case errors.Is(err, persistence.ErrInvalidInput), errors.Is(err, agent.ErrStateVersion):
		WriteError(w, types.NewError(types.ErrInvalidRequest, err.Error()).WithCause(err), h.logger)
	case errors.Is(err, persistence.ErrConflict):
		WriteError(w, types.NewError(types.ErrConflict, err.Error()).
			WithCause(err).
			WithHTTPStatus(http.StatusConflict), h.logger)
	case errors.Is(err, persistence.ErrStoreClosed):
		WriteError(w, types.NewError(types.ErrInternalError, err.Error()).
			WithCause(err).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true), h.logger)
	default:
		WriteAgentError(w, err, h.logger)
	}
}

func summaryOf(rec *persistence.Record) RunSummary {
	return RunSummary{
		RunID:        rec.RunID,
		Status:       rec.Status,
		CurrentAgent: rec.CurrentAgent,
		Version:      rec.Version,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}
