package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/firstprinciples/internal/identity"
	"github.com/ashureev/firstprinciples/internal/sessions"
	"github.com/ashureev/firstprinciples/internal/wizard"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// TransitionObserver is told about each step the wizard enters.
type TransitionObserver interface {
	ObserveTransition(step string)
}

// WizardHandler serves the wizard session of the calling browser tab.
type WizardHandler struct {
	registry    *sessions.Registry
	model       string
	transitions TransitionObserver
}

// NewWizardHandler creates a wizard handler. transitions may be nil.
func NewWizardHandler(registry *sessions.Registry, model string, transitions TransitionObserver) *WizardHandler {
	return &WizardHandler{registry: registry, model: model, transitions: transitions}
}

// RegisterRoutes registers wizard routes. submit wraps the routes that call
// the completion gateway.
func (h *WizardHandler) RegisterRoutes(r chi.Router, submit ...func(http.Handler) http.Handler) {
	r.Get("/api/config", h.GetConfig)
	r.Get("/api/session", h.GetSession)
	r.With(submit...).Post("/api/session/problem", h.SubmitProblem)
	r.With(submit...).Post("/api/session/assumption", h.SubmitAssumption)
	r.With(submit...).Post("/api/session/facts", h.SubmitFactsElements)
	r.Post("/api/session/reset", h.Reset)
	r.Post("/api/session/exit", h.ShowExit)
	r.Get("/api/session/report", h.DownloadReport)
}

type problemRequest struct {
	Problem string `json:"problem"`
}

type assumptionRequest struct {
	Assumption string `json:"assumption"`
}

type factsRequest struct {
	Facts    string `json:"facts"`
	Elements string `json:"elements"`
}

type submitResponse struct {
	Advanced bool        `json:"advanced"`
	View     wizard.View `json:"view"`
}

// GetConfig returns static client configuration.
func (h *WizardHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"model":     h.model,
		"exit_hint": wizard.ExitHint,
		"steps": []wizard.Step{
			wizard.StepAwaitingProblem,
			wizard.StepAwaitingAssumption,
			wizard.StepAwaitingFactsElements,
			wizard.StepComplete,
		},
	})
}

// GetSession renders the caller's session.
func (h *WizardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	JSON(w, http.StatusOK, s.Observe(detached(r)))
}

// SubmitProblem handles step 1.
func (h *WizardHandler) SubmitProblem(w http.ResponseWriter, r *http.Request) {
	var req problemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.submit(w, r, func(ctx context.Context, s *wizard.Session) (wizard.Outcome, error) {
		return s.SubmitProblem(ctx, req.Problem)
	})
}

// SubmitAssumption handles step 2.
func (h *WizardHandler) SubmitAssumption(w http.ResponseWriter, r *http.Request) {
	var req assumptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.submit(w, r, func(ctx context.Context, s *wizard.Session) (wizard.Outcome, error) {
		return s.SubmitAssumption(ctx, req.Assumption)
	})
}

// SubmitFactsElements handles step 3.
func (h *WizardHandler) SubmitFactsElements(w http.ResponseWriter, r *http.Request) {
	var req factsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.submit(w, r, func(ctx context.Context, s *wizard.Session) (wizard.Outcome, error) {
		return s.SubmitFactsElements(ctx, req.Facts, req.Elements)
	})
}

// Reset restores the caller's session to step 1.
func (h *WizardHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	if err := s.Reset(); err != nil {
		writeSessionError(w, err)
		return
	}
	h.transition(wizard.StepAwaitingProblem)
	JSON(w, http.StatusOK, submitResponse{View: s.Observe(detached(r))})
}

// ShowExit reveals the exit instructions.
func (h *WizardHandler) ShowExit(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	if err := s.ShowExit(); err != nil {
		writeSessionError(w, err)
		return
	}
	JSON(w, http.StatusOK, submitResponse{View: s.Observe(detached(r))})
}

// DownloadReport sends the report of the caller's completed session.
func (h *WizardHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	// Observing first emits the report if the completion has not been seen yet.
	s.Observe(detached(r))
	receipt, ok := s.Receipt()
	if !ok {
		Error(w, http.StatusNotFound, "no report for this session")
		return
	}
	Attachment(w, receipt.Filename, receipt.Content)
}

func (h *WizardHandler) submit(w http.ResponseWriter, r *http.Request, fn func(context.Context, *wizard.Session) (wizard.Outcome, error)) {
	s := h.session(r)
	ctx := detached(r)

	out, err := fn(ctx, s)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if out.Advanced {
		h.transition(out.Step)
		slog.Info("Wizard step advanced",
			"user_id", identity.UserIDFromContext(ctx),
			"session_id", identity.SessionIDFromContext(ctx),
			"request_id", chiMiddleware.GetReqID(ctx),
			"step", out.Step.String())
	}

	JSON(w, http.StatusOK, submitResponse{Advanced: out.Advanced, View: s.Observe(ctx)})
}

func (h *WizardHandler) session(r *http.Request) *wizard.Session {
	return h.registry.Acquire(sessions.Handle{
		UserID:    identity.UserIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
	})
}

func (h *WizardHandler) transition(step wizard.Step) {
	if h.transitions != nil {
		h.transitions.ObserveTransition(step.String())
	}
}

// detached keeps the request's values but drops its cancellation, so a
// started completion call runs to the end after a client disconnect.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wizard.ErrBusy):
		Error(w, http.StatusConflict, "session_busy")
	case errors.Is(err, wizard.ErrStepUnavailable):
		Error(w, http.StatusConflict, "step_unavailable")
	default:
		slog.Error("Wizard action failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
