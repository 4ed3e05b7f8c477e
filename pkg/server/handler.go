// Package server exposes the OpenAI-compatible HTTP surface: chat
// completions (plain and streaming), the model list, health, and session
// reset. It owns request validation and the mapping from internal error
// kinds to HTTP status codes; all browser work is delegated through the
// dispatch serializer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/entrhq/gemweb/pkg/api"
	"github.com/entrhq/gemweb/pkg/bridge"
	"github.com/entrhq/gemweb/pkg/browser"
	"github.com/entrhq/gemweb/pkg/dispatch"
	"github.com/entrhq/gemweb/pkg/logging"
	"github.com/entrhq/gemweb/pkg/observability"
	"github.com/entrhq/gemweb/pkg/session"
)

// Completer is the serializer surface the handler needs.
type Completer interface {
	Enqueue(ctx context.Context, job dispatch.Job) (*browser.RawReply, error)
}

// StateReporter exposes the driver lifecycle state for readiness checks.
type StateReporter interface {
	State() browser.State
}

// Handler implements the API endpoints.
type Handler struct {
	completer      Completer
	states         StateReporter
	store          *session.Store
	encoder        *bridge.Encoder
	defaultTimeout time.Duration
	logger         *slog.Logger
	transcript     *logging.Transcript
	resets         *resetTracker
}

// NewHandler creates the endpoint handler. transcript may be nil.
func NewHandler(
	completer Completer,
	states StateReporter,
	store *session.Store,
	encoder *bridge.Encoder,
	defaultTimeout time.Duration,
	logger *slog.Logger,
	transcript *logging.Transcript,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		completer:      completer,
		states:         states,
		store:          store,
		encoder:        encoder,
		defaultTimeout: defaultTimeout,
		logger:         logger,
		transcript:     transcript,
		resets:         newResetTracker(),
	}
}

// handleChatCompletions serves POST /v1/chat/completions.
func (h *Handler) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetReqID(r.Context())

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, api.NewInvalidRequestError("", "malformed JSON body: "+err.Error()), req.ModelOrDefault())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		h.writeError(w, apiErr, req.ModelOrDefault())
		return
	}
	model := req.ModelOrDefault()

	prompt, err := h.encoder.Encode(req.Messages, req.Tools)
	if err != nil {
		var tooLarge *bridge.PromptTooLargeError
		if errors.As(err, &tooLarge) {
			h.writeError(w, api.NewInvalidRequestError("messages", tooLarge.Error()), model)
			return
		}
		h.writeError(w, api.NewServerError(err.Error()), model)
		return
	}

	newChat := h.resets.isNewConversation(&req)
	h.transcript.PromptSubmitted(requestID, prompt)

	reply, err := h.completer.Enqueue(r.Context(), dispatch.Job{
		Prompt:  prompt,
		Timeout: req.ReplyTimeout(h.defaultTimeout),
		NewChat: newChat,
	})
	if err != nil {
		h.transcript.ExchangeFailed(requestID, err)
		h.writeError(w, h.classify(err), model)
		return
	}
	h.transcript.ReplyReceived(requestID, reply.Text)

	decoded := bridge.Decode(reply, len(req.Tools) > 0)
	h.recordDecode(requestID, decoded)

	resp := h.buildResponse(model, prompt, decoded)
	observability.RequestsTotal.WithLabelValues("200", model).Inc()
	observability.RequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())

	if req.Stream {
		if err := writeStream(w, resp); err != nil {
			h.logger.Warn("streaming write failed", "request_id", requestID, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// classify maps internal error kinds to API errors per the error taxonomy.
func (h *Handler) classify(err error) *api.APIError {
	var (
		timeoutErr *browser.TimeoutError
		uiErr      *browser.UIChangedError
		launchErr  *browser.LaunchError
	)
	switch {
	case errors.Is(err, dispatch.ErrSessionExpired), errors.Is(err, browser.ErrLoggedOut):
		return api.NewUnauthorizedError("browser session expired; re-login required")
	case errors.As(err, &timeoutErr):
		return api.NewUpstreamTimeoutError(timeoutErr.Error())
	case errors.As(err, &uiErr):
		// Selector drift means the automation target changed shape and
		// needs a config or code update; make it loud.
		h.logger.Error("web UI shape changed", "selector", uiErr.Selector)
		return api.NewUpstreamChangedError(uiErr.Error())
	case errors.As(err, &launchErr):
		return api.NewUnavailableError(launchErr.Error())
	case errors.Is(err, dispatch.ErrClosed):
		return api.NewUnavailableError("service is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return api.NewUpstreamTimeoutError("request cancelled or timed out while queued")
	default:
		return api.AsAPIError(err)
	}
}

func (h *Handler) recordDecode(requestID string, decoded *bridge.Decoded) {
	switch {
	case decoded.Warning != nil:
		observability.ToolParsesTotal.WithLabelValues("degraded").Inc()
		h.logger.Warn("tool-call marker unparseable, returning plain text",
			"request_id", requestID,
			"reason", decoded.Warning.Reason,
			"snippet", decoded.Warning.Snippet)
	case len(decoded.ToolCalls) > 0:
		observability.ToolParsesTotal.WithLabelValues("parsed").Inc()
	default:
		observability.ToolParsesTotal.WithLabelValues("none").Inc()
	}
}

// buildResponse assembles the completion body from a decoded reply.
func (h *Handler) buildResponse(model, prompt string, decoded *bridge.Decoded) *api.ChatResponse {
	msg := api.ResponseMessage{Role: "assistant"}
	finish := "stop"
	completion := decoded.Content

	if len(decoded.ToolCalls) > 0 {
		msg.ToolCalls = decoded.ToolCalls
		finish = "tool_calls"
		for _, tc := range decoded.ToolCalls {
			completion += tc.Function.Arguments
		}
	} else {
		content := decoded.Content
		msg.Content = &content
	}

	return &api.ChatResponse{
		ID:      api.NewCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []api.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: finish,
		}},
		Usage: api.EstimateUsage(prompt, completion),
	}
}

// handleModels serves GET /v1/models. The entries are aliases: every model
// name maps to the same underlying web UI.
func (h *Handler) handleModels(w http.ResponseWriter, _ *http.Request) {
	now := time.Now().Unix()
	writeJSON(w, http.StatusOK, api.ModelList{
		Object: "list",
		Data: []api.Model{
			{ID: api.DefaultModel, Object: "model", Created: now, OwnedBy: "gemweb"},
			{ID: "gemini-pro", Object: "model", Created: now, OwnedBy: "gemweb"},
		},
	})
}

// handleHealth serves GET /health with readiness and driver state.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := h.states.State()
	status := "ready"
	code := http.StatusOK
	if state != browser.StateReady && state != browser.StateBusy {
		status = "initializing"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{
		"status":  status,
		"browser": state.String(),
	})
}

// handleReset serves POST /reset, invalidating the stored login so the next
// start runs the interactive flow.
func (h *Handler) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := h.store.Invalidate(); err != nil {
		h.writeError(w, api.NewServerError(err.Error()), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "login cleared; restart to log in again",
	})
}

func (h *Handler) writeError(w http.ResponseWriter, apiErr *api.APIError, model string) {
	status := apiErr.HTTPStatus()
	if model != "" {
		observability.RequestsTotal.WithLabelValues(strconv.Itoa(status), model).Inc()
	}
	writeJSON(w, status, api.ErrorResponse{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
