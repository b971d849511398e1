// Package api serves the schema collector, run control and table export
// over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/synthdata/internal/archive"
	"github.com/JonMunkholm/synthdata/internal/fraud"
	"github.com/JonMunkholm/synthdata/internal/scheduler"
	"github.com/JonMunkholm/synthdata/internal/schema"
	"github.com/JonMunkholm/synthdata/internal/session"
	"github.com/JonMunkholm/synthdata/internal/store"
	"github.com/JonMunkholm/synthdata/internal/synth"
)

// Options configure a Handler.
type Options struct {
	// SchemaPath is where saved schemas are written for the generator.
	SchemaPath string
	// Pipeline is the generator pipeline id runs are triggered for.
	Pipeline     string
	Watch        scheduler.WatchOptions
	CORSOrigin   string
	RateLimit    float64
	MaxBodyBytes int64
}

// Deps are the services the handlers use. Synth and Models may be nil.
type Deps struct {
	Sessions  *session.Store
	Scheduler scheduler.Scheduler
	Tables    store.Reader
	Archive   *archive.Builder
	Synth     *synth.Client
	Models    *fraud.ModelStore
	WebFS     fs.FS
	Logger    *slog.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Deps
	opts    Options
	csrf    *CSRFMiddleware
	limiter *ipRateLimiter
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps, opts Options) (*Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 100
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	csrf, err := NewCSRFMiddleware(deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSRF middleware: %w", err)
	}

	limiter := newIPRateLimiter(opts.RateLimit, deps.Logger)
	limiter.start()

	return &Handler{
		Deps:    deps,
		opts:    opts,
		csrf:    csrf,
		limiter: limiter,
	}, nil
}

// Stop stops background goroutines. Should be called on graceful shutdown.
func (h *Handler) Stop() {
	h.csrf.Stop()
	h.limiter.Stop()
}

type csrfTokenData struct {
	Token string `json:"token"`
}

func (h *Handler) handleGetCSRFToken(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, csrfTokenData{Token: h.csrf.Token()})
}

type healthData struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthData{Status: "ok", Time: time.Now().UTC()})
}

// API Response types for consistent format
type apiResponse[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for API responses
const (
	ErrInvalidRequest  = "INVALID_REQUEST"
	ErrMissingField    = "MISSING_FIELD"
	ErrInvalidTable    = "INVALID_TABLE_NAME"
	ErrInvalidSchema   = "INVALID_SCHEMA"
	ErrUnknownSession  = "UNKNOWN_SESSION"
	ErrNotSaved        = "SCHEMA_NOT_SAVED"
	ErrSaveSchema      = "SAVE_SCHEMA_ERROR"
	ErrSynthDisabled   = "SYNTHESIS_DISABLED"
	ErrSynthFailed     = "SYNTHESIS_ERROR"
	ErrTrigger         = "TRIGGER_ERROR"
	ErrUnknownRun      = "UNKNOWN_RUN"
	ErrStatus          = "STATUS_ERROR"
	ErrTableNotFound   = "TABLE_NOT_FOUND"
	ErrStorage         = "STORAGE_ERROR"
	ErrArchiveEmpty    = "ARCHIVE_EMPTY"
	ErrArchiveNotReady = "ARCHIVE_NOT_READY"
	ErrNoModel         = "NO_MODEL"
	ErrModel           = "MODEL_ERROR"
	ErrCSRF            = "CSRF_ERROR"
	ErrRateLimit       = "RATE_LIMIT"
)

// respondJSON sends a successful JSON response with type-safe data
func respondJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	resp := apiResponse[T]{Success: true, Data: data}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// errorResponse is the response type for errors (no data field)
type errorResponse struct {
	Success bool      `json:"success"`
	Error   *apiError `json:"error,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	resp := errorResponse{Error: &apiError{Code: code, Message: message}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondError sends an error JSON response (logs details server-side, sends safe message to client)
func (h *Handler) respondError(w http.ResponseWriter, code string, clientMessage string, status int, internalErr error) {
	if internalErr != nil {
		h.Logger.Warn(clientMessage, "code", code, "status", status, "error", internalErr)
	} else {
		h.Logger.Debug(clientMessage, "code", code, "status", status)
	}
	writeError(w, status, code, clientMessage)
}

// decodeJSONBody decodes JSON request body into the provided value.
// Returns false if decoding fails (error response already sent).
func (h *Handler) decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, ErrInvalidRequest, "Request body too large", http.StatusRequestEntityTooLarge, err)
			return false
		}
		h.respondError(w, ErrInvalidRequest, "Invalid request body", http.StatusBadRequest, err)
		return false
	}
	return true
}

// validateIdentifier checks if a name is a valid SQL identifier.
// Returns true if valid, false if validation failed (error response already sent).
func (h *Handler) validateIdentifier(w http.ResponseWriter, name, fieldName, errCode string) bool {
	if name == "" {
		h.respondError(w, ErrMissingField, fieldName+" is required", http.StatusBadRequest, nil)
		return false
	}
	if !schema.ValidIdentifier(name) {
		h.respondError(w, errCode, "Invalid "+fieldName+" format", http.StatusBadRequest, nil)
		return false
	}
	return true
}

// session loads the session named by the {id} path parameter. Returns false
// if it does not exist (error response already sent).
func (h *Handler) session(w http.ResponseWriter, id string) (session.Session, bool) {
	s, err := h.Sessions.Get(id)
	if err != nil {
		h.respondError(w, ErrUnknownSession, "Session not found", http.StatusNotFound, nil)
		return session.Session{}, false
	}
	return s, true
}
