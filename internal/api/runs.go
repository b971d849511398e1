package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/synthdata/internal/scheduler"
	"github.com/JonMunkholm/synthdata/internal/session"
)

type runData struct {
	RunID string          `json:"runId"`
	State scheduler.State `json:"state"`
	Error string          `json:"error,omitempty"`
	At    time.Time       `json:"at,omitempty"`
}

// handleStartRun triggers the generator for the session's saved schema.
func (h *Handler) handleStartRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cur, ok := h.session(w, id)
	if !ok {
		return
	}
	if !cur.Saved {
		h.respondError(w, ErrNotSaved, "Save the schema before starting a run", http.StatusConflict, nil)
		return
	}

	runID, err := h.Scheduler.Trigger(r.Context(), h.opts.Pipeline, map[string]any{"schema": cur.SchemaText})
	if err != nil {
		h.respondError(w, ErrTrigger, "Failed to start run", http.StatusBadGateway, err)
		return
	}
	if _, err := h.Sessions.Update(id, func(s *session.Session) error {
		s.RunID = runID
		s.RunState = scheduler.StateQueued
		s.RunError = ""
		s.ArchiveReady = false
		return nil
	}); err != nil {
		h.respondError(w, ErrUnknownSession, "Session not found", http.StatusNotFound, err)
		return
	}
	h.Logger.Info("run triggered", "session", id, "pipeline", h.opts.Pipeline, "run_id", runID)
	respondJSON(w, http.StatusAccepted, runData{RunID: runID, State: scheduler.StateQueued})
}

// sessionRun checks that runID belongs to the session. Returns false if not
// (error response already sent).
func (h *Handler) sessionRun(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	id := chi.URLParam(r, "id")
	cur, ok := h.session(w, id)
	if !ok {
		return "", "", false
	}
	runID := chi.URLParam(r, "runID")
	if runID == "" || runID != cur.RunID {
		h.respondError(w, ErrUnknownRun, "Run not found", http.StatusNotFound, nil)
		return "", "", false
	}
	return id, runID, true
}

func (h *Handler) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id, runID, ok := h.sessionRun(w, r)
	if !ok {
		return
	}
	state, err := h.Scheduler.Status(r.Context(), h.opts.Pipeline, runID)
	if errors.Is(err, scheduler.ErrUnknownRun) {
		h.respondError(w, ErrUnknownRun, "Run not found", http.StatusNotFound, err)
		return
	}
	if err != nil {
		h.respondError(w, ErrStatus, "Failed to get run status", http.StatusBadGateway, err)
		return
	}
	u := scheduler.Update{RunID: runID, State: state, At: time.Now().UTC()}
	h.recordRun(id, u)
	respondJSON(w, http.StatusOK, runData{RunID: runID, State: state, At: u.At})
}

// recordRun stores an observed run state on the session that owns the run.
func (h *Handler) recordRun(sessionID string, u scheduler.Update) {
	_, err := h.Sessions.Update(sessionID, func(s *session.Session) error {
		if s.RunID != u.RunID {
			return nil
		}
		s.RunState = u.State
		if u.Err != nil {
			s.RunError = u.Err.Error()
		}
		return nil
	})
	if err != nil {
		h.Logger.Debug("run update for missing session", "session", sessionID, "run_id", u.RunID)
	}
}

// handleWatchRun streams run state changes over a websocket until the run
// ends, the watch times out or the client goes away.
func (h *Handler) handleWatchRun(w http.ResponseWriter, r *http.Request) {
	id, runID, ok := h.sessionRun(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.Logger.Error("websocket accept failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.CloseNow()

	// The client never sends; CloseRead cancels ctx when it disconnects.
	ctx := conn.CloseRead(r.Context())

	for u := range scheduler.Watch(ctx, h.Scheduler, h.opts.Pipeline, runID, h.opts.Watch) {
		h.recordRun(id, u)
		msg := runData{RunID: u.RunID, State: u.State, At: u.At}
		if u.Err != nil {
			msg.Error = u.Err.Error()
		}
		wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := wsjson.Write(wctx, conn, msg)
		cancel()
		if err != nil {
			h.Logger.Debug("watch client gone", "run_id", runID, "error", err)
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "run finished")
}
