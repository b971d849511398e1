package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/synthdata/internal/schema"
	"github.com/JonMunkholm/synthdata/internal/session"
	"github.com/JonMunkholm/synthdata/internal/synth"
)

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusCreated, h.Sessions.Create())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s)
}

type putTablesRequest struct {
	Tables []schema.TableSpec `json:"tables"`
}

type schemaData struct {
	Tables []schema.TableSpec `json:"tables"`
	Schema string             `json:"schema"`
	Saved  bool               `json:"saved"`
	Path   string             `json:"path,omitempty"`
}

// handlePutTables replaces the session's tables. The tables are validated,
// put in generation order and rendered as a schema file.
func (h *Handler) handlePutTables(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.session(w, id); !ok {
		return
	}
	var req putTablesRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	ordered, err := orderTables(req.Tables)
	if err != nil {
		h.respondError(w, ErrInvalidSchema, err.Error(), http.StatusBadRequest, nil)
		return
	}
	text := string(schema.MarshalHCL(&schema.Schema{Tables: ordered}))

	s, err := h.Sessions.Update(id, func(s *session.Session) error {
		s.Tables = ordered
		s.SchemaText = text
		s.Saved = false
		return nil
	})
	if err != nil {
		h.respondError(w, ErrUnknownSession, "Session not found", http.StatusNotFound, err)
		return
	}
	respondJSON(w, http.StatusOK, schemaData{Tables: s.Tables, Schema: s.SchemaText, Saved: s.Saved})
}

func orderTables(tables []schema.TableSpec) ([]schema.TableSpec, error) {
	tables = schema.Normalize(tables)
	if err := schema.Validate(tables); err != nil {
		return nil, err
	}
	return schema.Order(tables)
}

func (h *Handler) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, schemaData{Tables: s.Tables, Schema: s.SchemaText, Saved: s.Saved})
}

type saveSchemaRequest struct {
	// Schema is edited schema text; when empty the session's text is saved.
	Schema string `json:"schema"`
}

// handleSaveSchema writes the schema file the generator pipeline reads.
func (h *Handler) handleSaveSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cur, ok := h.session(w, id)
	if !ok {
		return
	}
	var req saveSchemaRequest
	if r.ContentLength != 0 && !h.decodeJSONBody(w, r, &req) {
		return
	}
	text := req.Schema
	if text == "" {
		text = cur.SchemaText
	}
	if text == "" {
		h.respondError(w, ErrMissingField, "No schema to save", http.StatusBadRequest, nil)
		return
	}

	parsed, err := schema.ParseHCL([]byte(text), "schema.hcl", nil)
	if err != nil {
		h.respondError(w, ErrInvalidSchema, err.Error(), http.StatusBadRequest, nil)
		return
	}
	ordered, err := orderTables(parsed.Tables)
	if err != nil {
		h.respondError(w, ErrInvalidSchema, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := writeFileAtomic(h.opts.SchemaPath, []byte(text)); err != nil {
		h.respondError(w, ErrSaveSchema, "Failed to save schema", http.StatusInternalServerError, err)
		return
	}

	s, err := h.Sessions.Update(id, func(s *session.Session) error {
		s.Tables = ordered
		s.SchemaText = text
		s.Saved = true
		return nil
	})
	if err != nil {
		h.respondError(w, ErrUnknownSession, "Session not found", http.StatusNotFound, err)
		return
	}
	h.Logger.Info("schema saved", "session", id, "path", h.opts.SchemaPath, "tables", len(ordered))
	respondJSON(w, http.StatusOK, schemaData{Tables: s.Tables, Schema: s.SchemaText, Saved: true, Path: h.opts.SchemaPath})
}

func writeFileAtomic(path string, data []byte) error {
	if path == "" {
		return errors.New("no schema path configured")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".schema-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// handleSynthesize asks the hosted model to draft the schema file from the
// session's tables. The draft replaces the session's schema text unsaved.
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cur, ok := h.session(w, id)
	if !ok {
		return
	}
	if h.Synth == nil || !h.Synth.Enabled() {
		h.respondError(w, ErrSynthDisabled, "Schema synthesis is not configured", http.StatusServiceUnavailable, nil)
		return
	}
	if len(cur.Tables) == 0 {
		h.respondError(w, ErrMissingField, "Add tables before synthesizing", http.StatusBadRequest, nil)
		return
	}

	drafted, text, err := h.Synth.Draft(r.Context(), cur.Tables)
	switch {
	case errors.Is(err, synth.ErrDisabled):
		h.respondError(w, ErrSynthDisabled, "Schema synthesis is not configured", http.StatusServiceUnavailable, err)
		return
	case err != nil && text != "":
		h.respondError(w, ErrSynthFailed, fmt.Sprintf("Draft was rejected: %v", err), http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		h.respondError(w, ErrSynthFailed, "Schema synthesis failed", http.StatusBadGateway, err)
		return
	}

	ordered, err := schema.Order(drafted.Tables)
	if err != nil {
		h.respondError(w, ErrSynthFailed, fmt.Sprintf("Draft was rejected: %v", err), http.StatusUnprocessableEntity, err)
		return
	}
	s, err := h.Sessions.Update(id, func(s *session.Session) error {
		s.Tables = ordered
		s.SchemaText = text
		s.Saved = false
		return nil
	})
	if err != nil {
		h.respondError(w, ErrUnknownSession, "Session not found", http.StatusNotFound, err)
		return
	}
	respondJSON(w, http.StatusOK, schemaData{Tables: s.Tables, Schema: s.SchemaText})
}
