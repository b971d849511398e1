package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/synthdata/internal/archive"
	"github.com/JonMunkholm/synthdata/internal/fraud"
	"github.com/JonMunkholm/synthdata/internal/session"
	"github.com/JonMunkholm/synthdata/internal/store"
)

const (
	defaultPreviewLimit = 100
	maxPreviewLimit     = 1000
)

type tablesData struct {
	Tables []string `json:"tables"`
}

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	names, err := h.Tables.List(r.Context())
	if err != nil {
		h.respondError(w, ErrStorage, "Failed to list tables", http.StatusInternalServerError, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, tablesData{Tables: names})
}

func (h *Handler) handlePreviewTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.validateIdentifier(w, name, "table name", ErrInvalidTable) {
		return
	}
	limit := defaultPreviewLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, ErrInvalidRequest, "limit must be a positive integer", http.StatusBadRequest, nil)
			return
		}
		limit = min(n, maxPreviewLimit)
	}

	t, err := store.Preview(r.Context(), h.Tables, name, limit)
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, ErrTableNotFound, "Table not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		h.respondError(w, ErrStorage, "Failed to read table", http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

type buildArchiveRequest struct {
	SessionID string `json:"sessionId"`
}

type archiveData struct {
	Tables []string `json:"tables"`
	Size   int64    `json:"size"`
	File   string   `json:"file"`
}

// handleBuildArchive packages every persisted table into the zip download.
func (h *Handler) handleBuildArchive(w http.ResponseWriter, r *http.Request) {
	var req buildArchiveRequest
	if r.ContentLength != 0 && !h.decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.Archive.Build(r.Context())
	if errors.Is(err, archive.ErrEmpty) {
		h.respondError(w, ErrArchiveEmpty, "No tables have been generated yet", http.StatusConflict, nil)
		return
	}
	if err != nil {
		h.respondError(w, ErrStorage, "Failed to build archive", http.StatusInternalServerError, err)
		return
	}
	if req.SessionID != "" {
		if _, err := h.Sessions.Update(req.SessionID, func(s *session.Session) error {
			s.ArchiveReady = true
			return nil
		}); err != nil {
			h.Logger.Debug("archive built for missing session", "session", req.SessionID)
		}
	}
	respondJSON(w, http.StatusOK, archiveData{Tables: res.Tables, Size: res.Size, File: filepath.Base(res.Path)})
}

func (h *Handler) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	if !h.Archive.Ready() {
		h.respondError(w, ErrArchiveNotReady, "Archive has not been built", http.StatusNotFound, nil)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.FileName+`"`)
	http.ServeFile(w, r, h.Archive.Path())
}

type predictRequest struct {
	Type    string   `json:"type"`
	Amount  *float64 `json:"amount"`
	Balance *float64 `json:"balance"`
}

type predictData struct {
	fraud.Prediction
	Model       string            `json:"model"`
	Transaction fraud.Transaction `json:"transaction"`
}

// Defaults for fields left out of a prediction request.
const (
	DefaultPredictType    = "CASH_OUT"
	DefaultPredictAmount  = 100000.0
	DefaultPredictBalance = 100000.0
)

// handlePredict scores one transaction with the latest trained model.
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = DefaultPredictType
	}
	if !fraud.ValidType(req.Type) {
		h.respondError(w, ErrInvalidRequest, "Unknown transaction type", http.StatusBadRequest, nil)
		return
	}
	amount, balance := DefaultPredictAmount, DefaultPredictBalance
	if req.Amount != nil {
		amount = *req.Amount
	}
	if req.Balance != nil {
		balance = *req.Balance
	}
	if amount < 0 || balance < 0 {
		h.respondError(w, ErrInvalidRequest, "amount and balance must not be negative", http.StatusBadRequest, nil)
		return
	}

	if h.Models == nil {
		h.respondError(w, ErrNoModel, "No trained model available", http.StatusServiceUnavailable, nil)
		return
	}
	art, path, err := h.Models.LoadLatest()
	if errors.Is(err, fraud.ErrNoModel) {
		h.respondError(w, ErrNoModel, "No trained model available", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		h.respondError(w, ErrModel, "Failed to load model", http.StatusInternalServerError, err)
		return
	}
	scorer, err := fraud.NewScorer(art, h.Logger)
	if err != nil {
		h.respondError(w, ErrModel, "Failed to load model", http.StatusInternalServerError, err)
		return
	}

	tx := fraud.FromInput(req.Type, amount, balance)
	respondJSON(w, http.StatusOK, predictData{
		Prediction:  scorer.Score(tx),
		Model:       filepath.Base(path),
		Transaction: tx,
	})
}
