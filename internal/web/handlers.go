package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/labliq/internal/core"
	"github.com/JonMunkholm/labliq/internal/results"
	"github.com/JonMunkholm/labliq/internal/store"
	"github.com/JonMunkholm/labliq/internal/upstream"
	"github.com/JonMunkholm/labliq/internal/web/templates"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// decodeJSON reads a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge,
				fmt.Errorf("%w: body exceeds %d bytes", core.ErrInvalidRequest, tooLarge.Limit)
		}
		return http.StatusBadRequest, fmt.Errorf("%w: %w", core.ErrInvalidJSON, err)
	}
	return 0, nil
}

// metadata returns a copy of a without rows. Cached analyses are shared, so
// the original is never modified.
func metadata(a *store.Analysis) store.Analysis {
	m := *a
	m.Rows = nil
	return m
}

// handleRunAnalysis runs a new analysis and returns its metadata and summary.
func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req core.AnalysisRequest
	if status, err := s.decodeJSON(w, r, &req); err != nil {
		respondErrorStatus(w, r, err, status)
		return
	}

	a, err := s.service.RunAnalysis(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/analyses/"+a.ID)
	writeJSON(w, r, http.StatusCreated, metadata(a))
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListHistory(r.Context(), parseHistoryFilter(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, metadata(a))
}

func (s *Server) handleUpdateAnalysis(w http.ResponseWriter, r *http.Request) {
	var u store.MetaUpdate
	if status, err := s.decodeJSON(w, r, &u); err != nil {
		respondErrorStatus(w, r, err, status)
		return
	}

	a, err := s.service.UpdateMeta(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, metadata(a))
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteAnalysis(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResultRows returns one filtered, sorted page of rows as JSON.
func (s *Server) handleResultRows(w http.ResponseWriter, r *http.Request) {
	page, ok := s.resultView(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// handleResultsTable renders the same view as an HTML fragment for HTMX.
func (s *Server) handleResultsTable(w http.ResponseWriter, r *http.Request) {
	page, ok := s.resultView(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ResultsTable(r.URL.Path, page).Render(r.Context(), w); err != nil {
		s.logWriteError(r, err)
	}
}

func (s *Server) resultView(w http.ResponseWriter, r *http.Request) (*results.Page, bool) {
	params, err := parseViewParams(r)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	page, err := s.service.ResultView(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return page, true
}

// handleExport streams the filtered set as a CSV attachment. The file is
// built before any header is sent so an empty export can still fail cleanly.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	params, err := parseExportParams(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	n, err := s.service.ExportResults(r.Context(), chi.URLParam(r, "id"), params, &buf)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", results.CSVContentType)
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, results.ExportFilename(time.Now())))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	h.Set("X-Export-Rows", strconv.Itoa(n))
	if _, err := buf.WriteTo(w); err != nil {
		s.logWriteError(r, err)
	}
}

func (s *Server) handleMerchants(w http.ResponseWriter, r *http.Request) {
	m, err := s.service.Merchants(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

func (s *Server) handleDefaultSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, upstream.DefaultSettings())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Limiter().Status())
}
