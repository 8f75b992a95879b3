package rulegen

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router returns the read-only report API: run stats, row outcomes, and the
// persisted URL-validation reports.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/stats", s.handleStats)
	r.Get("/api/rows", s.handleRows)
	r.Get("/api/rows/{ordinal}/urls", s.handleRowURLs)
	r.Get("/api/reports", s.handleReportList)
	r.Get("/api/reports/{name}", s.handleReport)

	return r
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.runlog == nil {
		httpError(w, http.StatusServiceUnavailable, "run log not configured")
		return
	}
	stats, err := s.runlog.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		httpError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, stats)
}

func (s *Service) handleRows(w http.ResponseWriter, r *http.Request) {
	if s.runlog == nil {
		httpError(w, http.StatusServiceUnavailable, "run log not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.runlog.Rows(r.Context(), limit)
	if err != nil {
		s.logger.Error("rows query failed", "error", err)
		httpError(w, http.StatusInternalServerError, "rows query failed")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Service) handleRowURLs(w http.ResponseWriter, r *http.Request) {
	if s.runlog == nil {
		httpError(w, http.StatusServiceUnavailable, "run log not configured")
		return
	}
	ordinal, err := strconv.Atoi(chi.URLParam(r, "ordinal"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "bad ordinal")
		return
	}
	checks, err := s.runlog.URLChecks(r.Context(), ordinal)
	if err != nil {
		s.logger.Error("url checks query failed", "error", err)
		httpError(w, http.StatusInternalServerError, "url checks query failed")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{"url_checks": checks})
}

func (s *Service) handleReportList(w http.ResponseWriter, r *http.Request) {
	names, err := s.reports.List()
	if err != nil {
		s.logger.Error("report list failed", "error", err)
		httpError(w, http.StatusInternalServerError, "report list failed")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{"reports": names})
}

func (s *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.Read(chi.URLParam(r, "name"))
	if err != nil {
		httpError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("response encode failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
