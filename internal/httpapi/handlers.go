package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/contentops/cms-translator/internal/jobstore"
	"github.com/contentops/cms-translator/pkg/log"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type jobsResponse struct {
	Jobs     []jobstore.Job `json:"jobs"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "pageSize", defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	jobs, total, err := s.store.List(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobsResponse{
		Jobs:     jobs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *Server) handleJobCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make(map[string]int64, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	writeJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Error("api error: %v", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
