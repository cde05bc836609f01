package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"watchtrail/internal/core"
	"watchtrail/internal/render"
)

// defaultVideoLimit caps the videos returned for one cluster, newest first
const defaultVideoLimit = 100

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SummaryResponse describes the loaded clustered file
type SummaryResponse struct {
	Records   int       `json:"records"`
	Clusters  int       `json:"clusters"`
	Noise     int       `json:"noise"`
	Uptime    string    `json:"uptime"`
	LoadedAt  time.Time `json:"loaded_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClusterResponse is one cluster with its most recent videos
type ClusterResponse struct {
	core.WatchGroup
	Total int `json:"total"`
}

var serverStartTime = time.Now()

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if _, err := s.data.current(); err != nil {
		checks["data"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}

	checks["data"] = "ok"
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// handleDataFile serves the clustered records exactly as written
func (s *Server) handleDataFile(w http.ResponseWriter, r *http.Request) {
	if _, err := s.data.current(); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "clustered data unavailable", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, s.data.path)
}

// handleSummary handles GET /api/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := s.data.current()
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "clustered data unavailable", err)
		return
	}

	resp := SummaryResponse{
		Records:   len(snap.records),
		Uptime:    time.Since(serverStartTime).Round(time.Second).String(),
		LoadedAt:  snap.loadedAt,
		UpdatedAt: snap.modTime,
	}
	for _, g := range snap.groups {
		if g.Name == render.NoiseGroupName {
			resp.Noise = len(g.Videos)
			continue
		}
		resp.Clusters++
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleListClusters handles GET /api/clusters
func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	snap, err := s.data.current()
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "clustered data unavailable", err)
		return
	}
	s.respondJSON(w, http.StatusOK, render.Summaries(snap.groups))
}

// handleGetCluster handles GET /api/clusters/{label}?limit=n
func (s *Server) handleGetCluster(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if _, err := core.ParseCompositeLabel(label); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid cluster label", err)
		return
	}

	limit := defaultVideoLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		limit = n
	}

	snap, err := s.data.current()
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "clustered data unavailable", err)
		return
	}

	group, ok := render.FindGroup(snap.groups, label)
	if !ok {
		s.respondError(w, http.StatusNotFound, "cluster not found", nil)
		return
	}

	total := len(group.Videos)
	group.Videos = render.MostRecent(group.Videos, limit)
	s.respondJSON(w, http.StatusOK, ClusterResponse{WatchGroup: group, Total: total})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error body and logs the cause
func (s *Server) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.log.Warn("Request failed", "status", status, "message", message, "error", err)
	}
	s.respondJSON(w, status, map[string]string{"error": message})
}
