package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"watchtrail/internal/config"
	"watchtrail/internal/core"
	"watchtrail/internal/render"
)

func record(id, ts string, content, timeID int) core.ClusteredRecord {
	return core.ClusteredRecord{
		WatchRecord: core.WatchRecord{
			VideoTitle: "video " + id,
			VideoURL:   "https://www.youtube.com/watch?v=" + id,
			Timestamp:  ts,
		},
		Observation: core.Observation{
			ContentVector:  []float64{1, 0},
			ClusterContent: content,
			ClusterTime:    timeID,
			Combined:       core.Combine(content, timeID),
		},
	}
}

func writeData(t *testing.T, path string, records []core.ClusteredRecord) {
	t.Helper()
	if _, err := render.WriteClusteredFile(records, path); err != nil {
		t.Fatalf("WriteClusteredFile failed: %v", err)
	}
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch_history_clustered.json")
	writeData(t, path, []core.ClusteredRecord{
		record("a1", "2024-01-01T10:00:00Z", 0, 0),
		record("a2", "2024-01-03T10:00:00Z", 0, 0),
		record("a3", "2024-01-02T10:00:00Z", 0, 0),
		record("b1", "2024-01-01T10:00:00Z", 1, 0),
		record("n1", "2024-01-01T10:00:00Z", -1, -1),
	})

	s, err := New(path, config.Server{Host: "127.0.0.1", Port: 0, CORSOrigins: []string{"http://localhost:3000"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, path
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestNew_MissingFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing.json"), config.Server{}); err == nil {
		t.Error("expected error for a missing clustered file")
	}
}

func TestHealth(t *testing.T) {
	s, path := newTestServer(t)

	rec := get(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	_ = os.Remove(path)
	rec = get(t, s, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after removal = %d, want 503", rec.Code)
	}
}

func TestDataFile(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/data/watch_history_clustered.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("data file should not be cached")
	}

	var records []core.ClusteredRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(records) != 5 || records[4].Combined.String() != "-1" {
		t.Errorf("unexpected records: %d", len(records))
	}

	if rec := get(t, s, "/data/other.json"); rec.Code != http.StatusNotFound {
		t.Errorf("other files must not be served, got %d", rec.Code)
	}
}

func TestListClusters(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/clusters")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var summaries []core.GroupSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(summaries))
	}
	if summaries[0].Label != "0_0" || summaries[0].Count != 3 {
		t.Errorf("largest group first, got %+v", summaries[0])
	}
	if summaries[2].Name != render.NoiseGroupName {
		t.Errorf("noise group last, got %+v", summaries[2])
	}
}

func TestGetCluster(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/clusters/0_0?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ClusterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.Total != 3 || len(resp.Videos) != 2 {
		t.Fatalf("total=%d videos=%d, want 3 and 2", resp.Total, len(resp.Videos))
	}
	if resp.Videos[0].VideoID != "a2" || resp.Videos[1].VideoID != "a3" {
		t.Errorf("videos not newest first: %+v", resp.Videos)
	}

	noise := get(t, s, "/api/clusters/-1")
	if noise.Code != http.StatusOK {
		t.Errorf("noise group status = %d", noise.Code)
	}

	cases := map[string]int{
		"/api/clusters/7_7":          http.StatusNotFound,
		"/api/clusters/abc":          http.StatusBadRequest,
		"/api/clusters/0_0?limit=-3": http.StatusBadRequest,
	}
	for target, want := range cases {
		if rec := get(t, s, target); rec.Code != want {
			t.Errorf("%s: status = %d, want %d", target, rec.Code, want)
		}
	}
}

func TestSummaryReloadsChangedFile(t *testing.T) {
	s, path := newTestServer(t)

	var before SummaryResponse
	if err := json.Unmarshal(get(t, s, "/api/summary").Body.Bytes(), &before); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if before.Records != 5 || before.Clusters != 2 || before.Noise != 1 {
		t.Errorf("summary = %+v", before)
	}

	writeData(t, path, []core.ClusteredRecord{record("x", "", 0, 0)})
	// Make sure the modification time moves even on coarse filesystems
	later := time.Now().Add(time.Minute)
	_ = os.Chtimes(path, later, later)

	var after SummaryResponse
	if err := json.Unmarshal(get(t, s, "/api/summary").Body.Bytes(), &after); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if after.Records != 1 || after.Noise != 0 {
		t.Errorf("summary after rewrite = %+v", after)
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/clusters", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
