package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/threatforge/internal/domain"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		assert.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux.HandleFunc("/api/threat-model/jobs", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.Method + " " + r.URL.String())
		write(w, http.StatusOK, []domain.Job{{ID: "j2", Status: domain.JobStatusCompleted}, {ID: "j1", Status: domain.JobStatusPending}})
	})
	mux.HandleFunc("/api/threat-model/jobs/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.Method + " " + r.URL.Path)
		switch r.Method {
		case http.MethodDelete:
			write(w, http.StatusBadRequest, map[string]string{"error": "Job not found or cannot be cancelled"})
		default:
			write(w, http.StatusOK, domain.Job{ID: "j1", Status: domain.JobStatusCompleted, Progress: 100})
		}
	})
	mux.HandleFunc("/api/threat-model/generate-async", func(w http.ResponseWriter, r *http.Request) {
		var req domain.ThreatModelJobRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.record("submit " + req.Content + " " + string(req.Framework))
		write(w, http.StatusOK, domain.JobSubmission{JobID: "j1", Status: domain.JobStatusPending})
	})
	mux.HandleFunc("/api/admin/jobs/evict", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.Method + " " + r.URL.String())
		write(w, http.StatusOK, EvictResult{Evicted: 3, OlderThan: r.URL.Query().Get("older_than")})
	})
	mux.HandleFunc("/api/admin/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, domain.CacheStats{Entries: 2, Hits: 4, Misses: 1, HitRate: 0.8})
	})
	return mux
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := BuildCLI(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestJobsList(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	out, err := run(t, srv, "jobs", "list", "--limit", "2")
	require.NoError(t, err)

	var jobs []domain.Job
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	assert.Len(t, jobs, 2)
	assert.Equal(t, []string{"GET /api/threat-model/jobs?limit=2"}, api.recorded())
}

func TestJobsCancelReportsServerError(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	defer srv.Close()

	_, err := run(t, srv, "jobs", "cancel", "j1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400: Job not found or cannot be cancelled")
}

func TestJobsSubmitAndWait(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	out, err := run(t, srv, "jobs", "submit", "--content", "web app", "--framework", "PASTA", "--wait", "5s")
	require.NoError(t, err)

	var job domain.Job
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, "submit web app PASTA", api.recorded()[0])
}

func TestEvictJobsPassesAge(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	out, err := run(t, srv, "evict", "jobs", "--older-than", "2h")
	require.NoError(t, err)

	var res EvictResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Evicted)
	assert.Equal(t, "2h0m0s", res.OlderThan)
}

func TestCacheStats(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	defer srv.Close()

	out, err := run(t, srv, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"hit_rate": 0.8`)
}
