package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/domain"
)

type transitionLog struct {
	mu    sync.Mutex
	steps map[string][]domain.Job
}

func newTransitionLog() *transitionLog {
	return &transitionLog{steps: make(map[string][]domain.Job)}
}

func (l *transitionLog) hook(job domain.Job) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps[job.ID] = append(l.steps[job.ID], job)
}

func (l *transitionLog) get(id string) []domain.Job {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Job(nil), l.steps[id]...)
}

type countingRecorder struct {
	mu       sync.Mutex
	submits  map[bool]int
	finished map[domain.JobStatus]int
	gens     int
	evicted  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		submits:  make(map[bool]int),
		finished: make(map[domain.JobStatus]int),
		evicted:  make(map[string]int),
	}
}

func (r *countingRecorder) RecordSubmit(hit bool) {
	r.mu.Lock()
	r.submits[hit]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordJobFinished(st domain.JobStatus) {
	r.mu.Lock()
	r.finished[st]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordGeneration(domain.Provider, time.Duration) {
	r.mu.Lock()
	r.gens++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordEviction(table string, n int) {
	r.mu.Lock()
	r.evicted[table] += n
	r.mu.Unlock()
}

type jobFixture struct {
	svc *JobService
	gen *stubGenerator
	log *transitionLog
	rec *countingRecorder
}

func newJobFixture(t *testing.T, gen *stubGenerator, files FileLookup, mutate func(*config.JobsConfig), opts ...JobServiceOption) *jobFixture {
	t.Helper()
	cfg := config.JobsConfig{
		EstimatedDuration: 5 * time.Minute,
		GenerationTimeout: 5 * time.Second,
		CoalesceInflight:  true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	var reg *ProviderRegistry
	if gen != nil {
		reg = NewProviderRegistry(gen)
	} else {
		reg = NewProviderRegistry()
	}

	f := &jobFixture{gen: gen, log: newTransitionLog(), rec: newCountingRecorder()}
	all := append([]JobServiceOption{WithJobHook(f.log.hook), WithRecorder(f.rec)}, opts...)
	f.svc = NewJobService(NewJobStore(nil), NewResultCache(nil), reg, files, cfg, all...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.svc.Shutdown(ctx)
	})
	return f
}

func (f *jobFixture) waitTerminal(t *testing.T, id string) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = f.svc.GetStatus(id)
		return ok && job.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func (f *jobFixture) waitProgress(t *testing.T, id string, progress int) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, ok := f.svc.GetStatus(id)
		return ok && job.Progress >= progress
	}, 5*time.Second, 5*time.Millisecond)
}

func inflightCount(s *JobService) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func request(content string) domain.ThreatModelJobRequest {
	return domain.ThreatModelJobRequest{Content: content, Framework: domain.FrameworkSTRIDE}
}

func TestJobServiceSubmitCompletes(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "# Threat Model", cost: 0.05}
	f := newJobFixture(t, gen, nil, nil)

	id, err := f.svc.Submit(context.Background(), request("Web app with a database"))
	require.NoError(t, err)

	job, ok := f.svc.GetStatus(id)
	require.True(t, ok)
	assert.Contains(t, []domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusCompleted}, job.Status)

	job = f.waitTerminal(t, id)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, MsgCompleted, job.Message)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.Result)
	assert.Equal(t, "# Threat Model", job.Result.ThreatModel)
	assert.Equal(t, domain.ProviderMock, job.Result.ProviderUsed)
	assert.Equal(t, domain.FrameworkSTRIDE, job.Result.Framework)
	assert.Equal(t, 0.05, job.Result.EstimatedCost)
	assert.NotNil(t, job.ProcessingTimeMs)
	assert.Equal(t, 1, f.svc.CacheStats().Entries)
}

func TestJobServiceCheckpoints(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "tm"}
	f := newJobFixture(t, gen, nil, nil)

	id, err := f.svc.Submit(context.Background(), request("API gateway"))
	require.NoError(t, err)
	f.waitTerminal(t, id)

	var progress []int
	var messages []string
	for _, step := range f.log.get(id) {
		progress = append(progress, step.Progress)
		messages = append(messages, step.Message)
	}
	assert.Equal(t, []int{0, 10, 20, 40, 50, 80, 100}, progress)
	assert.Equal(t, []string{
		MsgJobPending,
		MsgStarting,
		"Using mock provider...",
		MsgBuilding,
		MsgGenerating,
		MsgFinalizing,
		MsgCompleted,
	}, messages)

	first := f.log.get(id)[0]
	require.NotNil(t, first.EstimatedCompletion)
	assert.Equal(t, first.CreatedAt.Add(5*time.Minute), *first.EstimatedCompletion)
}

func TestJobServiceFileCheckpoint(t *testing.T) {
	files := staticFiles{"abc-1": {ID: "abc-1", Filename: "arch.drawio", FileType: domain.FileTypeDrawio}}
	gen := &stubGenerator{provider: domain.ProviderMock, text: "tm"}
	f := newJobFixture(t, gen, files, nil)

	withFile := request("diagram")
	withFile.FileID = "abc-1"
	id, err := f.svc.Submit(context.Background(), withFile)
	require.NoError(t, err)
	f.waitTerminal(t, id)

	var seen bool
	for _, step := range f.log.get(id) {
		if step.Progress == 30 {
			seen = true
			assert.Equal(t, MsgProcessingDoc, step.Message)
		}
	}
	assert.True(t, seen)

	missing := request("diagram")
	missing.FileID = "ffff"
	id, err = f.svc.Submit(context.Background(), missing)
	require.NoError(t, err)
	job := f.waitTerminal(t, id)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	for _, step := range f.log.get(id) {
		assert.NotEqual(t, 30, step.Progress)
	}
}

func TestJobServiceProgressNeverDecreases(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "tm", delay: 20 * time.Millisecond}
	f := newJobFixture(t, gen, nil, nil)

	id, err := f.svc.Submit(context.Background(), request("polling"))
	require.NoError(t, err)

	last := -1
	require.Eventually(t, func() bool {
		job, _ := f.svc.GetStatus(id)
		assert.GreaterOrEqual(t, job.Progress, last)
		last = job.Progress
		return job.Status.IsTerminal()
	}, 5*time.Second, time.Millisecond)
}

func TestJobServiceCacheHit(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "tm"}
	f := newJobFixture(t, gen, nil, nil)

	first, err := f.svc.Submit(context.Background(), request("same system"))
	require.NoError(t, err)
	done := f.waitTerminal(t, first)

	second, err := f.svc.Submit(context.Background(), request("  same system  "))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	job, ok := f.svc.GetStatus(second)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, MsgCacheHit, job.Message)
	require.NotNil(t, job.Result)
	assert.Equal(t, done.Result.ID, job.Result.ID)

	assert.Equal(t, int64(1), gen.calls.Load())
	assert.Equal(t, 1, f.rec.submits[true])
	assert.Equal(t, int64(1), f.svc.CacheStats().Hits)
}

func TestJobServiceFailures(t *testing.T) {
	tests := []struct {
		name    string
		gen     *stubGenerator
		hint    string
		wantErr string
	}{
		{"no providers", nil, "", "no LLM providers configured"},
		{"unknown provider", &stubGenerator{provider: domain.ProviderMock}, "nonexistent", "provider nonexistent not available"},
		{"generation error", &stubGenerator{provider: domain.ProviderMock, err: errors.New("OpenAI generation failed: HTTP 500")}, "", "OpenAI generation failed: HTTP 500"},
		{"panic", &stubGenerator{provider: domain.ProviderMock, panicMsg: "boom"}, "", "internal error: boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newJobFixture(t, tc.gen, nil, nil)
			req := request("failing " + tc.name)
			req.LLMProvider = tc.hint

			id, err := f.svc.Submit(context.Background(), req)
			require.NoError(t, err)

			job := f.waitTerminal(t, id)
			assert.Equal(t, domain.JobStatusFailed, job.Status)
			assert.Equal(t, 0, job.Progress)
			assert.Nil(t, job.Result)
			assert.Equal(t, tc.wantErr, job.Error)
			assert.Equal(t, "Job failed: "+tc.wantErr, job.Message)
			assert.Equal(t, 0, f.svc.CacheStats().Entries)
		})
	}
}

func TestJobServiceTimeout(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, gate: make(chan struct{})}
	f := newJobFixture(t, gen, nil, func(c *config.JobsConfig) { c.GenerationTimeout = 50 * time.Millisecond })

	id, err := f.svc.Submit(context.Background(), request("slow"))
	require.NoError(t, err)

	job := f.waitTerminal(t, id)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "generation timed out after 50ms", job.Error)
}

func TestJobServiceTimeoutBeforeGeneration(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "unused"}
	f := newJobFixture(t, gen, blockingFiles{}, func(c *config.JobsConfig) { c.GenerationTimeout = 50 * time.Millisecond })

	req := request("stuck on file lookup")
	req.FileID = "abc123"
	id, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)

	job := f.waitTerminal(t, id)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "job timed out after 50ms", job.Error)
	assert.Equal(t, int64(0), gen.calls.Load())
}

func TestJobServiceCancel(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, gate: make(chan struct{})}
	f := newJobFixture(t, gen, nil, nil)

	id, err := f.svc.Submit(context.Background(), request("cancel me"))
	require.NoError(t, err)
	f.waitProgress(t, id, 50)

	assert.True(t, f.svc.Cancel(id))
	job, _ := f.svc.GetStatus(id)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	assert.Equal(t, CancelMessage, job.Message)

	assert.False(t, f.svc.Cancel(id))
	assert.False(t, f.svc.Cancel("unknown"))

	// The runner abandons the generation wait and leaves the record alone.
	require.Eventually(t, func() bool { return inflightCount(f.svc) == 0 }, time.Second, 5*time.Millisecond)
	close(gen.gate)

	job, _ = f.svc.GetStatus(id)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	assert.Nil(t, job.Result)
	assert.Equal(t, 0, f.svc.CacheStats().Entries)
	assert.Equal(t, 1, f.rec.finished[domain.JobStatusCancelled])
}

func TestJobServiceCancelTerminalJobIsNoop(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "tm"}
	f := newJobFixture(t, gen, nil, nil)

	id, err := f.svc.Submit(context.Background(), request("done"))
	require.NoError(t, err)
	before := f.waitTerminal(t, id)

	assert.False(t, f.svc.Cancel(id))
	after, _ := f.svc.GetStatus(id)
	assert.Equal(t, before, after)
}

func TestJobServiceCoalescesIdenticalSubmissions(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "shared", gate: make(chan struct{})}
	f := newJobFixture(t, gen, nil, nil)

	a, err := f.svc.Submit(context.Background(), request("twin"))
	require.NoError(t, err)
	b, err := f.svc.Submit(context.Background(), request("twin"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	f.waitProgress(t, a, 50)
	f.waitProgress(t, b, 50)
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gen.gate)

	jobA := f.waitTerminal(t, a)
	jobB := f.waitTerminal(t, b)
	assert.Equal(t, domain.JobStatusCompleted, jobA.Status)
	assert.Equal(t, domain.JobStatusCompleted, jobB.Status)
	assert.Equal(t, "shared", jobB.Result.ThreatModel)
	assert.Equal(t, int64(1), gen.calls.Load())
	assert.Equal(t, 1, f.svc.CacheStats().Entries)
}

func TestJobServiceListMostRecent(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "tm"}
	clock := newManualClock()
	f := newJobFixture(t, gen, nil, nil, WithClock(clock))

	var ids []string
	for _, c := range []string{"one", "two", "three", "four", "five"} {
		id, err := f.svc.Submit(context.Background(), request(c))
		require.NoError(t, err)
		ids = append(ids, id)
		clock.Advance(time.Second)
	}

	jobs := f.svc.List(2)
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[4], jobs[0].ID)
	assert.Equal(t, ids[3], jobs[1].ID)
}

func TestJobServiceEvictionKeepsActiveJobs(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "tm"}
	f := newJobFixture(t, gen, nil, nil)

	done, err := f.svc.Submit(context.Background(), request("finished"))
	require.NoError(t, err)
	f.waitTerminal(t, done)

	gen.gate = make(chan struct{})
	defer close(gen.gate)
	active, err := f.svc.Submit(context.Background(), request("still running"))
	require.NoError(t, err)
	f.waitProgress(t, active, 50)

	// A negative age puts the cutoff in the future.
	assert.Equal(t, 1, f.svc.EvictOldJobs(-time.Hour))
	_, ok := f.svc.GetStatus(done)
	assert.False(t, ok)
	_, ok = f.svc.GetStatus(active)
	assert.True(t, ok)

	assert.Equal(t, 1, f.svc.EvictOldCache(-time.Hour))
	assert.Equal(t, 1, f.rec.evicted["jobs"])
	assert.Equal(t, 1, f.rec.evicted["cache"])
}

func TestJobServiceStats(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, text: "tm"}
	f := newJobFixture(t, gen, nil, nil)

	id, err := f.svc.Submit(context.Background(), request("stats"))
	require.NoError(t, err)
	f.waitTerminal(t, id)

	stats := f.svc.JobStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.JobStatusCompleted])
	assert.Equal(t, 0, f.svc.ActiveJobs())
}

func TestJobServiceShutdown(t *testing.T) {
	gen := &stubGenerator{provider: domain.ProviderMock, gate: make(chan struct{})}
	f := newJobFixture(t, gen, nil, nil)

	id, err := f.svc.Submit(context.Background(), request("interrupted"))
	require.NoError(t, err)
	f.waitProgress(t, id, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(ctx))

	job, _ := f.svc.GetStatus(id)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, ErrServiceClosed.Error(), job.Error)

	_, err = f.svc.Submit(context.Background(), request("late"))
	assert.ErrorIs(t, err, ErrServiceClosed)
}
