package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/logger"
	"github.com/timmy/threatforge/internal/prompts"
	"golang.org/x/sync/singleflight"
)

// Job messages visible to pollers.
const (
	MsgJobPending    = "Job created, waiting to start"
	MsgCacheHit      = "Result retrieved from cache"
	MsgStarting      = "Starting threat model generation..."
	MsgProcessingDoc = "Processing uploaded diagram..."
	MsgBuilding      = "Building analysis prompt..."
	MsgGenerating    = "Generating threat model with AI..."
	MsgFinalizing    = "Finalizing threat model..."
	MsgCompleted     = "Threat model generation completed"
)

// FileLookup resolves an upload id to its metadata; unknown ids yield nil, nil.
type FileLookup interface {
	Lookup(ctx context.Context, id string) (*domain.UploadedFile, error)
}

// JobRecorder receives job lifecycle events, typically for metrics.
type JobRecorder interface {
	RecordSubmit(cacheHit bool)
	RecordJobFinished(status domain.JobStatus)
	RecordGeneration(provider domain.Provider, d time.Duration)
	RecordEviction(table string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordSubmit(bool)                               {}
func (nopRecorder) RecordJobFinished(domain.JobStatus)              {}
func (nopRecorder) RecordGeneration(domain.Provider, time.Duration) {}
func (nopRecorder) RecordEviction(string, int)                      {}

// JobHook observes a job snapshot after every state change the service makes.
type JobHook func(job domain.Job)

// JobServiceOption customises a JobService.
type JobServiceOption func(*JobService)

// WithClock overrides the time source.
func WithClock(c Clock) JobServiceOption {
	return func(s *JobService) { s.clock = c }
}

// WithRecorder attaches a lifecycle recorder.
func WithRecorder(r JobRecorder) JobServiceOption {
	return func(s *JobService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithJobHook attaches an observer called after each transition.
func WithJobHook(h JobHook) JobServiceOption {
	return func(s *JobService) { s.hook = h }
}

// JobService runs asynchronous threat model jobs. It owns the job store and
// the result cache; nothing else mutates them.
type JobService struct {
	store     *JobStore
	cache     *ResultCache
	providers *ProviderRegistry
	files     FileLookup
	cfg       config.JobsConfig
	clock     Clock
	recorder  JobRecorder
	hook      JobHook
	group     singleflight.Group

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	closed   bool
}

// NewJobService creates the runner. files may be nil when uploads are disabled.
func NewJobService(store *JobStore, cache *ResultCache, providers *ProviderRegistry, files FileLookup, cfg config.JobsConfig, opts ...JobServiceOption) *JobService {
	if cfg.EstimatedDuration <= 0 {
		cfg.EstimatedDuration = 5 * time.Minute
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 2 * time.Minute
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &JobService{
		store:     store,
		cache:     cache,
		providers: providers,
		files:     files,
		cfg:       cfg,
		clock:     SystemClock{},
		recorder:  nopRecorder{},
		baseCtx:   ctx,
		stop:      stop,
		inflight:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit registers a job and returns its id without waiting for generation.
// A cache hit yields a job that is already Completed.
func (s *JobService) Submit(ctx context.Context, req domain.ThreatModelJobRequest) (string, error) {
	if !s.acquire() {
		return "", ErrServiceClosed
	}

	req.Normalize()
	key := Fingerprint(req)
	now := s.clock.Now()
	id := uuid.NewString()

	ctx = logger.SetJobID(ctx, id)
	ctx = logger.SetCacheKey(ctx, key)

	if entry, ok := s.cache.Get(key); ok {
		defer s.wg.Done()
		result := entry.Result
		s.store.Create(domain.Job{
			ID:        id,
			Status:    domain.JobStatusCompleted,
			Progress:  100,
			Message:   MsgCacheHit,
			Result:    &result,
			CreatedAt: now,
			UpdatedAt: now,
		})
		s.recorder.RecordSubmit(true)
		logger.CtxInfo(ctx, "Job served from cache")
		s.notify(id)
		return id, nil
	}

	eta := now.Add(s.cfg.EstimatedDuration)
	s.store.Create(domain.Job{
		ID:                  id,
		Status:              domain.JobStatusPending,
		Message:             MsgJobPending,
		CreatedAt:           now,
		UpdatedAt:           now,
		EstimatedCompletion: &eta,
	})
	s.recorder.RecordSubmit(false)
	s.notify(id)

	// The job outlives the request: detach from its cancellation but keep its log fields.
	jobCtx, cancel := context.WithTimeout(s.baseCtx, s.cfg.GenerationTimeout)
	jobCtx = logger.FromContext(ctx).WithContext(jobCtx)

	s.mu.Lock()
	s.inflight[id] = cancel
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.run(jobCtx, id, key, req)
	}()

	logger.CtxDebug(ctx, "Job created")
	return id, nil
}

// acquire reserves a slot in the wait group unless the service is closed.
func (s *JobService) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *JobService) run(ctx context.Context, id, key string, req domain.ThreatModelJobRequest) {
	start := s.clock.Now()

	defer func() {
		s.mu.Lock()
		cancel := s.inflight[id]
		delete(s.inflight, id)
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, id, fmt.Errorf("internal error: %v", r))
		}
	}()

	if !s.checkpoint(ctx, id, 10, MsgStarting) {
		return
	}

	gen, err := s.providers.Resolve(req.LLMProvider)
	if err != nil {
		s.fail(ctx, id, err)
		return
	}
	ctx = logger.SetProvider(ctx, string(gen.Provider()))
	if !s.checkpoint(ctx, id, 20, fmt.Sprintf("Using %s provider...", gen.Provider())) {
		return
	}

	var fileDescription string
	if req.FileID != "" && s.files != nil {
		meta, err := s.files.Lookup(ctx, req.FileID)
		if err != nil {
			s.fail(ctx, id, err)
			return
		}
		fileDescription = prompts.DescribeFile(meta)
	}
	if fileDescription != "" && !s.checkpoint(ctx, id, 30, MsgProcessingDoc) {
		return
	}

	prompt := prompts.AsyncThreatModelPrompt(req, fileDescription)
	if !s.checkpoint(ctx, id, 40, MsgBuilding) {
		return
	}
	if !s.checkpoint(ctx, id, 50, MsgGenerating) {
		return
	}

	text, err := s.generate(ctx, key, gen, prompt)
	if err != nil {
		s.fail(ctx, id, s.describeContextError(err, "generation"))
		return
	}
	cost := gen.EstimateCost(prompt)

	if !s.checkpoint(ctx, id, 80, MsgFinalizing) {
		return
	}

	now := s.clock.Now()
	elapsed := now.Sub(start).Milliseconds()
	result := domain.ThreatModelResult{
		ID:               uuid.NewString(),
		ThreatModel:      text,
		EstimatedCost:    cost,
		ProviderUsed:     gen.Provider(),
		Framework:        req.Framework,
		ContentAnalyzed:  req.Content,
		GeneratedAt:      now,
		ProcessingTimeMs: &elapsed,
	}

	// Completion becomes visible before the cache is populated.
	if !s.store.Update(id, domain.JobUpdate{
		Status:           domain.JobStatusCompleted,
		Progress:         100,
		Message:          MsgCompleted,
		Result:           &result,
		ProcessingTimeMs: &elapsed,
	}) {
		logger.CtxInfo(ctx, "Job left processing before completion, result discarded")
		return
	}
	s.cache.Put(key, result)
	s.recorder.RecordJobFinished(domain.JobStatusCompleted)
	logger.With(logger.Fields{logger.FieldStatus: string(domain.JobStatusCompleted)}).
		WithDuration(elapsed).WithCost(cost).Info(ctx, "Job completed")
	s.notify(id)
}

// checkpoint advances a Processing job. It returns false when the job was
// cancelled (the store refuses to leave a terminal state) or its context ended.
func (s *JobService) checkpoint(ctx context.Context, id string, progress int, message string) bool {
	if err := ctx.Err(); err != nil {
		s.fail(ctx, id, s.describeContextError(err, "job"))
		return false
	}
	if !s.store.Update(id, domain.JobUpdate{Status: domain.JobStatusProcessing, Progress: progress, Message: message}) {
		logger.CtxInfo(ctx, "Job no longer active, stopping at %d%%", progress)
		return false
	}
	logger.With(logger.Fields{}).WithProgress(progress).Debug(ctx, "%s", message)
	s.notify(id)
	return true
}

func (s *JobService) fail(ctx context.Context, id string, err error) {
	if !s.store.Update(id, domain.JobUpdate{
		Status:   domain.JobStatusFailed,
		Progress: 0,
		Message:  "Job failed: " + err.Error(),
		Error:    err.Error(),
	}) {
		return
	}
	s.recorder.RecordJobFinished(domain.JobStatusFailed)
	logger.FromContext(ctx).WithError(err).Error("Job failed")
	s.notify(id)
}

// describeContextError turns a deadline or shutdown into the job's error text.
// stage names what was running: "generation" for the backend call, "job" otherwise.
func (s *JobService) describeContextError(err error, stage string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s timed out after %s", stage, s.cfg.GenerationTimeout)
	case errors.Is(err, context.Canceled) && s.baseCtx.Err() != nil:
		return ErrServiceClosed
	}
	return err
}

// generate calls the backend, sharing one call among concurrent jobs with
// the same fingerprint when coalescing is on. A job whose context ends stops
// waiting even if the shared call continues.
func (s *JobService) generate(ctx context.Context, key string, gen Generator, prompt string) (string, error) {
	call := func(callCtx context.Context) (text string, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("internal error: %v", r)
			}
			s.recorder.RecordGeneration(gen.Provider(), time.Since(start))
		}()
		return gen.Generate(callCtx, prompt)
	}

	if !s.cfg.CoalesceInflight {
		return call(ctx)
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(s.baseCtx, s.cfg.GenerationTimeout)
		defer cancel()
		return call(callCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *JobService) notify(id string) {
	if s.hook == nil {
		return
	}
	if job, ok := s.store.Get(id); ok {
		s.hook(job)
	}
}

// GetStatus returns a snapshot of the job.
func (s *JobService) GetStatus(id string) (domain.Job, bool) {
	return s.store.Get(id)
}

// Cancel marks a Pending or Processing job Cancelled and abandons its
// in-flight generation wait.
func (s *JobService) Cancel(id string) bool {
	if !s.store.Cancel(id) {
		return false
	}

	s.mu.Lock()
	cancel := s.inflight[id]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	s.recorder.RecordJobFinished(domain.JobStatusCancelled)
	logger.With(logger.Fields{logger.FieldJobID: id}).Info(context.Background(), "Job cancelled")
	s.notify(id)
	return true
}

// List returns up to limit jobs, newest first.
func (s *JobService) List(limit int) []domain.Job {
	return s.store.List(limit)
}

// EvictOldJobs removes terminal jobs created more than age ago.
func (s *JobService) EvictOldJobs(age time.Duration) int {
	n := s.store.EvictOlderThan(age)
	s.recorder.RecordEviction("jobs", n)
	logger.Info("Evicted %d jobs older than %s", n, age)
	return n
}

// EvictOldCache removes cache entries created more than age ago.
func (s *JobService) EvictOldCache(age time.Duration) int {
	n := s.cache.EvictOlderThan(age)
	s.recorder.RecordEviction("cache", n)
	logger.Info("Evicted %d cache entries older than %s", n, age)
	return n
}

// CacheStats reports the result cache counters.
func (s *JobService) CacheStats() domain.CacheStats {
	return s.cache.Stats()
}

// JobStats tallies the job table.
func (s *JobService) JobStats() domain.JobStats {
	counts := s.store.CountByStatus()
	total := 0
	for _, n := range counts {
		total += n
	}
	return domain.JobStats{Total: total, ByStatus: counts}
}

// ActiveJobs counts jobs still pending or processing.
func (s *JobService) ActiveJobs() int {
	counts := s.store.CountByStatus()
	return counts[domain.JobStatusPending] + counts[domain.JobStatusProcessing]
}

// Shutdown refuses new jobs, cancels running ones and waits for their
// goroutines until ctx ends.
func (s *JobService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
