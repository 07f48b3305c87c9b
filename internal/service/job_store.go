package service

import (
	"sort"
	"sync"
	"time"

	"github.com/timmy/threatforge/internal/domain"
)

// CancelMessage is written to a job when a caller cancels it.
const CancelMessage = "Job cancelled by user"

type storedJob struct {
	job domain.Job
	seq uint64
}

// JobStore is the in-memory table of job records. All access goes through
// one RWMutex; callers only ever see copies.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*storedJob
	seq   uint64
	clock Clock
}

// NewJobStore creates an empty store. A nil clock uses the system clock.
func NewJobStore(clock Clock) *JobStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &JobStore{jobs: make(map[string]*storedJob), clock: clock}
}

// Create inserts job as given and returns its id. Ids are never reused.
func (s *JobStore) Create(job domain.Job) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.jobs[job.ID] = &storedJob{job: job.Clone(), seq: s.seq}
	return job.ID
}

// Get returns a snapshot of the job.
func (s *JobStore) Get(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sj, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return sj.job.Clone(), true
}

// Update overwrites status, progress and message. Result is kept only for
// Completed and Error only for Failed. Returns false, leaving the record
// untouched, when the job is absent or already terminal.
func (s *JobStore) Update(id string, u domain.JobUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, ok := s.jobs[id]
	if !ok || sj.job.Status.IsTerminal() {
		return false
	}

	j := &sj.job
	j.Status = u.Status
	j.Progress = clampProgress(u.Progress)
	j.Message = u.Message
	j.UpdatedAt = s.clock.Now()

	switch u.Status {
	case domain.JobStatusCompleted:
		if u.Result != nil {
			r := *u.Result
			j.Result = &r
		}
	case domain.JobStatusFailed:
		j.Error = u.Error
	}
	if u.ProcessingTimeMs != nil {
		ms := *u.ProcessingTimeMs
		j.ProcessingTimeMs = &ms
	}
	return true
}

// Cancel moves a Pending or Processing job to Cancelled.
func (s *JobStore) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, ok := s.jobs[id]
	if !ok {
		return false
	}
	switch sj.job.Status {
	case domain.JobStatusPending, domain.JobStatusProcessing:
	default:
		return false
	}

	sj.job.Status = domain.JobStatusCancelled
	sj.job.Message = CancelMessage
	sj.job.UpdatedAt = s.clock.Now()
	return true
}

// List returns jobs newest first; ties on CreatedAt fall back to insertion
// order. limit <= 0 returns everything.
func (s *JobStore) List(limit int) []domain.Job {
	type snapshot struct {
		job domain.Job
		seq uint64
	}

	s.mu.RLock()
	all := make([]snapshot, 0, len(s.jobs))
	for _, sj := range s.jobs {
		all = append(all, snapshot{job: sj.job.Clone(), seq: sj.seq})
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, k int) bool {
		a, b := all[i], all[k]
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.After(b.job.CreatedAt)
		}
		return a.seq > b.seq
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]domain.Job, len(all))
	for i, snap := range all {
		out[i] = snap.job
	}
	return out
}

// EvictOlderThan removes jobs created before now-age whose status is in
// statuses (default: every terminal status). Non-terminal jobs are never
// removed even if named.
func (s *JobStore) EvictOlderThan(age time.Duration, statuses ...domain.JobStatus) int {
	eligible := make(map[domain.JobStatus]bool, 3)
	if len(statuses) == 0 {
		statuses = []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled}
	}
	for _, st := range statuses {
		if st.IsTerminal() {
			eligible[st] = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-age)
	removed := 0
	for id, sj := range s.jobs {
		if eligible[sj.job.Status] && sj.job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// CountByStatus tallies jobs per status.
func (s *JobStore) CountByStatus() map[domain.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.JobStatus]int)
	for _, sj := range s.jobs {
		counts[sj.job.Status]++
	}
	return counts
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
