package domain

import "time"

// JobStatus represents the lifecycle state of an asynchronous threat model job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions may leave the status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Priority is advisory only; it never changes scheduling or the cache key.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Job is the record kept for one asynchronous generation.
// Result is populated only by the transition into Completed and Error only
// by the transition into Failed.
type Job struct {
	ID                  string             `json:"job_id"`
	Status              JobStatus          `json:"status"`
	Progress            int                `json:"progress"`
	Message             string             `json:"message"`
	Result              *ThreatModelResult `json:"result"`
	Error               string             `json:"error,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	EstimatedCompletion *time.Time         `json:"estimated_completion,omitempty"`
	ProcessingTimeMs    *int64             `json:"processing_time_ms,omitempty"`
}

// Clone returns a deep copy so callers can never mutate stored state.
func (j Job) Clone() Job {
	out := j
	if j.Result != nil {
		r := *j.Result
		out.Result = &r
	}
	if j.EstimatedCompletion != nil {
		t := *j.EstimatedCompletion
		out.EstimatedCompletion = &t
	}
	if j.ProcessingTimeMs != nil {
		ms := *j.ProcessingTimeMs
		out.ProcessingTimeMs = &ms
	}
	return out
}

// JobUpdate is a full-field overwrite applied by the job store.
type JobUpdate struct {
	Status           JobStatus
	Progress         int
	Message          string
	Result           *ThreatModelResult
	Error            string
	ProcessingTimeMs *int64
}

// JobSubmission is the acknowledgement returned by the async endpoint.
type JobSubmission struct {
	JobID               string     `json:"job_id"`
	Status              JobStatus  `json:"status"`
	Message             string     `json:"message"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// ThreatModelJobRequest is the async threat model request.
type ThreatModelJobRequest struct {
	Content     string    `json:"content" binding:"required,max=50000,safecontent"`
	Framework   Framework `json:"framework" binding:"omitempty,framework"`
	FileID      string    `json:"file_id,omitempty" binding:"omitempty,hexid"`
	LLMProvider string    `json:"llm_provider,omitempty"`
	Priority    Priority  `json:"priority,omitempty" binding:"omitempty,oneof=low normal high"`
}

// Normalize trims content and fills defaults in place.
func (r *ThreatModelJobRequest) Normalize() {
	r.Content = normalizeContent(r.Content)
	r.Framework = CanonicalFramework(string(r.Framework))
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
}

// ThreatModelRequest returns the synchronous form of the request.
func (r ThreatModelJobRequest) ThreatModelRequest() ThreatModelRequest {
	return ThreatModelRequest{
		Content:     r.Content,
		Framework:   r.Framework,
		FileID:      r.FileID,
		LLMProvider: r.LLMProvider,
	}
}

// JobStats summarises the job table.
type JobStats struct {
	Total    int               `json:"total"`
	ByStatus map[JobStatus]int `json:"by_status"`
}
