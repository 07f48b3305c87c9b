package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/logger"
	"github.com/timmy/threatforge/internal/service"
)

// JobHandler exposes the asynchronous job API.
type JobHandler struct {
	jobs  *service.JobService
	files service.FileLookup
	cfg   config.JobsConfig
}

// NewJobHandler creates a job handler. files may be nil when uploads are off.
func NewJobHandler(jobs *service.JobService, files service.FileLookup, cfg config.JobsConfig) *JobHandler {
	if cfg.DefaultListLimit <= 0 {
		cfg.DefaultListLimit = 50
	}
	if cfg.MaxListLimit <= 0 {
		cfg.MaxListLimit = 1000
	}
	return &JobHandler{jobs: jobs, files: files, cfg: cfg}
}

// Submit handles POST /api/threat-model/generate-async.
func (h *JobHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.ThreatModelJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	// Unknown uploads are rejected up front rather than failing the job later.
	if req.FileID != "" {
		var meta *domain.UploadedFile
		var err error
		if h.files != nil {
			meta, err = h.files.Lookup(ctx, req.FileID)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if meta == nil {
			respondError(c, fmt.Errorf("%w: %s", service.ErrFileNotFound, req.FileID))
			return
		}
	}

	id, err := h.jobs.Submit(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}

	job, _ := h.jobs.GetStatus(id)
	logger.CtxInfo(logger.SetJobID(ctx, id), "Async job accepted: status=%s", job.Status)
	c.JSON(http.StatusOK, domain.JobSubmission{
		JobID:               id,
		Status:              job.Status,
		Message:             job.Message,
		EstimatedCompletion: job.EstimatedCompletion,
	})
}

// Get handles GET /api/threat-model/jobs/:job_id.
func (h *JobHandler) Get(c *gin.Context) {
	job, ok := h.jobs.GetStatus(c.Param("job_id"))
	if !ok {
		abortWithError(c, http.StatusNotFound, "Job not found")
		return
	}
	c.JSON(http.StatusOK, job)
}

// Cancel handles DELETE /api/threat-model/jobs/:job_id.
func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("job_id")
	if _, err := uuid.Parse(id); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid job ID format")
		return
	}
	if !h.jobs.Cancel(id) {
		abortWithError(c, http.StatusBadRequest, "Job not found or cannot be cancelled")
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Job cancelled successfully"})
}

// List handles GET /api/threat-model/jobs?limit=N.
func (h *JobHandler) List(c *gin.Context) {
	limit := h.cfg.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > h.cfg.MaxListLimit {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", h.cfg.MaxListLimit))
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, h.jobs.List(limit))
}
