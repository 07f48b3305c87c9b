package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/logger"
	"github.com/timmy/threatforge/internal/service"
)

// AdminHandler handles operator maintenance: retention sweeps and bookkeeping.
type AdminHandler struct {
	jobs    *service.JobService
	files   *service.FileService
	jobsCfg config.JobsConfig
	upCfg   config.UploadsConfig

	// File cleanup run state
	mu            sync.RWMutex
	isRunning     bool
	lastRunTime   time.Time
	lastRunStatus string
	lastDeleted   int
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - jobs: job runner owning the job table and result cache.
//   - files: upload service.
//   - jobsCfg, upCfg: default retention windows.
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(jobs *service.JobService, files *service.FileService, jobsCfg config.JobsConfig, upCfg config.UploadsConfig) *AdminHandler {
	return &AdminHandler{jobs: jobs, files: files, jobsCfg: jobsCfg, upCfg: upCfg}
}

// EvictResponse reports a retention sweep.
type EvictResponse struct {
	Evicted   int    `json:"evicted"`
	OlderThan string `json:"older_than"`
}

// CleanupStatusResponse represents the file cleanup status.
type CleanupStatusResponse struct {
	IsRunning     bool   `json:"is_running"`
	LastRunTime   string `json:"last_run_time,omitempty"`
	LastRunStatus string `json:"last_run_status,omitempty"`
	LastDeleted   int    `json:"last_deleted"`
}

// olderThan reads ?older_than as a Go duration, falling back to def.
func olderThan(c *gin.Context, def time.Duration) (time.Duration, bool) {
	raw := c.Query("older_than")
	if raw == "" {
		return def, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		abortWithError(c, http.StatusBadRequest, "older_than must be a non-negative duration such as 24h")
		return 0, false
	}
	return d, true
}

// EvictJobs handles POST /api/admin/jobs/evict.
func (h *AdminHandler) EvictJobs(c *gin.Context) {
	age, ok := olderThan(c, h.jobsCfg.JobRetention)
	if !ok {
		return
	}
	n := h.jobs.EvictOldJobs(age)
	c.JSON(http.StatusOK, EvictResponse{Evicted: n, OlderThan: age.String()})
}

// EvictCache handles POST /api/admin/cache/evict.
func (h *AdminHandler) EvictCache(c *gin.Context) {
	age, ok := olderThan(c, h.jobsCfg.CacheRetention)
	if !ok {
		return
	}
	n := h.jobs.EvictOldCache(age)
	c.JSON(http.StatusOK, EvictResponse{Evicted: n, OlderThan: age.String()})
}

// CacheStats handles GET /api/admin/cache/stats.
func (h *AdminHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.CacheStats())
}

// JobStats handles GET /api/admin/jobs/stats.
func (h *AdminHandler) JobStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.JobStats())
}

// CleanupFiles handles POST /api/admin/files/cleanup. Only one sweep runs at a time.
func (h *AdminHandler) CleanupFiles(c *gin.Context) {
	ctx := c.Request.Context()
	age, ok := olderThan(c, h.upCfg.Retention)
	if !ok {
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Cleanup request rejected: already running, client_ip=%s", c.ClientIP())
		abortWithError(c, http.StatusConflict, "Cleanup is already running")
		return
	}
	h.isRunning = true
	h.mu.Unlock()

	start := time.Now()
	deleted, err := h.files.CleanupOlderThan(ctx, age)

	h.mu.Lock()
	h.isRunning = false
	h.lastRunTime = time.Now()
	h.lastDeleted = deleted
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		respondError(c, err)
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      deleted,
	}).Info(ctx, "File cleanup completed: older_than=%s", age)
	c.JSON(http.StatusOK, EvictResponse{Evicted: deleted, OlderThan: age.String()})
}

// CleanupStatus handles GET /api/admin/files/cleanup.
func (h *AdminHandler) CleanupStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := CleanupStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		LastDeleted:   h.lastDeleted,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// FileStats handles GET /api/admin/files/stats.
func (h *AdminHandler) FileStats(c *gin.Context) {
	stats, err := h.files.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// FileIntegrity handles GET /api/admin/files/:file_id/integrity.
func (h *AdminHandler) FileIntegrity(c *gin.Context) {
	report, err := h.files.VerifyIntegrity(c.Request.Context(), c.Param("file_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
