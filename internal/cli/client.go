package cli

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/threatforge/internal/domain"
)

// Client talks to a running ThreatForge API.
type Client struct {
	http *resty.Client
}

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// EvictResult mirrors the admin sweep response.
type EvictResult struct {
	Evicted   int    `json:"evicted"`
	OlderThan string `json:"older_than"`
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &Client{http: c}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var apiErr apiError
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body()))
		}
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode(), msg)
	}
	return nil
}

func (c *Client) ListJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	err := c.do(ctx, resty.MethodGet, "/api/threat-model/jobs?limit="+strconv.Itoa(limit), nil, &jobs)
	return jobs, err
}

func (c *Client) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := c.do(ctx, resty.MethodGet, "/api/threat-model/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) CancelJob(ctx context.Context, id string) error {
	return c.do(ctx, resty.MethodDelete, "/api/threat-model/jobs/"+url.PathEscape(id), nil, nil)
}

func (c *Client) SubmitJob(ctx context.Context, req domain.ThreatModelJobRequest) (*domain.JobSubmission, error) {
	var sub domain.JobSubmission
	if err := c.do(ctx, resty.MethodPost, "/api/threat-model/generate-async", req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// WaitJob polls until the job is terminal or ctx ends.
func (c *Client) WaitJob(ctx context.Context, id string, every time.Duration) (*domain.Job, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) evict(ctx context.Context, path string, olderThan time.Duration) (*EvictResult, error) {
	if olderThan > 0 {
		path += "?older_than=" + url.QueryEscape(olderThan.String())
	}
	var res EvictResult
	if err := c.do(ctx, resty.MethodPost, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// EvictJobs removes terminal jobs; zero olderThan uses the server default.
func (c *Client) EvictJobs(ctx context.Context, olderThan time.Duration) (*EvictResult, error) {
	return c.evict(ctx, "/api/admin/jobs/evict", olderThan)
}

// EvictCache removes cached results; zero olderThan uses the server default.
func (c *Client) EvictCache(ctx context.Context, olderThan time.Duration) (*EvictResult, error) {
	return c.evict(ctx, "/api/admin/cache/evict", olderThan)
}

// CleanupFiles removes old uploads; zero olderThan uses the server default.
func (c *Client) CleanupFiles(ctx context.Context, olderThan time.Duration) (*EvictResult, error) {
	return c.evict(ctx, "/api/admin/files/cleanup", olderThan)
}

func (c *Client) CacheStats(ctx context.Context) (*domain.CacheStats, error) {
	var s domain.CacheStats
	if err := c.do(ctx, resty.MethodGet, "/api/admin/cache/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) JobStats(ctx context.Context) (*domain.JobStats, error) {
	var s domain.JobStats
	if err := c.do(ctx, resty.MethodGet, "/api/admin/jobs/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) FileStats(ctx context.Context) (*domain.FileStats, error) {
	var s domain.FileStats
	if err := c.do(ctx, resty.MethodGet, "/api/admin/files/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) VerifyFile(ctx context.Context, id string) (*domain.IntegrityReport, error) {
	var r domain.IntegrityReport
	if err := c.do(ctx, resty.MethodGet, "/api/admin/files/"+url.PathEscape(id)+"/integrity", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) Providers(ctx context.Context) ([]domain.Provider, error) {
	var body struct {
		Providers []domain.Provider `json:"providers"`
	}
	err := c.do(ctx, resty.MethodGet, "/api/threat-model/providers", nil, &body)
	return body.Providers, err
}
