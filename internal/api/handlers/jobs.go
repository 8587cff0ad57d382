package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"labelpress/internal/db"
	"labelpress/internal/queue"
	"labelpress/internal/symbol"
)

type CreateJobRequest struct {
	Location  string `json:"location" binding:"required"`
	Product   string `json:"product" binding:"required"`
	Packer    string `json:"packer" binding:"required"`
	Timestamp string `json:"timestamp"`
	Symbology string `json:"symbology"`
	Copies    int    `json:"copies"`
	Wait      bool   `json:"wait"`
}

type JobResponse struct {
	ID           int64      `json:"id"`
	Ref          string     `json:"ref"`
	Payload      string     `json:"payload"`
	Product      string     `json:"product"`
	Location     string     `json:"location"`
	Packer       string     `json:"packer"`
	Symbology    string     `json:"symbology"`
	Copies       int        `json:"copies"`
	Status       string     `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ExportPath   string     `json:"export_path,omitempty"`
	SubmittedBy  string     `json:"submitted_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type ListJobsQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

type JobHandler struct {
	queue *queue.Queue
}

func NewJobHandler(q *queue.Queue) *JobHandler {
	return &JobHandler{queue: q}
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var at time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC 3339"})
			return
		}
		at = parsed
	}

	var kind symbol.Symbology
	if req.Symbology != "" {
		parsed, err := symbol.ParseSymbology(req.Symbology)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		kind = parsed
	}

	job, done, err := h.queue.Submit(c.Request.Context(), queue.SubmitRequest{
		Location:    req.Location,
		Product:     req.Product,
		Packer:      req.Packer,
		At:          at,
		Symbology:   kind,
		Copies:      req.Copies,
		SubmittedBy: c.ClientIP(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !req.Wait {
		c.JSON(http.StatusCreated, gin.H{
			"id":      job.ID,
			"ref":     job.Ref,
			"payload": job.Payload,
			"status":  job.Status,
		})
		return
	}

	select {
	case res := <-done:
		resp := gin.H{
			"id":       job.ID,
			"ref":      job.Ref,
			"payload":  job.Payload,
			"status":   res.Status,
			"attempts": res.Attempts,
		}
		if res.ExportPath != "" {
			resp["export_path"] = res.ExportPath
		}
		if res.Err != nil && res.Status == queue.StatusFailed {
			resp["error"] = res.Err.Error()
		}
		c.JSON(http.StatusCreated, resp)
	case <-c.Request.Context().Done():
		c.JSON(http.StatusAccepted, gin.H{
			"id":     job.ID,
			"ref":    job.Ref,
			"status": "pending",
		})
	}
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 100 {
		query.Limit = 100
	}

	jobs, err := db.Jobs.ListJobs(c.Request.Context(), db.JobFilter{
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, jobToResponse(job))
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   responses,
		"limit":  query.Limit,
		"offset": query.Offset,
		"count":  len(responses),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	ref := c.Param("id")

	var (
		job *db.PrintJob
		err error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		job, err = db.Jobs.GetJobByID(c.Request.Context(), id)
	} else {
		job, err = db.Jobs.GetJobByRef(c.Request.Context(), ref)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) CancelJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if err := h.queue.Cancel(c.Request.Context(), id); err != nil {
		if errors.Is(err, queue.ErrJobNotCancelable) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}

func (h *JobHandler) RetryJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if err := h.queue.Retry(c.Request.Context(), id); err != nil {
		if errors.Is(err, queue.ErrJobNotRetryable) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job queued for retry"})
}

func (h *JobHandler) GetQueueStats(c *gin.Context) {
	stats, err := h.queue.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get queue stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func jobToResponse(job *db.PrintJob) JobResponse {
	return JobResponse{
		ID:           job.ID,
		Ref:          job.Ref,
		Payload:      job.Payload,
		Product:      job.ProductName,
		Location:     job.LocationName,
		Packer:       job.PackerName,
		Symbology:    job.Symbology,
		Copies:       job.Copies,
		Status:       job.Status,
		AttemptCount: job.AttemptCount,
		ErrorMessage: job.ErrorMessage,
		ExportPath:   job.ExportPath,
		SubmittedBy:  job.SubmittedBy,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs", h.ListJobs)
	r.POST("/jobs", h.CreateJob)
	r.GET("/jobs/queue", h.GetQueueStats)
	r.GET("/jobs/:id", h.GetJob)
	r.POST("/jobs/:id/cancel", h.CancelJob)
	r.POST("/jobs/:id/retry", h.RetryJob)
}
