package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/bulk"
)

// RunHandler exposes the ETL run history
type RunHandler struct {
	BaseHandler
	runs bulk.RunRepository
}

// NewRunHandler creates a RunHandler
func NewRunHandler(runs bulk.RunRepository) *RunHandler {
	return &RunHandler{runs: runs}
}

// RunQuery filters the run history
type RunQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending processing completed completed_with_errors failed cancelled"`
	File   string `form:"file" binding:"omitempty,max=255"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// RunResponse is one ETL run as returned by the API
type RunResponse struct {
	ID           uuid.UUID          `json:"id"`
	FileName     string             `json:"file_name"`
	ConflictMode string             `json:"conflict_mode"`
	Status       string             `json:"status"`
	Counters     bulk.Counters      `json:"counters"`
	Truncated    bool               `json:"truncated"`
	Errors       []bulk.ErrorDetail `json:"errors,omitempty"`
	Message      string             `json:"message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
}

func toRunResponse(r *bulk.Run, withErrors bool) RunResponse {
	resp := RunResponse{
		ID:           r.ID,
		FileName:     r.FileName,
		ConflictMode: string(r.ConflictMode),
		Status:       string(r.Status),
		Counters:     r.Counters,
		Truncated:    r.Truncated,
		Message:      r.Message,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
	if withErrors {
		resp.Errors = r.ErrorDetails
	}
	return resp
}

// RegisterRoutes mounts the run endpoints under /etl/runs
func (h *RunHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/etl/runs")
	g.GET("", h.ListRuns)
	g.GET("/:id", h.GetRun)
}

// ListRuns returns runs newest first, without their row errors
func (h *RunHandler) ListRuns(c *gin.Context) {
	var q RunQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}
	filter := bulk.RunFilter{FileName: q.File, Limit: q.Limit}
	if q.Status != "" {
		status := bulk.RunStatus(q.Status)
		filter.Status = &status
	}
	if filter.Limit == 0 {
		filter.Limit = 50
	}

	runs, err := h.runs.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]RunResponse, len(runs))
	for i, r := range runs {
		out[i] = toRunResponse(r, false)
	}
	h.Success(c, out)
}

// GetRun returns one run with its row errors
func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid run ID")
		return
	}
	run, err := h.runs.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRunResponse(run, true))
}
