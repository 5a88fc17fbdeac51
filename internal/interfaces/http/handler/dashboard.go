package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/logtower/backend/internal/application/dashboard"
)

// DashboardService answers the control tower queries
type DashboardService interface {
	Options() dashboard.Options
	Summary(ctx context.Context, f dashboard.Filter) (*dashboard.Summary, error)
	Charts(ctx context.Context, f dashboard.Filter) (*dashboard.Charts, error)
	Report(ctx context.Context, f dashboard.Filter) (*dashboard.Report, error)
	WriteReportCSV(ctx context.Context, w io.Writer, f dashboard.Filter) (string, error)
}

// DashboardHandler serves the executive control tower API
type DashboardHandler struct {
	BaseHandler
	service DashboardService
}

// NewDashboardHandler creates a DashboardHandler
func NewDashboardHandler(service DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// DashboardQuery are the filter query parameters. Dimension filters repeat
// their key, e.g. ?branch=A&branch=B; absent filters select everything.
type DashboardQuery struct {
	Month    string   `form:"month" binding:"omitempty,datetime=2006-01"`
	Branches []string `form:"branch"`
	Carriers []string `form:"carrier"`
	Clients  []string `form:"client"`
	Regions  []string `form:"region"`
}

// Filter converts the query to a dashboard filter
func (q DashboardQuery) Filter() dashboard.Filter {
	return dashboard.Filter{
		Month:    q.Month,
		Branches: q.Branches,
		Carriers: q.Carriers,
		Clients:  q.Clients,
		Regions:  q.Regions,
	}
}

// RegisterRoutes mounts the dashboard endpoints under /dashboard
func (h *DashboardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/dashboard")
	g.GET("/options", h.GetOptions)
	g.GET("/summary", h.GetSummary)
	g.GET("/charts", h.GetCharts)
	g.GET("/report", h.GetReport)
	g.GET("/report.csv", h.DownloadReport)
}

func (h *DashboardHandler) bind(c *gin.Context) (dashboard.Filter, bool) {
	var q DashboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return dashboard.Filter{}, false
	}
	return q.Filter(), true
}

// GetOptions returns the months and dimension values the filters accept
func (h *DashboardHandler) GetOptions(c *gin.Context) {
	h.Success(c, h.service.Options())
}

// GetSummary returns the KPI cards of the filtered month
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	f, ok := h.bind(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// GetCharts returns the chart series of the filtered month
func (h *DashboardHandler) GetCharts(c *gin.Context) {
	f, ok := h.bind(c)
	if !ok {
		return
	}
	charts, err := h.service.Charts(c.Request.Context(), f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, charts)
}

// GetReport returns the audit rows of the filtered month
func (h *DashboardHandler) GetReport(c *gin.Context) {
	f, ok := h.bind(c)
	if !ok {
		return
	}
	report, err := h.service.Report(c.Request.Context(), f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// DownloadReport streams the audit rows as a ;-separated CSV attachment.
// The body is buffered so failures still produce a JSON error.
func (h *DashboardHandler) DownloadReport(c *gin.Context) {
	f, ok := h.bind(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	name, err := h.service.WriteReportCSV(c.Request.Context(), &buf, f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
