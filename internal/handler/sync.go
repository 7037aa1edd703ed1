package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storesync/internal/repository"
	"storesync/internal/service"
)

type SyncHandler struct {
	Scheduler     *service.Scheduler
	Audit         *service.AuditService
	ManualTimeout time.Duration
}

type manualSyncRequest struct {
	Types []string `json:"types"`
	Force bool     `json:"force"`
}

func (h *SyncHandler) Register(r *gin.Engine) {
	g := r.Group("/api/tenants/:id/sync")
	g.POST("", h.syncNow)
	g.GET("/status", h.status)
	g.GET("/health", h.health)
	g.GET("/logs", h.logs)
}

// @Summary Run a manual sync
// @Description Runs the requested entity types for one tenant and waits for the results.
// @Tags sync
// @Accept json
// @Param id path int true "tenant id"
// @Param body body manualSyncRequest false "types (customers|orders|products) and force"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 422 {object} apiResponse
// @Router /api/tenants/{id}/sync [post]
func (h *SyncHandler) syncNow(c *gin.Context) {
	if h.Scheduler == nil {
		Error(c, http.StatusServiceUnavailable, "scheduler unavailable", nil)
		return
	}
	tenantID := tenantParam(c)
	if tenantID == 0 {
		Error(c, http.StatusBadRequest, "invalid tenant id", nil)
		return
	}
	var req manualSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		req.Types = append(req.Types, strings.Split(v, ",")...)
	}
	if v := boolQueryPtr(c, "force"); v != nil {
		req.Force = *v
	}

	timeout := h.ManualTimeout
	if timeout <= 0 {
		timeout = 4 * time.Minute
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	result, err := h.Scheduler.SyncNow(ctx, tenantID, req.Types, req.Force)
	if err != nil {
		Error(c, syncErrorStatus(err), err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// @Summary Sync status
// @Tags sync
// @Param id path int true "tenant id"
// @Param recent query int false "number of recent audit entries (default 10)"
// @Success 200 {object} apiResponse
// @Router /api/tenants/{id}/sync/status [get]
func (h *SyncHandler) status(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	status, err := h.Audit.Status(c.Request.Context(), tenantID, intQuery(c, "recent", 10))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, status, nil)
}

// @Summary Sync health over a window
// @Tags sync
// @Param id path int true "tenant id"
// @Param window query string false "lookback window, e.g. 24h or 7d"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/tenants/{id}/sync/health [get]
func (h *SyncHandler) health(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	window, err := parseWindow(c.DefaultQuery("window", "24h"))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid window", nil)
		return
	}
	health, err := h.Audit.Health(c.Request.Context(), tenantID, window)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, health, nil)
}

// @Summary List audit entries
// @Tags sync
// @Param id path int true "tenant id"
// @Param type query string false "sync type, e.g. orders or webhook:orders/create"
// @Param success query bool false "filter by outcome"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/tenants/{id}/sync/logs [get]
func (h *SyncHandler) logs(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	params := repository.ListSyncLogsParams{
		TenantID: tenantID,
		Success:  boolQueryPtr(c, "success"),
		Limit:    intQuery(c, "limit", 50),
		Offset:   intQuery(c, "offset", 0),
	}
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		params.SyncType = &v
	}
	items, err := h.Audit.RecentLogs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"limit": params.Limit, "offset": params.Offset})
}

func (h *SyncHandler) tenant(c *gin.Context) (uint64, bool) {
	if h.Audit == nil {
		Error(c, http.StatusServiceUnavailable, "audit log unavailable", nil)
		return 0, false
	}
	tenantID := tenantParam(c)
	if tenantID == 0 {
		Error(c, http.StatusBadRequest, "invalid tenant id", nil)
		return 0, false
	}
	return tenantID, true
}

func syncErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTenantNotConfigured):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUnsupportedSyncType):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseWindow accepts Go durations plus a day suffix ("7d").
func parseWindow(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, errors.New("invalid day count")
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("window must be positive")
	}
	return d, nil
}
