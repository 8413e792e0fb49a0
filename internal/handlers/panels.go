package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"import_panel/internal/models"
	"import_panel/internal/panel"

	"github.com/gin-gonic/gin"
)

const (
	statusOK        = "ok"
	statusUnmounted = "unmounted"
	statusSelected  = "selected"
	statusStopping  = "stop_requested"

	errMountPanel   = "failed to mount panel"
	errPanelGone    = "panel is closed"
	errInvalidQuery = "invalid query: "
	errInvalidBody  = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// panelError maps panel command errors to HTTP statuses.
func panelError(err error) (int, string) {
	switch {
	case errors.Is(err, panel.ErrClosed):
		return http.StatusGone, errPanelGone
	case errors.Is(err, panel.ErrUnknownJob):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, panel.ErrNoJobSelected), errors.Is(err, panel.ErrNotConnected):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "panel command failed"
	}
}

// MountRequest is the body of POST /api/v1/panels.
type MountRequest struct {
	ImportConfigID string `json:"import_config_id" binding:"required" example:"3f2b7c9e-import-config"`
}

// SelectRequest is the body of POST /api/v1/panels/{id}/select.
type SelectRequest struct {
	JobID string `json:"job_id" binding:"required" example:"b7c1e0aa-job"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Mount a panel
// @Description  Exchanges a channel token and opens the event channel for one import config. A failed exchange still mounts the panel in the disconnected state.
// @Tags         panels
// @Accept       json
// @Produce      json
// @Param        body  body      MountRequest  true  "import config"
// @Success      201   {object}  map[string]string  "id"
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/panels [post]
func (h *Handler) mountPanel(c *gin.Context) {
	var req MountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody + err.Error()})
		return
	}
	id, err := h.services.Panels.Mount(c.Request.Context(), req.ImportConfigID)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errMountPanel, "panel_mount_failed", err, "import_config_id", req.ImportConfigID)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// @Summary      List mounted panels
// @Tags         panels
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, panels"
// @Router       /api/v1/panels [get]
func (h *Handler) listPanels(c *gin.Context) {
	panels := h.services.Panels.List()
	c.JSON(http.StatusOK, gin.H{"count": len(panels), "panels": panels})
}

// @Summary      Unmount a panel
// @Tags         panels
// @Produce      json
// @Param        id   path      string  true  "panel id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/panels/{id} [delete]
func (h *Handler) unmountPanel(c *gin.Context) {
	if err := h.services.Panels.Unmount(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "panel not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusUnmounted})
}

// @Summary      Panel snapshot
// @Description  Connection state, selected job, running jobs, progress and buffer sizes.
// @Tags         panels
// @Produce      json
// @Param        id   path      string  true  "panel id"
// @Success      200  {object}  panel.Snapshot
// @Failure      404  {object}  map[string]string
// @Failure      410  {object}  map[string]string
// @Router       /api/v1/panels/{id} [get]
func (h *Handler) getPanel(c *gin.Context) {
	s, err := currentPanel(c).Snapshot()
	if err != nil {
		code, msg := panelError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary      Rendered log lines
// @Description  Lines from absolute position offset on; poll again with the returned next.
// @Tags         panels
// @Produce      json
// @Param        id      path   string  true   "panel id"
// @Param        offset  query  int     false  "absolute line position"  minimum(0)
// @Success      200  {object}  map[string]interface{}  "lines, next"
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/panels/{id}/logs [get]
func (h *Handler) getPanelLogs(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidQuery + "offset must be a non-negative integer"})
		return
	}
	lines, next, err := currentPanel(c).Logs(offset)
	if err != nil {
		code, msg := panelError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines, "next": next})
}

// @Summary      Finished records
// @Tags         panels
// @Produce      json
// @Param        id        path   string  true   "panel id"
// @Param        type      query  string  false  "record type"  Enums(all,created,updated,deleted,errored)
// @Param        page      query  int     false  "1-based page"
// @Param        per_page  query  int     false  "page size (max 500)"
// @Success      200  {object}  panel.RecordPage
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/panels/{id}/finished [get]
func (h *Handler) getFinished(c *gin.Context) {
	typ, err := models.ParseRecordType(c.Query("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidQuery + err.Error()})
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidQuery + "page"})
		return
	}
	perPage, err := queryInt(c, "per_page", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidQuery + "per_page"})
		return
	}
	rp, err := currentPanel(c).Records(typ, page, perPage)
	if err != nil {
		code, msg := panelError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, rp)
}

// @Summary      Select a running job
// @Description  Unsubscribes the previous job, clears the buffers and loads the new job's status snapshot.
// @Tags         panels
// @Accept       json
// @Produce      json
// @Param        id    path      string         true  "panel id"
// @Param        body  body      SelectRequest  true  "job"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/panels/{id}/select [post]
func (h *Handler) selectJob(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody + err.Error()})
		return
	}
	if err := currentPanel(c).Select(req.JobID); err != nil {
		code, msg := panelError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSelected, "job_id": req.JobID})
}

// @Summary      Stop the selected job
// @Description  Emits stop_job; the job leaves the selector when job_stopped arrives.
// @Tags         panels
// @Produce      json
// @Param        id   path      string  true  "panel id"
// @Success      202  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/panels/{id}/stop [post]
func (h *Handler) stopJob(c *gin.Context) {
	if err := currentPanel(c).Stop(); err != nil {
		code, msg := panelError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusStopping})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
