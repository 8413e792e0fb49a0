package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"import_panel/internal/repository"
	"import_panel/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errLoadHistory = "failed to load history"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

func (h *Handler) historyError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	switch {
	case errors.Is(err, service.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not archived"})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadHistory, logKey, err, kv...)
	}
}

// @Summary      List archived jobs
// @Description  Jobs the panels saw stop, newest first. Dates accept RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'; a date-only 'to' is end of day inclusive.
// @Tags         history
// @Produce      json
// @Param        config_id  query  string  false  "import config id"
// @Param        from       query  string  false  "stopped at or after"  example(2026-08-01)
// @Param        to         query  string  false  "stopped at or before"  example(2026-08-31)
// @Success      200  {object}  map[string]interface{}  "count, jobs"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/history [get]
func (h *Handler) listHistory(c *gin.Context) {
	var (
		from, to time.Time
		err      error
	)
	if qs := c.Query("from"); qs != "" {
		if from, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	if qs := c.Query("to"); qs != "" {
		if to, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	jobs, err := h.services.History.List(c.Request.Context(), service.HistoryFilter{
		ConfigID: c.Query("config_id"),
		From:     from,
		To:       to,
	})
	if err != nil {
		h.historyError(c, err, "history_list_failed", "config_id", c.Query("config_id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(jobs), "jobs": jobs})
}

// @Summary      Archived job
// @Description  The job as it was when it stopped, with its log lines and finished records.
// @Tags         history
// @Produce      json
// @Param        job_id  path  string  true  "job id"
// @Success      200  {object}  models.JobArchive
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/history/{job_id} [get]
func (h *Handler) getHistoryJob(c *gin.Context) {
	a, err := h.services.History.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.historyError(c, err, "history_get_failed", "job_id", c.Param("job_id"))
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary      Archived log lines
// @Tags         history
// @Produce      json
// @Param        job_id  path   string  true   "job id"
// @Param        level   query  string  false  "log level"  Enums(debug,info,warning,error)
// @Success      200  {object}  map[string]interface{}  "count, lines"
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/history/{job_id}/logs [get]
func (h *Handler) getHistoryLogs(c *gin.Context) {
	lines, err := h.services.History.Logs(c.Request.Context(), c.Param("job_id"), c.Query("level"))
	if err != nil {
		h.historyError(c, err, "history_logs_failed", "job_id", c.Param("job_id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(lines), "lines": lines})
}

// @Summary      Archived finished records
// @Tags         history
// @Produce      json
// @Param        job_id  path   string  true   "job id"
// @Param        type    query  string  false  "record type"  Enums(all,created,updated,deleted,errored)
// @Success      200  {object}  map[string]interface{}  "count, records"
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/history/{job_id}/records [get]
func (h *Handler) getHistoryRecords(c *gin.Context) {
	recs, err := h.services.History.Records(c.Request.Context(), c.Param("job_id"), c.Query("type"))
	if err != nil {
		h.historyError(c, err, "history_records_failed", "job_id", c.Param("job_id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "records": recs})
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2026-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
