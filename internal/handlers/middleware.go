package handlers

import (
	"net/http"
	"time"

	"import_panel/internal/service"

	"github.com/gin-gonic/gin"
)

const panelKey = "panel"

// requestLogger logs one line per request at debug level.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	if h.log == nil {
		return
	}
	h.log.Debugw("http_request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"latency", time.Since(start),
	)
}

// panelMiddleware resolves :id to a mounted panel and stores it in the
// Gin context.
func (h *Handler) panelMiddleware(c *gin.Context) {
	p, err := h.services.Panels.Get(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error": "panel not found",
		})
		return
	}
	c.Set(panelKey, p)
	c.Next()
}

func currentPanel(c *gin.Context) service.PanelHandle {
	return c.MustGet(panelKey).(service.PanelHandle)
}
