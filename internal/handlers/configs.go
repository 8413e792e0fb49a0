package handlers

import (
	"errors"
	"net/http"

	"import_panel/internal/ckan"

	"github.com/gin-gonic/gin"
)

// actionErrorResponse maps an action API failure to a status and body. An
// authorization error asks the browser to log in again.
func actionErrorResponse(err error) (int, gin.H) {
	kind := ckan.Kind(err)
	switch {
	case kind == "authorization":
		return http.StatusUnauthorized, gin.H{"error": "not authorized; log in again", "kind": kind}
	case errors.Is(err, ckan.ErrCircuitOpen):
		return http.StatusServiceUnavailable, gin.H{"error": "action API temporarily unavailable", "kind": kind}
	case kind == "action", kind == "payload", kind == "transport":
		return http.StatusBadGateway, gin.H{"error": err.Error(), "kind": kind}
	default:
		return http.StatusInternalServerError, gin.H{"error": "failed to load import configs"}
	}
}

// @Summary      List import configs
// @Tags         configs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, configs"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/configs [get]
func (h *Handler) listConfigs(c *gin.Context) {
	cfgs, err := h.services.Configs.List(c.Request.Context())
	if err != nil {
		if h.log != nil {
			h.log.Warnw("configs_list_failed", "err", err, "kind", ckan.Kind(err))
		}
		code, body := actionErrorResponse(err)
		c.JSON(code, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(cfgs), "configs": cfgs})
}

// @Summary      Show one import config
// @Tags         configs
// @Produce      json
// @Param        id   path      string  true  "import config id"
// @Success      200  {object}  models.ImportConfig
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/configs/{id} [get]
func (h *Handler) showConfig(c *gin.Context) {
	cfg, err := h.services.Configs.Show(c.Request.Context(), c.Param("id"))
	if err != nil {
		if h.log != nil {
			h.log.Warnw("config_show_failed", "err", err, "id", c.Param("id"), "kind", ckan.Kind(err))
		}
		code, body := actionErrorResponse(err)
		c.JSON(code, body)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
