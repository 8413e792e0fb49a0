package handlers

import (
	"import_panel/internal/logger"
	"import_panel/internal/metrics"
	"import_panel/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	router.GET("/metrics", metrics.Handler())

	h.registerAPIRoutes(router)
	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerPanelRoutes(api)
		h.registerConfigRoutes(api)
		h.registerHistoryRoutes(api)
	}
}

func (h *Handler) registerPanelRoutes(api *gin.RouterGroup) {
	api.POST("/panels", h.mountPanel)
	api.GET("/panels", h.listPanels)

	p := api.Group("/panels/:id", h.panelMiddleware)
	{
		p.GET("", h.getPanel)
		p.DELETE("", h.unmountPanel)
		p.GET("/logs", h.getPanelLogs)
		p.GET("/finished", h.getFinished)
		// Body example: {"job_id":"b7c1..."}
		p.POST("/select", h.selectJob)
		p.POST("/stop", h.stopJob)
		p.GET("/ws", h.panelStream)
	}
}

func (h *Handler) registerConfigRoutes(api *gin.RouterGroup) {
	configs := api.Group("/configs")
	{
		configs.GET("", h.listConfigs)
		configs.GET("/:id", h.showConfig)
	}
}

func (h *Handler) registerHistoryRoutes(api *gin.RouterGroup) {
	history := api.Group("/history")
	{
		history.GET("", h.listHistory)
		history.GET("/:job_id", h.getHistoryJob)
		history.GET("/:job_id/logs", h.getHistoryLogs)
		history.GET("/:job_id/records", h.getHistoryRecords)
	}
}
