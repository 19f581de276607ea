package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mm-swarm/internal/middleware"
	"mm-swarm/internal/models"
	"mm-swarm/internal/proc"
	"mm-swarm/services"
)

type APIController struct {
	server *services.StatusServer
}

/**
 * Create new API controller instance
 * @param {*services.StatusServer} server - Supervisor view backing the handlers
 * @returns {*APIController} New API controller instance
 * @example
 * controller := controllers.NewAPIController(services.NewStatusServer(sup, "kitchen", "1.0.0"))
 */
func NewAPIController(server *services.StatusServer) *APIController {
	return &APIController{
		server: server,
	}
}

// NewRouter builds the status API engine with recovery and request metrics.
func NewRouter(server *services.StatusServer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	NewAPIController(server).RegisterRoutes(r)
	return r
}

/**
 * Register all API routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - /healthz and /metrics at the root
 * - Process listing and restart under /api/v1
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(services.MetricsHandler()))
	v1 := r.Group("/api/v1")
	v1.GET("/processes", a.ListProcesses)
	v1.POST("/processes/:name/restart", a.RestartProcess)
}

// @Summary Readiness probe
// @Description Version, uptime, process counters and request statistics
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	response := a.server.GetHealthz()
	code := http.StatusOK
	if response.Status != string(models.Healthy) {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

// @Summary List supervised processes
// @Tags Process
// @Produce json
// @Success 200 {array} models.ProcessDetail
// @Router /api/v1/processes [get]
func (a *APIController) ListProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, a.server.Processes())
}

// @Summary Restart a supervised process
// @Tags Process
// @Param name path string true "Process name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/processes/{name}/restart [post]
func (a *APIController) RestartProcess(c *gin.Context) {
	name := c.Param("name")
	if err := a.server.Restart(name); err != nil {
		code := http.StatusInternalServerError
		errCode := "process.restart_failed"
		if errors.Is(err, proc.ErrUnknownProcess) {
			code = http.StatusNotFound
			errCode = "process.not_found"
		}
		c.JSON(code, models.ErrorResponse{
			Code:    errCode,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Process " + name + " restarted",
	})
}
