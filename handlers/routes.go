package handlers

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with recovery, request logging and the API
// routes.
func NewRouter(h *APIHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(h.Logger))
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes mounts the API under /api.
func (h *APIHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	{
		// Class routes
		api.GET("/classes", h.GetAllClasses)
		api.GET("/classes/:classId", h.GetClassByID)
		api.POST("/classes", h.AddClass)

		// Roster routes within a class
		api.GET("/classes/:classId/students", h.GetStudentsByClass)
		api.POST("/classes/:classId/students", h.AddStudent)
		api.POST("/import/students", h.ImportStudents)

		// Grouping routes
		api.POST("/classes/:classId/groupings", h.GroupClass)
		api.POST("/groupings", h.GroupUpload)
		api.GET("/groupings/:runId", h.GetRun)
		api.GET("/groupings/:runId/download", h.DownloadRun)

		api.GET("/ping", h.Ping)
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"clientIP", c.ClientIP(),
		)
	}
}
