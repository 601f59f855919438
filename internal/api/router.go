// internal/api/router.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the routes. metrics may be nil.
func NewRouter(h *Handler, mode string, metrics http.Handler) http.Handler {
	if mode != "" {
		gin.SetMode(mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(h.log))

	devices := router.Group("/api/devices")
	{
		devices.GET("/", h.ListDevices)
		devices.GET("/:id/last/", h.LastPoll)
		devices.GET("/:id/status/", h.DeviceStatus)
		devices.POST("/:id/write_coils/", h.WriteCoils)
		devices.GET("/:id/cards/:card_id/series/", h.CardSeries)
		devices.POST("/:id/actions/:action_id/execute/", h.ExecuteAction)
	}

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	return router
}
