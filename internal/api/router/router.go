package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/akarpovich/notification-service/internal/api/handlers/notification"
	"github.com/akarpovich/notification-service/internal/metrics"
	"github.com/akarpovich/notification-service/internal/middlewares"
)

func New(handler *notification.Handler, m *metrics.Metrics) *ginext.Engine {
	e := ginext.New()
	e.Use(middlewares.CORSMiddleware())
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	metricsHandler := m.Handler()
	e.GET("/metrics", func(c *ginext.Context) {
		metricsHandler.ServeHTTP(c.Writer, c.Request)
	})

	api := e.Group("/api/notifications")
	{
		api.POST("", handler.Create)
		api.GET("", handler.List)
		api.GET("/:id", handler.GetByID)
		api.PATCH("/:id/read", handler.MarkRead)
		api.PATCH("/:id/unread", handler.MarkUnread)
	}

	return e
}
