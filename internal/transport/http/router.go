package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// NewRouter mounts the Event Grid webhook and, when triggerKey is set, the
// authenticated manual trigger endpoints.
func NewRouter(logger *slog.Logger, eventHandler *handler.EventHandler, triggerHandler *handler.TriggerHandler, triggerKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.POST("/events", eventHandler.Receive)

	if len(triggerKey) > 0 && triggerHandler != nil {
		triggers := r.Group("/triggers", middleware.Auth(triggerKey))
		triggers.POST("/extend", triggerHandler.Extend)
		triggers.POST("/reconcile", triggerHandler.Reconcile)
	}

	return r
}
