package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	ctxlog "github.com/ErlanBelekov/vm-power-scheduler/internal/log"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/scheduler"
	"github.com/gin-gonic/gin"
)

type extender interface {
	Run(ctx context.Context, now time.Time) (scheduler.ExtendReport, error)
}

type reconciler interface {
	Run(ctx context.Context, now time.Time) scheduler.ReconcileReport
}

// TriggerHandler runs the periodic passes on demand, for operators and for
// deployments driven by an external clock.
type TriggerHandler struct {
	extender   extender
	reconciler reconciler
	logger     *slog.Logger
}

func NewTriggerHandler(extender extender, reconciler reconciler, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{
		extender:   extender,
		reconciler: reconciler,
		logger:     logger.With("component", "trigger_handler"),
	}
}

// POST /triggers/extend
func (h *TriggerHandler) Extend(c *gin.Context) {
	ctx := ctxlog.WithPass(c.Request.Context(), "extend")
	h.logger.InfoContext(ctx, "extend triggered", "subject", c.GetString("subject"))

	report, err := h.extender.Run(ctx, time.Now())
	if err != nil {
		h.logger.ErrorContext(ctx, "triggered extend", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errPassAborted, "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

// POST /triggers/reconcile
func (h *TriggerHandler) Reconcile(c *gin.Context) {
	ctx := ctxlog.WithPass(c.Request.Context(), "reconcile")
	h.logger.InfoContext(ctx, "reconcile triggered", "subject", c.GetString("subject"))

	c.JSON(http.StatusOK, h.reconciler.Run(ctx, time.Now()))
}
