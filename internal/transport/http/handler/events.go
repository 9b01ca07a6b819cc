package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

const subscriptionValidationEvent = "Microsoft.EventGrid.SubscriptionValidationEvent"

// ingester is the subset of IngestUsecase the handler needs.
type ingester interface {
	ResourceChanged(ctx context.Context, resourceURI string) (usecase.IngestResult, error)
}

type EventHandler struct {
	ingest ingester
	logger *slog.Logger
}

func NewEventHandler(ingest ingester, logger *slog.Logger) *EventHandler {
	return &EventHandler{ingest: ingest, logger: logger.With("component", "event_handler")}
}

// eventGridEvent is the Event Grid schema envelope. Only the identity is
// used; tags are always re-read from the control plane.
type eventGridEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType" binding:"required"`
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data"`
}

type eventData struct {
	ResourceURI    string `json:"resourceUri"`
	ValidationCode string `json:"validationCode"`
}

type receiveResponse struct {
	Applied int `json:"applied"`
	Ignored int `json:"ignored"`
}

// POST /events
// Answers the subscription validation handshake, otherwise hands every
// resource identity to change ingest. Any failure returns 500 so the batch
// is redelivered; ingest is idempotent.
func (h *EventHandler) Receive(c *gin.Context) {
	var events []eventGridEvent
	if err := c.ShouldBindJSON(&events); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidEvents})
		return
	}

	var (
		resp   receiveResponse
		failed int
	)
	for _, ev := range events {
		var data eventData
		if len(ev.Data) > 0 {
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				h.logger.WarnContext(c.Request.Context(), "undecodable event data", "event_id", ev.ID, "error", err)
			}
		}

		if ev.EventType == subscriptionValidationEvent {
			h.logger.InfoContext(c.Request.Context(), "event subscription validated", "event_id", ev.ID)
			c.JSON(http.StatusOK, gin.H{"validationResponse": data.ValidationCode})
			return
		}

		uri := data.ResourceURI
		if uri == "" {
			uri = ev.Subject
		}

		res, err := h.ingest.ResourceChanged(c.Request.Context(), uri)
		if err != nil {
			h.logger.ErrorContext(c.Request.Context(), "ingest event",
				"event_id", ev.ID, "event_type", ev.EventType, "resource_uri", uri, "error", err)
			failed++
			continue
		}
		if res.Ignored {
			resp.Ignored++
		} else {
			resp.Applied++
		}
	}

	if failed > 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errIngestFailed})
		return
	}
	c.JSON(http.StatusOK, resp)
}
