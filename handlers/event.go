package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendance-backend/lifecycle"
	"attendance-backend/middleware"
	"attendance-backend/models"
)

type EventHandler struct {
	manager *lifecycle.Manager
	logger  *zap.Logger
}

func NewEventHandler(manager *lifecycle.Manager, logger *zap.Logger) *EventHandler {
	return &EventHandler{manager: manager, logger: logger}
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create event", "details": err.Error()})
		return
	}

	event, err := h.manager.CreateEvent(c.Request.Context(), req, c.GetString(middleware.OwnerIDKey))
	if err != nil {
		h.fail(c, "create event", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Event created successfully",
		"event":   event,
	})
}

func (h *EventHandler) GetEvents(c *gin.Context) {
	events, err := h.manager.ListEvents(c.Request.Context())
	if err != nil {
		h.fail(c, "fetch events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.manager.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "fetch event", err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) ActivateEvent(c *gin.Context) {
	event, err := h.manager.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "activate event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Event activated",
		"event":   event,
	})
}

func (h *EventHandler) TimeoutEvent(c *gin.Context) {
	event, err := h.manager.Timeout(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "time out event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Event timed out",
		"event":   event,
	})
}

func (h *EventHandler) fail(c *gin.Context, op string, err error) {
	status := statusForEventError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("event operation failed", zap.String("op", op), zap.Error(err))
	} else {
		h.logger.Info("event operation rejected", zap.String("op", op), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": "Failed to " + op, "details": err.Error()})
}

func statusForEventError(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrEventTimedOut), errors.Is(err, lifecycle.ErrActiveEventExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
