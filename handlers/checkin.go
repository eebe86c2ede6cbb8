package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendance-backend/admission"
	"attendance-backend/models"
)

// Submitter decides attendance submissions.
type Submitter interface {
	SubmitAttendance(ctx context.Context, req models.CheckInRequest) admission.Outcome
}

// Gate reports whether check-in is currently open.
type Gate interface {
	IsAdmitting(ctx context.Context) (bool, error)
}

type CheckinHandler struct {
	engine Submitter
	gate   Gate
	logger *zap.Logger
}

func NewCheckinHandler(engine Submitter, gate Gate, logger *zap.Logger) *CheckinHandler {
	return &CheckinHandler{engine: engine, gate: gate, logger: logger}
}

func (h *CheckinHandler) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := gin.H{
			"success": false,
			"message": "Invalid request body",
			"reason":  admission.ReasonValidation,
		}
		// A value of the wrong JSON type, e.g. a numeric year_level.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			resp["message"] = "Invalid submission: " + typeErr.Field + " must be a " + typeErr.Type.String()
			resp["fields"] = []string{typeErr.Field}
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	out := h.engine.SubmitAttendance(c.Request.Context(), req)
	if out.Accepted {
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": out.Message(),
			"record":  out.Record,
		})
		return
	}

	resp := gin.H{
		"success": false,
		"message": out.Message(),
		"reason":  out.Reason,
	}
	if len(out.Fields) > 0 {
		resp["fields"] = out.Fields
	}
	c.JSON(statusForReason(out.Reason), resp)
}

// Status tells the form whether it should accept input.
func (h *CheckinHandler) Status(c *gin.Context) {
	admitting, err := h.gate.IsAdmitting(c.Request.Context())
	if err != nil {
		h.logger.Error("checking event status", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to check event status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"admitting": admitting})
}

func (h *CheckinHandler) Courses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"courses":     models.Courses,
		"year_levels": models.YearLevels,
	})
}

func statusForReason(reason admission.Reason) int {
	switch reason {
	case admission.ReasonEventNotActive:
		return http.StatusForbidden
	case admission.ReasonDuplicateCheckIn, admission.ReasonPhoneAlreadyUsed:
		return http.StatusConflict
	case admission.ReasonValidation:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}
