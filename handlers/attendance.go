package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendance-backend/admission"
	"attendance-backend/models"
)

// RecordLister returns stored attendance records.
type RecordLister interface {
	ListRecords(ctx context.Context) ([]models.AttendanceRecord, error)
}

type AttendanceHandler struct {
	records RecordLister
	logger  *zap.Logger
}

func NewAttendanceHandler(records RecordLister, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{records: records, logger: logger}
}

// GetAttendance lists every record, optionally narrowed by ?q= over name,
// course, email and phone.
func (h *AttendanceHandler) GetAttendance(c *gin.Context) {
	records, err := h.records.ListRecords(c.Request.Context())
	if err != nil {
		h.logger.Error("listing attendance records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendance records"})
		return
	}

	records = admission.FilterRecords(records, c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}
