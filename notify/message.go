package notify

import (
	"fmt"

	"attendance-backend/models"
)

const emailSubject = "Attendance System Notification"

func confirmationText(rec models.AttendanceRecord) string {
	return fmt.Sprintf(
		"Hi %s, your attendance for %s was recorded at %s (%s, year %s).",
		rec.Name,
		rec.Date,
		rec.CheckInAt.Format("3:04 PM"),
		models.CourseName(rec.Course),
		rec.YearLevel,
	)
}
