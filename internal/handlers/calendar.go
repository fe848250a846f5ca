package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/scheduling"
	"clinic-app-server/internal/utils"
)

// CalendarHandler serves the derived read-only calendar views.
type CalendarHandler struct {
	Calendar *scheduling.Calendar
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(calendar *scheduling.Calendar) *CalendarHandler {
	return &CalendarHandler{Calendar: calendar}
}

// CountsResponse aggregates the per-category appointment counts for the
// dashboard.
type CountsResponse struct {
	Pending  int64 `json:"pending"`
	Upcoming int64 `json:"upcoming"`
	Past     int64 `json:"past"`
	Missed   int64 `json:"missed"`
}

// GetCounts handles fetching all four category counts at once.
func (h *CalendarHandler) GetCounts(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	ctx := c.Request.Context()

	pending, err := h.Calendar.PendingCount(ctx, userID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	upcoming, err := h.Calendar.UpcomingCount(ctx, userID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	past, err := h.Calendar.PastCount(ctx, userID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	missed, err := h.Calendar.MissedCount(ctx, userID)
	if err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Success(c, "Appointment counts fetched successfully", CountsResponse{
		Pending:  pending,
		Upcoming: upcoming,
		Past:     past,
		Missed:   missed,
	})
}

// GetMissedCalendar handles fetching the missed-slot slice for a window
// given by ?from= and ?to= in RFC 3339.
func (h *CalendarHandler) GetMissedCalendar(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		utils.BadRequest(c, "Invalid 'from' timestamp: "+err.Error())
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		utils.BadRequest(c, "Invalid 'to' timestamp: "+err.Error())
		return
	}

	appts, err := h.Calendar.MissedCalendar(c.Request.Context(), userID, from, to)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Missed appointments fetched successfully", appts)
}

// GetTodayAppointments handles fetching the caller's appointments that
// start today.
func (h *CalendarHandler) GetTodayAppointments(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appts, err := h.Calendar.TodayAppointments(c.Request.Context(), userID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Today's appointments fetched successfully", appts)
}

// GetTotalHoursToday handles fetching today's summed booked time as a
// display string.
func (h *CalendarHandler) GetTotalHoursToday(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	hours, err := h.Calendar.CountTotalHoursToday(c.Request.Context(), userID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Total hours fetched successfully", gin.H{"totalHours": hours})
}

// GetNowAppointment handles fetching the doctor's currently running
// appointment, if any.
func (h *CalendarHandler) GetNowAppointment(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appt, err := h.Calendar.NowAppointment(c.Request.Context(), userID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Current appointment fetched successfully", appt)
}

// GetNextAppointment handles fetching the doctor's next appointment plus
// previous-visit context.
func (h *CalendarHandler) GetNextAppointment(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	view, err := h.Calendar.NextAppointment(c.Request.Context(), userID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Next appointment fetched successfully", view)
}

// GetJustCreatedAppointment handles re-fetching the latest booking for a
// patient right after submission.
func (h *CalendarHandler) GetJustCreatedAppointment(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	patientID := c.Query("patientId")
	if patientID == "" {
		patientID = userID
	}

	appt, err := h.Calendar.JustCreatedAppointment(c.Request.Context(), userID, patientID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appt)
}
