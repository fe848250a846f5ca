package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/scheduling"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

// AppointmentHandler handles appointment lifecycle requests.
type AppointmentHandler struct {
	Engine   *scheduling.Engine
	Calendar *scheduling.Calendar
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(engine *scheduling.Engine, calendar *scheduling.Calendar) *AppointmentHandler {
	return &AppointmentHandler{Engine: engine, Calendar: calendar}
}

// AppointmentRequest represents the request body for creating or
// rescheduling an appointment.
type AppointmentRequest struct {
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
	AllDay    bool      `json:"allDay"`
	PatientID string    `json:"patientId"`
	Message   string    `json:"message"`
}

func (r AppointmentRequest) slot() scheduling.SlotInput {
	return scheduling.SlotInput{
		Start:     r.StartTime,
		End:       r.EndTime,
		AllDay:    r.AllDay,
		PatientID: r.PatientID,
		Message:   r.Message,
	}
}

// IDsRequest represents a batch operation over appointment ids.
type IDsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// MessageRequest carries the free-text message for single and batch
// message operations.
type MessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// BatchMessageRequest attaches one message to many appointments.
type BatchMessageRequest struct {
	IDs     []string `json:"ids" binding:"required"`
	Message string   `json:"message" binding:"required"`
}

// CreateAppointment handles booking a new slot for any of the three roles.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req AppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	id, err := h.Engine.CreateAppointment(c.Request.Context(), userID, req.slot())
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Created(c, "Appointment created successfully", gin.H{"id": id})
}

// categoryFromQuery maps the ?category= query parameter onto a list filter.
func categoryFromQuery(c *gin.Context) (store.Category, bool) {
	switch c.Query("category") {
	case "", "all":
		return store.CategoryAll, true
	case "pending":
		return store.CategoryPending, true
	case "upcoming":
		return store.CategoryUpcoming, true
	case "past":
		return store.CategoryPast, true
	case "missed":
		return store.CategoryMissed, true
	case "today":
		return store.CategoryToday, true
	}
	return store.CategoryAll, false
}

// GetAppointments handles fetching the appointments visible to the
// logged-in user, optionally narrowed by ?category=.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	category, ok := categoryFromQuery(c)
	if !ok {
		utils.BadRequest(c, "Unknown appointment category: "+c.Query("category"))
		return
	}

	appts, err := h.Calendar.ListAppointments(c.Request.Context(), userID, category)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appts)
}

// UpdateAppointment handles rescheduling a single appointment.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req AppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if err := h.Engine.UpdateAppointment(c.Request.Context(), userID, c.Param("id"), req.slot()); err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment updated successfully", nil)
}

// AcceptAppointment lets a doctor claim a single pending appointment.
func (h *AppointmentHandler) AcceptAppointment(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.Engine.AcceptAppointment(c.Request.Context(), userID, c.Param("id")); err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment accepted successfully", nil)
}

// AcceptAppointments claims a batch of appointments for the doctor.
func (h *AppointmentHandler) AcceptAppointments(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req IDsRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	count, err := h.Engine.AcceptAppointmentsByIDs(c.Request.Context(), userID, req.IDs)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointments accepted successfully", gin.H{"count": count})
}

// UnacceptAppointments releases a batch of claimed appointments back to
// pending.
func (h *AppointmentHandler) UnacceptAppointments(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req IDsRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	count, err := h.Engine.UnacceptAppointmentsByIDs(c.Request.Context(), userID, req.IDs)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointments unaccepted successfully", gin.H{"count": count})
}

// DeleteAppointment cancels a single appointment.
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.Engine.DeleteAppointment(c.Request.Context(), userID, c.Param("id")); err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment deleted successfully", nil)
}

// DeleteAppointments bulk-cancels appointments (doctor and admin only).
func (h *AppointmentHandler) DeleteAppointments(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req IDsRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	count, deletedIDs, err := h.Engine.DeleteAppointmentsByIDs(c.Request.Context(), userID, req.IDs)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointments deleted successfully", gin.H{"count": count, "ids": deletedIDs})
}

// SaveAppointmentMessage attaches free text to the caller's side of the
// appointment.
func (h *AppointmentHandler) SaveAppointmentMessage(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req MessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if err := h.Engine.SaveAppointmentMessage(c.Request.Context(), userID, c.Param("id"), req.Message); err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment message saved successfully", nil)
}

// DeleteAppointmentMessage clears the caller's message field.
func (h *AppointmentHandler) DeleteAppointmentMessage(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.Engine.DeleteAppointmentMessage(c.Request.Context(), userID, c.Param("id")); err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment message deleted successfully", nil)
}

// AddMessageToAppointments attaches one message to a batch of appointments.
func (h *AppointmentHandler) AddMessageToAppointments(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req BatchMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	count, err := h.Engine.AddMessageToAppointmentsByIDs(c.Request.Context(), userID, req.IDs, req.Message)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment messages saved successfully", gin.H{"count": count})
}

// DeleteMessagesFromAppointments clears the caller's message field on a
// batch of appointments.
func (h *AppointmentHandler) DeleteMessagesFromAppointments(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req IDsRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	count, err := h.Engine.DeleteMessagesFromAppointmentsByIDs(c.Request.Context(), userID, req.IDs)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment messages deleted successfully", gin.H{"count": count})
}
