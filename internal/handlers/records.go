package handlers

import (
	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/records"
	"clinic-app-server/internal/utils"
)

// MedicalRecordHandler handles medical-record requests.
type MedicalRecordHandler struct {
	Records *records.Service
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler.
func NewMedicalRecordHandler(svc *records.Service) *MedicalRecordHandler {
	return &MedicalRecordHandler{Records: svc}
}

// SaveRecordRequest represents the request body for creating or updating a
// medical record. A present id selects the update path.
type SaveRecordRequest struct {
	ID            string `json:"id"`
	AppointmentID string `json:"appointmentId"`
	Title         string `json:"title" binding:"required"`
	Text          string `json:"text"`
	Draft         bool   `json:"draft"`
}

// SaveRecord handles creating or updating a record (doctor only).
func (h *MedicalRecordHandler) SaveRecord(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req SaveRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	id, err := h.Records.SaveRecord(c.Request.Context(), userID, records.Input{
		ID:            req.ID,
		AppointmentID: req.AppointmentID,
		Title:         req.Title,
		Text:          req.Text,
		Draft:         req.Draft,
	})
	if err != nil {
		utils.FromError(c, err)
		return
	}
	if req.ID == "" {
		utils.Created(c, "Record created successfully", gin.H{"id": id})
		return
	}
	utils.Success(c, "Record updated successfully", gin.H{"id": id})
}

// GetRecords handles listing the records visible to the caller, optionally
// narrowed to one patient via ?patientId=.
func (h *MedicalRecordHandler) GetRecords(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	recs, err := h.Records.ListRecords(c.Request.Context(), userID, c.Query("patientId"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Records fetched successfully", recs)
}

// DeleteRecord handles deleting a single record (doctor only).
func (h *MedicalRecordHandler) DeleteRecord(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.Records.DeleteRecord(c.Request.Context(), userID, c.Param("id")); err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Record deleted successfully", nil)
}

// DeleteRecords handles bulk record deletion (doctor only).
func (h *MedicalRecordHandler) DeleteRecords(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req IDsRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	count, err := h.Records.DeleteRecordsByIDs(c.Request.Context(), userID, req.IDs)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Records deleted successfully", gin.H{"count": count})
}

// FinalizeRecords handles bulk-publishing drafts (doctor only).
func (h *MedicalRecordHandler) FinalizeRecords(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req IDsRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	count, err := h.Records.SaveRecordsAsFinalByIDs(c.Request.Context(), userID, req.IDs)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Records finalized successfully", gin.H{"count": count})
}
