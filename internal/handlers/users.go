package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

// UserHandler handles user-related requests (typically admin operations).
type UserHandler struct {
	Users store.UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users store.UserStore) *UserHandler {
	return &UserHandler{Users: users}
}

// CreateUserRequest represents the request body for creating a user by an admin.
type CreateUserRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	RoleCode  int    `json:"roleCode" binding:"required,oneof=1 2 3"`
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	role, err := models.RoleFromCode(req.RoleCode)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	existing, err := h.Users.ByEmail(c.Request.Context(), req.Email)
	if err != nil {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}
	if existing != nil {
		utils.BadRequest(c, "User with this email already exists")
		return
	}

	user := models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      role,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	if err := h.Users.Create(c.Request.Context(), &user); err != nil {
		utils.InternalServerError(c, "Failed to create user: "+err.Error())
		return
	}

	utils.Created(c, "User created successfully", user.Sanitize())
}

// GetUsers handles fetching all users (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch users: "+err.Error())
		return
	}

	sanitized := make([]models.UserSanitized, len(users))
	for i, u := range users {
		sanitized[i] = u.Sanitize()
	}

	utils.Success(c, "Users fetched successfully", sanitized)
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.Users.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUserRequest represents the request body for updating a user by an admin.
type UpdateUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	RoleCode  int    `json:"roleCode,omitempty"`
	// Password is updated via a separate "change password" flow
}

// UpdateUser handles updating a user by ID (admin).
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil { // Use ShouldBindJSON for partial updates
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.Users.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" && req.Email != user.Email {
		// Check if new email is already taken
		existing, err := h.Users.ByEmail(c.Request.Context(), req.Email)
		if err != nil {
			utils.InternalServerError(c, "Database error checking email: "+err.Error())
			return
		}
		if existing != nil && existing.ID != user.ID {
			utils.BadRequest(c, "New email is already in use")
			return
		}
		user.Email = req.Email
	}
	if req.RoleCode != 0 {
		role, err := models.RoleFromCode(req.RoleCode)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}
		user.Role = role
	}
	now := time.Now()
	user.UpdatedAt = &now

	if err := h.Users.Save(c.Request.Context(), user); err != nil {
		utils.InternalServerError(c, "Failed to update user: "+err.Error())
		return
	}

	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteUser handles deleting a user by ID (admin).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if _, err := h.Users.ByID(c.Request.Context(), c.Param("id")); err != nil {
		utils.FromError(c, err)
		return
	}

	if err := h.Users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.InternalServerError(c, "Failed to delete user: "+err.Error())
		return
	}

	utils.Success(c, "User deleted successfully", nil)
}

// GetDoctors handles fetching all users with the doctor role.
// Accessible to patients for booking appointments.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Users.ListByRole(c.Request.Context(), models.RoleDoctor)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}

	sanitized := make([]models.UserSanitized, len(doctors))
	for i, d := range doctors {
		sanitized[i] = d.Sanitize()
	}

	utils.Success(c, "Doctors fetched successfully", sanitized)
}

// GetPatients handles fetching all patients. Accessible to doctors and admins.
func (h *UserHandler) GetPatients(c *gin.Context) {
	role, ok := middleware.GetUserRoleFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	if role != models.RoleDoctor && role != models.RoleAdmin {
		utils.Forbidden(c, "Only doctors and admins can view patient lists")
		return
	}

	patients, err := h.Users.ListByRole(c.Request.Context(), models.RolePatient)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch patients: "+err.Error())
		return
	}

	sanitized := make([]models.UserSanitized, len(patients))
	for i, p := range patients {
		sanitized[i] = p.Sanitize()
	}

	utils.Success(c, "Patients fetched successfully", sanitized)
}
