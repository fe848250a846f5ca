package models

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Role wire codes used by clients: 1=admin, 2=doctor, 3=patient.
const (
	RoleCodeAdmin   = 1
	RoleCodeDoctor  = 2
	RoleCodePatient = 3
)

// RoleFromCode parses a numeric wire code into a Role.
func RoleFromCode(code int) (Role, error) {
	switch code {
	case RoleCodeAdmin:
		return RoleAdmin, nil
	case RoleCodeDoctor:
		return RoleDoctor, nil
	case RoleCodePatient:
		return RolePatient, nil
	}
	return "", fmt.Errorf("unknown role code: %d", code)
}

// Code returns the numeric wire code for a Role.
func (r Role) Code() int {
	switch r {
	case RoleAdmin:
		return RoleCodeAdmin
	case RoleDoctor:
		return RoleCodeDoctor
	case RolePatient:
		return RoleCodePatient
	}
	return 0
}

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDoctor || r == RolePatient
}

// User represents a user in the system
type User struct {
	BaseModel
	Email       string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password    string     `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FirstName   string     `gorm:"size:100" json:"firstName"`
	LastName    string     `gorm:"size:100" json:"lastName"`
	Role        Role       `gorm:"size:20;default:'patient'" json:"role"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`

	// Relations (not always preloaded)
	RefreshTokens       []RefreshToken  `gorm:"foreignKey:UserID" json:"-"`
	DoctorAppointments  []Appointment   `gorm:"foreignKey:DoctorID" json:"-"`
	PatientAppointments []Appointment   `gorm:"foreignKey:PatientID" json:"-"`
	MedicalRecords      []MedicalRecord `gorm:"foreignKey:PatientID" json:"-"`
}

// FullName returns the user's display name for notification payloads.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Role        Role       `json:"role"`
	RoleCode    int        `json:"roleCode"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		RoleCode:    u.Role.Code(),
		DateOfBirth: u.DateOfBirth,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
