package models

import (
	"time"
)

// AppointmentState is the explicit lifecycle state of an appointment.
// It is derived from DoctorID rather than stored: an appointment with no
// doctor is pending, one with a doctor is accepted. Cancellation is a hard
// delete and therefore has no state value.
type AppointmentState string

const (
	StatePending  AppointmentState = "pending"
	StateAccepted AppointmentState = "accepted"
)

// Appointment represents a scheduled clinic appointment or an
// administrator-created all-day calendar block.
type Appointment struct {
	BaseModel
	PatientID      *string   `gorm:"size:36;index" json:"patientId"`
	DoctorID       *string   `gorm:"size:36;index" json:"doctorId"`
	StartTime      time.Time `gorm:"index" json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	AllDay         bool      `gorm:"default:false" json:"allDay"`
	PatientMessage *string   `gorm:"type:text" json:"patientMessage"`
	DoctorMessage  *string   `gorm:"type:text" json:"doctorMessage"`
	RecordID       *string   `gorm:"size:36" json:"recordId"`

	// Relations
	Patient *User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *User `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

// State derives the lifecycle state from the doctor assignment.
func (a *Appointment) State() AppointmentState {
	if a.DoctorID == nil {
		return StatePending
	}
	return StateAccepted
}

// Accepted reports whether a doctor has claimed the appointment.
func (a *Appointment) Accepted() bool {
	return a.State() == StateAccepted
}

// Missed reports whether the appointment is a past, still-unclaimed request:
// a patient asked for the slot but no doctor ever took it.
func (a *Appointment) Missed(now time.Time) bool {
	return a.PatientID != nil && a.DoctorID == nil && a.StartTime.Before(now)
}

// Completed reports whether the appointment is past and had a doctor.
func (a *Appointment) Completed(now time.Time) bool {
	return a.PatientID != nil && a.DoctorID != nil && a.EndTime.Before(now)
}

// InProgress reports whether the current instant falls inside the
// appointment's interval.
func (a *Appointment) InProgress(now time.Time) bool {
	return !a.StartTime.After(now) && !a.EndTime.Before(now)
}

// Duration returns the booked length of the appointment.
func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// OwnedByDoctor reports whether the given user is the assigned doctor.
func (a *Appointment) OwnedByDoctor(userID string) bool {
	return a.DoctorID != nil && *a.DoctorID == userID
}

// OwnedByPatient reports whether the given user is the booked patient.
func (a *Appointment) OwnedByPatient(userID string) bool {
	return a.PatientID != nil && *a.PatientID == userID
}
