package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clinic-app-server/internal/models"
)

// Kind names a notification decided by the core. Delivery transport is an
// external concern; the core only decides whether and with what payload.
type Kind string

const (
	KindAppointmentAccepted   Kind = "appointment-accepted"
	KindAppointmentUpdated    Kind = "appointment-updated"
	KindAppointmentCancelled  Kind = "appointment-cancelled"
	KindAppointmentUnaccepted Kind = "appointment-unaccepted"
	KindAppointmentReminder   Kind = "appointment-reminder"
	KindRecordAvailable       Kind = "record-available"
	KindMessageAdded          Kind = "message-added"
	KindMessageRemoved        Kind = "message-removed"
)

// Payload carries everything a delivery transport needs to render the
// notification. Fields are filled as far as the triggering entity allows.
type Payload struct {
	To            string    `json:"to"` // recipient email
	RecipientName string    `json:"recipientName,omitempty"`
	PatientName   string    `json:"patientName,omitempty"`
	DoctorName    string    `json:"doctorName,omitempty"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	RecordID      string    `json:"recordId,omitempty"`
	RecordTitle   string    `json:"recordTitle,omitempty"`
	Start         time.Time `json:"start,omitempty"`
	End           time.Time `json:"end,omitempty"`
	Message       string    `json:"message,omitempty"`
}

// Notifier is the outbound notification port. Dispatch is fire-and-forget
// from the caller's perspective: errors are logged, never propagated into
// the mutation result.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, payload Payload) error
}

// ForPatient builds a payload addressed to the appointment's patient.
func ForPatient(appt *models.Appointment) Payload {
	p := Payload{AppointmentID: appt.ID, Start: appt.StartTime, End: appt.EndTime}
	if appt.Patient != nil {
		p.To = appt.Patient.Email
		p.RecipientName = appt.Patient.FullName()
		p.PatientName = appt.Patient.FullName()
	}
	if appt.Doctor != nil {
		p.DoctorName = appt.Doctor.FullName()
	}
	return p
}

// ForDoctor builds a payload addressed to the appointment's doctor.
func ForDoctor(appt *models.Appointment) Payload {
	p := Payload{AppointmentID: appt.ID, Start: appt.StartTime, End: appt.EndTime}
	if appt.Doctor != nil {
		p.To = appt.Doctor.Email
		p.RecipientName = appt.Doctor.FullName()
		p.DoctorName = appt.Doctor.FullName()
	}
	if appt.Patient != nil {
		p.PatientName = appt.Patient.FullName()
	}
	return p
}

// LogNotifier is the default Notifier: it logs the would-be delivery. A real
// mailer plugs in behind the same interface.
type LogNotifier struct {
	Log zerolog.Logger
}

// Notify logs the notification at info level.
func (n *LogNotifier) Notify(_ context.Context, kind Kind, payload Payload) error {
	n.Log.Info().
		Str("kind", string(kind)).
		Str("to", payload.To).
		Str("appointmentId", payload.AppointmentID).
		Str("recordId", payload.RecordID).
		Msg("notification dispatched")
	return nil
}
