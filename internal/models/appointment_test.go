package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppointmentStateDerivation(t *testing.T) {
	doctorID := "doc-1"
	patientID := "pat-1"

	pending := Appointment{PatientID: &patientID}
	assert.Equal(t, StatePending, pending.State())
	assert.False(t, pending.Accepted())

	accepted := Appointment{PatientID: &patientID, DoctorID: &doctorID}
	assert.Equal(t, StateAccepted, accepted.State())
	assert.True(t, accepted.Accepted())
}

func TestAppointmentLifecyclePredicates(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	doctorID := "doc-1"
	patientID := "pat-1"

	past := Appointment{
		PatientID: &patientID,
		StartTime: now.Add(-2 * time.Hour),
		EndTime:   now.Add(-90 * time.Minute),
	}
	assert.True(t, past.Missed(now), "past and unclaimed is missed")
	assert.False(t, past.Completed(now), "no doctor means never completed")

	past.DoctorID = &doctorID
	assert.False(t, past.Missed(now))
	assert.True(t, past.Completed(now))

	running := Appointment{
		PatientID: &patientID,
		DoctorID:  &doctorID,
		StartTime: now.Add(-10 * time.Minute),
		EndTime:   now.Add(20 * time.Minute),
	}
	assert.True(t, running.InProgress(now))
	assert.False(t, running.Completed(now))
	assert.False(t, running.InProgress(now.Add(time.Hour)))

	block := Appointment{AllDay: true, StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour)}
	assert.False(t, block.Missed(now), "a non-patient block is never missed")
}

func TestAppointmentOwnership(t *testing.T) {
	doctorID := "doc-1"
	patientID := "pat-1"
	appt := Appointment{PatientID: &patientID, DoctorID: &doctorID}

	assert.True(t, appt.OwnedByDoctor("doc-1"))
	assert.False(t, appt.OwnedByDoctor("doc-2"))
	assert.True(t, appt.OwnedByPatient("pat-1"))
	assert.False(t, appt.OwnedByPatient("pat-2"))

	unclaimed := Appointment{PatientID: &patientID}
	assert.False(t, unclaimed.OwnedByDoctor("doc-1"))
}

func TestAppointmentDuration(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	appt := Appointment{StartTime: start, EndTime: start.Add(45 * time.Minute)}
	assert.Equal(t, 45*time.Minute, appt.Duration())
}

func TestRoleCodes(t *testing.T) {
	for _, tc := range []struct {
		code int
		role Role
	}{
		{1, RoleAdmin},
		{2, RoleDoctor},
		{3, RolePatient},
	} {
		role, err := RoleFromCode(tc.code)
		assert.NoError(t, err)
		assert.Equal(t, tc.role, role)
		assert.Equal(t, tc.code, role.Code())
	}

	_, err := RoleFromCode(0)
	assert.Error(t, err)
	assert.False(t, Role("nurse").Valid())
	assert.True(t, RoleDoctor.Valid())
}
