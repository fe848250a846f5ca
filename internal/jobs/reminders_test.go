package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"clinic-app-server/internal/clock"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/store"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Payload
}

func (n *recordingNotifier) Notify(_ context.Context, kind notify.Kind, payload notify.Payload) error {
	if kind != notify.KindAppointmentReminder {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, payload)
	return nil
}

func TestRemindersTargetTomorrowsAcceptedAppointments(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))
	st := store.NewGorm(db)
	ctx := context.Background()

	patient := &models.User{Email: "patient@clinic.test", FirstName: "Pat", LastName: "Ient", Role: models.RolePatient}
	require.NoError(t, patient.SetPassword("password123"))
	require.NoError(t, st.Users().Create(ctx, patient))
	doctorID := "doc-1"

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2025, 3, 11, 11, 0, 0, 0, time.UTC)

	seed := func(patientID, docID *string, start time.Time) {
		appt := &models.Appointment{PatientID: patientID, DoctorID: docID, StartTime: start, EndTime: start.Add(30 * time.Minute)}
		require.NoError(t, st.Appointments().Create(ctx, appt))
	}

	dayAfterMidnight := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	seed(&patient.ID, &doctorID, tomorrow)                   // reminded
	seed(&patient.ID, nil, tomorrow.Add(time.Hour))          // pending, skipped
	seed(&patient.ID, &doctorID, tomorrow.Add(48*time.Hour)) // too far out
	seed(nil, &doctorID, tomorrow.Add(2*time.Hour))          // no patient, skipped
	seed(&patient.ID, &doctorID, dayAfterMidnight)           // next day's midnight, not yet

	notifier := &recordingNotifier{}
	job := NewReminders(st, &clock.Fixed{Time: now}, notifier, zerolog.Nop())
	require.NoError(t, job.Run(ctx))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, patient.Email, notifier.sent[0].To)
	assert.True(t, notifier.sent[0].Start.Equal(tomorrow))
}
