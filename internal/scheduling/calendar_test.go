package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

func TestExcludeReserved(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	candidates := []models.Appointment{
		{StartTime: base},
		{StartTime: base.Add(time.Hour)},
		{StartTime: base.Add(2 * time.Hour)},
	}

	kept := ExcludeReserved(candidates, []time.Time{base.Add(time.Hour)})
	require.Len(t, kept, 2)
	assert.True(t, kept[0].StartTime.Equal(base))
	assert.True(t, kept[1].StartTime.Equal(base.Add(2*time.Hour)))

	// An empty reserved set filters nothing.
	assert.Len(t, ExcludeReserved(candidates, nil), 3)

	// Identical instants in different locations still collide.
	shifted := base.In(time.FixedZone("CET", 3600))
	kept = ExcludeReserved(candidates, []time.Time{shifted})
	assert.Len(t, kept, 2)
}

func TestFormatTotalHours(t *testing.T) {
	assert.Equal(t, "-", FormatTotalHours(0, true))
	assert.Equal(t, "0 h 0 min", FormatTotalHours(0, false))
	assert.Equal(t, "2 h 30 min", FormatTotalHours(2*time.Hour+30*time.Minute, false))
	assert.Equal(t, "0 h 45 min", FormatTotalHours(45*time.Minute, false))
	assert.Equal(t, "26 h 5 min", FormatTotalHours(26*time.Hour+5*time.Minute, false))
}

func TestListAppointmentsScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedUser(t, "other@clinic.test", models.RolePatient)
	start := f.clock.Time.Add(24 * time.Hour)

	f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, start, 30*time.Minute)
	f.seedAppointment(t, &other.ID, &f.doctor2.ID, start.Add(time.Hour), 30*time.Minute)
	f.seedAppointment(t, &other.ID, nil, start.Add(2*time.Hour), 30*time.Minute)

	mine, err := f.calendar.ListAppointments(ctx, f.patient.ID, store.CategoryAll)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.patient.ID, *mine[0].PatientID)

	all, err := f.calendar.ListAppointments(ctx, f.admin.ID, store.CategoryAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Doctors see their own claims, plus unclaimed slots in pending views.
	own, err := f.calendar.ListAppointments(ctx, f.doctor.ID, store.CategoryAll)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	pending, err := f.calendar.ListAppointments(ctx, f.doctor.ID, store.CategoryPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].DoctorID)
}

func TestPendingCountAntiJoinsReservedStarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedUser(t, "other@clinic.test", models.RolePatient)
	start := f.clock.Time.Add(24 * time.Hour)

	// Two open requests; the doctor has already booked the first slot with
	// another patient, so only the second should count.
	f.seedAppointment(t, &f.patient.ID, nil, start, 30*time.Minute)
	f.seedAppointment(t, &f.patient.ID, nil, start.Add(time.Hour), 30*time.Minute)
	f.seedAppointment(t, &other.ID, &f.doctor.ID, start, 30*time.Minute)

	count, err := f.calendar.PendingCount(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// A doctor with nothing reserved sees both.
	count, err = f.calendar.PendingCount(ctx, f.doctor2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The patient counts their own open requests.
	count, err = f.calendar.PendingCount(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCategoryCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Time

	f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, now.Add(24*time.Hour), 30*time.Minute)  // upcoming
	f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, now.Add(-24*time.Hour), 30*time.Minute) // past
	f.seedAppointment(t, &f.patient.ID, nil, now.Add(-48*time.Hour), 30*time.Minute)          // missed

	upcoming, err := f.calendar.UpcomingCount(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), upcoming)

	past, err := f.calendar.PastCount(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), past)

	missed, err := f.calendar.MissedCount(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), missed)
}

func TestMissedCalendarExcludesReservedForDoctors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedUser(t, "other@clinic.test", models.RolePatient)
	missedStart := f.clock.Time.Add(-24 * time.Hour)

	// Two missed requests; the doctor saw another patient in the first slot.
	f.seedAppointment(t, &f.patient.ID, nil, missedStart, 30*time.Minute)
	f.seedAppointment(t, &f.patient.ID, nil, missedStart.Add(time.Hour), 30*time.Minute)
	f.seedAppointment(t, &other.ID, &f.doctor.ID, missedStart, 30*time.Minute)

	from := missedStart.Add(-time.Hour)
	to := f.clock.Time

	slots, err := f.calendar.MissedCalendar(ctx, f.doctor.ID, from, to)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].StartTime.Equal(missedStart.Add(time.Hour)))

	// Admins get the raw candidates, no anti-join.
	slots, err = f.calendar.MissedCalendar(ctx, f.admin.ID, from, to)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestTotalHoursToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	today := f.clock.Time

	hours, err := f.calendar.CountTotalHoursToday(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, "-", hours, "an empty day renders as a dash")

	f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, today.Add(time.Hour), 2*time.Hour)
	f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, today.Add(4*time.Hour), 30*time.Minute)
	// Tomorrow's booking stays out of today's total.
	f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, today.Add(25*time.Hour), time.Hour)

	hours, err = f.calendar.CountTotalHoursToday(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, "2 h 30 min", hours)
}

func TestNowAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Time

	_, err := f.calendar.NowAppointment(ctx, f.patient.ID)
	require.Error(t, err)
	assert.Equal(t, "Unauthorized action", err.Error())

	got, err := f.calendar.NowAppointment(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	running := f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, now.Add(-10*time.Minute), 30*time.Minute)
	f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, now.Add(3*time.Hour), 30*time.Minute)

	got, err = f.calendar.NowAppointment(ctx, f.doctor.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, running.ID, got.ID)
}

func TestNextAppointmentCarriesPreviousVisitContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Time

	view, err := f.calendar.NextAppointment(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Nil(t, view, "nothing upcoming yet")

	prev := f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, now.Add(-7*24*time.Hour), 30*time.Minute)
	next := f.seedAppointment(t, &f.patient.ID, &f.doctor.ID, now.Add(24*time.Hour), 30*time.Minute)

	rec := &models.MedicalRecord{
		AppointmentID: &prev.ID,
		PatientID:     f.patient.ID,
		DoctorID:      f.doctor.ID,
		Title:         "Last visit notes",
	}
	require.NoError(t, f.store.Records().Create(ctx, rec))

	view, err = f.calendar.NextAppointment(ctx, f.doctor.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, next.ID, view.Appointment.ID)
	require.NotNil(t, view.PreviousStart)
	assert.True(t, view.PreviousStart.Equal(prev.StartTime))
	assert.Equal(t, []string{rec.ID}, view.PreviousRecordIDs)
}

func TestJustCreatedAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Time

	older := &models.Appointment{
		BaseModel: models.BaseModel{CreatedAt: now.Add(-time.Hour)},
		PatientID: &f.patient.ID,
		StartTime: now.Add(24 * time.Hour),
		EndTime:   now.Add(24*time.Hour + 30*time.Minute),
	}
	require.NoError(t, f.store.Appointments().Create(ctx, older))
	latest := &models.Appointment{
		BaseModel: models.BaseModel{CreatedAt: now},
		PatientID: &f.patient.ID,
		StartTime: now.Add(48 * time.Hour),
		EndTime:   now.Add(48*time.Hour + 30*time.Minute),
	}
	require.NoError(t, f.store.Appointments().Create(ctx, latest))

	got, err := f.calendar.JustCreatedAppointment(ctx, f.patient.ID, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)
}
