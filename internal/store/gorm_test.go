package store

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"clinic-app-server/internal/models"
)

func newTestGorm(t *testing.T) *Gorm {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))
	return NewGorm(db)
}

func seedAppointment(t *testing.T, g *Gorm, patientID, doctorID *string, start time.Time) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
	}
	require.NoError(t, g.Appointments().Create(context.Background(), appt))
	return appt
}

func strptr(s string) *string { return &s }

func TestClaimIsConditional(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)
	appt := seedAppointment(t, g, strptr("pat-1"), nil, start)

	claimed, err := g.Appointments().Claim(ctx, appt.ID, "doc-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// The second claim loses without touching the first.
	claimed, err = g.Appointments().Claim(ctx, appt.ID, "doc-2")
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := g.Appointments().ByID(ctx, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DoctorID)
	assert.Equal(t, "doc-1", *got.DoctorID)
}

func TestSavePersistsClearedFields(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)
	appt := seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), start)
	appt.DoctorMessage = strptr("note")
	now := start
	appt.UpdatedAt = &now
	require.NoError(t, g.Appointments().Save(ctx, appt))

	// Nulling pointer fields must actually reach the database.
	appt.DoctorID = nil
	appt.DoctorMessage = nil
	appt.UpdatedAt = nil
	require.NoError(t, g.Appointments().Save(ctx, appt))

	got, err := g.Appointments().ByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DoctorID)
	assert.Nil(t, got.DoctorMessage)
	assert.Nil(t, got.UpdatedAt)
}

func TestByStartAbsentIsNil(t *testing.T) {
	g := newTestGorm(t)

	got, err := g.Appointments().ByStart(context.Background(), time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCategoryPredicates(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)

	seedAppointment(t, g, strptr("pat-1"), nil, now.Add(time.Hour))           // pending
	seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), now.Add(2*time.Hour))  // upcoming, today
	seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), now.Add(-24*time.Hour)) // past
	seedAppointment(t, g, strptr("pat-1"), nil, now.Add(-48*time.Hour))       // missed

	counts := map[Category]int64{
		CategoryPending:  1,
		CategoryUpcoming: 1,
		CategoryPast:     1,
		CategoryMissed:   1,
		CategoryToday:    2,
		CategoryAll:      4,
	}
	for cat, want := range counts {
		got, err := g.Appointments().Count(ctx, AppointmentQuery{Scope: AdminScope(), Category: cat, Now: now})
		require.NoError(t, err)
		assert.Equal(t, want, got, "category %d", cat)
	}
}

func TestDoctorScopeIncludeUnclaimed(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)

	seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), now.Add(time.Hour))
	seedAppointment(t, g, strptr("pat-1"), strptr("doc-2"), now.Add(2*time.Hour))
	seedAppointment(t, g, strptr("pat-1"), nil, now.Add(3*time.Hour))

	own := Scope{Role: models.RoleDoctor, ActorID: "doc-1"}
	count, err := g.Appointments().Count(ctx, AppointmentQuery{Scope: own, Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	own.IncludeUnclaimed = true
	count, err = g.Appointments().Count(ctx, AppointmentQuery{Scope: own, Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestExcludeStartsFiltersCount(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)

	seedAppointment(t, g, strptr("pat-1"), nil, now.Add(time.Hour))
	seedAppointment(t, g, strptr("pat-1"), nil, now.Add(2*time.Hour))

	count, err := g.Appointments().Count(ctx, AppointmentQuery{
		Scope:         AdminScope(),
		Category:      CategoryPending,
		Now:           now,
		ExcludeStarts: []time.Time{now.Add(time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTimeBoundsInclusiveToExclusiveBefore(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	dayStart := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), dayStart)
	seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), dayStart.Add(11*time.Hour))
	seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), dayEnd) // next day's midnight

	count, err := g.Appointments().Count(ctx, AppointmentQuery{Scope: AdminScope(), From: &dayStart, To: &dayEnd})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "To keeps the boundary instant")

	count, err = g.Appointments().Count(ctx, AppointmentQuery{Scope: AdminScope(), From: &dayStart, Before: &dayEnd})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "Before excludes the boundary instant")
}

func TestReservedStartsWindow(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)

	seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), now)
	seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), now.Add(time.Hour))
	seedAppointment(t, g, strptr("pat-1"), strptr("doc-2"), now.Add(2*time.Hour))

	starts, err := g.Appointments().ReservedStarts(ctx, "doc-1", nil, nil)
	require.NoError(t, err)
	assert.Len(t, starts, 2)

	from := now.Add(30 * time.Minute)
	starts, err = g.Appointments().ReservedStarts(ctx, "doc-1", &from, nil)
	require.NoError(t, err)
	require.Len(t, starts, 1)
	assert.True(t, starts[0].Equal(now.Add(time.Hour)))
}

func TestMarkFinalByIDsScopedToDoctor(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()

	mine := &models.MedicalRecord{PatientID: "pat-1", DoctorID: "doc-1", Title: "Mine", Draft: true}
	theirs := &models.MedicalRecord{PatientID: "pat-1", DoctorID: "doc-2", Title: "Theirs", Draft: true}
	require.NoError(t, g.Records().Create(ctx, mine))
	require.NoError(t, g.Records().Create(ctx, theirs))

	count, err := g.Records().MarkFinalByIDs(ctx, []string{mine.ID, theirs.ID}, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := g.Records().ByID(ctx, theirs.ID)
	require.NoError(t, err)
	assert.True(t, got.Draft)
}

func TestDetachByAppointmentIDs(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)
	appt := seedAppointment(t, g, strptr("pat-1"), strptr("doc-1"), now)

	rec := &models.MedicalRecord{AppointmentID: &appt.ID, PatientID: "pat-1", DoctorID: "doc-1", Title: "Notes", Draft: true}
	require.NoError(t, g.Records().Create(ctx, rec))

	require.NoError(t, g.Records().DetachByAppointmentIDs(ctx, []string{appt.ID}))

	got, err := g.Records().ByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AppointmentID)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)

	err := g.Transaction(ctx, func(tx Store) error {
		appt := &models.Appointment{PatientID: strptr("pat-1"), StartTime: now, EndTime: now.Add(time.Hour)}
		if err := tx.Appointments().Create(ctx, appt); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	count, err := g.Appointments().Count(ctx, AppointmentQuery{Scope: AdminScope()})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "the insert rolled back")
}

func TestUserByEmailAbsentIsNil(t *testing.T) {
	g := newTestGorm(t)

	got, err := g.Users().ByEmail(context.Background(), "ghost@clinic.test")
	require.NoError(t, err)
	assert.Nil(t, got)
}
