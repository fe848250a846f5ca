package records

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

	"clinic-app-server/internal/actor"
	"clinic-app-server/internal/apperr"
	"clinic-app-server/internal/clock"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/realtime"
	"clinic-app-server/internal/scheduling"
	"clinic-app-server/internal/store"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Kind
	last notify.Payload
}

func (n *recordingNotifier) Notify(_ context.Context, kind notify.Kind, payload notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, kind)
	n.last = payload
	return nil
}

type roomEvent struct {
	Room  string
	Event string
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []roomEvent
}

func (b *recordingBroadcaster) Emit(event string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, roomEvent{Event: event})
}

func (b *recordingBroadcaster) EmitToRoom(room, event string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, roomEvent{Room: room, Event: event})
}

type fixture struct {
	store     *store.Gorm
	clock     *clock.Fixed
	notifier  *recordingNotifier
	broadcast *recordingBroadcaster
	service   *Service

	doctor  *models.User
	doctor2 *models.User
	patient *models.User
	admin   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))

	st := store.NewGorm(db)
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	broadcast := &recordingBroadcaster{}

	f := &fixture{
		store:     st,
		clock:     clk,
		notifier:  notifier,
		broadcast: broadcast,
		service:   NewService(actor.NewResolver(st.Users()), st, clk, notifier, broadcast, zerolog.Nop()),
	}
	f.doctor = f.seedUser(t, "doctor@clinic.test", models.RoleDoctor)
	f.doctor2 = f.seedUser(t, "doctor2@clinic.test", models.RoleDoctor)
	f.patient = f.seedUser(t, "patient@clinic.test", models.RolePatient)
	f.admin = f.seedUser(t, "admin@clinic.test", models.RoleAdmin)
	return f
}

func (f *fixture) seedUser(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Email: email, FirstName: "Test", LastName: string(role), Role: role}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

func (f *fixture) seedAppointment(t *testing.T, doctorID *string) *models.Appointment {
	t.Helper()
	start := f.clock.Time.Add(-time.Hour)
	appt := &models.Appointment{
		PatientID: &f.patient.ID,
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
	}
	require.NoError(t, f.store.Appointments().Create(context.Background(), appt))
	return appt
}

func (f *fixture) allRecords(t *testing.T) []models.MedicalRecord {
	t.Helper()
	recs, err := f.store.Records().List(context.Background(), store.RecordQuery{Scope: store.AdminScope()})
	require.NoError(t, err)
	return recs
}

func TestSaveRecordNonDoctorUnauthorized(t *testing.T) {
	f := newFixture(t)

	for _, userID := range []string{f.patient.ID, f.admin.ID} {
		_, err := f.service.SaveRecord(context.Background(), userID, Input{
			AppointmentID: "whatever",
			Title:         "Notes",
		})
		require.Error(t, err)
		assert.Equal(t, "Unauthorized action", err.Error())
	}
}

func TestSaveRecordMissingAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SaveRecord(context.Background(), f.doctor.ID, Input{
		AppointmentID: "no-such-appointment",
		Title:         "Notes",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Linked appointment not found", err.Error())
	assert.Empty(t, f.allRecords(t), "a failed create writes nothing")
}

func TestSaveRecordForeignAppointmentUnauthorized(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(t, &f.doctor2.ID)

	_, err := f.service.SaveRecord(context.Background(), f.doctor.ID, Input{
		AppointmentID: appt.ID,
		Title:         "Notes",
	})
	require.Error(t, err)
	assert.Equal(t, "Unauthorized action", err.Error())
	assert.Empty(t, f.allRecords(t))
}

func TestSaveRecordCreateDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.seedAppointment(t, &f.doctor.ID)

	id, err := f.service.SaveRecord(ctx, f.doctor.ID, Input{
		AppointmentID: appt.ID,
		Title:         "Consultation notes",
		Text:          "BP normal.",
		Draft:         true,
	})
	require.NoError(t, err)

	rec, err := f.store.Records().ByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Draft)
	assert.Equal(t, f.patient.ID, rec.PatientID, "the patient is inherited from the appointment")
	assert.Equal(t, f.doctor.ID, rec.DoctorID)
	assert.Nil(t, rec.UpdatedAt)

	got, err := f.store.Appointments().ByID(ctx, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RecordID)
	assert.Equal(t, id, *got.RecordID, "the appointment back-reference is set in the same transaction")

	assert.Empty(t, f.notifier.sent, "drafts stay silent")
	assert.Empty(t, f.broadcast.events)
}

func TestSaveRecordCreateFinalNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.seedAppointment(t, &f.doctor.ID)

	id, err := f.service.SaveRecord(ctx, f.doctor.ID, Input{
		AppointmentID: appt.ID,
		Title:         "Final report",
		Draft:         false,
	})
	require.NoError(t, err)

	require.Equal(t, []notify.Kind{notify.KindRecordAvailable}, f.notifier.sent)
	assert.Equal(t, f.patient.Email, f.notifier.last.To)
	assert.Equal(t, id, f.notifier.last.RecordID)
	assert.Equal(t, "Final report", f.notifier.last.RecordTitle)

	require.Len(t, f.broadcast.events, 1)
	assert.Equal(t, realtime.UserRoom(f.patient.ID), f.broadcast.events[0].Room)
	assert.Equal(t, scheduling.EventRecordAvailable, f.broadcast.events[0].Event)
}

func TestSaveRecordFinalizeOnUpdateNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.seedAppointment(t, &f.doctor.ID)

	id, err := f.service.SaveRecord(ctx, f.doctor.ID, Input{
		AppointmentID: appt.ID,
		Title:         "Consultation notes",
		Draft:         true,
	})
	require.NoError(t, err)

	// Re-saving a draft as a draft does not notify.
	_, err = f.service.SaveRecord(ctx, f.doctor.ID, Input{ID: id, Title: "Consultation notes", Text: "more detail", Draft: true})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.sent)

	// Flipping draft to final is the notifying transition.
	_, err = f.service.SaveRecord(ctx, f.doctor.ID, Input{ID: id, Title: "Consultation notes", Text: "more detail", Draft: false})
	require.NoError(t, err)
	assert.Equal(t, []notify.Kind{notify.KindRecordAvailable}, f.notifier.sent)

	rec, err := f.store.Records().ByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, rec.Draft)
	assert.NotNil(t, rec.UpdatedAt)

	// Editing an already-final record does not re-announce it.
	_, err = f.service.SaveRecord(ctx, f.doctor.ID, Input{ID: id, Title: "Amended report", Draft: false})
	require.NoError(t, err)
	assert.Len(t, f.notifier.sent, 1)
}

func TestSaveRecordsAsFinalByIDsIsScopedAndSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.seedAppointment(t, &f.doctor.ID)

	mine := &models.MedicalRecord{AppointmentID: &appt.ID, PatientID: f.patient.ID, DoctorID: f.doctor.ID, Title: "Mine", Draft: true}
	theirs := &models.MedicalRecord{PatientID: f.patient.ID, DoctorID: f.doctor2.ID, Title: "Theirs", Draft: true}
	require.NoError(t, f.store.Records().Create(ctx, mine))
	require.NoError(t, f.store.Records().Create(ctx, theirs))

	count, err := f.service.SaveRecordsAsFinalByIDs(ctx, f.doctor.ID, []string{mine.ID, theirs.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "only the caller's records flip")

	got, err := f.store.Records().ByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.False(t, got.Draft)

	got, err = f.store.Records().ByID(ctx, theirs.ID)
	require.NoError(t, err)
	assert.True(t, got.Draft, "another doctor's draft is untouched")

	assert.Empty(t, f.notifier.sent, "the bulk publish is silent")
}

func TestSaveRecordsAsFinalByIDsNoMatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SaveRecordsAsFinalByIDs(context.Background(), f.doctor.ID, []string{"missing"})
	require.Error(t, err)
	assert.Equal(t, "Records not found", err.Error())
}

func TestListRecordsHidesDraftsFromPatients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := &models.MedicalRecord{PatientID: f.patient.ID, DoctorID: f.doctor.ID, Title: "Draft", Draft: true}
	final := &models.MedicalRecord{PatientID: f.patient.ID, DoctorID: f.doctor.ID, Title: "Final", Draft: false}
	require.NoError(t, f.store.Records().Create(ctx, draft))
	require.NoError(t, f.store.Records().Create(ctx, final))

	visible, err := f.service.ListRecords(ctx, f.patient.ID, "")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "Final", visible[0].Title)

	// The authoring doctor sees drafts too.
	authored, err := f.service.ListRecords(ctx, f.doctor.ID, f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, authored, 2)

	// Admins see everything.
	all, err := f.service.ListRecords(ctx, f.admin.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteRecordDetachesBackReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.seedAppointment(t, &f.doctor.ID)

	id, err := f.service.SaveRecord(ctx, f.doctor.ID, Input{
		AppointmentID: appt.ID,
		Title:         "Notes",
		Draft:         true,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteRecord(ctx, f.doctor.ID, id))

	_, err = f.store.Records().ByID(ctx, id)
	require.Error(t, err)
	assert.Equal(t, "Record not found", err.Error())

	got, err := f.store.Appointments().ByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RecordID, "the appointment survives with its link cleared")
}

func TestDeleteRecordsByIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.seedAppointment(t, &f.doctor.ID)

	r1 := &models.MedicalRecord{AppointmentID: &appt.ID, PatientID: f.patient.ID, DoctorID: f.doctor.ID, Title: "One", Draft: true}
	r2 := &models.MedicalRecord{PatientID: f.patient.ID, DoctorID: f.doctor.ID, Title: "Two", Draft: true}
	require.NoError(t, f.store.Records().Create(ctx, r1))
	require.NoError(t, f.store.Records().Create(ctx, r2))

	count, err := f.service.DeleteRecordsByIDs(ctx, f.doctor.ID, []string{r1.ID, r2.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Empty(t, f.allRecords(t))

	_, err = f.service.DeleteRecordsByIDs(ctx, f.doctor.ID, []string{"missing"})
	require.Error(t, err)
	assert.Equal(t, "Records not found", err.Error())
}
