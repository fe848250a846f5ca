package store

import (
	"context"
	"time"

	"clinic-app-server/internal/models"
)

// Category selects a lifecycle slice of appointments relative to a supplied
// "now". Categories are layered on top of the role scope.
type Category int

const (
	CategoryAll      Category = iota
	CategoryPending           // no doctor, not yet over
	CategoryUpcoming          // patient and doctor set, starts in the future
	CategoryPast              // patient and doctor set, already over
	CategoryMissed            // patient set, no doctor, start already passed
	CategoryToday             // starts within the day containing "now"
)

// Scope is the role-derived visibility predicate applied to every list and
// count query. Admins see everything, patients their own appointments, and
// doctors their own plus (for pending-style views) unclaimed ones.
type Scope struct {
	Role             models.Role
	ActorID          string
	IncludeUnclaimed bool
}

// AdminScope is the unrestricted scope.
func AdminScope() Scope { return Scope{Role: models.RoleAdmin} }

// AppointmentQuery describes a filtered appointment list or count.
type AppointmentQuery struct {
	Scope    Scope
	Category Category
	Now      time.Time // reference instant for the category predicates
	From     *time.Time
	To       *time.Time // inclusive upper bound on start_time
	Before   *time.Time // exclusive upper bound on start_time
	// ExcludeStarts removes appointments whose start instant is already
	// reserved; used by the missed/pending anti-join queries.
	ExcludeStarts []time.Time
	Limit         int
	Preload       bool // preload Patient and Doctor
}

// RecordQuery describes a filtered medical-record list.
type RecordQuery struct {
	Scope     Scope
	PatientID string
	// FinalOnly hides drafts; always set for patient-scoped reads.
	FinalOnly bool
	Preload   bool
}

// AppointmentStore is the persistence port for appointments.
type AppointmentStore interface {
	ByID(ctx context.Context, id string) (*models.Appointment, error)
	ByIDs(ctx context.Context, ids []string) ([]models.Appointment, error)
	ByStart(ctx context.Context, start time.Time) (*models.Appointment, error)
	Create(ctx context.Context, appt *models.Appointment) error
	Save(ctx context.Context, appt *models.Appointment) error
	Delete(ctx context.Context, id string) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	// Claim assigns the doctor only if the appointment is still unclaimed,
	// reporting whether the claim won.
	Claim(ctx context.Context, id, doctorID string) (bool, error)
	SetRecordID(ctx context.Context, id string, recordID *string) error
	List(ctx context.Context, q AppointmentQuery) ([]models.Appointment, error)
	Count(ctx context.Context, q AppointmentQuery) (int64, error)
	// ReservedStarts returns the raw start instants of a doctor's own
	// appointments in the window; callers anti-join against it.
	ReservedStarts(ctx context.Context, doctorID string, from, to *time.Time) ([]time.Time, error)
	LatestForPatient(ctx context.Context, patientID string) (*models.Appointment, error)
	// PreviousForPair returns the most recent appointment before the given
	// instant shared by the same patient and doctor.
	PreviousForPair(ctx context.Context, patientID, doctorID string, before time.Time) (*models.Appointment, error)
}

// RecordStore is the persistence port for medical records.
type RecordStore interface {
	ByID(ctx context.Context, id string) (*models.MedicalRecord, error)
	ByIDs(ctx context.Context, ids []string) ([]models.MedicalRecord, error)
	Create(ctx context.Context, rec *models.MedicalRecord) error
	Save(ctx context.Context, rec *models.MedicalRecord) error
	Delete(ctx context.Context, id string) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	// DetachByAppointmentIDs clears the appointment back-reference on any
	// record linked to one of the given appointments.
	DetachByAppointmentIDs(ctx context.Context, appointmentIDs []string) error
	MarkFinalByIDs(ctx context.Context, ids []string, doctorID string) (int64, error)
	IDsByAppointmentID(ctx context.Context, appointmentID string) ([]string, error)
	List(ctx context.Context, q RecordQuery) ([]models.MedicalRecord, error)
}

// UserStore is the persistence port for users.
type UserStore interface {
	ByID(ctx context.Context, id string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// Store bundles the entity stores and transaction support.
type Store interface {
	Appointments() AppointmentStore
	Records() RecordStore
	Users() UserStore
	// Transaction runs fn against a store bound to a single transaction,
	// committing on nil and rolling back on error.
	Transaction(ctx context.Context, fn func(Store) error) error
}
