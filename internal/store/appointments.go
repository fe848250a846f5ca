package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"clinic-app-server/internal/clock"
	"clinic-app-server/internal/models"
)

type gormAppointments struct {
	db *gorm.DB
}

func (s *gormAppointments) ByID(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Patient").Preload("Doctor").
		First(&appt, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Appointment")
	}
	return &appt, nil
}

func (s *gormAppointments) ByIDs(ctx context.Context, ids []string) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Patient").Preload("Doctor").
		Where("id IN ?", ids).
		Order("start_time asc").
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (s *gormAppointments) ByStart(ctx context.Context, start time.Time) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).First(&appt, "start_time = ?", start).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (s *gormAppointments) Create(ctx context.Context, appt *models.Appointment) error {
	return s.db.WithContext(ctx).Create(appt).Error
}

// Save writes every column, so cleared message fields and a re-nulled
// UpdatedAt actually reach the database.
func (s *gormAppointments) Save(ctx context.Context, appt *models.Appointment) error {
	return s.db.WithContext(ctx).Model(appt).Select("*").Omit("Patient", "Doctor", "created_at").Updates(appt).Error
}

func (s *gormAppointments) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Appointment{}, "id = ?", id).Error
}

func (s *gormAppointments) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&models.Appointment{}, "id IN ?", ids)
	return res.RowsAffected, res.Error
}

func (s *gormAppointments) Claim(ctx context.Context, id, doctorID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND doctor_id IS NULL", id).
		Update("doctor_id", doctorID)
	return res.RowsAffected == 1, res.Error
}

func (s *gormAppointments) SetRecordID(ctx context.Context, id string, recordID *string) error {
	return s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", id).
		Update("record_id", recordID).Error
}

// applyScope translates the role-derived visibility predicate into SQL.
func applyScope(db *gorm.DB, scope Scope) *gorm.DB {
	switch scope.Role {
	case models.RoleAdmin:
		return db
	case models.RoleDoctor:
		if scope.IncludeUnclaimed {
			return db.Where("doctor_id = ? OR doctor_id IS NULL", scope.ActorID)
		}
		return db.Where("doctor_id = ?", scope.ActorID)
	default:
		return db.Where("patient_id = ?", scope.ActorID)
	}
}

func applyCategory(db *gorm.DB, cat Category, now time.Time) *gorm.DB {
	switch cat {
	case CategoryPending:
		return db.Where("doctor_id IS NULL AND end_time > ?", now)
	case CategoryUpcoming:
		return db.Where("patient_id IS NOT NULL AND doctor_id IS NOT NULL AND start_time > ?", now)
	case CategoryPast:
		return db.Where("patient_id IS NOT NULL AND doctor_id IS NOT NULL AND end_time < ?", now)
	case CategoryMissed:
		return db.Where("patient_id IS NOT NULL AND doctor_id IS NULL AND start_time < ?", now)
	case CategoryToday:
		dayStart, dayEnd := clock.DayBounds(now)
		return db.Where("start_time >= ? AND start_time < ?", dayStart, dayEnd)
	default:
		return db
	}
}

func (s *gormAppointments) buildQuery(ctx context.Context, q AppointmentQuery) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&models.Appointment{})
	db = applyScope(db, q.Scope)
	db = applyCategory(db, q.Category, q.Now)
	if q.From != nil {
		db = db.Where("start_time >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("start_time <= ?", *q.To)
	}
	if q.Before != nil {
		db = db.Where("start_time < ?", *q.Before)
	}
	if len(q.ExcludeStarts) > 0 {
		db = db.Where("start_time NOT IN ?", q.ExcludeStarts)
	}
	return db
}

func (s *gormAppointments) List(ctx context.Context, q AppointmentQuery) ([]models.Appointment, error) {
	db := s.buildQuery(ctx, q).Order("start_time asc")
	if q.Preload {
		db = db.Preload("Patient").Preload("Doctor")
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	var appts []models.Appointment
	if err := db.Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}

func (s *gormAppointments) Count(ctx context.Context, q AppointmentQuery) (int64, error) {
	var count int64
	err := s.buildQuery(ctx, q).Count(&count).Error
	return count, err
}

// ReservedStarts is the raw select feeding the reserved-time anti-join: the
// start instants already consumed by the doctor's own appointments.
func (s *gormAppointments) ReservedStarts(ctx context.Context, doctorID string, from, to *time.Time) ([]time.Time, error) {
	db := s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("doctor_id = ?", doctorID)
	if from != nil {
		db = db.Where("start_time >= ?", *from)
	}
	if to != nil {
		db = db.Where("start_time <= ?", *to)
	}
	var starts []time.Time
	if err := db.Pluck("start_time", &starts).Error; err != nil {
		return nil, err
	}
	return starts, nil
}

func (s *gormAppointments) LatestForPatient(ctx context.Context, patientID string) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Patient").Preload("Doctor").
		Where("patient_id = ?", patientID).
		Order("created_at desc").
		First(&appt).Error
	if err != nil {
		return nil, notFound(err, "Appointment")
	}
	return &appt, nil
}

func (s *gormAppointments) PreviousForPair(ctx context.Context, patientID, doctorID string, before time.Time) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).
		Where("patient_id = ? AND doctor_id = ? AND start_time < ?", patientID, doctorID, before).
		Order("start_time desc").
		First(&appt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}
