package store

import (
	"context"

	"gorm.io/gorm"

	"clinic-app-server/internal/models"
)

type gormRecords struct {
	db *gorm.DB
}

func (s *gormRecords) ByID(ctx context.Context, id string) (*models.MedicalRecord, error) {
	var rec models.MedicalRecord
	err := s.db.WithContext(ctx).
		Preload("Patient").Preload("Doctor").
		First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Record")
	}
	return &rec, nil
}

func (s *gormRecords) ByIDs(ctx context.Context, ids []string) ([]models.MedicalRecord, error) {
	var recs []models.MedicalRecord
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *gormRecords) Create(ctx context.Context, rec *models.MedicalRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *gormRecords) Save(ctx context.Context, rec *models.MedicalRecord) error {
	return s.db.WithContext(ctx).Model(rec).Select("*").Omit("Patient", "Doctor", "Appointment", "created_at").Updates(rec).Error
}

func (s *gormRecords) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.MedicalRecord{}, "id = ?", id).Error
}

func (s *gormRecords) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&models.MedicalRecord{}, "id IN ?", ids)
	return res.RowsAffected, res.Error
}

func (s *gormRecords) DetachByAppointmentIDs(ctx context.Context, appointmentIDs []string) error {
	return s.db.WithContext(ctx).
		Model(&models.MedicalRecord{}).
		Where("appointment_id IN ?", appointmentIDs).
		Update("appointment_id", nil).Error
}

// MarkFinalByIDs flips draft records to final, scoped to the authoring
// doctor. The bulk publish is deliberately silent; only the singular
// finalize path notifies the patient.
func (s *gormRecords) MarkFinalByIDs(ctx context.Context, ids []string, doctorID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.MedicalRecord{}).
		Where("id IN ? AND doctor_id = ?", ids, doctorID).
		Update("draft", false)
	return res.RowsAffected, res.Error
}

func (s *gormRecords) IDsByAppointmentID(ctx context.Context, appointmentID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.MedicalRecord{}).
		Where("appointment_id = ?", appointmentID).
		Pluck("id", &ids).Error
	return ids, err
}

func (s *gormRecords) List(ctx context.Context, q RecordQuery) ([]models.MedicalRecord, error) {
	db := s.db.WithContext(ctx).Model(&models.MedicalRecord{})
	switch q.Scope.Role {
	case models.RoleAdmin:
	case models.RoleDoctor:
		db = db.Where("doctor_id = ?", q.Scope.ActorID)
	default:
		db = db.Where("patient_id = ?", q.Scope.ActorID)
	}
	if q.PatientID != "" {
		db = db.Where("patient_id = ?", q.PatientID)
	}
	if q.FinalOnly {
		db = db.Where("draft = ?", false)
	}
	if q.Preload {
		db = db.Preload("Patient").Preload("Doctor")
	}
	var recs []models.MedicalRecord
	if err := db.Order("created_at desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
