package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel contains common columns for all tables.
//
// UpdatedAt is a pointer and excluded from gorm's automatic timestamp
// tracking: nil means "never edited since creation", a flag the scheduling
// rules depend on, so every write decides explicitly whether it counts as
// an edit.
type BaseModel struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// AutoMigrate runs the schema migration for all application models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Appointment{},
		&MedicalRecord{},
	)
}
