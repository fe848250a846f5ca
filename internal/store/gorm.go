package store

import (
	"context"
	"errors"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"clinic-app-server/internal/apperr"
	"clinic-app-server/internal/models"
)

// Gorm is the gorm-backed implementation of Store.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps an open gorm connection.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// Open connects to MySQL and runs migrations.
func Open(dsn string) (*Gorm, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}
	return NewGorm(db), nil
}

// DB exposes the underlying connection for transport-level code (auth).
func (g *Gorm) DB() *gorm.DB { return g.db }

func (g *Gorm) Appointments() AppointmentStore { return &gormAppointments{db: g.db} }
func (g *Gorm) Records() RecordStore           { return &gormRecords{db: g.db} }
func (g *Gorm) Users() UserStore               { return &gormUsers{db: g.db} }

// Transaction runs fn against a transaction-bound store.
func (g *Gorm) Transaction(ctx context.Context, fn func(Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGorm(tx))
	})
}

// notFound converts gorm's record-not-found into the application taxonomy,
// keeping the "<Entity> not found" message stable.
func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return err
}
