package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"clinic-app-server/internal/models"
)

type gormUsers struct {
	db *gorm.DB
}

func (s *gormUsers) ByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "User")
	}
	return &user, nil
}

func (s *gormUsers) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormUsers) Create(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *gormUsers) Save(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

func (s *gormUsers) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error
}

func (s *gormUsers) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Where("role = ?", role).Order("last_name asc").Find(&users).Error
	return users, err
}

func (s *gormUsers) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("created_at asc").Find(&users).Error
	return users, err
}
