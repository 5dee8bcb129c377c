package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUserNotFound is returned when no user row matches the requested ID.
var ErrUserNotFound = errors.New("user not found")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// FindByID returns the user with the given ID.
func (s *Service) FindByID(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Upsert records the identity carried by an authenticated token so later
// lookups (such as identity header substitution) can resolve it.
func (s *Service) Upsert(ctx context.Context, user *models.User) error {
	if user.ID == "" || user.Email == "" {
		return fmt.Errorf("user id and email are required")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
