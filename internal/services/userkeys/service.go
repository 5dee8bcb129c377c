package userkeys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrKeyNotFound is returned when the user has no stored key under the name.
var ErrKeyNotFound = errors.New("user key not found")

// Service stores per-user endpoint credentials in the keys table.
type Service struct {
	db     *gorm.DB
	sealer *Sealer
	now    func() time.Time
}

func NewService(db *gorm.DB, sealer *Sealer) *Service {
	return &Service{db: db, sealer: sealer, now: time.Now}
}

// CheckExpiry fails with a CredentialExpired error when expiresAt has passed.
func (s *Service) CheckExpiry(expiresAt time.Time, endpoint string) error {
	return checkExpiry(expiresAt, endpoint, s.now())
}

func checkExpiry(expiresAt time.Time, endpoint string, now time.Time) error {
	if !expiresAt.IsZero() && !expiresAt.After(now) {
		return models.NewCredentialExpiredError(endpoint)
	}
	return nil
}

// GetValues returns the decrypted credentials the user stored for name. A
// missing row yields empty values so callers can report which field is absent.
func (s *Service) GetValues(ctx context.Context, userID, name string) (*models.UserKeyValues, error) {
	key, err := s.find(ctx, userID, name)
	if errors.Is(err, ErrKeyNotFound) {
		return &models.UserKeyValues{}, nil
	}
	if err != nil {
		return nil, err
	}

	if key.ExpiresAt != nil {
		if err := checkExpiry(*key.ExpiresAt, name, s.now()); err != nil {
			return nil, err
		}
	}

	plaintext, err := s.sealer.Open(key.Value, additionalData(userID, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open user key %s: %w", name, err)
	}

	var values models.UserKeyValues
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, fmt.Errorf("failed to decode user key %s: %w", name, err)
	}
	return &values, nil
}

// GetExpiry returns the expiry of the stored key, nil when it never expires.
func (s *Service) GetExpiry(ctx context.Context, userID, name string) (*time.Time, error) {
	key, err := s.find(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	return key.ExpiresAt, nil
}

// Update creates or replaces the user's credentials for name.
func (s *Service) Update(ctx context.Context, userID, name string, values models.UserKeyValues, expiresAt *time.Time) error {
	if userID == "" || name == "" {
		return models.NewValidationError("user id and key name are required", nil)
	}
	if values.APIKey == "" && values.BaseURL == "" {
		return models.NewValidationError("key value must contain apiKey or baseURL", nil)
	}

	plaintext, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode user key: %w", err)
	}
	sealed, err := s.sealer.Seal(plaintext, additionalData(userID, name))
	if err != nil {
		return fmt.Errorf("failed to seal user key: %w", err)
	}

	key := &models.UserKey{
		UserID:    userID,
		Name:      name,
		Value:     sealed,
		ExpiresAt: expiresAt,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(key).Error
	if err != nil {
		return fmt.Errorf("failed to store user key: %w", err)
	}

	fiberlog.Debugf("Stored key %s for user %s", name, userID)
	return nil
}

func (s *Service) Delete(ctx context.Context, userID, name string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		Delete(&models.UserKey{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// DeleteAll removes every key of the user and returns how many were deleted.
func (s *Service) DeleteAll(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserKey{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete user keys: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Service) find(ctx context.Context, userID, name string) (*models.UserKey, error) {
	var key models.UserKey
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user key: %w", err)
	}
	return &key, nil
}

func additionalData(userID, name string) []byte {
	return []byte(userID + "\x00" + name)
}
