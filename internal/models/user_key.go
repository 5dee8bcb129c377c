package models

import "time"

// UserKey stores a user's credentials for one endpoint. Value holds the
// sealed JSON encoding of UserKeyValues.
type UserKey struct {
	ID        uint       `gorm:"primaryKey" json:"-"`
	UserID    string     `gorm:"not null;size:255;uniqueIndex:idx_user_key_name" json:"user_id"`
	Name      string     `gorm:"not null;size:255;uniqueIndex:idx_user_key_name" json:"name"`
	Value     string     `gorm:"type:text;not null" json:"-"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserKey) TableName() string {
	return "keys"
}

// UserKeyValues are the credentials a user supplies for a user_provided endpoint.
type UserKeyValues struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`
}

// UserKeyUpdateRequest is the body of PUT /api/keys.
type UserKeyUpdateRequest struct {
	Name      string        `json:"name"`
	Value     UserKeyValues `json:"value"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
}

// UserKeyExpiryResponse is returned by GET /api/keys.
type UserKeyExpiryResponse struct {
	ExpiresAt *time.Time `json:"expiresAt"`
}
