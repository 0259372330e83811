package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the account record. Subscription, reputation, and access rows all
// hang off the user ID.
type User struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email           string     `gorm:"column:email;not null;unique"`
	PasswordHash    string     `gorm:"column:password_hash;not null"`
	DisplayName     string     `gorm:"column:display_name;not null"`
	ProfilePhotoURL *string    `gorm:"column:profile_photo_url"`
	TrustScore      int        `gorm:"column:trust_score;not null;default:0"`
	LastLoginAt     *time.Time `gorm:"column:last_login_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
