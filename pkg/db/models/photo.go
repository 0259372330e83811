package models

import (
	"time"

	"github.com/google/uuid"
)

// Photo is one gallery entry. The photo currently referenced by
// users.profile_photo_url can never be private; the photos service
// enforces that inside its transactions.
type Photo struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_photos_user_url"`
	URL       string    `gorm:"column:url;not null;uniqueIndex:idx_photos_user_url"`
	IsPrivate bool      `gorm:"column:is_private;not null;default:false"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
