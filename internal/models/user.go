package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User describes a platform account. Identity is owned by the auth layer;
// relationship and notification rows reference users by ID only.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	// IsPrivate hides the user from match suggestions; a private user can
	// only end up matched through an explicit accept of a pending request.
	IsPrivate bool `gorm:"default:false" json:"is_private"`
	IsActive  bool `gorm:"default:true" json:"is_active"`

	Profile *Profile `gorm:"foreignKey:UserID" json:"profile,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
