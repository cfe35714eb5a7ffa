package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types emitted by the relationship state machine.
const (
	NotificationMatchRequest  = "match_request"
	NotificationMatchAccepted = "match_accepted"
)

// Notification represents an in-app notification for a user. The payload
// always carries a typed reference to the originating relationship so
// consumers never parse identifiers out of display text.
type Notification struct {
	BaseModel

	RecipientID    string `gorm:"type:uuid;index;not null" json:"recipient_id"`
	Type           string `gorm:"type:varchar(64);not null" json:"type"`
	ActorID        string `gorm:"type:uuid" json:"actor_id"`
	RelationshipID string `gorm:"type:uuid;index;not null" json:"relationship_id"`

	Payload datatypes.JSON `json:"payload"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}
