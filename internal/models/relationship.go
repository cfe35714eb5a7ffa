package models

import (
	"strings"
	"time"
)

// Relationship statuses. A pair of users has at most one current row; the
// full history of superseded rows is retained for audit purposes.
const (
	RelationshipPending  = "pending"
	RelationshipMatched  = "matched"
	RelationshipDeclined = "declined"
	RelationshipBlocked  = "blocked"
)

// Relationship records a directional connection attempt or outcome between
// two users. The pair is conceptually unordered; RequesterID preserves who
// acted on whom (for blocks, the blocker).
type Relationship struct {
	BaseModel

	RequesterID string `gorm:"type:uuid;index;not null" json:"requester_id"`
	ReceiverID  string `gorm:"type:uuid;index;not null" json:"receiver_id"`

	// PairKey is the canonical unordered pair identifier. All mutations on
	// a pair serialise on this key; at most one row per key is current.
	PairKey string `gorm:"type:varchar(80);index;not null" json:"-"`

	Status string `gorm:"type:varchar(16);not null" json:"status"`

	// SupersededAt marks historical rows replaced by a later transition.
	// The current row for a pair always has SupersededAt == nil.
	SupersededAt *time.Time `gorm:"index" json:"superseded_at,omitempty"`
}

// PairKey computes the canonical unordered key for two user IDs.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}

// Involves reports whether the given user is either side of the relationship.
func (r *Relationship) Involves(userID string) bool {
	return r.RequesterID == userID || r.ReceiverID == userID
}

// Other returns the counterpart of the given user in the pair.
func (r *Relationship) Other(userID string) string {
	if r.RequesterID == userID {
		return r.ReceiverID
	}
	return r.RequesterID
}

// IsCurrent reports whether the row is the authoritative state for its pair.
func (r *Relationship) IsCurrent() bool {
	return r.SupersededAt == nil
}

// IsActive reports whether the row excludes the pair from new connection
// attempts and from suggestions. Declined rows are current but not active.
func (r *Relationship) IsActive() bool {
	return r.IsCurrent() && r.Status != RelationshipDeclined
}
