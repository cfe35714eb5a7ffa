package models

// Profile holds the display attributes a user shows to others.
// One-to-one with User; mutated only by its owner.
type Profile struct {
	BaseModel

	UserID     string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Username   string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Bio        string `gorm:"type:text" json:"bio"`
	Interests  string `gorm:"type:text" json:"interests"`
	PictureURL string `gorm:"type:text" json:"picture_url"`
}
