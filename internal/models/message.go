package models

import "time"

// MaxMessageLength bounds the text of a single warble.
const MaxMessageLength = 140

// Message is a short post authored by a user.
// Ownership (UserID) never changes after creation.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"type:varchar(140);not null;check:text <> ''" json:"text"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
}
