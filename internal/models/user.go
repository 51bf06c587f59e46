// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

const (
	// DefaultImageURL is shown for users who never set a profile picture.
	DefaultImageURL = "/static/images/default-pic.svg"
	// DefaultHeaderImageURL is shown for users who never set a header image.
	DefaultHeaderImageURL = "/static/images/warbler-hero.svg"
)

// User represents a Warbler account.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"type:varchar(50);uniqueIndex;not null;check:username <> ''" json:"username"`
	Email          string    `gorm:"type:varchar(254);uniqueIndex;not null;check:email <> ''" json:"email"`
	Password       string    `gorm:"not null;check:password <> ''" json:"-"`
	ImageURL       string    `gorm:"type:text" json:"image_url"`
	HeaderImageURL string    `gorm:"type:text" json:"header_image_url"`
	Bio            string    `gorm:"type:text" json:"bio"`
	Location       string    `gorm:"type:varchar(100)" json:"location"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProfileImage returns the user's image or the default one.
func (u *User) ProfileImage() string {
	if u.ImageURL == "" {
		return DefaultImageURL
	}
	return u.ImageURL
}

// HeaderImage returns the user's header image or the default one.
func (u *User) HeaderImage() string {
	if u.HeaderImageURL == "" {
		return DefaultHeaderImageURL
	}
	return u.HeaderImageURL
}

// UserCounts holds the relationship tallies shown on a profile.
type UserCounts struct {
	Messages  int64 `json:"messages"`
	Following int64 `json:"following"`
	Followers int64 `json:"followers"`
	Likes     int64 `json:"likes"`
}
