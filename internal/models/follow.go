package models

import "time"

// Follow is a directed edge: UserFollowingID follows UserBeingFollowedID.
// The pair is the primary key, so duplicate edges are rejected by the store.
type Follow struct {
	UserFollowingID     uint      `gorm:"primaryKey;autoIncrement:false" json:"user_following_id"`
	UserBeingFollowedID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_being_followed_id"`
	CreatedAt           time.Time `json:"created_at"`

	Follower User `gorm:"foreignKey:UserFollowingID;constraint:OnDelete:CASCADE" json:"-"`
	Followed User `gorm:"foreignKey:UserBeingFollowedID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}
