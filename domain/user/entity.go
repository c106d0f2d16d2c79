package user

import (
	"time"
)

// User is the stored user profile and its presence record.
type User struct {
	ID        string     `gorm:"primaryKey;type:text" json:"id"`
	Name      string     `gorm:"not null;default:'';type:text" json:"name"`
	IsOnline  bool       `gorm:"not null;default:false" json:"isOnline"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Presence is the payload of a user:presence event.
type Presence struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// Claims is the identity carried by a validated bearer token.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}
