package models

import (
	"time"
)

// User defines the account model based on the 'users' table
type User struct {
	ID           int64     `json:"id" db:"id" example:"1"`
	Username     string    `json:"username" db:"username" example:"alice"`
	Email        string    `json:"email" db:"email" example:"alice@example.com"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"firstName" db:"first_name" example:"Alice"`
	LastName     string    `json:"lastName" db:"last_name" example:"Smith"`
	IsStudent    bool      `json:"isStudent" db:"is_student"`
	IsStaff      bool      `json:"isStaff" db:"is_staff"`
	IsSuperuser  bool      `json:"isSuperuser" db:"is_superuser"`
	IsActive     bool      `json:"isActive" db:"is_active"` // false until approved
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Profile is the per-student record keyed by roll number, 1:1 with a User
type Profile struct {
	ID         string `json:"id" db:"id" example:"rollx7k2m9qa"`
	UserID     int64  `json:"userId" db:"user_id"`
	StreamID   *int64 `json:"streamId,omitempty" db:"stream_id"`
	IsApproved bool   `json:"isApproved" db:"is_approved"`

	// Populated on reads
	User       *User   `json:"user,omitempty"`
	StreamName *string `json:"streamName,omitempty"`
}
