package models

import "time"

// UserID identifies a registered user. Valid ids start at 1.
type UserID int

// User is a registered account. Records are immutable after registration.
type User struct {
	ID           UserID    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session binds an opaque token to a user.
type Session struct {
	ID     string
	UserID UserID
}
