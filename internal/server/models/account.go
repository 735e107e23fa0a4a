// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is a registered user. SecretHash is a bcrypt hash and must never
// be logged or serialized to clients.
type Account struct {
	ID         string
	Email      string
	SecretHash []byte
	FirstName  string
	LastName   string
	Verified   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Profile holds the display fields a user may edit.
type Profile struct {
	FirstName string
	LastName  string
}

// ProfilePatch is a partial profile update; nil fields are left untouched.
type ProfilePatch struct {
	FirstName *string
	LastName  *string
}
