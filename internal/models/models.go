package models

import "github.com/google/uuid"

// User is the single aggregate of the auth service. RefreshToken holds
// the SHA-256 hex digest of the one live refresh token, or "" when the
// user is logged out; PasswordHash and RefreshToken never leave the
// process.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Name         string    `gorm:"not null"                 json:"name"`
	Username     string    `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	RefreshToken string    `gorm:"default:''"               json:"-"`
	IsActive     bool      `gorm:"not null;default:true"    json:"is_active"`
}

// PublicUser is the projection returned to clients.
type PublicUser struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Username: u.Username}
}
