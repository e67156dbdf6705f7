package models

import "time"

// Viewer represents an account that watches content
type Viewer struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ViewerRole represents viewer roles carried in JWT claims
type ViewerRole string

const (
	ViewerRoleAdmin  ViewerRole = "admin"
	ViewerRoleViewer ViewerRole = "viewer"
)
