package model

import "time"

type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

type AcademicLevel string

const (
	AcademicLevelPrimary   AcademicLevel = "primary"
	AcademicLevelSecondary AcademicLevel = "secondary"
	AcademicLevelHigher    AcademicLevel = "higher"
)

type User struct {
	ID                string        `json:"user_id" db:"id"`
	Email             string        `json:"email" db:"email"`
	PasswordHash      *string       `json:"-" db:"password_hash"`
	AuthProvider      AuthProvider  `json:"auth_provider" db:"auth_provider"`
	FirstName         string        `json:"first_name" db:"first_name"`
	LastName          string        `json:"last_name" db:"last_name"`
	SchoolName        string        `json:"school_name" db:"school_name"`
	AcademicLevel     AcademicLevel `json:"academic_level" db:"academic_level"`
	City              string        `json:"city" db:"city"`
	Subject           string        `json:"subject" db:"subject"`
	IsProfileComplete bool          `json:"is_profile_complete" db:"is_profile_complete"`
	LastLogin         *time.Time    `json:"last_login,omitempty" db:"last_login"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// Profile is the part of a user the owner can edit.
type Profile struct {
	FirstName     string        `json:"first_name" validate:"required,max=100"`
	LastName      string        `json:"last_name" validate:"required,max=100"`
	SchoolName    string        `json:"school_name" validate:"required,max=255"`
	AcademicLevel AcademicLevel `json:"academic_level" validate:"required,oneof=primary secondary higher"`
	City          string        `json:"city" validate:"required,max=100"`
	Subject       string        `json:"subject" validate:"required,max=100"`
}
