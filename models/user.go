package models

import (
	"strings"
	"time"
)

// Role determines which workflow operations a user may perform.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleAnnotator Role = "ANNOTATOR"
	RoleVerifier  Role = "VERIFIER"
)

// ParseRole converts a string into a known Role.
func ParseRole(value string) (Role, bool) {
	normalized := Role(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case RoleAdmin, RoleAnnotator, RoleVerifier:
		return normalized, true
	}
	return "", false
}

// User is an account known to the identity layer. The workflow core only
// consumes it as an opaque identity carrying a role and a concurrency budget.
type User struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	Username     string `json:"username" gorm:"uniqueIndex;size:150"`
	Email        string `json:"email" gorm:"uniqueIndex;size:254"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role" gorm:"size:20;index:idx_users_role_approved"`
	IsApproved   bool   `json:"is_approved" gorm:"index:idx_users_role_approved"`

	// Scheduling policy: active assignments an annotator may hold at once.
	MaxConcurrentBatches int `json:"max_concurrent_batches" gorm:"default:2"`

	AnnotationSpecialty   string `json:"annotation_specialty,omitempty" gorm:"size:100"`
	VerificationExpertise string `json:"verification_expertise,omitempty" gorm:"size:100"`

	TotalAnnotationsCompleted   int `json:"total_annotations_completed" gorm:"default:0"`
	TotalVerificationsCompleted int `json:"total_verifications_completed" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanAnnotate reports whether the user may take annotation assignments.
func (u *User) CanAnnotate() bool {
	return (u.Role == RoleAnnotator || u.Role == RoleAdmin) && u.IsApproved
}

// CanVerify reports whether the user may submit verification decisions.
func (u *User) CanVerify() bool {
	return (u.Role == RoleVerifier || u.Role == RoleAdmin) && u.IsApproved
}
