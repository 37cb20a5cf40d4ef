// Package identity carries the resolved caller of a request into the workflow.
package identity

import (
	"requisition/internal/model"

	"github.com/google/uuid"
)

// Identity is the authenticated staff member performing an operation.
// Designation is the caller's own role in the hierarchy; LineManager is the
// role that acts after them.
type Identity struct {
	ID          uuid.UUID
	Email       string
	Role        string
	Designation string
	LineManager string
}

// FromUser projects a persisted user into an Identity
func FromUser(u *model.User) Identity {
	return Identity{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Designation: u.Designation,
		LineManager: u.LineManager,
	}
}

// IsStaff reports whether the identity takes part in the requisition chain
func (i Identity) IsStaff() bool {
	return i.Role == model.RoleStaff
}
