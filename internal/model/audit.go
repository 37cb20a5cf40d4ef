package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateUser = "CREATE_USER"

	// Requisition workflow actions
	ActionCreateRequisition  = "CREATE_REQUISITION"
	ActionApproveRequisition = "APPROVE_REQUISITION"
	ActionRejectRequisition  = "REJECT_REQUISITION"
	ActionEditRequisition    = "EDIT_REQUISITION"
	ActionDeleteRequisition  = "DELETE_REQUISITION"

	// Expense workflow actions
	ActionCreateExpense  = "CREATE_EXPENSE"
	ActionApproveExpense = "APPROVE_EXPENSE"
	ActionRejectExpense  = "REJECT_EXPENSE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for CLI-driven changes
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Request number, expense number or username
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
