package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account roles. Staff take part in the requisition chain, admins manage accounts.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is a staff member (or administrator) of the organization
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username    string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email       string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone       string         `gorm:"type:varchar(20)" json:"phone"`
	Password    string         `gorm:"type:varchar(255);not null" json:"-"`   // Omit password from JSON requests/responses
	Role        string         `gorm:"type:varchar(50);not null" json:"role"` // admin, staff
	Designation string         `gorm:"type:varchar(100);index" json:"designation"`
	LineManager string         `gorm:"type:varchar(100)" json:"line_manager"` // Designation this user reports to
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}
