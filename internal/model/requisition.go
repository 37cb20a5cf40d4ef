package model

import (
	"time"

	"github.com/google/uuid"
)

// RequisitionStatus enum constants. PENDING rows carry the next approver in PendingWith.
const (
	RequisitionPending  = "PENDING"
	RequisitionApproved = "APPROVED"
	RequisitionRejected = "REJECTED"
)

// Requisition is a staff purchase request routed up the line-manager chain
type Requisition struct {
	ID             uint                 `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestNumber  string               `gorm:"type:varchar(50);uniqueIndex;not null" json:"request_number"`
	Description    string               `gorm:"type:text" json:"description"`
	Status         string               `gorm:"type:varchar(20);not null;index:idx_requisition_queue,priority:1" json:"status"`
	PendingWith    string               `gorm:"type:varchar(100);index:idx_requisition_queue,priority:2" json:"pending_with"` // Next approver role, empty unless PENDING
	RequestorID    uuid.UUID            `gorm:"type:uuid;not null;index" json:"requestor_id"`
	Requestor      *User                `gorm:"foreignKey:RequestorID" json:"requestor,omitempty"`
	Timestamp      time.Time            `gorm:"not null" json:"timestamp"`
	AttachmentPath string               `gorm:"type:text" json:"attachment_path"`
	Version        int                  `gorm:"not null;default:1" json:"-"` // Optimistic lock, bumped on every status write
	LineItems      []LineItem           `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE;" json:"line_items"`
	Comments       []RequisitionComment `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE;" json:"comments,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// LineItem is a single requested item within a Requisition
type LineItem struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	RequisitionID uint   `gorm:"not null;index" json:"requisition_id"`
	ItemName      string `gorm:"type:varchar(255);not null" json:"item_name"`
	Quantity      int    `gorm:"type:int;not null" json:"quantity"`
	Category      string `gorm:"type:varchar(100)" json:"category"`
	ItemReason    string `gorm:"type:text" json:"item_reason"`
}

// RequisitionComment is the append-only rejection note left by an approver
type RequisitionComment struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequisitionID uint      `gorm:"not null;index" json:"requisition_id"`
	Comment       string    `gorm:"type:text;not null" json:"comment"`
	CreatedBy     string    `gorm:"type:varchar(255);not null" json:"created_by"` // Author email
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
