package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is a staff claim for money already spent. It shares the status
// columns and approval chain of Requisition.
type Expense struct {
	ID             uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	ExpenseNumber  string            `gorm:"type:varchar(50);uniqueIndex;not null" json:"expense_number"`
	Description    string            `gorm:"type:text" json:"description"`
	Status         string            `gorm:"type:varchar(20);not null;index:idx_expense_queue,priority:1" json:"status"`
	PendingWith    string            `gorm:"type:varchar(100);index:idx_expense_queue,priority:2" json:"pending_with"`
	RequestorID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"requestor_id"`
	Requestor      *User             `gorm:"foreignKey:RequestorID" json:"requestor,omitempty"`
	Total          decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0" json:"total"` // Sum of line item amounts
	AttachmentPath string            `gorm:"type:text" json:"attachment_path"`
	Timestamp      time.Time         `gorm:"not null" json:"timestamp"`
	Version        int               `gorm:"not null;default:1" json:"-"`
	LineItems      []ExpenseLineItem `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE;" json:"line_items"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ExpenseLineItem is one purchased item; Amount is Quantity * Price
type ExpenseLineItem struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ExpenseID uint            `gorm:"not null;index" json:"expense_id"`
	ItemName  string          `gorm:"type:varchar(255);not null" json:"item_name"`
	Quantity  int             `gorm:"type:int;not null" json:"quantity"`
	Category  string          `gorm:"type:varchar(100)" json:"category"`
	Price     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
}
