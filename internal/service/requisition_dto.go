package service

import (
	"strconv"
	"strings"
	"time"

	"requisition/internal/model"
	"requisition/internal/workflow"
)

// --- DTOs ---

// LineItemID is the optional id of a line item in an edit payload. Numbers and
// numeric strings are accepted; null, empty, zero or anything non-numeric
// decodes as "no id", which makes the entry a new item.
type LineItemID struct {
	Value uint
	Valid bool
}

func (id *LineItemID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		*id = LineItemID{}
		return nil
	}
	*id = LineItemID{Value: uint(n), Valid: true}
	return nil
}

func (id LineItemID) MarshalJSON() ([]byte, error) {
	if !id.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendUint(nil, uint64(id.Value), 10), nil
}

type LineItemInput struct {
	ID         LineItemID `json:"id" swaggertype:"integer"`
	ItemName   string     `json:"item_name"`
	Quantity   int        `json:"quantity"`
	Category   string     `json:"category"`
	ItemReason string     `json:"item_reason"`
}

type CreateRequisitionRequest struct {
	RequestNumber string          `json:"request_number" binding:"required"`
	Description   string          `json:"description"`
	LineItems     []LineItemInput `json:"line_items" binding:"required"`
}

// EditRequisitionRequest locates the requisition by request number
type EditRequisitionRequest struct {
	RequestNumber string          `json:"request_number"`
	Description   string          `json:"description"`
	LineItems     []LineItemInput `json:"line_items"`
}

type RejectRequisitionRequest struct {
	Comment string `json:"comment" binding:"required"`
}

type LineItemResponse struct {
	ID         uint   `json:"id"`
	ItemName   string `json:"item_name"`
	Quantity   int    `json:"quantity"`
	Category   string `json:"category"`
	ItemReason string `json:"item_reason"`
}

type CommentResponse struct {
	ID        uint   `json:"id"`
	Comment   string `json:"comment"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

type RequisitionResponse struct {
	ID             uint               `json:"id"`
	RequestNumber  string             `json:"request_number"`
	Description    string             `json:"description"`
	Status         string             `json:"status"`
	PendingWith    string             `json:"pending_with,omitempty"`
	StatusText     string             `json:"status_text"` // e.g. "pending with Storekeeper"
	RequestorID    string             `json:"requestor_id"`
	RequestorName  string             `json:"requestor_name,omitempty"`
	Timestamp      string             `json:"timestamp"`
	AttachmentPath string             `json:"attachment_path,omitempty"`
	LineItems      []LineItemResponse `json:"line_items"`
	Comments       []CommentResponse  `json:"comments,omitempty"`
}

type RequestNumberResponse struct {
	RequestNumber string `json:"request_number"`
}

// --- Helpers ---

func toRequisitionResponse(r model.Requisition) RequisitionResponse {
	status := workflow.FromModel(&r)
	resp := RequisitionResponse{
		ID:             r.ID,
		RequestNumber:  r.RequestNumber,
		Description:    r.Description,
		Status:         string(status.Kind),
		PendingWith:    status.PendingWith,
		StatusText:     status.String(),
		RequestorID:    r.RequestorID.String(),
		Timestamp:      r.Timestamp.Format(time.RFC3339),
		AttachmentPath: r.AttachmentPath,
		LineItems:      make([]LineItemResponse, 0, len(r.LineItems)),
	}
	if r.Requestor != nil {
		resp.RequestorName = r.Requestor.Username
	}
	for _, item := range r.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse{
			ID:         item.ID,
			ItemName:   item.ItemName,
			Quantity:   item.Quantity,
			Category:   item.Category,
			ItemReason: item.ItemReason,
		})
	}
	for _, c := range r.Comments {
		resp.Comments = append(resp.Comments, CommentResponse{
			ID:        c.ID,
			Comment:   c.Comment,
			CreatedBy: c.CreatedBy,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}

func validateRequisitionInput(requestNumber string, items []LineItemInput) error {
	if strings.TrimSpace(requestNumber) == "" {
		return invalidInput("request_number is required")
	}
	if len(items) == 0 {
		return invalidInput("at least one line item is required")
	}
	for i, item := range items {
		if strings.TrimSpace(item.ItemName) == "" {
			return invalidInput("line_items[%d]: item_name is required", i)
		}
		if item.Quantity <= 0 {
			return invalidInput("line_items[%d]: quantity must be greater than 0", i)
		}
	}
	return nil
}

func newLineItem(requisitionID uint, in LineItemInput) model.LineItem {
	return model.LineItem{
		RequisitionID: requisitionID,
		ItemName:      strings.TrimSpace(in.ItemName),
		Quantity:      in.Quantity,
		Category:      in.Category,
		ItemReason:    in.ItemReason,
	}
}
