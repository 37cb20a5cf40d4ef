// Package workflow holds the requisition approval state machine.
//
// A requisition is either pending with a named approver role, or has reached
// one of the outcomes Approved or Rejected. Approval forwards a requisition up
// the acting approver's own line-manager chain until the Storekeeper closes it.
// Expense claims travel the same chain.
package workflow

import (
	"fmt"
	"strings"

	"requisition/internal/model"
)

// Roles with fixed meaning in the chain
const (
	RoleStorekeeper = "Storekeeper"
	RoleProcurement = "Procurement"
)

const pendingPrefix = "pending with "

// Kind is the state tag of a Status
type Kind string

const (
	KindPending  Kind = model.RequisitionPending
	KindApproved Kind = model.RequisitionApproved
	KindRejected Kind = model.RequisitionRejected
)

// Status is the tagged workflow state of a requisition
type Status struct {
	Kind        Kind
	PendingWith string
}

func Pending(approver string) Status {
	return Status{Kind: KindPending, PendingWith: approver}
}

func Approved() Status {
	return Status{Kind: KindApproved}
}

func Rejected() Status {
	return Status{Kind: KindRejected}
}

// IsPendingWith reports whether the next action belongs to the given role
func (s Status) IsPendingWith(role string) bool {
	return s.Kind == KindPending && s.PendingWith == role
}

func (s Status) IsRejected() bool {
	return s.Kind == KindRejected
}

// String renders the display form shown to users, e.g. "pending with Manager"
func (s Status) String() string {
	switch s.Kind {
	case KindPending:
		return pendingPrefix + s.PendingWith
	case KindApproved:
		return "Approved"
	case KindRejected:
		return "Rejected"
	default:
		return string(s.Kind)
	}
}

// ParseStatus reads a display string back into a Status
func ParseStatus(text string) (Status, error) {
	switch {
	case text == "Approved":
		return Approved(), nil
	case text == "Rejected":
		return Rejected(), nil
	case strings.HasPrefix(text, pendingPrefix) && len(text) > len(pendingPrefix):
		return Pending(strings.TrimPrefix(text, pendingPrefix)), nil
	default:
		return Status{}, fmt.Errorf("unrecognized requisition status %q", text)
	}
}

// FromColumns rebuilds a Status from the status and pending_with columns
// shared by requisition and expense rows.
func FromColumns(status, pendingWith string) Status {
	if Kind(status) == KindPending {
		return Pending(pendingWith)
	}
	return Status{Kind: Kind(status)}
}

// Columns returns the values stored in the status and pending_with columns
func (s Status) Columns() (status, pendingWith string) {
	if s.Kind == KindPending {
		return string(s.Kind), s.PendingWith
	}
	return string(s.Kind), ""
}

// FromModel returns the state stored on a requisition row
func FromModel(r *model.Requisition) Status {
	return FromColumns(r.Status, r.PendingWith)
}

// Apply writes the state onto a requisition row
func (s Status) Apply(r *model.Requisition) {
	r.Status, r.PendingWith = s.Columns()
}
