package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrNotEditable            = errors.New("requisition is not editable")
	ErrNotDeletable           = errors.New("requisition is not deletable")
	ErrNotPendingWithApprover = errors.New("requisition is not pending with this approver")
)

// Options tune how strictly transitions check the current state
type Options struct {
	// EnforceApprover requires approve/reject to come from the role the
	// requisition is currently pending with.
	EnforceApprover bool
}

// Approver is the acting party of an approve or reject
type Approver struct {
	Designation string
	LineManager string
}

// Initial is the state of a newly created requisition. A chain that starts at
// Procurement is approved immediately.
func Initial(lineManager string) Status {
	if lineManager == RoleProcurement {
		return Approved()
	}
	return Pending(lineManager)
}

// Approve forwards the requisition to the approver's own line manager, or
// closes it when the Storekeeper approves.
func Approve(current Status, approver Approver, opts Options) (Status, error) {
	if err := checkApprover(current, approver, opts); err != nil {
		return Status{}, err
	}
	if approver.Designation == RoleStorekeeper {
		return Approved(), nil
	}
	return Pending(approver.LineManager), nil
}

func Reject(current Status, approver Approver, opts Options) (Status, error) {
	if err := checkApprover(current, approver, opts); err != nil {
		return Status{}, err
	}
	return Rejected(), nil
}

// Resubmit restarts the chain from the editor's line manager
func Resubmit(current Status, editorLineManager string) (Status, error) {
	if !current.IsRejected() {
		return Status{}, fmt.Errorf("%w: status is %s", ErrNotEditable, current)
	}
	return Pending(editorLineManager), nil
}

func CanDelete(current Status) error {
	if !current.IsRejected() {
		return fmt.Errorf("%w: status is %s", ErrNotDeletable, current)
	}
	return nil
}

func checkApprover(current Status, approver Approver, opts Options) error {
	if !opts.EnforceApprover {
		return nil
	}
	if !current.IsPendingWith(approver.Designation) {
		return fmt.Errorf("%w: status is %s, approver is %s", ErrNotPendingWithApprover, current, approver.Designation)
	}
	return nil
}
