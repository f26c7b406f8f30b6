// Package workflow provides the structural operations on workflow graphs:
// step and transition edits, draft versioning, comparison and portability.
package workflow

import (
	"errors"
	"fmt"
)

// Structural errors returned by graph and draft operations.
var (
	// ErrDuplicateStatus indicates the status is already placed in the workflow.
	ErrDuplicateStatus = errors.New("status already placed in workflow")

	// ErrDuplicateTransition indicates an edge already exists for the
	// same (from, to) step pair.
	ErrDuplicateTransition = errors.New("transition already exists for step pair")

	// ErrCrossWorkflowReference indicates a transition endpoint does not
	// belong to the workflow being edited.
	ErrCrossWorkflowReference = errors.New("step belongs to a different workflow")

	// ErrStepNotFound indicates a step id is not part of the workflow.
	ErrStepNotFound = errors.New("step not found in workflow")

	// ErrTransitionNotFound indicates a transition id is not part of the workflow.
	ErrTransitionNotFound = errors.New("transition not found in workflow")

	// ErrDraftAlreadyOpen indicates the live workflow already has an open draft.
	ErrDraftAlreadyOpen = errors.New("workflow already has an open draft")

	// ErrNotADraft indicates a draft operation was invoked on a live workflow.
	ErrNotADraft = errors.New("workflow is not a draft")

	// ErrIsADraft indicates a live-only operation was invoked on a draft.
	ErrIsADraft = errors.New("workflow is a draft")

	// ErrStatusInUse indicates a status is placed by at least one workflow
	// and cannot be deleted.
	ErrStatusInUse = errors.New("status is placed by a workflow")
)

// IsStructuralConflict checks if an error is a graph invariant violation
// that should surface as a conflict to the caller.
func IsStructuralConflict(err error) bool {
	return errors.Is(err, ErrDuplicateStatus) ||
		errors.Is(err, ErrDuplicateTransition) ||
		errors.Is(err, ErrCrossWorkflowReference) ||
		errors.Is(err, ErrDraftAlreadyOpen) ||
		errors.Is(err, ErrNotADraft) ||
		errors.Is(err, ErrIsADraft) ||
		errors.Is(err, ErrStatusInUse)
}

// ImportFormatError indicates an export document is malformed or missing
// core fields. Unresolvable statuses and transitions are not format errors;
// those are skipped with warnings instead.
type ImportFormatError struct {
	Reason string
	Err    error
}

func (e *ImportFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid workflow export document: %s: %v", e.Reason, e.Err)
	}

	return "invalid workflow export document: " + e.Reason
}

func (e *ImportFormatError) Unwrap() error {
	return e.Err
}

// IsImportFormatError checks if an error indicates a malformed export document.
func IsImportFormatError(err error) bool {
	var formatErr *ImportFormatError

	return errors.As(err, &formatErr)
}
