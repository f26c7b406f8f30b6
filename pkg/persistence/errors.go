// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrDraftWorkflowNotFound indicates no open draft exists for the given live workflow.
	ErrDraftWorkflowNotFound = errors.New("draft workflow not found")

	// ErrStatusNotFound indicates a status was not found by id or name.
	ErrStatusNotFound = errors.New("status not found")

	// ErrSchemeNotFound indicates a workflow scheme was not found.
	ErrSchemeNotFound = errors.New("workflow scheme not found")

	// ErrSchemeAssignmentNotFound indicates a project has no scheme assigned.
	ErrSchemeAssignmentNotFound = errors.New("project scheme assignment not found")

	// ErrProjectNotFound indicates a project was not found.
	ErrProjectNotFound = errors.New("project not found")

	// ErrIssueNotFound indicates an issue was not found.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrConstraintViolation indicates the store rejected a write because it
	// would break referential integrity. The transition pipeline translates
	// it rather than leaking it.
	ErrConstraintViolation = errors.New("constraint violation")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g. "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// IssueError wraps issue-related errors with additional context.
type IssueError struct {
	Op      string
	IssueID string
	Err     error
}

func (e *IssueError) Error() string {
	return fmt.Sprintf("%s operation failed for issue %s: %v", e.Op, e.IssueID, e.Err)
}

func (e *IssueError) Unwrap() error {
	return e.Err
}

func (e *IssueError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewIssueError creates a new issue error with context.
func NewIssueError(op, issueID string, err error) *IssueError {
	return &IssueError{
		Op:      op,
		IssueID: issueID,
		Err:     err,
	}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrDraftWorkflowNotFound) ||
		errors.Is(err, ErrStatusNotFound) ||
		errors.Is(err, ErrSchemeNotFound) ||
		errors.Is(err, ErrSchemeAssignmentNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrIssueNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsDraftWorkflowNotFound checks if an error indicates no open draft exists.
func IsDraftWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrDraftWorkflowNotFound)
}

// IsConstraintViolation checks if an error indicates a referential
// integrity rejection.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}
