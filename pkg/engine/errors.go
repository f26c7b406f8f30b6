// Package engine executes issue transitions: authorization gates,
// business-rule validation, the commit pipeline and post-transition side
// effects.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tracklane/tracklane/pkg/models"
)

var (
	// ErrTransitionNotAllowed indicates no transition permits the move from
	// the issue's current status to the requested one. Storage-level
	// constraint rejections during commit translate to this.
	ErrTransitionNotAllowed = errors.New("transition not allowed from current status")

	// ErrPermissionDenied indicates a transition condition rejected the actor.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidationFailed indicates one or more transition validators failed.
	ErrValidationFailed = errors.New("validation failed")
)

// PermissionDeniedError names the condition that rejected the actor. A
// transition is never partially authorized: the first failing condition
// stops evaluation.
type PermissionDeniedError struct {
	Condition models.ConditionType
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied by condition %s", e.Condition)
}

func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// RuleFailure is one validator rejection, reported alongside all others so
// the caller can render every violation at once.
type RuleFailure struct {
	ValidatorType models.ValidatorType `json:"validator_type"`
	Message       string               `json:"message"`
}

// ValidationFailedError carries the aggregated failures of a validator chain.
type ValidationFailedError struct {
	Failures []RuleFailure
}

func (e *ValidationFailedError) Error() string {
	messages := make([]string, 0, len(e.Failures))

	for _, failure := range e.Failures {
		messages = append(messages, failure.Message)
	}

	return "validation failed: " + strings.Join(messages, "; ")
}

func (e *ValidationFailedError) Is(target error) bool {
	return target == ErrValidationFailed
}

// IsPermissionDenied checks if an error indicates a condition rejection.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsValidationFailed checks if an error indicates validator rejections.
func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

// IsTransitionNotAllowed checks if an error indicates no matching edge.
func IsTransitionNotAllowed(err error) bool {
	return errors.Is(err, ErrTransitionNotAllowed)
}
