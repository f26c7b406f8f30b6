package engine

import (
	"slices"

	"github.com/tracklane/tracklane/pkg/models"
)

// Actor is the user attempting a transition, with the group, role and
// permission memberships the conditions evaluate against. The surrounding
// application resolves these; the engine never reaches into a directory.
type Actor struct {
	ID          string   `json:"id"`
	Groups      []string `json:"groups,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// InGroup reports membership in a group.
func (a Actor) InGroup(group string) bool {
	return slices.Contains(a.Groups, group)
}

// InRole reports membership in a project role.
func (a Actor) InRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// HasPermission reports whether the actor holds a permission.
func (a Actor) HasPermission(permission string) bool {
	return slices.Contains(a.Permissions, permission)
}

// TransitionRequest asks the pipeline to move one issue to a target
// status. Fields carries the proposed field values entered alongside the
// transition; validators run against them and the commit persists them.
type TransitionRequest struct {
	IssueID        string         `json:"issue_id"         validate:"required"`
	TargetStatusID string         `json:"target_status_id" validate:"required"`
	Actor          Actor          `json:"actor"`
	Fields         map[string]any `json:"fields,omitempty"`
}

// Warning records a post function that failed after the transition already
// committed. Warnings surface on the success result; they never roll the
// status change back.
type Warning struct {
	PostFunction models.PostFunctionType `json:"post_function"`
	Message      string                  `json:"message"`
}

// TransitionResult is the outcome of a committed transition.
type TransitionResult struct {
	Issue      *models.Issue         `json:"issue"`
	History    *models.HistoryRecord `json:"history"`
	Transition *models.Transition    `json:"transition"`
	Warnings   []Warning             `json:"warnings,omitempty"`
}

// ValidationInput is what a validator chain sees: the issue as stored, the
// proposed field set, and the number of subtasks not yet in a done status.
type ValidationInput struct {
	Issue        *models.Issue
	Fields       map[string]any
	OpenSubtasks int
}

// FieldValue returns the effective value of a field: the proposed value
// when the request carries one, the stored value otherwise.
func (in ValidationInput) FieldValue(field string) any {
	if in.Fields != nil {
		if value, ok := in.Fields[field]; ok {
			return value
		}
	}

	return in.Issue.FieldValue(field)
}
