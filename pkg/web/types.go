// Package web provides the HTTP handlers and request types for the
// workflow engine's REST API.
package web

import (
	"github.com/tracklane/tracklane/pkg/engine"
	"github.com/tracklane/tracklane/pkg/models"
)

// CreateStatusRequest represents the request body for creating a status.
type CreateStatusRequest struct {
	Name     string `json:"name"     validate:"required,min=1"`
	Category string `json:"category" validate:"required,oneof=todo in_progress done"`
	Color    string `json:"color"`
}

// UpdateStatusRequest supports partial updates of a status.
type UpdateStatusRequest struct {
	Name     *string `json:"name,omitempty"     validate:"omitempty,min=1"`
	Category *string `json:"category,omitempty" validate:"omitempty,oneof=todo in_progress done"`
	Color    *string `json:"color,omitempty"`
}

// CreateWorkflowRequest represents the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description"`
}

// UpdateWorkflowRequest supports partial updates of a workflow's name and
// description. The graph is edited through the step and transition routes.
type UpdateWorkflowRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=3"`
	Description *string `json:"description,omitempty"`
}

// AddStepRequest places a status in a workflow.
type AddStepRequest struct {
	StatusID  string `json:"status_id" validate:"required"`
	IsInitial bool   `json:"is_initial"`
}

// MoveStepRequest updates a step's canvas position.
type MoveStepRequest struct {
	PositionX int `json:"position_x"`
	PositionY int `json:"position_y"`
}

// AddTransitionRequest creates an edge between two steps. A null
// from_step_id makes the transition global.
type AddTransitionRequest struct {
	FromStepID  *string `json:"from_step_id,omitempty"`
	ToStepID    string  `json:"to_step_id" validate:"required"`
	Name        string  `json:"name"       validate:"required,min=1"`
	Description string  `json:"description"`
}

// SetTransitionRulesRequest replaces a transition's guard rules.
type SetTransitionRulesRequest struct {
	Conditions    []models.Condition    `json:"conditions"`
	Validators    []models.Validator    `json:"validators"`
	PostFunctions []models.PostFunction `json:"post_functions"`
}

// CreateSchemeRequest represents the request body for creating a scheme.
type CreateSchemeRequest struct {
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

// SetMappingRequest binds an issue type, or the wildcard when
// issue_type_id is null, to a workflow.
type SetMappingRequest struct {
	IssueTypeID *string `json:"issue_type_id,omitempty"`
	WorkflowID  string  `json:"workflow_id" validate:"required"`
}

// AssignSchemeRequest binds a project to a scheme.
type AssignSchemeRequest struct {
	SchemeID string `json:"scheme_id" validate:"required"`
}

// ExecuteTransitionRequest asks the engine to move an issue to a target
// status on behalf of an actor.
type ExecuteTransitionRequest struct {
	TargetStatusID string         `json:"target_status_id" validate:"required"`
	Actor          engine.Actor   `json:"actor"            validate:"required"`
	Fields         map[string]any `json:"fields,omitempty"`
}
