// Package models defines the core domain models for the workflow engine.
package models

import "time"

// StatusCategory groups statuses into the three board columns.
type StatusCategory string

const (
	StatusCategoryTodo       StatusCategory = "todo"
	StatusCategoryInProgress StatusCategory = "in_progress"
	StatusCategoryDone       StatusCategory = "done"
)

// Status is a global issue status shared across workflows. A workflow
// places a status via a Step; it never owns the status itself.
type Status struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"     validate:"required,min=1"`
	Category  StatusCategory `json:"category" validate:"required,oneof=todo in_progress done"`
	Color     string         `json:"color"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
