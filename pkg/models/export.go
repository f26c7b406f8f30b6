package models

import "time"

// ExportVersion is the current version of the workflow export document.
const ExportVersion = 1

// WorkflowExport is the portable, versioned JSON form of a workflow graph.
// Steps and transitions reference statuses by id, with the status name
// carried alongside so an import into another environment can fall back to
// a name match.
type WorkflowExport struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Workflow   ExportWorkflow `json:"workflow"`
}

type ExportWorkflow struct {
	Name        string             `json:"name"        validate:"required"`
	Description string             `json:"description"`
	Steps       []ExportStep       `json:"steps"`
	Transitions []ExportTransition `json:"transitions"`
}

type ExportStep struct {
	StatusID   string `json:"status_id" validate:"required"`
	StatusName string `json:"status_name,omitempty"`
	PositionX  int    `json:"position_x"`
	PositionY  int    `json:"position_y"`
	IsInitial  bool   `json:"is_initial"`
}

type ExportTransition struct {
	FromStatusID  string         `json:"from_status_id,omitempty"`
	ToStatusID    string         `json:"to_status_id" validate:"required"`
	Name          string         `json:"name"         validate:"required"`
	Description   string         `json:"description,omitempty"`
	Conditions    []Condition    `json:"conditions,omitempty"`
	Validators    []Validator    `json:"validators,omitempty"`
	PostFunctions []PostFunction `json:"post_functions,omitempty"`
}
