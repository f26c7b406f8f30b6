package models

import "time"

// Project is the container issues live in. The lead is the default
// assignee target for the assign_to_lead post function.
type Project struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"  validate:"required,min=2,uppercase"`
	Name      string    `json:"name" validate:"required,min=1"`
	LeadID    string    `json:"lead_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Issue is a work item moving through a workflow. The engine only reads
// and transitions issues; creation is owned by the surrounding application.
type Issue struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"    validate:"required"`
	IssueTypeID string         `json:"issue_type_id" validate:"required"`
	ParentID    *string        `json:"parent_id,omitempty"`
	StatusID    string         `json:"status_id"`
	AssigneeID  string         `json:"assignee_id"`
	ReporterID  string         `json:"reporter_id"`
	Resolution  string         `json:"resolution"`
	Summary     string         `json:"summary" validate:"required,min=1"`
	Fields      map[string]any `json:"fields,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// HistoryRecord is one entry of an issue's transition log, appended in the
// same transaction that commits the status change.
type HistoryRecord struct {
	ID             string    `json:"id"`
	IssueID        string    `json:"issue_id"`
	FromStatusID   string    `json:"from_status_id"`
	ToStatusID     string    `json:"to_status_id"`
	TransitionID   string    `json:"transition_id"`
	TransitionName string    `json:"transition_name"`
	ActorID        string    `json:"actor_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Comment is an issue comment; the add_comment post function appends one.
type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// FieldValue returns the named custom field, looking at the typed columns
// first and the free-form field map second.
func (i *Issue) FieldValue(field string) any {
	switch field {
	case "assignee":
		return i.AssigneeID
	case "reporter":
		return i.ReporterID
	case "resolution":
		return i.Resolution
	case "summary":
		return i.Summary
	}

	if i.Fields == nil {
		return nil
	}

	return i.Fields[field]
}
