package models

import "time"

// WorkflowScheme maps issue types to the workflow that governs them. A
// scheme owns its mappings; at most one mapping exists per issue type,
// including at most one wildcard mapping.
type WorkflowScheme struct {
	ID          string           `json:"id"`
	Name        string           `json:"name" validate:"required,min=3"`
	Description string           `json:"description"`
	IsDefault   bool             `json:"is_default"`
	Mappings    []*SchemeMapping `json:"mappings"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// SchemeMapping binds one issue type, or the wildcard when IssueTypeID is
// nil, to a workflow within a scheme.
type SchemeMapping struct {
	SchemeID    string  `json:"scheme_id"`
	IssueTypeID *string `json:"issue_type_id,omitempty"`
	WorkflowID  string  `json:"workflow_id" validate:"required"`
}

// ProjectSchemeAssignment binds a project to its active scheme. One per
// project; assigning again replaces the previous binding.
type ProjectSchemeAssignment struct {
	ProjectID  string    `json:"project_id"`
	SchemeID   string    `json:"scheme_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// MappingFor returns the mapping for the given issue type, or nil. The
// wildcard mapping is returned only for an empty issueTypeID.
func (s *WorkflowScheme) MappingFor(issueTypeID string) *SchemeMapping {
	for _, mapping := range s.Mappings {
		if issueTypeID == "" && mapping.IssueTypeID == nil {
			return mapping
		}

		if mapping.IssueTypeID != nil && *mapping.IssueTypeID == issueTypeID {
			return mapping
		}
	}

	return nil
}

// WildcardMapping returns the scheme's wildcard mapping, or nil.
func (s *WorkflowScheme) WildcardMapping() *SchemeMapping {
	for _, mapping := range s.Mappings {
		if mapping.IssueTypeID == nil {
			return mapping
		}
	}

	return nil
}
