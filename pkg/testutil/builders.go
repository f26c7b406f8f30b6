// Package testutil provides test data builders and an in-memory
// persistence implementation for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/pkg/models"
)

// CreateTestStatus creates a status with default values that can be
// overridden.
func CreateTestStatus(overrides ...func(*models.Status)) *models.Status {
	status := &models.Status{
		ID:        uuid.New().String(),
		Name:      "Test Status",
		Category:  models.StatusCategoryTodo,
		Color:     "#4488ff",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	for _, override := range overrides {
		override(status)
	}

	return status
}

// WithStatusName sets the status name.
func WithStatusName(name string) func(*models.Status) {
	return func(s *models.Status) {
		s.Name = name
	}
}

// WithCategory sets the status category.
func WithCategory(category models.StatusCategory) func(*models.Status) {
	return func(s *models.Status) {
		s.Category = category
	}
}

// CreateTestWorkflow creates an empty live workflow.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	wf := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		IsActive:    true,
		Steps:       []*models.Step{},
		Transitions: []*models.Transition{},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	for _, override := range overrides {
		override(wf)
	}

	return wf
}

// WithStep places a status in the workflow.
func WithStep(statusID string, initial bool) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Steps = append(w.Steps, &models.Step{
			ID:         uuid.New().String(),
			WorkflowID: w.ID,
			StatusID:   statusID,
			IsInitial:  initial,
		})
	}
}

// WithTransition adds an edge between the steps placing the two statuses.
// Steps must have been added first.
func WithTransition(name, fromStatusID, toStatusID string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		var fromStepID *string

		if fromStatusID != "" {
			if step := w.StepByStatus(fromStatusID); step != nil {
				fromStepID = &step.ID
			}
		}

		to := w.StepByStatus(toStatusID)
		if to == nil {
			return
		}

		w.Transitions = append(w.Transitions, &models.Transition{
			ID:         uuid.New().String(),
			WorkflowID: w.ID,
			FromStepID: fromStepID,
			ToStepID:   to.ID,
			Name:       name,
		})
	}
}

// CreateTestIssue creates an issue with default values.
func CreateTestIssue(projectID, statusID string, overrides ...func(*models.Issue)) *models.Issue {
	issue := &models.Issue{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		IssueTypeID: "task",
		StatusID:    statusID,
		ReporterID:  "user-reporter",
		AssigneeID:  "user-assignee",
		Summary:     "Test issue",
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	for _, override := range overrides {
		override(issue)
	}

	return issue
}

// WithParent makes the issue a subtask of another issue.
func WithParent(parentID string) func(*models.Issue) {
	return func(i *models.Issue) {
		i.ParentID = &parentID
	}
}

// WithIssueType sets the issue type.
func WithIssueType(issueTypeID string) func(*models.Issue) {
	return func(i *models.Issue) {
		i.IssueTypeID = issueTypeID
	}
}
