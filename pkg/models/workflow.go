package models

import "time"

// Workflow is a named graph of steps and guarded transitions governing an
// issue's status lifecycle. A workflow is either live or a draft; a draft
// always points back at exactly one live workflow via DraftOf.
type Workflow struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"        validate:"required,min=3"`
	Description string        `json:"description"`
	IsDefault   bool          `json:"is_default"`
	IsActive    bool          `json:"is_active"`
	IsDraft     bool          `json:"is_draft"`
	DraftOf     *string       `json:"draft_of,omitempty"`
	Steps       []*Step       `json:"steps"`
	Transitions []*Transition `json:"transitions"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
}

// Step places one global status inside one workflow, with its canvas
// position. Within a workflow a status appears at most once and at most
// one step is the initial step.
type Step struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	StatusID   string `json:"status_id" validate:"required"`
	IsInitial  bool   `json:"is_initial"`
	PositionX  int    `json:"position_x"`
	PositionY  int    `json:"position_y"`
}

// Transition is a directed edge between two steps of the same workflow.
// A nil FromStepID means the transition is allowed from any status.
type Transition struct {
	ID            string         `json:"id"`
	WorkflowID    string         `json:"workflow_id"`
	FromStepID    *string        `json:"from_step_id,omitempty"`
	ToStepID      string         `json:"to_step_id" validate:"required"`
	Name          string         `json:"name"       validate:"required,min=1"`
	Description   string         `json:"description"`
	Conditions    []Condition    `json:"conditions"`
	Validators    []Validator    `json:"validators"`
	PostFunctions []PostFunction `json:"post_functions"`
}

// StepByID returns the step with the given id, or nil.
func (w *Workflow) StepByID(stepID string) *Step {
	for _, step := range w.Steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

// StepByStatus returns the step placing the given status, or nil.
func (w *Workflow) StepByStatus(statusID string) *Step {
	for _, step := range w.Steps {
		if step.StatusID == statusID {
			return step
		}
	}

	return nil
}

// InitialStep returns the step marked initial, or nil if none is set.
func (w *Workflow) InitialStep() *Step {
	for _, step := range w.Steps {
		if step.IsInitial {
			return step
		}
	}

	return nil
}

// TransitionByID returns the transition with the given id, or nil.
func (w *Workflow) TransitionByID(transitionID string) *Transition {
	for _, transition := range w.Transitions {
		if transition.ID == transitionID {
			return transition
		}
	}

	return nil
}

// IsGlobal reports whether the transition may fire from any step.
func (t *Transition) IsGlobal() bool {
	return t.FromStepID == nil
}
