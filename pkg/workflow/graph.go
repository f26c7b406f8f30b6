package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
)

// GraphService performs the structural edits on a workflow graph. Every
// operation loads the workflow aggregate, mutates it in memory and saves it
// back; the repository replaces the whole graph on save.
type GraphService struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewGraphService creates a new graph service.
func NewGraphService(persistence persistence.Persistence, logger *slog.Logger) *GraphService {
	return &GraphService{
		persistence: persistence,
		logger:      logger.With("module", "workflow_graph"),
	}
}

// AddStep places a status in the workflow. It fails with ErrDuplicateStatus
// when the status is already placed, and marks the step initial when
// requested, clearing the flag on every other step.
func (s *GraphService) AddStep(ctx context.Context, workflowID, statusID string, initial bool) (*models.Step, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if _, err := s.persistence.StatusRepository().GetByID(ctx, statusID); err != nil {
		return nil, err
	}

	if wf.StepByStatus(statusID) != nil {
		return nil, fmt.Errorf("status %s: %w", statusID, ErrDuplicateStatus)
	}

	step := &models.Step{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		StatusID:   statusID,
		IsInitial:  initial,
	}

	if initial {
		for _, other := range wf.Steps {
			other.IsInitial = false
		}
	}

	wf.Steps = append(wf.Steps, step)
	wf.UpdatedAt = time.Now().UTC()

	if err := s.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "step added", "workflow_id", workflowID, "status_id", statusID)

	return step, nil
}

// RemoveStep deletes a step and cascades to every transition touching it.
func (s *GraphService) RemoveStep(ctx context.Context, workflowID, stepID string) error {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if wf.StepByID(stepID) == nil {
		return fmt.Errorf("step %s: %w", stepID, ErrStepNotFound)
	}

	steps := make([]*models.Step, 0, len(wf.Steps)-1)

	for _, step := range wf.Steps {
		if step.ID != stepID {
			steps = append(steps, step)
		}
	}

	transitions := make([]*models.Transition, 0, len(wf.Transitions))

	for _, transition := range wf.Transitions {
		if transition.ToStepID == stepID {
			continue
		}

		if transition.FromStepID != nil && *transition.FromStepID == stepID {
			continue
		}

		transitions = append(transitions, transition)
	}

	wf.Steps = steps
	wf.Transitions = transitions
	wf.UpdatedAt = time.Now().UTC()

	return s.persistence.WorkflowRepository().Save(ctx, wf)
}

// SetInitial marks the step as the workflow's initial step, clearing the
// flag on every other step in the same save.
func (s *GraphService) SetInitial(ctx context.Context, workflowID, stepID string) error {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	target := wf.StepByID(stepID)
	if target == nil {
		return fmt.Errorf("step %s: %w", stepID, ErrStepNotFound)
	}

	for _, step := range wf.Steps {
		step.IsInitial = step.ID == stepID
	}

	wf.UpdatedAt = time.Now().UTC()

	return s.persistence.WorkflowRepository().Save(ctx, wf)
}

// MoveStep updates a step's canvas position. The position is presentation
// data only; it never affects execution.
func (s *GraphService) MoveStep(ctx context.Context, workflowID, stepID string, x, y int) error {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	step := wf.StepByID(stepID)
	if step == nil {
		return fmt.Errorf("step %s: %w", stepID, ErrStepNotFound)
	}

	step.PositionX = x
	step.PositionY = y
	wf.UpdatedAt = time.Now().UTC()

	return s.persistence.WorkflowRepository().Save(ctx, wf)
}

// AddTransition creates a directed edge between two steps of the workflow.
// A nil fromStepID creates a global transition allowed from any status.
func (s *GraphService) AddTransition(ctx context.Context, workflowID string, fromStepID *string, toStepID, name string) (*models.Transition, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if fromStepID != nil && wf.StepByID(*fromStepID) == nil {
		return nil, fmt.Errorf("from step %s: %w", *fromStepID, s.classifyMissingStep(ctx, *fromStepID))
	}

	if wf.StepByID(toStepID) == nil {
		return nil, fmt.Errorf("to step %s: %w", toStepID, s.classifyMissingStep(ctx, toStepID))
	}

	for _, existing := range wf.Transitions {
		if existing.ToStepID != toStepID {
			continue
		}

		if sameEndpoint(existing.FromStepID, fromStepID) {
			return nil, fmt.Errorf("edge to step %s: %w", toStepID, ErrDuplicateTransition)
		}
	}

	transition := &models.Transition{
		ID:            uuid.New().String(),
		WorkflowID:    workflowID,
		FromStepID:    fromStepID,
		ToStepID:      toStepID,
		Name:          name,
		Conditions:    make([]models.Condition, 0),
		Validators:    make([]models.Validator, 0),
		PostFunctions: make([]models.PostFunction, 0),
	}

	wf.Transitions = append(wf.Transitions, transition)
	wf.UpdatedAt = time.Now().UTC()

	if err := s.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "transition added",
		"workflow_id", workflowID, "transition_id", transition.ID, "name", name)

	return transition, nil
}

// RemoveTransition deletes a transition. Its conditions, validators and
// post functions go with it.
func (s *GraphService) RemoveTransition(ctx context.Context, workflowID, transitionID string) error {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if wf.TransitionByID(transitionID) == nil {
		return fmt.Errorf("transition %s: %w", transitionID, ErrTransitionNotFound)
	}

	transitions := make([]*models.Transition, 0, len(wf.Transitions)-1)

	for _, transition := range wf.Transitions {
		if transition.ID != transitionID {
			transitions = append(transitions, transition)
		}
	}

	wf.Transitions = transitions
	wf.UpdatedAt = time.Now().UTC()

	return s.persistence.WorkflowRepository().Save(ctx, wf)
}

// SetTransitionRules replaces the conditions, validators and post functions
// of a transition in declaration order.
func (s *GraphService) SetTransitionRules(ctx context.Context, workflowID, transitionID string, conditions []models.Condition, validators []models.Validator, postFunctions []models.PostFunction) (*models.Transition, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	transition := wf.TransitionByID(transitionID)
	if transition == nil {
		return nil, fmt.Errorf("transition %s: %w", transitionID, ErrTransitionNotFound)
	}

	transition.Conditions = conditions
	transition.Validators = validators
	transition.PostFunctions = postFunctions
	wf.UpdatedAt = time.Now().UTC()

	if err := s.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, err
	}

	return transition, nil
}

// CloneInto deep-copies the source graph into the target workflow,
// replacing whatever graph the target had.
func (s *GraphService) CloneInto(ctx context.Context, sourceID, targetID string) error {
	source, err := s.persistence.WorkflowRepository().GetByID(ctx, sourceID)
	if err != nil {
		return err
	}

	target, err := s.persistence.WorkflowRepository().GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	target.Steps, target.Transitions = CloneGraph(source, targetID)
	target.UpdatedAt = time.Now().UTC()

	return s.persistence.WorkflowRepository().Save(ctx, target)
}

// CloneGraph deep-copies the steps and transitions of a workflow for the
// target workflow id. Every copy gets a fresh id; transition endpoints are
// remapped through an old-to-new step id table built during the copy.
func CloneGraph(source *models.Workflow, targetID string) ([]*models.Step, []*models.Transition) {
	stepIDs := make(map[string]string, len(source.Steps))
	steps := make([]*models.Step, 0, len(source.Steps))

	for _, step := range source.Steps {
		clone := &models.Step{
			ID:         uuid.New().String(),
			WorkflowID: targetID,
			StatusID:   step.StatusID,
			IsInitial:  step.IsInitial,
			PositionX:  step.PositionX,
			PositionY:  step.PositionY,
		}
		stepIDs[step.ID] = clone.ID
		steps = append(steps, clone)
	}

	transitions := make([]*models.Transition, 0, len(source.Transitions))

	for _, transition := range source.Transitions {
		clone := &models.Transition{
			ID:            uuid.New().String(),
			WorkflowID:    targetID,
			ToStepID:      stepIDs[transition.ToStepID],
			Name:          transition.Name,
			Description:   transition.Description,
			Conditions:    append([]models.Condition(nil), transition.Conditions...),
			Validators:    append([]models.Validator(nil), transition.Validators...),
			PostFunctions: append([]models.PostFunction(nil), transition.PostFunctions...),
		}

		if transition.FromStepID != nil {
			from := stepIDs[*transition.FromStepID]
			clone.FromStepID = &from
		}

		transitions = append(transitions, clone)
	}

	return steps, transitions
}

// classifyMissingStep tells a transition endpoint that belongs to another
// workflow apart from one that does not exist at all. The step is already
// known to be absent from the workflow being edited.
func (s *GraphService) classifyMissingStep(ctx context.Context, stepID string) error {
	workflows, err := s.persistence.WorkflowRepository().List(ctx)
	if err != nil {
		return ErrStepNotFound
	}

	for _, wf := range workflows {
		if wf.StepByID(stepID) != nil {
			return ErrCrossWorkflowReference
		}
	}

	return ErrStepNotFound
}

func sameEndpoint(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}
