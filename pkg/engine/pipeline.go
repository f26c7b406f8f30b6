package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tracklane/tracklane/pkg/eventbus"
	"github.com/tracklane/tracklane/pkg/events"
	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/otelhelper"
	"github.com/tracklane/tracklane/pkg/persistence"
	"github.com/tracklane/tracklane/pkg/schemes"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline executes a single issue transition: resolve the governing
// workflow, locate the edge, authorize, validate, commit, then run post
// functions. Only the commit mutates durable state; the stages before it
// are pure reads and may be retried freely.
//
// Transitions for one issue are serialized behind a per-issue lock so two
// concurrent requests cannot both validate against a stale current status.
// Different issues proceed in parallel.
type Pipeline struct {
	persistence   persistence.Persistence
	resolver      *schemes.Resolver
	postFunctions *PostFunctionExecutor
	publisher     eventbus.EventPublisher
	tracer        trace.Tracer
	logger        *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline creates a transition execution pipeline. The publisher may
// be nil in tests.
func NewPipeline(
	persistence persistence.Persistence,
	resolver *schemes.Resolver,
	postFunctions *PostFunctionExecutor,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		persistence:   persistence,
		resolver:      resolver,
		postFunctions: postFunctions,
		publisher:     publisher,
		logger:        logger.With("module", "transition_pipeline"),
		locks:         make(map[string]*sync.Mutex),
	}
}

// WithTracer enables per-stage tracing spans.
func (p *Pipeline) WithTracer(tracer trace.Tracer) *Pipeline {
	p.tracer = tracer

	return p
}

// Execute moves the issue to the target status, or reports the first
// stage that refused.
func (p *Pipeline) Execute(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	unlock := p.lockIssue(req.IssueID)
	defer unlock()

	issue, err := p.persistence.IssueRepository().GetByID(ctx, req.IssueID)
	if err != nil {
		return nil, err
	}

	// Stage 1: resolve the governing workflow.
	ctx, end := p.startSpan(ctx, "transition.resolve", attribute.String("issue.id", issue.ID))

	workflowID, err := p.resolver.ResolveForIssue(ctx, issue.ProjectID, issue.IssueTypeID)
	if err != nil {
		end(err)

		return nil, err
	}

	wf, err := p.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	end(err)

	if err != nil {
		return nil, err
	}

	// Stage 2: locate the edge.
	transition, err := locateEdge(wf, issue.StatusID, req.TargetStatusID)
	if err != nil {
		return nil, err
	}

	// Stage 3: authorize.
	_, end = p.startSpan(ctx, "transition.authorize", attribute.String("transition.id", transition.ID))

	err = EvaluateConditions(transition.Conditions, req.Actor, issue)
	end(err)

	if err != nil {
		return nil, err
	}

	// Stage 4: validate, aggregating every failure.
	input, err := p.validationInput(ctx, issue, req.Fields, transition)
	if err != nil {
		return nil, err
	}

	if failures := RunValidators(transition.Validators, input); len(failures) > 0 {
		return nil, &ValidationFailedError{Failures: failures}
	}

	// Stage 5: commit status change and history atomically.
	ctx, end = p.startSpan(ctx, "transition.commit",
		attribute.String("issue.id", issue.ID), attribute.String("status.target", req.TargetStatusID))

	result, err := p.commit(ctx, issue, transition, req)
	end(err)

	if err != nil {
		return nil, err
	}

	// Stage 6: react. Post function failures are warnings, never rollbacks.
	ctx, end = p.startSpan(ctx, "transition.react")
	result.Warnings = p.postFunctions.Execute(ctx, transition, result.Issue, req.Actor)
	end(nil)

	p.announce(ctx, result, req.Actor)

	p.logger.InfoContext(ctx, "transition executed",
		"issue_id", issue.ID,
		"transition_id", transition.ID,
		"from_status", result.History.FromStatusID,
		"to_status", result.History.ToStatusID,
		"warnings", len(result.Warnings))

	return result, nil
}

// AvailableTransitions lists the transitions the actor may execute from
// the issue's current status, conditions already applied.
func (p *Pipeline) AvailableTransitions(ctx context.Context, issueID string, actor Actor) ([]*models.Transition, error) {
	issue, err := p.persistence.IssueRepository().GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	workflowID, err := p.resolver.ResolveForIssue(ctx, issue.ProjectID, issue.IssueTypeID)
	if err != nil {
		return nil, err
	}

	wf, err := p.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	current := wf.StepByStatus(issue.StatusID)
	available := make([]*models.Transition, 0)

	for _, transition := range wf.Transitions {
		fromCurrent := transition.IsGlobal() ||
			(current != nil && *transition.FromStepID == current.ID)
		if !fromCurrent {
			continue
		}

		if err := EvaluateConditions(transition.Conditions, actor, issue); err != nil {
			continue
		}

		available = append(available, transition)
	}

	return available, nil
}

// locateEdge finds the transition leading from the issue's current status
// to the target status. An exact edge wins over a global one. The current
// status may be absent from the workflow, a publish can remove its step
// while issues still sit on it; global transitions fire from any status,
// orphaned ones included, so only the target must resolve.
func locateEdge(wf *models.Workflow, currentStatusID, targetStatusID string) (*models.Transition, error) {
	target := wf.StepByStatus(targetStatusID)
	if target == nil {
		return nil, fmt.Errorf("no edge to status %s: %w", targetStatusID, ErrTransitionNotAllowed)
	}

	current := wf.StepByStatus(currentStatusID)

	var global *models.Transition

	for _, transition := range wf.Transitions {
		if transition.ToStepID != target.ID {
			continue
		}

		if transition.IsGlobal() {
			global = transition

			continue
		}

		if current != nil && *transition.FromStepID == current.ID {
			return transition, nil
		}
	}

	if global != nil {
		return global, nil
	}

	return nil, fmt.Errorf("no edge from status %s to status %s: %w", currentStatusID, targetStatusID, ErrTransitionNotAllowed)
}

func (p *Pipeline) validationInput(ctx context.Context, issue *models.Issue, fields map[string]any, transition *models.Transition) (ValidationInput, error) {
	input := ValidationInput{Issue: issue, Fields: fields}

	needsSubtasks := false

	for _, validator := range transition.Validators {
		if validator.Type == models.ValidatorSubtasksClosed {
			needsSubtasks = true

			break
		}
	}

	if !needsSubtasks {
		return input, nil
	}

	subtasks, err := p.persistence.IssueRepository().Subtasks(ctx, issue.ID)
	if err != nil {
		return input, err
	}

	for _, subtask := range subtasks {
		status, err := p.persistence.StatusRepository().GetByID(ctx, subtask.StatusID)
		if err != nil || status.Category != models.StatusCategoryDone {
			input.OpenSubtasks++
		}
	}

	return input, nil
}

func (p *Pipeline) commit(ctx context.Context, issue *models.Issue, transition *models.Transition, req TransitionRequest) (*TransitionResult, error) {
	for field, value := range req.Fields {
		SetIssueField(issue, field, fmt.Sprint(value))
	}

	record := &models.HistoryRecord{
		ID:             uuid.New().String(),
		IssueID:        issue.ID,
		FromStatusID:   issue.StatusID,
		ToStatusID:     req.TargetStatusID,
		TransitionID:   transition.ID,
		TransitionName: transition.Name,
		ActorID:        req.Actor.ID,
		CreatedAt:      time.Now().UTC(),
	}

	issue.StatusID = req.TargetStatusID
	issue.UpdatedAt = record.CreatedAt

	if err := p.persistence.IssueRepository().CommitTransition(ctx, issue, record); err != nil {
		// The store refusing the new status means no transition row
		// permits it; report that, not the storage fault.
		if persistence.IsConstraintViolation(err) {
			return nil, fmt.Errorf("store rejected status %s: %w", req.TargetStatusID, ErrTransitionNotAllowed)
		}

		return nil, err
	}

	return &TransitionResult{
		Issue:      issue,
		History:    record,
		Transition: transition,
	}, nil
}

func (p *Pipeline) announce(ctx context.Context, result *TransitionResult, actor Actor) {
	if p.publisher == nil {
		return
	}

	event := events.IssueTransitioned{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.IssueTransitionedEvent,
			Timestamp: time.Now().UTC(),
		},
		IssueID:        result.Issue.ID,
		FromStatusID:   result.History.FromStatusID,
		ToStatusID:     result.History.ToStatusID,
		TransitionID:   result.Transition.ID,
		TransitionName: result.Transition.Name,
		ActorID:        actor.ID,
	}

	if err := p.publisher.Publish(ctx, result.Issue.ID, event); err != nil {
		p.logger.WarnContext(ctx, "failed to publish transition event",
			"issue_id", result.Issue.ID, "error", err)
	}
}

// lockIssue serializes transition execution per issue. Entries are never
// evicted; the map holds one mutex per issue transitioned during the
// pipeline's lifetime.
func (p *Pipeline) lockIssue(issueID string) func() {
	p.mu.Lock()

	lock, exists := p.locks[issueID]
	if !exists {
		lock = &sync.Mutex{}
		p.locks[issueID] = lock
	}

	p.mu.Unlock()
	lock.Lock()

	return lock.Unlock
}

func (p *Pipeline) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if p.tracer == nil {
		return ctx, func(error) {}
	}

	ctx, span := otelhelper.StartSpan(ctx, p.tracer, name, attrs...)

	return ctx, func(err error) {
		if err != nil {
			otelhelper.SetError(span, err)
		}

		span.End()
	}
}
