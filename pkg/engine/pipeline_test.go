package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
	"github.com/tracklane/tracklane/pkg/schemes"
	"github.com/tracklane/tracklane/pkg/testutil"
)

type pipelineFixture struct {
	store    *testutil.MemoryPersistence
	pipeline *Pipeline
	issue    *models.Issue
	workflow *models.Workflow
	todo     *models.Status
	doing    *models.Status
	done     *models.Status
}

// newPipelineFixture builds a project whose issues follow a three-status
// workflow: todo(initial) -> doing -> done, plus a global edge to todo.
func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	store := testutil.NewMemoryPersistence()
	ctx := context.Background()

	todo := testutil.CreateTestStatus(testutil.WithStatusName("To Do"))
	doing := testutil.CreateTestStatus(
		testutil.WithStatusName("In Progress"),
		testutil.WithCategory(models.StatusCategoryInProgress),
	)
	done := testutil.CreateTestStatus(
		testutil.WithStatusName("Done"),
		testutil.WithCategory(models.StatusCategoryDone),
	)

	for _, status := range []*models.Status{todo, doing, done} {
		require.NoError(t, store.StatusRepository().Save(ctx, status))
	}

	wf := testutil.CreateTestWorkflow(
		testutil.WithStep(todo.ID, true),
		testutil.WithStep(doing.ID, false),
		testutil.WithStep(done.ID, false),
		testutil.WithTransition("Start Progress", todo.ID, doing.ID),
		testutil.WithTransition("Finish", doing.ID, done.ID),
		testutil.WithTransition("Reopen", "", todo.ID),
	)
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	scheme := &models.WorkflowScheme{
		ID:        "scheme-1",
		Name:      "Default Scheme",
		IsDefault: true,
		Mappings:  []*models.SchemeMapping{{SchemeID: "scheme-1", WorkflowID: wf.ID}},
	}
	require.NoError(t, store.SchemeRepository().Save(ctx, scheme))

	project := &models.Project{ID: "project-1", Key: "TL", Name: "Tracklane", LeadID: "user-lead"}
	require.NoError(t, store.ProjectRepository().Save(ctx, project))

	issue := testutil.CreateTestIssue(project.ID, todo.ID)
	require.NoError(t, store.IssueRepository().Save(ctx, issue))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := schemes.NewResolver(store, logger)
	postFunctions := NewPostFunctionExecutor(store, nil, logger)
	pipeline := NewPipeline(store, resolver, postFunctions, nil, logger)

	return &pipelineFixture{
		store:    store,
		pipeline: pipeline,
		issue:    issue,
		workflow: wf,
		todo:     todo,
		doing:    doing,
		done:     done,
	}
}

func (f *pipelineFixture) transitionTo(statusID string) *models.Transition {
	for _, transition := range f.workflow.Transitions {
		step := f.workflow.StepByID(transition.ToStepID)
		if step != nil && step.StatusID == statusID {
			return transition
		}
	}

	return nil
}

func TestExecuteMovesIssueAlongAnEdge(t *testing.T) {
	f := newPipelineFixture(t)

	result, err := f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "user-assignee"},
	})

	require.NoError(t, err)
	assert.Equal(t, f.doing.ID, result.Issue.StatusID)
	assert.Equal(t, f.todo.ID, result.History.FromStatusID)
	assert.Equal(t, f.doing.ID, result.History.ToStatusID)
	assert.Empty(t, result.Warnings)

	stored, err := f.store.IssueRepository().GetByID(context.Background(), f.issue.ID)
	require.NoError(t, err)
	assert.Equal(t, f.doing.ID, stored.StatusID)

	history, err := f.store.IssueRepository().History(context.Background(), f.issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Start Progress", history[0].TransitionName)
}

func TestExecuteRefusesWithoutAnEdge(t *testing.T) {
	f := newPipelineFixture(t)

	// No direct edge todo -> done.
	_, err := f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.done.ID,
		Actor:          Actor{ID: "user-assignee"},
	})

	require.Error(t, err)
	assert.True(t, IsTransitionNotAllowed(err))

	stored, err := f.store.IssueRepository().GetByID(context.Background(), f.issue.ID)
	require.NoError(t, err)
	assert.Equal(t, f.todo.ID, stored.StatusID)
}

func TestExecuteGlobalTransitionFiresFromAnyStatus(t *testing.T) {
	f := newPipelineFixture(t)
	f.issue.StatusID = f.doing.ID

	result, err := f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.todo.ID,
		Actor:          Actor{ID: "user-assignee"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Reopen", result.Transition.Name)
	assert.Equal(t, f.todo.ID, result.Issue.StatusID)
}

func TestGlobalTransitionFiresFromStatusRemovedByPublish(t *testing.T) {
	f := newPipelineFixture(t)

	// A publish can drop a step while issues still sit on its status. The
	// orphaned issue keeps its global edges: what AvailableTransitions
	// lists, Execute must accept.
	f.issue.StatusID = "status-retired"

	available, err := f.pipeline.AvailableTransitions(context.Background(), f.issue.ID, Actor{ID: "user-assignee"})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Reopen", available[0].Name)

	// Exact edges stay out of reach from an orphaned status.
	_, err = f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "user-assignee"},
	})
	require.Error(t, err)
	assert.True(t, IsTransitionNotAllowed(err))

	result, err := f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.todo.ID,
		Actor:          Actor{ID: "user-assignee"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Reopen", result.Transition.Name)
	assert.Equal(t, "status-retired", result.History.FromStatusID)
	assert.Equal(t, f.todo.ID, result.Issue.StatusID)
}

func TestExecuteConditionRejectionLeavesIssueUntouched(t *testing.T) {
	f := newPipelineFixture(t)

	transition := f.transitionTo(f.doing.ID)
	transition.Conditions = []models.Condition{{Type: models.ConditionOnlyAssignee}}

	_, err := f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "mallory"},
	})

	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))

	history, err := f.store.IssueRepository().History(context.Background(), f.issue.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestExecuteAggregatesValidatorFailures(t *testing.T) {
	f := newPipelineFixture(t)

	transition := f.transitionTo(f.doing.ID)
	transition.Validators = []models.Validator{
		{Type: models.ValidatorFieldRequired, Field: "fix_version"},
		{Type: models.ValidatorResolutionSet},
	}

	_, err := f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "user-assignee"},
	})

	require.Error(t, err)

	var failed *ValidationFailedError

	require.ErrorAs(t, err, &failed)
	assert.Len(t, failed.Failures, 2)
}

func TestExecutePersistsProposedFields(t *testing.T) {
	f := newPipelineFixture(t)

	transition := f.transitionTo(f.doing.ID)
	transition.Validators = []models.Validator{{Type: models.ValidatorResolutionSet}}

	result, err := f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "user-assignee"},
		Fields:         map[string]any{"resolution": "Fixed"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Fixed", result.Issue.Resolution)
}

func TestExecuteSubtasksClosedValidator(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	transition := f.transitionTo(f.doing.ID)
	transition.Validators = []models.Validator{{Type: models.ValidatorSubtasksClosed}}

	subtask := testutil.CreateTestIssue("project-1", f.todo.ID, testutil.WithParent(f.issue.ID))
	require.NoError(t, f.store.IssueRepository().Save(ctx, subtask))

	_, err := f.pipeline.Execute(ctx, TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "user-assignee"},
	})
	require.Error(t, err)
	assert.True(t, IsValidationFailed(err))

	// Closing the subtask unblocks the transition.
	subtask.StatusID = f.done.ID
	require.NoError(t, f.store.IssueRepository().Save(ctx, subtask))

	_, err = f.pipeline.Execute(ctx, TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "user-assignee"},
	})
	require.NoError(t, err)
}

func TestExecuteTranslatesConstraintViolation(t *testing.T) {
	f := newPipelineFixture(t)
	f.store.CommitErr = persistence.ErrConstraintViolation

	_, err := f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "user-assignee"},
	})

	require.Error(t, err)
	assert.True(t, IsTransitionNotAllowed(err))
	assert.False(t, persistence.IsConstraintViolation(err))
}

func TestExecutePostFunctionFailureIsAWarning(t *testing.T) {
	f := newPipelineFixture(t)

	transition := f.transitionTo(f.doing.ID)
	transition.PostFunctions = []models.PostFunction{
		// No publisher is wired, so this cannot be delivered.
		{Type: models.PostFunctionSendNotification, Text: "moved"},
	}

	result, err := f.pipeline.Execute(context.Background(), TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "user-assignee"},
	})

	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.PostFunctionSendNotification, result.Warnings[0].PostFunction)

	// The status change stands despite the warning.
	assert.Equal(t, f.doing.ID, result.Issue.StatusID)
}

func TestExecutePostFunctionsApplyEffects(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	transition := f.transitionTo(f.doing.ID)
	transition.PostFunctions = []models.PostFunction{
		{Type: models.PostFunctionAssignToLead},
		{Type: models.PostFunctionAddComment, Text: "work started"},
	}

	result, err := f.pipeline.Execute(ctx, TransitionRequest{
		IssueID:        f.issue.ID,
		TargetStatusID: f.doing.ID,
		Actor:          Actor{ID: "user-assignee"},
	})

	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "user-lead", result.Issue.AssigneeID)

	comments := f.store.Comments[f.issue.ID]
	require.Len(t, comments, 1)
	assert.Equal(t, "work started", comments[0].Body)
}

func TestAvailableTransitionsFiltersByStatusAndConditions(t *testing.T) {
	f := newPipelineFixture(t)

	finish := f.transitionTo(f.done.ID)
	finish.Conditions = []models.Condition{{Type: models.ConditionUserInGroup, Group: "qa"}}

	// From todo: Start Progress plus the global Reopen.
	available, err := f.pipeline.AvailableTransitions(context.Background(), f.issue.ID, Actor{ID: "user-assignee"})
	require.NoError(t, err)
	require.Len(t, available, 2)

	// From doing: Finish is hidden unless the actor is in qa.
	f.issue.StatusID = f.doing.ID

	available, err = f.pipeline.AvailableTransitions(context.Background(), f.issue.ID, Actor{ID: "user-assignee"})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Reopen", available[0].Name)

	available, err = f.pipeline.AvailableTransitions(
		context.Background(), f.issue.ID, Actor{ID: "user-assignee", Groups: []string{"qa"}})
	require.NoError(t, err)
	assert.Len(t, available, 2)
}

func TestExecuteSerializesPerIssue(t *testing.T) {
	f := newPipelineFixture(t)

	var wg sync.WaitGroup

	// Fire the same transition concurrently; exactly one attempt wins,
	// the rest fail with no matching edge from the new status.
	successes := make(chan struct{}, 8)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.pipeline.Execute(context.Background(), TransitionRequest{
				IssueID:        f.issue.ID,
				TargetStatusID: f.doing.ID,
				Actor:          Actor{ID: "user-assignee"},
			})
			if err == nil {
				successes <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(successes)

	assert.Len(t, successes, 1)

	history, err := f.store.IssueRepository().History(context.Background(), f.issue.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
