package workflow

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
	"github.com/tracklane/tracklane/pkg/testutil"
)

func newGraphFixture(t *testing.T) (*testutil.MemoryPersistence, *GraphService, []*models.Status) {
	t.Helper()

	store := testutil.NewMemoryPersistence()
	ctx := context.Background()

	statuses := []*models.Status{
		testutil.CreateTestStatus(testutil.WithStatusName("To Do")),
		testutil.CreateTestStatus(
			testutil.WithStatusName("In Progress"),
			testutil.WithCategory(models.StatusCategoryInProgress),
		),
		testutil.CreateTestStatus(
			testutil.WithStatusName("Done"),
			testutil.WithCategory(models.StatusCategoryDone),
		),
	}

	for _, status := range statuses {
		require.NoError(t, store.StatusRepository().Save(ctx, status))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return store, NewGraphService(store, logger), statuses
}

func TestAddStepKeepsSingleInitial(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow()
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	first, err := service.AddStep(ctx, wf.ID, statuses[0].ID, true)
	require.NoError(t, err)
	assert.True(t, first.IsInitial)

	// Marking a later step initial must clear the flag on the first.
	second, err := service.AddStep(ctx, wf.ID, statuses[1].ID, true)
	require.NoError(t, err)
	assert.True(t, second.IsInitial)

	_, err = service.AddStep(ctx, wf.ID, statuses[2].ID, false)
	require.NoError(t, err)

	saved, err := store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, saved.Steps, 3)

	initials := 0

	for _, step := range saved.Steps {
		if step.IsInitial {
			initials++

			assert.Equal(t, statuses[1].ID, step.StatusID)
		}
	}

	assert.Equal(t, 1, initials)
}

func TestAddStepRejectsDuplicateStatus(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(testutil.WithStep(statuses[0].ID, true))
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	_, err := service.AddStep(ctx, wf.ID, statuses[0].ID, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateStatus)

	saved, err := store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Steps, 1)
}

func TestSetInitialMovesFlagBetweenSteps(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(
		testutil.WithStep(statuses[0].ID, true),
		testutil.WithStep(statuses[1].ID, false),
	)
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	target := wf.StepByStatus(statuses[1].ID)
	require.NoError(t, service.SetInitial(ctx, wf.ID, target.ID))

	saved, err := store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)

	for _, step := range saved.Steps {
		assert.Equal(t, step.ID == target.ID, step.IsInitial)
	}

	assert.ErrorIs(t, service.SetInitial(ctx, wf.ID, "missing-step"), ErrStepNotFound)
}

func TestAddTransitionRejectsDuplicateEdge(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(
		testutil.WithStep(statuses[0].ID, true),
		testutil.WithStep(statuses[1].ID, false),
	)
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	from := wf.StepByStatus(statuses[0].ID)
	to := wf.StepByStatus(statuses[1].ID)

	original, err := service.AddTransition(ctx, wf.ID, &from.ID, to.ID, "Start Progress")
	require.NoError(t, err)

	_, err = service.AddTransition(ctx, wf.ID, &from.ID, to.ID, "Start Again")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateTransition)

	// The original edge survives the rejected insert unchanged.
	saved, err := store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, saved.Transitions, 1)
	assert.Equal(t, original.ID, saved.Transitions[0].ID)
	assert.Equal(t, "Start Progress", saved.Transitions[0].Name)
}

func TestAddTransitionGlobalAndExactAreDistinctEdges(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(
		testutil.WithStep(statuses[0].ID, true),
		testutil.WithStep(statuses[1].ID, false),
	)
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	from := wf.StepByStatus(statuses[0].ID)
	to := wf.StepByStatus(statuses[1].ID)

	_, err := service.AddTransition(ctx, wf.ID, &from.ID, to.ID, "Start Progress")
	require.NoError(t, err)

	// A global edge to the same target is not a duplicate of the exact one.
	global, err := service.AddTransition(ctx, wf.ID, nil, to.ID, "Force Progress")
	require.NoError(t, err)
	assert.Nil(t, global.FromStepID)

	_, err = service.AddTransition(ctx, wf.ID, nil, to.ID, "Force Again")
	assert.ErrorIs(t, err, ErrDuplicateTransition)
}

func TestAddTransitionRejectsForeignSteps(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(testutil.WithStep(statuses[0].ID, true))
	other := testutil.CreateTestWorkflow(testutil.WithStep(statuses[1].ID, true))
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))
	require.NoError(t, store.WorkflowRepository().Save(ctx, other))

	foreign := other.StepByStatus(statuses[1].ID)
	local := wf.StepByStatus(statuses[0].ID)

	_, err := service.AddTransition(ctx, wf.ID, &local.ID, foreign.ID, "Escape")
	assert.ErrorIs(t, err, ErrCrossWorkflowReference)

	_, err = service.AddTransition(ctx, wf.ID, &foreign.ID, local.ID, "Intrude")
	assert.ErrorIs(t, err, ErrCrossWorkflowReference)
}

func TestAddTransitionRejectsUnknownSteps(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(testutil.WithStep(statuses[0].ID, true))
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	local := wf.StepByStatus(statuses[0].ID)

	// An id no workflow places is plain not-found, not a foreign reference.
	_, err := service.AddTransition(ctx, wf.ID, &local.ID, "no-such-step", "Vanish")
	assert.ErrorIs(t, err, ErrStepNotFound)
	assert.NotErrorIs(t, err, ErrCrossWorkflowReference)

	missing := "no-such-step"

	_, err = service.AddTransition(ctx, wf.ID, &missing, local.ID, "Appear")
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestRemoveStepCascadesTransitions(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(
		testutil.WithStep(statuses[0].ID, true),
		testutil.WithStep(statuses[1].ID, false),
		testutil.WithStep(statuses[2].ID, false),
		testutil.WithTransition("Start Progress", statuses[0].ID, statuses[1].ID),
		testutil.WithTransition("Finish", statuses[1].ID, statuses[2].ID),
		testutil.WithTransition("Reopen", "", statuses[0].ID),
	)
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	doomed := wf.StepByStatus(statuses[1].ID)
	require.NoError(t, service.RemoveStep(ctx, wf.ID, doomed.ID))

	saved, err := store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Steps, 2)
	require.Len(t, saved.Transitions, 1)
	assert.Equal(t, "Reopen", saved.Transitions[0].Name)
}

func TestSetTransitionRulesReplacesPayload(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(
		testutil.WithStep(statuses[0].ID, true),
		testutil.WithStep(statuses[1].ID, false),
		testutil.WithTransition("Start Progress", statuses[0].ID, statuses[1].ID),
	)
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	transitionID := wf.Transitions[0].ID

	conditions := []models.Condition{{Type: models.ConditionUserInGroup, Group: "developers"}}
	validators := []models.Validator{{Type: models.ValidatorFieldRequired, Field: "resolution"}}
	postFunctions := []models.PostFunction{{Type: models.PostFunctionAddComment, Text: "moved"}}

	updated, err := service.SetTransitionRules(ctx, wf.ID, transitionID, conditions, validators, postFunctions)
	require.NoError(t, err)
	assert.Equal(t, conditions, updated.Conditions)

	saved, err := store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)

	persisted := saved.TransitionByID(transitionID)
	require.NotNil(t, persisted)
	assert.Equal(t, validators, persisted.Validators)
	assert.Equal(t, postFunctions, persisted.PostFunctions)

	_, err = service.SetTransitionRules(ctx, wf.ID, "missing-transition", nil, nil, nil)
	assert.ErrorIs(t, err, ErrTransitionNotFound)
}

func TestCloneGraphRemapsEndpoints(t *testing.T) {
	_, _, statuses := newGraphFixture(t)

	source := testutil.CreateTestWorkflow(
		testutil.WithStep(statuses[0].ID, true),
		testutil.WithStep(statuses[1].ID, false),
		testutil.WithStep(statuses[2].ID, false),
		testutil.WithTransition("Start Progress", statuses[0].ID, statuses[1].ID),
		testutil.WithTransition("Finish", statuses[1].ID, statuses[2].ID),
		testutil.WithTransition("Reopen", "", statuses[0].ID),
	)

	target := testutil.CreateTestWorkflow()
	steps, transitions := CloneGraph(source, target.ID)
	target.Steps = steps
	target.Transitions = transitions

	require.Len(t, steps, len(source.Steps))
	require.Len(t, transitions, len(source.Transitions))

	sourceIDs := make(map[string]bool)

	for _, step := range source.Steps {
		sourceIDs[step.ID] = true
	}

	for _, transition := range source.Transitions {
		sourceIDs[transition.ID] = true
	}

	for i, step := range steps {
		assert.False(t, sourceIDs[step.ID], "clone reused a source step id")
		assert.Equal(t, target.ID, step.WorkflowID)
		assert.Equal(t, source.Steps[i].StatusID, step.StatusID)
		assert.Equal(t, source.Steps[i].IsInitial, step.IsInitial)
	}

	// Every cloned edge must connect the same statuses as its source,
	// resolved through the clone's own steps.
	for i, transition := range transitions {
		assert.False(t, sourceIDs[transition.ID], "clone reused a source transition id")

		sourceTransition := source.Transitions[i]
		assert.Equal(t,
			source.StepByID(sourceTransition.ToStepID).StatusID,
			target.StepByID(transition.ToStepID).StatusID,
		)

		if sourceTransition.FromStepID == nil {
			assert.Nil(t, transition.FromStepID)

			continue
		}

		require.NotNil(t, transition.FromStepID)
		assert.Equal(t,
			source.StepByID(*sourceTransition.FromStepID).StatusID,
			target.StepByID(*transition.FromStepID).StatusID,
		)
	}
}

func TestCloneIntoReplacesTargetGraph(t *testing.T) {
	store, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	source := testutil.CreateTestWorkflow(
		testutil.WithStep(statuses[0].ID, true),
		testutil.WithStep(statuses[1].ID, false),
		testutil.WithTransition("Start Progress", statuses[0].ID, statuses[1].ID),
	)
	target := testutil.CreateTestWorkflow(testutil.WithStep(statuses[2].ID, true))
	require.NoError(t, store.WorkflowRepository().Save(ctx, source))
	require.NoError(t, store.WorkflowRepository().Save(ctx, target))

	require.NoError(t, service.CloneInto(ctx, source.ID, target.ID))

	cloned, err := store.WorkflowRepository().GetByID(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, cloned.Steps, 2)
	require.Len(t, cloned.Transitions, 1)
	assert.Nil(t, cloned.StepByStatus(statuses[2].ID))
	assert.NotNil(t, cloned.StepByStatus(statuses[0].ID))

	for _, step := range cloned.Steps {
		assert.Equal(t, target.ID, step.WorkflowID)
		assert.Nil(t, source.StepByID(step.ID))
	}
}

func TestGraphOperationsOnMissingWorkflow(t *testing.T) {
	_, service, statuses := newGraphFixture(t)
	ctx := context.Background()

	_, err := service.AddStep(ctx, "missing-workflow", statuses[0].ID, true)
	assert.True(t, persistence.IsNotFound(err))

	_, err = service.AddTransition(ctx, "missing-workflow", nil, "step", "Start")
	assert.True(t, persistence.IsNotFound(err))
}
