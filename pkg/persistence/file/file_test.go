package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/persistence"
	"github.com/tracklane/tracklane/pkg/testutil"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestWorkflowRoundTrip(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(
		testutil.WithStep("status-todo", true),
		testutil.WithStep("status-done", false),
		testutil.WithTransition("Finish", "status-todo", "status-done"),
	)
	wf.Transitions[0].Conditions = []models.Condition{
		{Type: models.ConditionOnlyAssignee},
	}

	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	loaded, err := store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.Name, loaded.Name)
	require.Len(t, loaded.Steps, 2)
	require.Len(t, loaded.Transitions, 1)
	assert.Equal(t, wf.Transitions[0].Conditions, loaded.Transitions[0].Conditions)
	require.NotNil(t, loaded.InitialStep())
	assert.Equal(t, "status-todo", loaded.InitialStep().StatusID)

	workflows, err := store.WorkflowRepository().List(ctx)
	require.NoError(t, err)
	assert.Len(t, workflows, 1)

	require.NoError(t, store.WorkflowRepository().Delete(ctx, wf.ID))

	_, err = store.WorkflowRepository().GetByID(ctx, wf.ID)
	assert.True(t, persistence.IsNotFound(err))
}

func TestWorkflowGetByIDNotFound(t *testing.T) {
	store := newTestPersistence(t)

	_, err := store.WorkflowRepository().GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestGetDraftOfFindsOpenDraft(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	live := testutil.CreateTestWorkflow()
	require.NoError(t, store.WorkflowRepository().Save(ctx, live))

	_, err := store.WorkflowRepository().GetDraftOf(ctx, live.ID)
	assert.True(t, persistence.IsDraftWorkflowNotFound(err))

	draft := testutil.CreateTestWorkflow()
	draft.IsDraft = true
	draft.DraftOf = &live.ID
	require.NoError(t, store.WorkflowRepository().Save(ctx, draft))

	found, err := store.WorkflowRepository().GetDraftOf(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, found.ID)
}

func TestPublishDraftWritesLiveAndRemovesDraft(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	live := testutil.CreateTestWorkflow(testutil.WithStep("status-todo", true))
	require.NoError(t, store.WorkflowRepository().Save(ctx, live))

	draft := testutil.CreateTestWorkflow()
	draft.IsDraft = true
	draft.DraftOf = &live.ID
	require.NoError(t, store.WorkflowRepository().Save(ctx, draft))

	live.Steps = append(live.Steps, &models.Step{
		ID:         "step-new",
		WorkflowID: live.ID,
		StatusID:   "status-done",
	})
	require.NoError(t, store.WorkflowRepository().PublishDraft(ctx, live, draft.ID))

	loaded, err := store.WorkflowRepository().GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 2)

	_, err = store.WorkflowRepository().GetByID(ctx, draft.ID)
	assert.True(t, persistence.IsNotFound(err))
}

func TestStatusGetByName(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	status := testutil.CreateTestStatus(testutil.WithStatusName("In Review"))
	require.NoError(t, store.StatusRepository().Save(ctx, status))

	found, err := store.StatusRepository().GetByName(ctx, "In Review")
	require.NoError(t, err)
	assert.Equal(t, status.ID, found.ID)

	_, err = store.StatusRepository().GetByName(ctx, "No Such Status")
	assert.ErrorIs(t, err, persistence.ErrStatusNotFound)
}

func TestSchemeAssignmentRoundTrip(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	scheme := &models.WorkflowScheme{
		ID:        "scheme-1",
		Name:      "Default",
		IsDefault: true,
		Mappings:  []*models.SchemeMapping{{SchemeID: "scheme-1", WorkflowID: "workflow-1"}},
	}
	require.NoError(t, store.SchemeRepository().Save(ctx, scheme))

	fallback, err := store.SchemeRepository().GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, scheme.ID, fallback.ID)

	_, err = store.SchemeRepository().ProjectAssignment(ctx, "project-1")
	assert.ErrorIs(t, err, persistence.ErrSchemeAssignmentNotFound)

	require.NoError(t, store.SchemeRepository().AssignProject(ctx, "project-1", scheme.ID))

	assignment, err := store.SchemeRepository().ProjectAssignment(ctx, "project-1")
	require.NoError(t, err)
	assert.Equal(t, scheme.ID, assignment.SchemeID)
}

func TestCommitTransitionAppendsHistory(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	issue := testutil.CreateTestIssue("project-1", "status-todo")
	require.NoError(t, store.IssueRepository().Save(ctx, issue))

	issue.StatusID = "status-doing"
	record := &models.HistoryRecord{
		ID:             "history-1",
		IssueID:        issue.ID,
		FromStatusID:   "status-todo",
		ToStatusID:     "status-doing",
		TransitionName: "Start Progress",
		ActorID:        "user-1",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.IssueRepository().CommitTransition(ctx, issue, record))

	loaded, err := store.IssueRepository().GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "status-doing", loaded.StatusID)

	history, err := store.IssueRepository().History(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Start Progress", history[0].TransitionName)

	// A second commit appends instead of overwriting.
	issue.StatusID = "status-done"
	record2 := &models.HistoryRecord{
		ID:           "history-2",
		IssueID:      issue.ID,
		FromStatusID: "status-doing",
		ToStatusID:   "status-done",
		ActorID:      "user-1",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.IssueRepository().CommitTransition(ctx, issue, record2))

	history, err = store.IssueRepository().History(ctx, issue.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSubtasksFiltersByParent(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	parent := testutil.CreateTestIssue("project-1", "status-todo")
	child := testutil.CreateTestIssue("project-1", "status-todo", testutil.WithParent(parent.ID))
	unrelated := testutil.CreateTestIssue("project-1", "status-todo")

	for _, issue := range []*models.Issue{parent, child, unrelated} {
		require.NoError(t, store.IssueRepository().Save(ctx, issue))
	}

	subtasks, err := store.IssueRepository().Subtasks(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, subtasks, 1)
	assert.Equal(t, child.ID, subtasks[0].ID)
}

func TestHistoryOfUnknownIssueIsEmpty(t *testing.T) {
	store := newTestPersistence(t)

	history, err := store.IssueRepository().History(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, history)
}
