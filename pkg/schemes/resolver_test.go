package schemes

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func saveScheme(t *testing.T, store *testutil.MemoryPersistence, scheme *models.WorkflowScheme) {
	t.Helper()
	require.NoError(t, store.SchemeRepository().Save(context.Background(), scheme))
}

func TestResolveExactMappingBeatsWildcard(t *testing.T) {
	store := testutil.NewMemoryPersistence()
	bug := "bug"

	saveScheme(t, store, &models.WorkflowScheme{
		ID:   "scheme-1",
		Name: "Software Scheme",
		Mappings: []*models.SchemeMapping{
			{SchemeID: "scheme-1", IssueTypeID: &bug, WorkflowID: "workflow-bugs"},
			{SchemeID: "scheme-1", WorkflowID: "workflow-default"},
		},
	})

	resolver := NewResolver(store, testLogger())
	ctx := context.Background()

	workflowID, err := resolver.Resolve(ctx, "scheme-1", "bug")
	require.NoError(t, err)
	assert.Equal(t, "workflow-bugs", workflowID)

	// Every other issue type falls through to the wildcard.
	for _, issueType := range []string{"task", "story", "epic"} {
		workflowID, err := resolver.Resolve(ctx, "scheme-1", issueType)
		require.NoError(t, err)
		assert.Equal(t, "workflow-default", workflowID)
	}
}

func TestResolveWithoutWildcardFails(t *testing.T) {
	store := testutil.NewMemoryPersistence()
	bug := "bug"

	saveScheme(t, store, &models.WorkflowScheme{
		ID:   "scheme-1",
		Name: "Bugs Only",
		Mappings: []*models.SchemeMapping{
			{SchemeID: "scheme-1", IssueTypeID: &bug, WorkflowID: "workflow-bugs"},
		},
	})

	resolver := NewResolver(store, testLogger())

	_, err := resolver.Resolve(context.Background(), "scheme-1", "task")
	assert.ErrorIs(t, err, ErrNoWorkflowConfigured)
}

func TestResolveForIssueUsesProjectAssignment(t *testing.T) {
	store := testutil.NewMemoryPersistence()
	ctx := context.Background()

	saveScheme(t, store, &models.WorkflowScheme{
		ID:        "scheme-default",
		Name:      "Default",
		IsDefault: true,
		Mappings:  []*models.SchemeMapping{{SchemeID: "scheme-default", WorkflowID: "workflow-default"}},
	})
	saveScheme(t, store, &models.WorkflowScheme{
		ID:       "scheme-custom",
		Name:     "Custom",
		Mappings: []*models.SchemeMapping{{SchemeID: "scheme-custom", WorkflowID: "workflow-custom"}},
	})
	require.NoError(t, store.SchemeRepository().AssignProject(ctx, "project-1", "scheme-custom"))

	resolver := NewResolver(store, testLogger())

	workflowID, err := resolver.ResolveForIssue(ctx, "project-1", "task")
	require.NoError(t, err)
	assert.Equal(t, "workflow-custom", workflowID)
}

func TestResolveForIssueFallsBackToDefaultScheme(t *testing.T) {
	store := testutil.NewMemoryPersistence()

	saveScheme(t, store, &models.WorkflowScheme{
		ID:        "scheme-default",
		Name:      "Default",
		IsDefault: true,
		Mappings:  []*models.SchemeMapping{{SchemeID: "scheme-default", WorkflowID: "workflow-default"}},
	})

	resolver := NewResolver(store, testLogger())

	workflowID, err := resolver.ResolveForIssue(context.Background(), "project-unassigned", "task")
	require.NoError(t, err)
	assert.Equal(t, "workflow-default", workflowID)
}

func TestResolveForIssueWithoutAnyScheme(t *testing.T) {
	store := testutil.NewMemoryPersistence()
	resolver := NewResolver(store, testLogger())

	_, err := resolver.ResolveForIssue(context.Background(), "project-1", "task")
	assert.ErrorIs(t, err, ErrNoWorkflowConfigured)
}
