package workflow

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/pkg/models"
	"github.com/tracklane/tracklane/pkg/testutil"
)

func newPortabilityFixture(t *testing.T) (*testutil.MemoryPersistence, *PortabilityService, []*models.Status) {
	t.Helper()

	store, _, statuses := newGraphFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return store, NewPortabilityService(store, logger), statuses
}

func TestExportImportRoundTrip(t *testing.T) {
	store, service, statuses := newPortabilityFixture(t)
	ctx := context.Background()

	source := testutil.CreateTestWorkflow(
		testutil.WithStep(statuses[0].ID, true),
		testutil.WithStep(statuses[1].ID, false),
		testutil.WithStep(statuses[2].ID, false),
		testutil.WithTransition("Start Progress", statuses[0].ID, statuses[1].ID),
		testutil.WithTransition("Finish", statuses[1].ID, statuses[2].ID),
		testutil.WithTransition("Reopen", "", statuses[0].ID),
	)
	source.Transitions[1].Validators = []models.Validator{
		{Type: models.ValidatorResolutionSet, Message: "resolve first"},
	}
	source.Transitions[1].PostFunctions = []models.PostFunction{
		{Type: models.PostFunctionAssignToReporter},
	}
	require.NoError(t, store.WorkflowRepository().Save(ctx, source))

	doc, err := service.Export(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportVersion, doc.Version)
	assert.Len(t, doc.Workflow.Steps, 3)
	assert.Len(t, doc.Workflow.Transitions, 3)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	result, err := service.Import(ctx, raw)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	imported := result.Workflow
	assert.NotEqual(t, source.ID, imported.ID)
	require.Len(t, imported.Steps, 3)
	require.Len(t, imported.Transitions, 3)

	// Same statuses placed, same initial step.
	for _, step := range source.Steps {
		match := imported.StepByStatus(step.StatusID)
		require.NotNil(t, match)
		assert.Equal(t, step.IsInitial, match.IsInitial)
	}

	// The diff between source and import must be empty, rules included.
	diff := Compare(source, imported)

	for _, entry := range diff.Steps {
		assert.Equal(t, models.DiffUnchanged, entry.Kind)
	}

	for _, entry := range diff.Transitions {
		assert.Equal(t, models.DiffUnchanged, entry.Kind)
	}

	// The imported workflow was persisted.
	_, err = store.WorkflowRepository().GetByID(ctx, imported.ID)
	assert.NoError(t, err)
}

func TestExportSkipsDanglingTransitions(t *testing.T) {
	store, service, statuses := newPortabilityFixture(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(
		testutil.WithStep(statuses[0].ID, true),
		testutil.WithStep(statuses[1].ID, false),
		testutil.WithTransition("Start Progress", statuses[0].ID, statuses[1].ID),
	)
	wf.Transitions = append(wf.Transitions, &models.Transition{
		ID:         "transition-dangling",
		WorkflowID: wf.ID,
		ToStepID:   "step-gone",
		Name:       "Vanish",
	})
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	doc, err := service.Export(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, doc.Workflow.Transitions, 1)
	assert.Equal(t, "Start Progress", doc.Workflow.Transitions[0].Name)
}

func TestImportResolvesStatusesByName(t *testing.T) {
	_, service, statuses := newPortabilityFixture(t)
	ctx := context.Background()

	// Ids from another environment; names match the local catalog.
	raw := []byte(`{
		"version": 1,
		"workflow": {
			"name": "Imported",
			"steps": [
				{"status_id": "remote-1", "status_name": "To Do", "is_initial": true},
				{"status_id": "remote-2", "status_name": "Done"}
			],
			"transitions": [
				{"from_status_id": "remote-1", "to_status_id": "remote-2", "name": "Finish"}
			]
		}
	}`)

	result, err := service.Import(ctx, raw)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	require.Len(t, result.Workflow.Steps, 2)
	assert.NotNil(t, result.Workflow.StepByStatus(statuses[0].ID))
	assert.NotNil(t, result.Workflow.StepByStatus(statuses[2].ID))
	require.Len(t, result.Workflow.Transitions, 1)
}

func TestImportSkipsUnresolvableStatusWithWarning(t *testing.T) {
	_, service, _ := newPortabilityFixture(t)
	ctx := context.Background()

	raw := []byte(`{
		"version": 1,
		"workflow": {
			"name": "Imported",
			"steps": [
				{"status_id": "remote-1", "status_name": "To Do", "is_initial": true},
				{"status_id": "remote-9", "status_name": "No Such Status"}
			],
			"transitions": [
				{"from_status_id": "remote-1", "to_status_id": "remote-9", "name": "Vanish"}
			]
		}
	}`)

	result, err := service.Import(ctx, raw)
	require.NoError(t, err)

	// One warning for the step, one for the transition that targeted it.
	assert.Len(t, result.Warnings, 2)
	assert.Len(t, result.Workflow.Steps, 1)
	assert.Empty(t, result.Workflow.Transitions)
}

func TestImportRejectsMalformedDocuments(t *testing.T) {
	_, service, _ := newPortabilityFixture(t)
	ctx := context.Background()

	cases := map[string][]byte{
		"not json":        []byte(`{not json`),
		"missing version": []byte(`{"workflow": {"name": "X", "steps": [], "transitions": []}}`),
		"missing name":    []byte(`{"version": 1, "workflow": {"steps": [], "transitions": []}}`),
		"bad step":        []byte(`{"version": 1, "workflow": {"name": "X", "steps": [{}], "transitions": []}}`),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.Import(ctx, raw)
			require.Error(t, err)
			assert.True(t, IsImportFormatError(err))
		})
	}
}

func TestImportRejectsNewerExportVersion(t *testing.T) {
	_, service, _ := newPortabilityFixture(t)
	ctx := context.Background()

	raw := []byte(`{"version": 99, "workflow": {"name": "Future", "steps": [], "transitions": []}}`)

	_, err := service.Import(ctx, raw)
	require.Error(t, err)
	assert.True(t, IsImportFormatError(err))
}

func TestImportKeepsFirstInitialOnly(t *testing.T) {
	_, service, _ := newPortabilityFixture(t)
	ctx := context.Background()

	raw := []byte(`{
		"version": 1,
		"workflow": {
			"name": "Imported",
			"steps": [
				{"status_id": "remote-1", "status_name": "To Do", "is_initial": true},
				{"status_id": "remote-2", "status_name": "Done", "is_initial": true}
			],
			"transitions": []
		}
	}`)

	result, err := service.Import(ctx, raw)
	require.NoError(t, err)

	initials := 0

	for _, step := range result.Workflow.Steps {
		if step.IsInitial {
			initials++
		}
	}

	assert.Equal(t, 1, initials)
}
