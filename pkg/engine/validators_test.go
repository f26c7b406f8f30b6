package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/pkg/models"
)

func TestRunValidatorsCollectsAllFailures(t *testing.T) {
	issue := &models.Issue{Summary: "broken build"}

	failures := RunValidators([]models.Validator{
		{Type: models.ValidatorFieldRequired, Field: "fix_version"},
		{Type: models.ValidatorResolutionSet},
		{Type: models.ValidatorFieldNotEmpty, Field: "summary"},
	}, ValidationInput{Issue: issue})

	// The chain never short-circuits: both failing validators report.
	require.Len(t, failures, 2)
	assert.Equal(t, models.ValidatorFieldRequired, failures[0].ValidatorType)
	assert.Equal(t, models.ValidatorResolutionSet, failures[1].ValidatorType)
}

func TestRunValidatorsProposedFieldsOverrideStored(t *testing.T) {
	issue := &models.Issue{}

	failures := RunValidators([]models.Validator{
		{Type: models.ValidatorResolutionSet},
	}, ValidationInput{
		Issue:  issue,
		Fields: map[string]any{"resolution": "Fixed"},
	})

	assert.Empty(t, failures)
}

func TestRunValidatorsSubtasksClosed(t *testing.T) {
	in := ValidationInput{Issue: &models.Issue{}, OpenSubtasks: 2}

	failures := RunValidators([]models.Validator{
		{Type: models.ValidatorSubtasksClosed},
	}, in)

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Message, "2 subtasks")

	in.OpenSubtasks = 0
	assert.Empty(t, RunValidators([]models.Validator{
		{Type: models.ValidatorSubtasksClosed},
	}, in))
}

func TestRunValidatorsCustomFieldValue(t *testing.T) {
	issue := &models.Issue{Fields: map[string]any{"severity": "high"}}

	assert.Empty(t, RunValidators([]models.Validator{
		{Type: models.ValidatorCustomFieldValue, Field: "severity", Value: "high"},
	}, ValidationInput{Issue: issue}))

	failures := RunValidators([]models.Validator{
		{Type: models.ValidatorCustomFieldValue, Field: "severity", Value: "low"},
	}, ValidationInput{Issue: issue})
	require.Len(t, failures, 1)
}

func TestRunValidatorsConfiguredMessageOverridesDefault(t *testing.T) {
	failures := RunValidators([]models.Validator{
		{Type: models.ValidatorFieldRequired, Field: "fix_version", Message: "pick a fix version first"},
	}, ValidationInput{Issue: &models.Issue{}})

	require.Len(t, failures, 1)
	assert.Equal(t, "pick a fix version first", failures[0].Message)
}

func TestRunValidatorsUnknownTypeFails(t *testing.T) {
	failures := RunValidators([]models.Validator{
		{Type: "crystal_ball"},
	}, ValidationInput{Issue: &models.Issue{}})

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Message, "unknown validator type")
}
