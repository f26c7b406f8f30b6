package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/pkg/models"
)

func TestEvaluateConditionsAllPass(t *testing.T) {
	issue := &models.Issue{AssigneeID: "alice", ReporterID: "bob"}
	actor := Actor{ID: "alice", Groups: []string{"developers"}, Permissions: []string{"transition_issue"}}

	err := EvaluateConditions([]models.Condition{
		{Type: models.ConditionOnlyAssignee},
		{Type: models.ConditionUserInGroup, Group: "developers"},
		{Type: models.ConditionPermissionCheck, Permission: "transition_issue"},
	}, actor, issue)

	require.NoError(t, err)
}

func TestEvaluateConditionsEmptyChainPasses(t *testing.T) {
	err := EvaluateConditions(nil, Actor{ID: "anyone"}, &models.Issue{})

	require.NoError(t, err)
}

func TestEvaluateConditionsShortCircuitsOnFirstFailure(t *testing.T) {
	issue := &models.Issue{AssigneeID: "alice"}
	actor := Actor{ID: "mallory"}

	err := EvaluateConditions([]models.Condition{
		{Type: models.ConditionOnlyAssignee},
		{Type: models.ConditionUserInGroup, Group: "developers"},
	}, actor, issue)

	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))

	var denied *PermissionDeniedError

	require.ErrorAs(t, err, &denied)
	assert.Equal(t, models.ConditionOnlyAssignee, denied.Condition)
}

func TestEvaluateConditionsOnlyReporter(t *testing.T) {
	issue := &models.Issue{ReporterID: "bob"}

	require.NoError(t, EvaluateConditions([]models.Condition{
		{Type: models.ConditionOnlyReporter},
	}, Actor{ID: "bob"}, issue))

	err := EvaluateConditions([]models.Condition{
		{Type: models.ConditionOnlyReporter},
	}, Actor{ID: "alice"}, issue)
	assert.True(t, IsPermissionDenied(err))
}

func TestEvaluateConditionsRoleMembership(t *testing.T) {
	actor := Actor{ID: "carol", Roles: []string{"project-admin"}}

	require.NoError(t, EvaluateConditions([]models.Condition{
		{Type: models.ConditionUserInRole, Role: "project-admin"},
	}, actor, &models.Issue{}))

	err := EvaluateConditions([]models.Condition{
		{Type: models.ConditionUserInRole, Role: "qa"},
	}, actor, &models.Issue{})
	assert.True(t, IsPermissionDenied(err))
}

func TestEvaluateConditionsUnknownTypeFailsClosed(t *testing.T) {
	err := EvaluateConditions([]models.Condition{
		{Type: "teleport_check"},
	}, Actor{ID: "alice"}, &models.Issue{})

	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))
}

func TestEvaluateConditionsAnonymousActorNeverAssignee(t *testing.T) {
	// An issue with no assignee must not let an empty actor id pass.
	err := EvaluateConditions([]models.Condition{
		{Type: models.ConditionOnlyAssignee},
	}, Actor{}, &models.Issue{})

	require.Error(t, err)
}
