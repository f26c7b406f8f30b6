package engine

import (
	"github.com/tracklane/tracklane/pkg/models"
)

// EvaluateConditions authorizes an actor against a transition's conditions.
// All conditions must pass; evaluation short-circuits on the first failure
// and reports it as PermissionDeniedError naming the condition. An unknown
// condition type fails closed.
func EvaluateConditions(conditions []models.Condition, actor Actor, issue *models.Issue) error {
	for _, condition := range conditions {
		if !conditionPasses(condition, actor, issue) {
			return &PermissionDeniedError{Condition: condition.Type}
		}
	}

	return nil
}

func conditionPasses(condition models.Condition, actor Actor, issue *models.Issue) bool {
	switch condition.Type {
	case models.ConditionOnlyAssignee:
		return actor.ID != "" && actor.ID == issue.AssigneeID
	case models.ConditionOnlyReporter:
		return actor.ID != "" && actor.ID == issue.ReporterID
	case models.ConditionUserInGroup:
		return actor.InGroup(condition.Group)
	case models.ConditionUserInRole:
		return actor.InRole(condition.Role)
	case models.ConditionPermissionCheck:
		return actor.HasPermission(condition.Permission)
	default:
		return false
	}
}
