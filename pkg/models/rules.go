package models

// Conditions, validators and post functions are tagged variants: a Type
// discriminator plus the fields that variant reads. They have no lifecycle
// of their own and are stored inside their owning transition.

// ConditionType discriminates authorization gates evaluated before a
// transition is permitted.
type ConditionType string

const (
	ConditionOnlyAssignee    ConditionType = "only_assignee"
	ConditionOnlyReporter    ConditionType = "only_reporter"
	ConditionUserInGroup     ConditionType = "user_in_group"
	ConditionUserInRole      ConditionType = "user_in_role"
	ConditionPermissionCheck ConditionType = "permission_check"
)

// Condition is an authorization gate on a transition. All conditions of a
// transition must pass for the actor to be allowed through.
type Condition struct {
	Type       ConditionType `json:"type" validate:"required"`
	Group      string        `json:"group,omitempty"`
	Role       string        `json:"role,omitempty"`
	Permission string        `json:"permission,omitempty"`
}

// ValidatorType discriminates business-rule gates evaluated before a
// transition commits.
type ValidatorType string

const (
	ValidatorFieldRequired    ValidatorType = "field_required"
	ValidatorFieldNotEmpty    ValidatorType = "field_not_empty"
	ValidatorSubtasksClosed   ValidatorType = "subtasks_closed"
	ValidatorResolutionSet    ValidatorType = "resolution_set"
	ValidatorCustomFieldValue ValidatorType = "custom_field_value"
)

// Validator is a business-rule gate on a transition. Unlike conditions,
// every validator runs and failures are aggregated.
type Validator struct {
	Type    ValidatorType `json:"type" validate:"required"`
	Field   string        `json:"field,omitempty"`
	Value   string        `json:"value,omitempty"`
	Message string        `json:"message,omitempty"`
}

// PostFunctionType discriminates side-effect actions executed after a
// transition commits.
type PostFunctionType string

const (
	PostFunctionSetField         PostFunctionType = "set_field"
	PostFunctionClearField       PostFunctionType = "clear_field"
	PostFunctionAssignToLead     PostFunctionType = "assign_to_lead"
	PostFunctionAssignToReporter PostFunctionType = "assign_to_reporter"
	PostFunctionAddComment       PostFunctionType = "add_comment"
	PostFunctionSendNotification PostFunctionType = "send_notification"
)

// PostFunction is a best-effort side effect run after the status change is
// already durable. A failing post function never rolls the change back.
type PostFunction struct {
	Type  PostFunctionType `json:"type" validate:"required"`
	Field string           `json:"field,omitempty"`
	Value string           `json:"value,omitempty"`
	Text  string           `json:"text,omitempty"`
}
