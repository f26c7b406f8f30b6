package engine

import (
	"fmt"

	"github.com/tracklane/tracklane/pkg/models"
)

// RunValidators checks every validator of a transition against the
// proposed field set. Unlike conditions, the chain never short-circuits:
// all failures are collected so the caller can report them at once. An
// empty result means the transition may commit.
func RunValidators(validators []models.Validator, in ValidationInput) []RuleFailure {
	failures := make([]RuleFailure, 0)

	for _, validator := range validators {
		if message, ok := validatorFails(validator, in); ok {
			failures = append(failures, RuleFailure{
				ValidatorType: validator.Type,
				Message:       message,
			})
		}
	}

	return failures
}

// validatorFails returns the failure message when the validator rejects
// the input. A configured Message overrides the default wording.
func validatorFails(validator models.Validator, in ValidationInput) (string, bool) {
	var message string

	switch validator.Type {
	case models.ValidatorFieldRequired, models.ValidatorFieldNotEmpty:
		if !isEmpty(in.FieldValue(validator.Field)) {
			return "", false
		}

		message = fmt.Sprintf("field %q must not be empty", validator.Field)
	case models.ValidatorSubtasksClosed:
		if in.OpenSubtasks == 0 {
			return "", false
		}

		message = fmt.Sprintf("%d subtasks are still open", in.OpenSubtasks)
	case models.ValidatorResolutionSet:
		if !isEmpty(in.FieldValue("resolution")) {
			return "", false
		}

		message = "resolution must be set"
	case models.ValidatorCustomFieldValue:
		if fmt.Sprint(in.FieldValue(validator.Field)) == validator.Value {
			return "", false
		}

		message = fmt.Sprintf("field %q must equal %q", validator.Field, validator.Value)
	default:
		message = fmt.Sprintf("unknown validator type %q", validator.Type)
	}

	if validator.Message != "" {
		message = validator.Message
	}

	return message, true
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}

	text, ok := value.(string)

	return ok && text == ""
}
