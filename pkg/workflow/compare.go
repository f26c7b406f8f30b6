package workflow

import (
	"slices"
	"strings"

	"github.com/tracklane/tracklane/pkg/models"
)

// Compare produces the structural diff between two workflow graphs. Steps
// are keyed by status id and transitions by the (from status, to status)
// pair resolved through each graph's own steps, so drafts and clones
// compare meaningfully even though every row has fresh ids. Entries are
// sorted removed, modified, added, unchanged for stable output.
func Compare(a, b *models.Workflow) *models.WorkflowDiff {
	return &models.WorkflowDiff{
		Steps:       compareSteps(a, b),
		Transitions: compareTransitions(a, b),
	}
}

var diffKindOrder = map[models.DiffKind]int{
	models.DiffRemoved:   0,
	models.DiffModified:  1,
	models.DiffAdded:     2,
	models.DiffUnchanged: 3,
}

func compareSteps(a, b *models.Workflow) []models.StepDiffEntry {
	entries := make([]models.StepDiffEntry, 0, len(a.Steps)+len(b.Steps))

	for _, stepA := range a.Steps {
		stepB := b.StepByStatus(stepA.StatusID)

		switch {
		case stepB == nil:
			entries = append(entries, models.StepDiffEntry{Kind: models.DiffRemoved, StatusID: stepA.StatusID})
		case stepA.IsInitial != stepB.IsInitial:
			entries = append(entries, models.StepDiffEntry{Kind: models.DiffModified, StatusID: stepA.StatusID})
		default:
			entries = append(entries, models.StepDiffEntry{Kind: models.DiffUnchanged, StatusID: stepA.StatusID})
		}
	}

	for _, stepB := range b.Steps {
		if a.StepByStatus(stepB.StatusID) == nil {
			entries = append(entries, models.StepDiffEntry{Kind: models.DiffAdded, StatusID: stepB.StatusID})
		}
	}

	slices.SortStableFunc(entries, func(x, y models.StepDiffEntry) int {
		if order := diffKindOrder[x.Kind] - diffKindOrder[y.Kind]; order != 0 {
			return order
		}

		return strings.Compare(x.StatusID, y.StatusID)
	})

	return entries
}

// transitionKey identifies an edge by the statuses it connects. The from
// status is empty for global transitions.
type transitionKey struct {
	fromStatusID string
	toStatusID   string
}

func transitionKeys(wf *models.Workflow) map[transitionKey]*models.Transition {
	keys := make(map[transitionKey]*models.Transition, len(wf.Transitions))

	for _, transition := range wf.Transitions {
		key := transitionKey{}

		if transition.FromStepID != nil {
			if step := wf.StepByID(*transition.FromStepID); step != nil {
				key.fromStatusID = step.StatusID
			}
		}

		if step := wf.StepByID(transition.ToStepID); step != nil {
			key.toStatusID = step.StatusID
		}

		keys[key] = transition
	}

	return keys
}

func compareTransitions(a, b *models.Workflow) []models.TransitionDiffEntry {
	keysA := transitionKeys(a)
	keysB := transitionKeys(b)
	entries := make([]models.TransitionDiffEntry, 0, len(keysA)+len(keysB))

	for key, transitionA := range keysA {
		entry := models.TransitionDiffEntry{FromStatusID: key.fromStatusID, ToStatusID: key.toStatusID}

		transitionB, exists := keysB[key]

		switch {
		case !exists:
			entry.Kind = models.DiffRemoved
		case !samePayload(transitionA, transitionB):
			entry.Kind = models.DiffModified
		default:
			entry.Kind = models.DiffUnchanged
		}

		entries = append(entries, entry)
	}

	for key := range keysB {
		if _, exists := keysA[key]; !exists {
			entries = append(entries, models.TransitionDiffEntry{
				Kind:         models.DiffAdded,
				FromStatusID: key.fromStatusID,
				ToStatusID:   key.toStatusID,
			})
		}
	}

	slices.SortStableFunc(entries, func(x, y models.TransitionDiffEntry) int {
		if order := diffKindOrder[x.Kind] - diffKindOrder[y.Kind]; order != 0 {
			return order
		}

		if from := strings.Compare(x.FromStatusID, y.FromStatusID); from != 0 {
			return from
		}

		return strings.Compare(x.ToStatusID, y.ToStatusID)
	})

	return entries
}

// samePayload reports whether two transitions carry structurally identical
// conditions, validators and post functions, in order.
func samePayload(a, b *models.Transition) bool {
	return slices.Equal(a.Conditions, b.Conditions) &&
		slices.Equal(a.Validators, b.Validators) &&
		slices.Equal(a.PostFunctions, b.PostFunctions)
}
