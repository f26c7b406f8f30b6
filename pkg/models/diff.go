package models

// DiffKind classifies one entry of a workflow comparison.
type DiffKind string

const (
	DiffRemoved   DiffKind = "removed"
	DiffModified  DiffKind = "modified"
	DiffAdded     DiffKind = "added"
	DiffUnchanged DiffKind = "unchanged"
)

// StepDiffEntry describes one status placement difference between two
// workflow graphs. Steps are keyed by status id so drafts and clones
// compare meaningfully.
type StepDiffEntry struct {
	Kind     DiffKind `json:"kind"`
	StatusID string   `json:"status_id"`
}

// TransitionDiffEntry describes one edge difference between two workflow
// graphs, keyed by the (from status, to status) pair resolved through each
// graph's own steps. An empty FromStatusID marks a global transition.
type TransitionDiffEntry struct {
	Kind         DiffKind `json:"kind"`
	FromStatusID string   `json:"from_status_id,omitempty"`
	ToStatusID   string   `json:"to_status_id"`
}

// WorkflowDiff is the structural difference between two workflow graphs,
// one entry list each for steps and transitions, sorted removed, modified,
// added, unchanged.
type WorkflowDiff struct {
	Steps       []StepDiffEntry       `json:"steps"`
	Transitions []TransitionDiffEntry `json:"transitions"`
}
