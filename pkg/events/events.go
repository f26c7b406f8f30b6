// Package events defines the event types published on the engine's event
// bus. Delivery of notifications is out of the engine's hands; it only
// announces that one was requested.
package events

import "time"

type EventType string

// Topic is the event bus topic engine events are published on.
const Topic = "tracklane.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// IssueTransitionedEvent fires after a transition commit, post
	// functions included.
	IssueTransitionedEvent EventType = "issue.transitioned"

	// NotificationRequestedEvent fires when a send_notification post
	// function runs.
	NotificationRequestedEvent EventType = "notification.requested"

	// WorkflowPublishedEvent fires when a draft is published over its
	// live workflow.
	WorkflowPublishedEvent EventType = "workflow.published"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type IssueTransitioned struct {
	BaseEvent

	IssueID        string `json:"issue_id"`
	FromStatusID   string `json:"from_status_id"`
	ToStatusID     string `json:"to_status_id"`
	TransitionID   string `json:"transition_id"`
	TransitionName string `json:"transition_name"`
	ActorID        string `json:"actor_id"`
}

func (e IssueTransitioned) GetType() EventType {
	return IssueTransitionedEvent
}

type NotificationRequested struct {
	BaseEvent

	IssueID        string `json:"issue_id"`
	ActorID        string `json:"actor_id"`
	TransitionName string `json:"transition_name"`
	Text           string `json:"text,omitempty"`
}

func (e NotificationRequested) GetType() EventType {
	return NotificationRequestedEvent
}

type WorkflowPublished struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	DraftID    string `json:"draft_id"`
}

func (e WorkflowPublished) GetType() EventType {
	return WorkflowPublishedEvent
}
