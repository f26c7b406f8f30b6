package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/pkg/channels/gochannel"
	"github.com/tracklane/tracklane/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestPublishDeliversToRegisteredHandler(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.IssueTransitioned, 1)

	err := bus.Handle(events.IssueTransitionedEvent, func(ctx context.Context, event any) error {
		transitioned, ok := event.(*events.IssueTransitioned)
		require.True(t, ok)
		received <- transitioned

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	published := events.IssueTransitioned{
		BaseEvent: events.BaseEvent{
			ID:        bus.GenerateID(),
			Type:      events.IssueTransitionedEvent,
			Timestamp: time.Now().UTC(),
		},
		IssueID:        "issue-1",
		FromStatusID:   "status-todo",
		ToStatusID:     "status-doing",
		TransitionName: "Start Progress",
		ActorID:        "user-1",
	}
	require.NoError(t, bus.Publish(ctx, "issue-1", published))

	select {
	case got := <-received:
		assert.Equal(t, published.IssueID, got.IssueID)
		assert.Equal(t, published.TransitionName, got.TransitionName)
		assert.Equal(t, published.ToStatusID, got.ToStatusID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestHandleRejectsDuplicateRegistration(t *testing.T) {
	bus := newTestBus(t)

	noop := func(ctx context.Context, event any) error { return nil }

	require.NoError(t, bus.Handle(events.WorkflowPublishedEvent, noop))
	assert.ErrorIs(t, bus.Handle(events.WorkflowPublishedEvent, noop), ErrHandlerAlreadyRegistered)
}

func TestUnhandledEventTypesAreIgnored(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan struct{}, 1)

	err := bus.Handle(events.WorkflowPublishedEvent, func(ctx context.Context, event any) error {
		received <- struct{}{}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	notification := events.NotificationRequested{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.NotificationRequestedEvent},
		IssueID:   "issue-1",
	}
	require.NoError(t, bus.Publish(ctx, "issue-1", notification))

	select {
	case <-received:
		t.Fatal("handler fired for an event type it never registered")
	case <-time.After(200 * time.Millisecond):
	}
}
