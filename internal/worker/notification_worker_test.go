package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type recordingSender struct {
	sent []service.Notification
	err  error
}

func (r *recordingSender) Send(_ context.Context, n service.Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func strPtr(s string) *string { return &s }

func setup(t *testing.T, cfg config.NotificationConfig) (events.Dispatcher, *recordingSender) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	dispatcher := events.NewInMemoryDispatcher()
	sender := &recordingSender{}
	require.True(t, StartNotificationWorker(service.NewNotificationService(dispatcher, sender, logger, cfg), logger))
	return dispatcher, sender
}

func TestStartNotificationWorkerDisabled(t *testing.T) {
	assert.False(t, StartNotificationWorker(nil, zaptest.NewLogger(t)))
}

func TestClosingNotifiesContactAndWebhook(t *testing.T) {
	dispatcher, sender := setup(t, config.NotificationConfig{EmailFrom: "noreply@example.com", WebhookURL: "http://hooks.local/tickets"})

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: 7,
		Actor:    "agent",
		Payload: events.TicketStatusChangedPayload{
			OldStatus:    1,
			NewStatus:    3,
			Resolution:   strPtr("replaced toner"),
			ContactEmail: strPtr("dana@example.com"),
		},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	assert.Equal(t, service.ChannelEmail, sender.sent[0].Channel)
	assert.Equal(t, "dana@example.com", sender.sent[0].Recipient)
	assert.Equal(t, "ticket #7 closed: replaced toner", sender.sent[0].Summary)
	assert.Equal(t, service.ChannelWebhook, sender.sent[1].Channel)
	assert.Equal(t, events.EventTicketStatusChanged, sender.sent[1].EventType)
}

func TestAssignmentNotifiesNewAssignee(t *testing.T) {
	dispatcher, sender := setup(t, config.NotificationConfig{EmailFrom: "noreply@example.com"})
	ctx := context.Background()

	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: 3,
		Payload:  events.TicketAssignedPayload{Assignee: strPtr("ops@example.com")},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: 3,
		Payload:  events.TicketAssignedPayload{Previous: strPtr("ops@example.com")},
	}))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ops@example.com", sender.sent[0].Recipient)
	assert.Equal(t, "ticket #3 assigned to you", sender.sent[0].Summary)
}

func TestSenderFailuresAreReturned(t *testing.T) {
	dispatcher, sender := setup(t, config.NotificationConfig{WebhookURL: "http://hooks.local/tickets"})
	sender.err = errors.New("connection refused")

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: 9,
		Payload:  events.TicketUpdatedPayload{Version: 2, Fields: []string{"Subject"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	err = dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketUpdated, TicketID: 9, Payload: "bogus"})
	assert.ErrorContains(t, err, "unexpected payload")
}
