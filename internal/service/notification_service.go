package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/query"
)

// Notification channels.
const (
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

// Notification is one outbound message derived from a ticket event.
type Notification struct {
	Channel   string
	Recipient string
	TicketID  int64
	EventType events.EventType
	Summary   string
}

// NotificationSender delivers notifications.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// logSender records notifications in the log instead of delivering them.
type logSender struct {
	logger *zap.Logger
}

func (s logSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification",
		zap.String("channel", n.Channel),
		zap.String("recipient", n.Recipient),
		zap.Int64("ticket_id", n.TicketID),
		zap.String("event_type", string(n.EventType)),
		zap.String("summary", n.Summary))
	return nil
}

// NotificationService turns ticket events into contact, assignee and
// webhook notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     NotificationSender
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. A nil sender logs each
// notification.
func NewNotificationService(dispatcher events.Dispatcher, sender NotificationSender, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = logSender{logger: logger}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sender:     sender,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to ticket events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	summary := fmt.Sprintf("ticket #%d opened: %s", event.TicketID, p.Subject)
	return n.deliver(ctx, event, summary, p.ContactEmail)
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketUpdatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	summary := fmt.Sprintf("ticket #%d updated to version %d (%s)", event.TicketID, p.Version, strings.Join(p.Fields, ", "))
	return n.deliver(ctx, event, summary, nil)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	summary := fmt.Sprintf("ticket #%d moved from status %d to %d", event.TicketID, p.OldStatus, p.NewStatus)
	if query.IsClosedStatus(p.NewStatus) && p.Resolution != nil {
		summary = fmt.Sprintf("ticket #%d closed: %s", event.TicketID, stringPreview(*p.Resolution, 140))
	}
	return n.deliver(ctx, event, summary, p.ContactEmail)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	if p.Assignee == nil {
		return n.deliver(ctx, event, fmt.Sprintf("ticket #%d unassigned", event.TicketID), nil)
	}
	return n.deliver(ctx, event, fmt.Sprintf("ticket #%d assigned to you", event.TicketID), p.Assignee)
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	summary := fmt.Sprintf("new message on ticket #%d from %s: %s", event.TicketID, p.SenderName, p.BodyPreview)
	return n.deliver(ctx, event, summary, nil)
}

// deliver sends summary by email to recipient, when email is configured and
// a recipient is known, and to the webhook when one is configured.
func (n *NotificationService) deliver(ctx context.Context, event events.Event, summary string, recipient *string) error {
	var out []Notification
	if from := strings.TrimSpace(n.cfg.EmailFrom); from != "" && recipient != nil && strings.TrimSpace(*recipient) != "" {
		out = append(out, Notification{Channel: ChannelEmail, Recipient: strings.TrimSpace(*recipient)})
	}
	if url := strings.TrimSpace(n.cfg.WebhookURL); url != "" {
		out = append(out, Notification{Channel: ChannelWebhook, Recipient: url})
	}

	var errs []error
	for _, msg := range out {
		msg.TicketID = event.TicketID
		msg.EventType = event.Type
		msg.Summary = summary
		if err := n.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s to %s: %w", msg.Channel, msg.Recipient, err))
		}
	}
	return errors.Join(errs...)
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("%s: unexpected payload %T", event.Type, event.Payload)
}
