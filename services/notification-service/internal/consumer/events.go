package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"mentorhub/libs/db"
	"mentorhub/services/notification-service/internal/email"
	"mentorhub/services/notification-service/internal/outbox"
	"mentorhub/services/notification-service/internal/sms"
	"mentorhub/services/notification-service/internal/storage"
)

// Events holds the per-topic handlers. Topics carry one event type each, so
// handlers switch on msg.Topic where several topics share a payload shape.
type Events struct {
	pool          *db.Pool
	notifications *storage.Repository
	contacts      *storage.ContactsRepository
	outboxRepo    *outbox.Repository
	emailSender   email.Sender
	smsSender     sms.Sender
	reviewerEmail string
	reviewBaseURL string
	logger        *slog.Logger
}

func NewEvents(
	pool *db.Pool,
	notifications *storage.Repository,
	contacts *storage.ContactsRepository,
	outboxRepo *outbox.Repository,
	emailSender email.Sender,
	smsSender sms.Sender,
	reviewerEmail string,
	reviewBaseURL string,
	logger *slog.Logger,
) *Events {
	return &Events{
		pool:          pool,
		notifications: notifications,
		contacts:      contacts,
		outboxRepo:    outboxRepo,
		emailSender:   emailSender,
		smsSender:     smsSender,
		reviewerEmail: reviewerEmail,
		reviewBaseURL: reviewBaseURL,
		logger:        logger,
	}
}

type sessionEvent struct {
	AppointmentID string `json:"appointment_id"`
	MentorID      string `json:"mentor_id"`
	UserID        string `json:"user_id"`
	SessionDate   string `json:"session_date"`
	StartTime     string `json:"start_time"`
	SessionType   string `json:"session_type"`
	Reason        string `json:"reason"`
}

// sessionMessage maps a booking topic to the stored notification. Mentor-facing
// events cover member actions; member-facing ones cover mentor actions.
func sessionMessage(topic string) (kind string, title string, mentorFacing bool, ok bool) {
	switch topic {
	case "booking.session.created.v1":
		return "session.booked", "New session booked", true, true
	case "booking.session.rescheduled.v1":
		return "session.rescheduled", "Session rescheduled", true, true
	case "booking.session.cancelled.v1":
		return "session.cancelled", "Session cancelled", true, true
	case "booking.session.confirmed.v1":
		return "session.confirmed", "Session confirmed", false, true
	case "booking.session.completed.v1":
		return "session.completed", "Session completed", false, true
	default:
		return "", "", false, false
	}
}

func (e *Events) HandleSessionEvent(ctx context.Context, msg kafka.Message) error {
	var evt sessionEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		e.logger.Error("invalid session event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if evt.AppointmentID == "" || evt.MentorID == "" || evt.UserID == "" {
		e.logger.Error("session event missing fields", "topic", msg.Topic)
		return nil
	}

	kind, title, mentorFacing, ok := sessionMessage(msg.Topic)
	if !ok {
		e.logger.Error("unexpected topic", "topic", msg.Topic)
		return nil
	}

	recipient := evt.UserID
	if mentorFacing {
		recipient = evt.MentorID
	}
	body := fmt.Sprintf("%s session on %s at %s.", sessionTypeLabel(evt.SessionType), evt.SessionDate, evt.StartTime)
	if evt.Reason != "" {
		body += " Reason: " + evt.Reason
	}

	if _, err := e.notifications.Insert(ctx, storage.Notification{
		RecipientID: recipient,
		Kind:        kind,
		Title:       title,
		Body:        body,
		Data: map[string]any{
			"appointment_id": evt.AppointmentID,
			"mentor_id":      evt.MentorID,
			"user_id":        evt.UserID,
		},
		Channel: "in_app",
		Status:  "sent",
	}); err != nil {
		return err
	}

	// Mentors also get the update by email when we know their address.
	if mentorFacing {
		contact, err := e.contacts.Get(ctx, evt.MentorID)
		if err != nil {
			if !storage.IsNotFound(err) {
				return err
			}
			return nil
		}
		if err := e.emailSender.Send(contact.Email, title, body); err != nil {
			e.logger.Error("email send failed", "err", err, "recipient", contact.Email)
			return e.writeDeliveryEvent(ctx, evt.AppointmentID, "email", "", err.Error())
		}
		return e.writeDeliveryEvent(ctx, evt.AppointmentID, "email", "smtp", "")
	}
	return nil
}

func sessionTypeLabel(sessionType string) string {
	switch sessionType {
	case "video":
		return "Video"
	case "chat":
		return "Chat"
	case "call":
		return "Call"
	default:
		return "Mentoring"
	}
}

type reminderDueEvent struct {
	AppointmentID string `json:"appointment_id"`
	MentorID      string `json:"mentor_id"`
	UserID        string `json:"user_id"`
	SessionDate   string `json:"session_date"`
	StartTime     string `json:"start_time"`
	RemindAt      string `json:"remind_at"`
}

func (e *Events) HandleReminderDue(ctx context.Context, msg kafka.Message) error {
	var evt reminderDueEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		e.logger.Error("invalid reminder payload", "err", err)
		return nil
	}
	if evt.AppointmentID == "" || evt.UserID == "" {
		e.logger.Error("reminder missing fields")
		return nil
	}
	if evt.RemindAt != "" {
		if _, err := time.Parse(time.RFC3339, evt.RemindAt); err != nil {
			e.logger.Error("invalid remind_at", "err", err)
			return nil
		}
	}

	body := fmt.Sprintf("Upcoming session on %s at %s.", evt.SessionDate, evt.StartTime)
	if _, err := e.notifications.Insert(ctx, storage.Notification{
		RecipientID: evt.UserID,
		Kind:        "session.reminder",
		Title:       "Session reminder",
		Body:        body,
		Data: map[string]any{
			"appointment_id": evt.AppointmentID,
			"remind_at":      evt.RemindAt,
		},
		Channel: "sms",
		Status:  "sent",
	}); err != nil {
		return err
	}

	to := evt.UserID
	if contact, err := e.contacts.Get(ctx, evt.UserID); err == nil {
		to = contact.Email
	}
	if err := e.smsSender.Send(ctx, to, body); err != nil {
		e.logger.Error("sms send failed", "err", err, "recipient", to)
		return e.writeDeliveryEvent(ctx, evt.AppointmentID, "sms", "", err.Error())
	}
	return e.writeDeliveryEvent(ctx, evt.AppointmentID, "sms", e.smsSender.ProviderID(), "")
}

type applicationSubmittedEvent struct {
	ApplicationID string `json:"application_id"`
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	ApprovalToken string `json:"approval_token"`
}

func (e *Events) HandleApplicationSubmitted(ctx context.Context, msg kafka.Message) error {
	var evt applicationSubmittedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		e.logger.Error("invalid application payload", "err", err)
		return nil
	}
	if evt.ApplicationID == "" || evt.UserID == "" || evt.ApprovalToken == "" {
		e.logger.Error("application event missing fields")
		return nil
	}

	if _, err := e.notifications.Insert(ctx, storage.Notification{
		RecipientID: evt.UserID,
		Kind:        "application.received",
		Title:       "Application received",
		Body:        "Your mentor application is under review.",
		Data:        map[string]any{"application_id": evt.ApplicationID},
		Channel:     "in_app",
		Status:      "sent",
	}); err != nil {
		return err
	}

	if e.reviewerEmail == "" {
		e.logger.Warn("no reviewer email configured, skipping review mail", "application_id", evt.ApplicationID)
		return nil
	}
	subject := "Mentor application pending review"
	body := fmt.Sprintf(
		"Applicant %q submitted a mentor application.\r\n\r\nReview: %s?token=%s\r\n",
		evt.DisplayName,
		strings.TrimRight(e.reviewBaseURL, "/"),
		evt.ApprovalToken,
	)
	if err := e.emailSender.Send(e.reviewerEmail, subject, body); err != nil {
		e.logger.Error("reviewer email failed", "err", err)
		return err
	}
	return nil
}

type userEvent struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func (e *Events) HandleUserCreated(ctx context.Context, msg kafka.Message) error {
	var evt userEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		e.logger.Error("invalid user payload", "err", err)
		return nil
	}
	if evt.UserID == "" || evt.Email == "" {
		e.logger.Error("user event missing fields")
		return nil
	}
	if err := e.contacts.Upsert(ctx, storage.Contact{
		UserID:   evt.UserID,
		Email:    evt.Email,
		FullName: evt.FullName,
	}); err != nil {
		return err
	}
	_, err := e.notifications.Insert(ctx, storage.Notification{
		RecipientID: evt.UserID,
		Kind:        "account.welcome",
		Title:       "Welcome to MentorHub",
		Body:        "Browse mentors and book your first session.",
		Channel:     "in_app",
		Status:      "sent",
	})
	return err
}

func (e *Events) HandleUserDeleted(ctx context.Context, msg kafka.Message) error {
	var evt userEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		e.logger.Error("invalid user payload", "err", err)
		return nil
	}
	if evt.UserID == "" {
		return nil
	}
	return e.contacts.Delete(ctx, evt.UserID)
}

// writeDeliveryEvent records the delivery outcome on the bus for auditing.
func (e *Events) writeDeliveryEvent(ctx context.Context, appointmentID, channel, providerID, failure string) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eventType := "notification.sent.v1"
	fields := map[string]any{
		"appointment_id": appointmentID,
		"channel":        channel,
		"provider_id":    providerID,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	}
	if failure != "" {
		eventType = "notification.failed.v1"
		fields = map[string]any{
			"appointment_id": appointmentID,
			"channel":        channel,
			"error_reason":   failure,
			"failed_at":      time.Now().UTC().Format(time.RFC3339),
		}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := e.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
