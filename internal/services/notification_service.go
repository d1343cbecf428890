// Package services – NotificationService
//
// This file implements NotificationService, which owns the lifecycle of
// recipient-scoped notification records: creation (with input clipping and
// type validation), listing with filters, read-state transitions, deletion,
// and the background retention sweep.
//
// Typed helpers (ApplicationReceived, NewMessage, ...) are the preferred way
// to emit notifications: they fix the type, title, priority, and related
// references so call sites cannot drift.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the recipient identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
	"github.com/mdmonauwarulislam/jobpulse/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// titleMaxRunes and bodyMaxRunes cap stored notification text by rune
	// length. Inputs beyond the cap are clipped, not rejected.
	titleMaxRunes = 200
	bodyMaxRunes  = 1000
)

// statusChangePriority maps an application status to the urgency of its
// status-change notification. Unknown statuses fall back to normal.
var statusChangePriority = map[string]domain.NotificationPriority{
	"reviewed":    domain.PriorityNormal,
	"shortlisted": domain.PriorityHigh,
	"rejected":    domain.PriorityNormal,
	"hired":       domain.PriorityUrgent,
}

// NotificationRepo defines the repository contract required by
// NotificationService.
type NotificationRepo interface {
	// CreateNotification inserts a notification row.
	CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error

	// ListNotificationsPage returns a page of the recipient's notifications,
	// newest first, with optional type and unread filters.
	ListNotificationsPage(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, typeFilter domain.NotificationType, unreadOnly bool, offset, limit int) ([]domain.Notification, error)

	// CountNotifications returns the total matching the same filter.
	CountNotifications(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, typeFilter domain.NotificationType, unreadOnly bool) (int64, error)

	// CountUnreadNotifications returns the recipient's unread count.
	CountUnreadNotifications(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind) (int64, error)

	// MarkNotificationRead flips one notification to read.
	MarkNotificationRead(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, id string) error

	// MarkAllNotificationsRead bulk-marks the recipient's unread rows.
	MarkAllNotificationsRead(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind) (int64, error)

	// DeleteNotification removes one notification owned by the recipient.
	DeleteNotification(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, id string) error

	// DeleteAllNotifications removes every notification for the recipient.
	DeleteAllNotifications(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind) (int64, error)

	// DeleteExpiredNotifications removes rows whose expires_at has passed.
	DeleteExpiredNotifications(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)

	// DeleteReadNotificationsBefore removes read rows older than the cutoff.
	DeleteReadNotificationsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}

// gormNotificationRepo adapts the package-level repo functions to the
// NotificationRepo interface.
type gormNotificationRepo struct{}

func (gormNotificationRepo) CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return repo.CreateNotification(ctx, db, n)
}

func (gormNotificationRepo) ListNotificationsPage(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, typeFilter domain.NotificationType, unreadOnly bool, offset, limit int) ([]domain.Notification, error) {
	return repo.ListNotificationsPage(ctx, db, recipientID, kind, typeFilter, unreadOnly, offset, limit)
}

func (gormNotificationRepo) CountNotifications(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, typeFilter domain.NotificationType, unreadOnly bool) (int64, error) {
	return repo.CountNotifications(ctx, db, recipientID, kind, typeFilter, unreadOnly)
}

func (gormNotificationRepo) CountUnreadNotifications(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind) (int64, error) {
	return repo.CountUnreadNotifications(ctx, db, recipientID, kind)
}

func (gormNotificationRepo) MarkNotificationRead(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, id string) error {
	return repo.MarkNotificationRead(ctx, db, recipientID, kind, id)
}

func (gormNotificationRepo) MarkAllNotificationsRead(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind) (int64, error) {
	return repo.MarkAllNotificationsRead(ctx, db, recipientID, kind)
}

func (gormNotificationRepo) DeleteNotification(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, id string) error {
	return repo.DeleteNotification(ctx, db, recipientID, kind, id)
}

func (gormNotificationRepo) DeleteAllNotifications(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind) (int64, error) {
	return repo.DeleteAllNotifications(ctx, db, recipientID, kind)
}

func (gormNotificationRepo) DeleteExpiredNotifications(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return repo.DeleteExpiredNotifications(ctx, db, now)
}

func (gormNotificationRepo) DeleteReadNotificationsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	return repo.DeleteReadNotificationsBefore(ctx, db, cutoff)
}

// NotificationService provides recipient-scoped notification operations and
// the retention sweep.
type NotificationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the notification repository used by this service.
	Repo NotificationRepo

	// Retention is how long read notifications are kept before the sweeper
	// removes them.
	Retention time.Duration

	// Log receives structured records for sweeper activity and failed writes.
	Log zerolog.Logger
}

// NewNotificationService constructs a NotificationService bound to db.
func NewNotificationService(db *gorm.DB, retention time.Duration, log zerolog.Logger) *NotificationService {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &NotificationService{
		DB:        db,
		Repo:      gormNotificationRepo{},
		Retention: retention,
		Log:       log,
	}
}

// Create validates, clips, and persists a notification. The type must belong
// to the closed enum; title and message are clipped to their caps; priority
// defaults to normal.
func (s *NotificationService) Create(ctx context.Context, n *domain.Notification) error {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("recipient.id", n.RecipientID),
			attribute.String("notification.type", string(n.Type)),
		),
	)
	defer span.End()

	if !domain.ValidNotificationType(n.Type) {
		return fmt.Errorf("unknown notification type %q", n.Type)
	}
	if !domain.ValidRecipientKind(n.RecipientKind) {
		return fmt.Errorf("unknown recipient kind %q", n.RecipientKind)
	}
	n.Title = clipRunes(strings.TrimSpace(n.Title), titleMaxRunes)
	n.Message = clipRunes(strings.TrimSpace(n.Message), bodyMaxRunes)
	if n.Priority == "" {
		n.Priority = domain.PriorityNormal
	}

	if err := s.Repo.CreateNotification(ctx, s.DB, n); err != nil {
		notificationsFailed.WithLabelValues(string(n.Type)).Inc()
		return err
	}
	notificationsCreated.WithLabelValues(string(n.Type)).Inc()
	return nil
}

// ApplicationReceived notifies an employer that a candidate applied to one of
// their jobs.
func (s *NotificationService) ApplicationReceived(ctx context.Context, employerID, jobID, applicationID, applicantName string) error {
	return s.Create(ctx, &domain.Notification{
		RecipientID:   employerID,
		RecipientKind: domain.RecipientEmployer,
		Type:          domain.NotifApplicationReceived,
		Title:         "New application received",
		Message:       fmt.Sprintf("%s applied to your job posting.", applicantName),
		JobID:         jobID,
		ApplicationID: applicationID,
		ActionURL:     "/employer/applications/" + applicationID,
		Priority:      domain.PriorityNormal,
	})
}

// ApplicationStatusChanged notifies an applicant that their application moved
// to a new status. Priority scales with the status.
func (s *NotificationService) ApplicationStatusChanged(ctx context.Context, applicantID, jobID, applicationID, jobTitle, status string) error {
	prio, ok := statusChangePriority[status]
	if !ok {
		prio = domain.PriorityNormal
	}
	return s.Create(ctx, &domain.Notification{
		RecipientID:   applicantID,
		RecipientKind: domain.RecipientUser,
		Type:          domain.NotifApplicationStatusChanged,
		Title:         "Application status updated",
		Message:       fmt.Sprintf("Your application for %s is now %s.", jobTitle, status),
		JobID:         jobID,
		ApplicationID: applicationID,
		ActionURL:     "/applications/" + applicationID,
		Priority:      prio,
		Metadata:      domain.Metadata{"status": status},
	})
}

// NewMessage notifies the receiving side of a conversation about a message
// from the other participant.
func (s *NotificationService) NewMessage(ctx context.Context, recipient domain.Identity, conversationID, senderName, preview string) error {
	return s.Create(ctx, &domain.Notification{
		RecipientID:    recipient.ID,
		RecipientKind:  recipient.Kind.RecipientKind(),
		Type:           domain.NotifNewMessage,
		Title:          "New message",
		Message:        fmt.Sprintf("%s: %s", senderName, preview),
		ConversationID: conversationID,
		ActionURL:      "/messages/" + conversationID,
		Priority:       domain.PriorityNormal,
	})
}

// ConversationStarted notifies the applicant that an employer opened a
// conversation on their application.
func (s *NotificationService) ConversationStarted(ctx context.Context, applicantID, conversationID, applicationID, employerName string) error {
	return s.Create(ctx, &domain.Notification{
		RecipientID:    applicantID,
		RecipientKind:  domain.RecipientUser,
		Type:           domain.NotifConversationStarted,
		Title:          "New conversation",
		Message:        fmt.Sprintf("%s started a conversation about your application.", employerName),
		ConversationID: conversationID,
		ApplicationID:  applicationID,
		ActionURL:      "/messages/" + conversationID,
		Priority:       domain.PriorityNormal,
	})
}

// InterviewScheduled notifies an applicant about a scheduled interview. These
// carry high priority and expire once the interview time has passed.
func (s *NotificationService) InterviewScheduled(ctx context.Context, applicantID, jobID, applicationID, jobTitle string, at time.Time) error {
	expires := at.Add(24 * time.Hour)
	return s.Create(ctx, &domain.Notification{
		RecipientID:   applicantID,
		RecipientKind: domain.RecipientUser,
		Type:          domain.NotifInterviewScheduled,
		Title:         "Interview scheduled",
		Message:       fmt.Sprintf("Your interview for %s is scheduled for %s.", jobTitle, at.Format("Mon, 2 Jan 2006 15:04 MST")),
		JobID:         jobID,
		ApplicationID: applicationID,
		ActionURL:     "/applications/" + applicationID,
		Priority:      domain.PriorityHigh,
		ExpiresAt:     &expires,
	})
}

// ListPage returns a page of the recipient's notifications, newest first,
// with optional type and unread-only filters, plus the filtered total.
func (s *NotificationService) ListPage(ctx context.Context, recipient domain.Identity, typeFilter domain.NotificationType, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("recipient.id", recipient.ID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	kind := recipient.Kind.RecipientKind()

	if typeFilter != "" && !domain.ValidNotificationType(typeFilter) {
		return []domain.Notification{}, 0, nil
	}

	total, err := s.Repo.CountNotifications(ctx, s.DB, recipient.ID, kind, typeFilter, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Notification{}, 0, nil
	}

	items, err := s.Repo.ListNotificationsPage(ctx, s.DB, recipient.ID, kind, typeFilter, unreadOnly, offset, pageSize)
	return items, total, err
}

// UnreadCount returns the recipient's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, recipient domain.Identity) (int64, error) {
	return s.Repo.CountUnreadNotifications(ctx, s.DB, recipient.ID, recipient.Kind.RecipientKind())
}

// MarkRead marks one notification as read, enforcing recipient ownership.
// Marking an already-read notification succeeds without effect.
func (s *NotificationService) MarkRead(ctx context.Context, recipient domain.Identity, id string) error {
	err := s.Repo.MarkNotificationRead(ctx, s.DB, recipient.ID, recipient.Kind.RecipientKind(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// MarkAllRead marks every unread notification for the recipient and returns
// the number of rows updated.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipient domain.Identity) (int64, error) {
	return s.Repo.MarkAllNotificationsRead(ctx, s.DB, recipient.ID, recipient.Kind.RecipientKind())
}

// DeleteOne removes a notification owned by the recipient.
func (s *NotificationService) DeleteOne(ctx context.Context, recipient domain.Identity, id string) error {
	err := s.Repo.DeleteNotification(ctx, s.DB, recipient.ID, recipient.Kind.RecipientKind(), id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// DeleteAll removes every notification for the recipient and returns the
// number of rows deleted.
func (s *NotificationService) DeleteAll(ctx context.Context, recipient domain.Identity) (int64, error) {
	return s.Repo.DeleteAllNotifications(ctx, s.DB, recipient.ID, recipient.Kind.RecipientKind())
}

// SweepExpired removes expired notifications and read notifications older
// than the retention window. It returns the per-reason counts; callers run it
// from a periodic ticker, never from request paths.
func (s *NotificationService) SweepExpired(ctx context.Context) (expired, retired int64, err error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "SweepExpired")
	defer span.End()

	now := time.Now().UTC()
	expired, err = s.Repo.DeleteExpiredNotifications(ctx, s.DB, now)
	if err != nil {
		return 0, 0, err
	}
	retired, err = s.Repo.DeleteReadNotificationsBefore(ctx, s.DB, now.Add(-s.Retention))
	if err != nil {
		return expired, 0, err
	}

	if expired > 0 {
		notificationsSwept.WithLabelValues("expired").Add(float64(expired))
	}
	if retired > 0 {
		notificationsSwept.WithLabelValues("retention").Add(float64(retired))
	}
	if expired > 0 || retired > 0 {
		s.Log.Info().
			Int64("expired", expired).
			Int64("retired", retired).
			Msg("notification sweep completed")
	}
	return expired, retired, nil
}

// clipRunes truncates s to at most max runes.
func clipRunes(s string, max int) string {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}
