package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
)

func newTestNotificationService(t *testing.T) *NotificationService {
	t.Helper()
	return NewNotificationService(newServiceDB(t), 90*24*time.Hour, zerolog.Nop())
}

func TestNotificationCreate_ValidationAndClipping(t *testing.T) {
	svc := newTestNotificationService(t)
	ctx := context.Background()

	err := svc.Create(ctx, &domain.Notification{
		RecipientID: "usr-1", RecipientKind: domain.RecipientUser,
		Type: "marketing_blast", Title: "t", Message: "m",
	})
	require.Error(t, err)

	err = svc.Create(ctx, &domain.Notification{
		RecipientID: "usr-1", RecipientKind: "admin",
		Type: domain.NotifNewMessage, Title: "t", Message: "m",
	})
	require.Error(t, err)

	n := &domain.Notification{
		RecipientID: "usr-1", RecipientKind: domain.RecipientUser,
		Type:    domain.NotifNewMessage,
		Title:   strings.Repeat("é", titleMaxRunes+10),
		Message: strings.Repeat("日", bodyMaxRunes+10),
	}
	require.NoError(t, svc.Create(ctx, n))
	require.Len(t, []rune(n.Title), titleMaxRunes)
	require.Len(t, []rune(n.Message), bodyMaxRunes)
	require.Equal(t, domain.PriorityNormal, n.Priority)
	require.NotEmpty(t, n.ID)
}

func TestStatusChangedPriority_ScalesWithStatus(t *testing.T) {
	svc := newTestNotificationService(t)
	ctx := context.Background()

	cases := map[string]domain.NotificationPriority{
		"reviewed":    domain.PriorityNormal,
		"shortlisted": domain.PriorityHigh,
		"rejected":    domain.PriorityNormal,
		"hired":       domain.PriorityUrgent,
		"mystery":     domain.PriorityNormal,
	}
	for status, want := range cases {
		// One recipient per case keeps the lookup unambiguous.
		applicantID := "usr-" + status
		require.NoError(t, svc.ApplicationStatusChanged(ctx, applicantID, "job-1", "app-1", "Go Engineer", status))

		items, _, err := svc.ListPage(ctx, domain.Identity{ID: applicantID, Kind: domain.ParticipantApplicant},
			domain.NotifApplicationStatusChanged, false, 1, 1)
		require.NoError(t, err)
		require.NotEmpty(t, items)
		require.Equalf(t, want, items[0].Priority, "status %q", status)
		require.Equal(t, status, items[0].Metadata["status"])
	}
}

func TestTypedHelpers_RecipientNamespaces(t *testing.T) {
	svc := newTestNotificationService(t)
	ctx := context.Background()

	require.NoError(t, svc.ApplicationReceived(ctx, "emp-1", "job-1", "app-1", "Jordan Doe"))
	require.NoError(t, svc.ConversationStarted(ctx, "usr-1", "c1", "app-1", "Acme Inc"))
	require.NoError(t, svc.NewMessage(ctx, domain.Identity{ID: "emp-1", Kind: domain.ParticipantEmployer}, "c1", "The applicant", "hello"))

	// Employer namespace sees the application and message alerts.
	empItems, total, err := svc.ListPage(ctx, domain.Identity{ID: "emp-1", Kind: domain.ParticipantEmployer}, "", false, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, domain.RecipientEmployer, empItems[0].RecipientKind)

	// Applicant namespace sees only the conversation alert.
	usrItems, total, err := svc.ListPage(ctx, domain.Identity{ID: "usr-1", Kind: domain.ParticipantApplicant}, "", false, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, domain.NotifConversationStarted, usrItems[0].Type)
	require.Equal(t, "/messages/c1", usrItems[0].ActionURL)
}

func TestInterviewScheduled_HighPriorityWithExpiry(t *testing.T) {
	svc := newTestNotificationService(t)
	ctx := context.Background()
	at := time.Now().UTC().Add(72 * time.Hour)

	require.NoError(t, svc.InterviewScheduled(ctx, "usr-1", "job-1", "app-1", "Go Engineer", at))

	items, _, err := svc.ListPage(ctx, domain.Identity{ID: "usr-1", Kind: domain.ParticipantApplicant}, "", false, 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, domain.PriorityHigh, items[0].Priority)
	require.NotNil(t, items[0].ExpiresAt)
	require.WithinDuration(t, at.Add(24*time.Hour), *items[0].ExpiresAt, time.Second)
}

func TestListPage_InvalidTypeFilterYieldsEmptyPage(t *testing.T) {
	svc := newTestNotificationService(t)
	ctx := context.Background()
	recipient := domain.Identity{ID: "usr-1", Kind: domain.ParticipantApplicant}

	require.NoError(t, svc.NewMessage(ctx, recipient, "c1", "The employer", "hi"))

	items, total, err := svc.ListPage(ctx, recipient, "marketing_blast", false, 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, items)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	svc := newTestNotificationService(t)
	ctx := context.Background()
	recipient := domain.Identity{ID: "usr-1", Kind: domain.ParticipantApplicant}

	require.NoError(t, svc.NewMessage(ctx, recipient, "c1", "The employer", "one"))
	require.NoError(t, svc.NewMessage(ctx, recipient, "c1", "The employer", "two"))

	n, err := svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	items, _, err := svc.ListPage(ctx, recipient, "", true, 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, svc.MarkRead(ctx, recipient, items[0].ID))
	n, err = svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// Unknown id and foreign recipient both map to not found.
	require.ErrorIs(t, svc.MarkRead(ctx, recipient, "nope"), ErrNotificationNotFound)
	other := domain.Identity{ID: "usr-2", Kind: domain.ParticipantApplicant}
	require.ErrorIs(t, svc.MarkRead(ctx, other, items[1].ID), ErrNotificationNotFound)

	marked, err := svc.MarkAllRead(ctx, recipient)
	require.NoError(t, err)
	require.EqualValues(t, 1, marked)
}

func TestDeleteOneAndDeleteAll(t *testing.T) {
	svc := newTestNotificationService(t)
	ctx := context.Background()
	recipient := domain.Identity{ID: "usr-1", Kind: domain.ParticipantApplicant}

	require.NoError(t, svc.NewMessage(ctx, recipient, "c1", "The employer", "one"))
	require.NoError(t, svc.NewMessage(ctx, recipient, "c1", "The employer", "two"))

	items, _, err := svc.ListPage(ctx, recipient, "", false, 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, svc.DeleteOne(ctx, recipient, items[0].ID))
	require.ErrorIs(t, svc.DeleteOne(ctx, recipient, items[0].ID), ErrNotificationNotFound)

	deleted, err := svc.DeleteAll(ctx, recipient)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	_, total, err := svc.ListPage(ctx, recipient, "", false, 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestSweepExpired_RemovesExpiredAndRetired(t *testing.T) {
	db := newServiceDB(t)
	svc := NewNotificationService(db, 30*24*time.Hour, zerolog.Nop())
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	rows := []*domain.Notification{
		{ID: "n1", RecipientID: "u", RecipientKind: domain.RecipientUser, Type: domain.NotifInterviewScheduled,
			Title: "t", Message: "m", Priority: domain.PriorityHigh, ExpiresAt: &past, CreatedAt: now},
		{ID: "n2", RecipientID: "u", RecipientKind: domain.RecipientUser, Type: domain.NotifNewMessage,
			Title: "t", Message: "m", Priority: domain.PriorityNormal, IsRead: true, CreatedAt: now.Add(-40 * 24 * time.Hour)},
		{ID: "n3", RecipientID: "u", RecipientKind: domain.RecipientUser, Type: domain.NotifNewMessage,
			Title: "t", Message: "m", Priority: domain.PriorityNormal, CreatedAt: now},
	}
	for _, n := range rows {
		require.NoError(t, db.Create(n).Error)
	}

	expired, retired, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, expired)
	require.EqualValues(t, 1, retired)

	var left []string
	require.NoError(t, db.Model(&domain.Notification{}).Order("id").Pluck("id", &left).Error)
	require.Equal(t, []string{"n3"}, left)
}
