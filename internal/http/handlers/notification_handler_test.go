package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
	"github.com/mdmonauwarulislam/jobpulse/internal/services"
)

const testNotifID = "3f6c1a2b-9d4e-4f0a-8b7c-5e6d7a8b9c0d"

var testApplicant = domain.Identity{ID: "usr-1", Kind: domain.ParticipantApplicant}

func TestListNotifications_FiltersForwarded(t *testing.T) {
	notif := &fakeNotificationService{
		listFn: func(_ context.Context, recipient domain.Identity, typeFilter domain.NotificationType, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error) {
			if recipient != testApplicant {
				t.Fatalf("recipient = %+v", recipient)
			}
			if typeFilter != domain.NotifNewMessage || !unreadOnly {
				t.Fatalf("filters = %q/%v", typeFilter, unreadOnly)
			}
			return []domain.Notification{{
				ID: testNotifID, RecipientID: recipient.ID, RecipientKind: domain.RecipientUser,
				Type: domain.NotifNewMessage, Title: "New message", Message: "hi",
				Priority: domain.PriorityNormal, CreatedAt: time.Now().UTC(),
			}}, 1, nil
		},
	}
	r := newHandlerRouter(&fakeMessagingService{}, notif)

	w, env := doJSON(t, r, http.MethodGet, "/notifications?type=new_message&unreadOnly=true", nil, testApplicant)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := env["data"].(map[string]any)
	items := data["notifications"].([]any)
	if len(items) != 1 {
		t.Fatalf("notifications = %v", items)
	}
	first := items[0].(map[string]any)
	if first["type"] != string(domain.NotifNewMessage) || first["isRead"] != false {
		t.Fatalf("notification = %v", first)
	}
	pg := data["pagination"].(map[string]any)
	if pg["totalItems"] != float64(1) || pg["currentPage"] != float64(1) {
		t.Fatalf("pagination = %v", pg)
	}
}

func TestListNotifications_UnreadOnlyAlias(t *testing.T) {
	var gotUnread bool
	notif := &fakeNotificationService{
		listFn: func(_ context.Context, _ domain.Identity, _ domain.NotificationType, unreadOnly bool, _, _ int) ([]domain.Notification, int64, error) {
			gotUnread = unreadOnly
			return nil, 0, nil
		},
	}
	r := newHandlerRouter(&fakeMessagingService{}, notif)

	w, _ := doJSON(t, r, http.MethodGet, "/notifications?unread_only=true", nil, testApplicant)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !gotUnread {
		t.Fatal("unread_only alias not honored")
	}
}

func TestUnreadNotificationCount(t *testing.T) {
	notif := &fakeNotificationService{
		countFn: func(context.Context, domain.Identity) (int64, error) { return 9, nil },
	}
	r := newHandlerRouter(&fakeMessagingService{}, notif)
	w, env := doJSON(t, r, http.MethodGet, "/notifications/unread-count", nil, testApplicant)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := env["data"].(map[string]any)
	if data["unreadCount"] != float64(9) {
		t.Fatalf("unreadCount = %v", data["unreadCount"])
	}
}

func TestMarkNotificationRead_Mapping(t *testing.T) {
	notif := &fakeNotificationService{
		markFn: func(_ context.Context, _ domain.Identity, id string) error {
			if id != testNotifID {
				t.Fatalf("id = %q", id)
			}
			return nil
		},
	}
	r := newHandlerRouter(&fakeMessagingService{}, notif)

	w, env := doJSON(t, r, http.MethodPut, "/notifications/"+testNotifID+"/read", nil, testApplicant)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if env["success"] != true || env["message"] == "" {
		t.Fatalf("envelope = %v", env)
	}

	// Invalid UUID short-circuits before the service.
	w, _ = doJSON(t, r, http.MethodPut, "/notifications/nope/read", nil, testApplicant)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid: status = %d", w.Code)
	}
}

func TestMarkNotificationRead_NotFound(t *testing.T) {
	notif := &fakeNotificationService{
		markFn: func(context.Context, domain.Identity, string) error {
			return services.ErrNotificationNotFound
		},
	}
	r := newHandlerRouter(&fakeMessagingService{}, notif)
	w, env := doJSON(t, r, http.MethodPut, "/notifications/"+testNotifID+"/read", nil, testApplicant)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if env["error"] != ErrCodeNotFound {
		t.Fatalf("error = %v", env["error"])
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	notif := &fakeNotificationService{
		markAllFn: func(context.Context, domain.Identity) (int64, error) { return 6, nil },
	}
	r := newHandlerRouter(&fakeMessagingService{}, notif)
	w, env := doJSON(t, r, http.MethodPut, "/notifications/read-all", nil, testApplicant)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := env["data"].(map[string]any)
	if data["markedRead"] != float64(6) {
		t.Fatalf("markedRead = %v", data["markedRead"])
	}
}

func TestDeleteNotification_NoContent(t *testing.T) {
	notif := &fakeNotificationService{
		delFn: func(context.Context, domain.Identity, string) error { return nil },
	}
	r := newHandlerRouter(&fakeMessagingService{}, notif)
	w, _ := doJSON(t, r, http.MethodDelete, "/notifications/"+testNotifID, nil, testApplicant)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("body = %q, want empty", w.Body.String())
	}
}

func TestDeleteNotification_NotFound(t *testing.T) {
	notif := &fakeNotificationService{
		delFn: func(context.Context, domain.Identity, string) error {
			return services.ErrNotificationNotFound
		},
	}
	r := newHandlerRouter(&fakeMessagingService{}, notif)
	w, _ := doJSON(t, r, http.MethodDelete, "/notifications/"+testNotifID, nil, testApplicant)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDeleteAllNotifications(t *testing.T) {
	notif := &fakeNotificationService{
		delAllFn: func(context.Context, domain.Identity) (int64, error) { return 12, nil },
	}
	r := newHandlerRouter(&fakeMessagingService{}, notif)
	w, env := doJSON(t, r, http.MethodDelete, "/notifications/all", nil, testApplicant)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := env["data"].(map[string]any)
	if data["deleted"] != float64(12) {
		t.Fatalf("deleted = %v", data["deleted"])
	}
}
