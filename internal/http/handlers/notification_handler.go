// Notification HTTP handlers.
//
// This file exposes REST endpoints for notification resources:
//   - GET    /notifications                (list, paginated, filterable)
//   - GET    /notifications/unread-count   (unread counter)
//   - PUT    /notifications/read-all       (bulk mark read)
//   - PUT    /notifications/{id}/read      (mark one read)
//   - DELETE /notifications/all            (clear everything)
//   - DELETE /notifications/{id}           (delete one)
//
// All operations are scoped to the authenticated recipient; ids belonging to
// another recipient behave as if they do not exist.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
	"github.com/mdmonauwarulislam/jobpulse/internal/services"
)

// NotificationListData is the data payload of the notification listing.
type NotificationListData struct {
	Notifications []domain.Notification `json:"notifications"`
	Pagination    Pagination            `json:"pagination"`
}

// ListNotifications returns a page of the caller's notifications, newest
// first. Supports `type` and `unreadOnly` query filters (the latter also
// accepted as `unread_only`); an unknown type yields an empty page rather
// than an error.
func (h *Handlers) ListNotifications(c *gin.Context) {
	caller := identity(c)
	page, pageSize := clampPagination(c, 20)

	typeFilter := domain.NotificationType(strings.TrimSpace(c.Query("type")))
	rawUnread := c.Query("unreadOnly")
	if rawUnread == "" {
		rawUnread = c.Query("unread_only")
	}
	unreadOnly := strings.EqualFold(rawUnread, "true")

	items, total, err := h.notifSvc.ListPage(c.Request.Context(), caller, typeFilter, unreadOnly, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, NotificationListData{
		Notifications: items,
		Pagination:    pageMeta(page, pageSize, total),
	})
}

// UnreadNotificationCount reports the caller's unread notification count.
func (h *Handlers) UnreadNotificationCount(c *gin.Context) {
	n, err := h.notifSvc.UnreadCount(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"unreadCount": n})
}

// MarkNotificationRead marks one notification as read. Marking an
// already-read notification succeeds without effect.
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notification id must be a UUID")
		return
	}

	if err := h.notifSvc.MarkRead(c.Request.Context(), identity(c), id); err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	okMsg(c, http.StatusOK, "notification marked as read")
}

// MarkAllNotificationsRead marks every unread notification for the caller.
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifSvc.MarkAllRead(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"markedRead": n})
}

// DeleteNotification removes one notification owned by the caller.
func (h *Handlers) DeleteNotification(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notification id must be a UUID")
		return
	}

	if err := h.notifSvc.DeleteOne(c.Request.Context(), identity(c), id); err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// DeleteAllNotifications removes every notification for the caller.
func (h *Handlers) DeleteAllNotifications(c *gin.Context) {
	n, err := h.notifSvc.DeleteAll(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": n})
}
