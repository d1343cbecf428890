// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - GET    /conversations                (list, paginated, ETag support)
//   - POST   /conversations                (start; employer only)
//   - GET    /unread-count                 (unread summary)
//   - GET    /conversations/{id}           (fetch; marks the caller's side read)
//   - PUT    /conversations/{id}/read      (mark read)
//   - PUT    /conversations/{id}/archive   (archive the caller's side)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
	"github.com/mdmonauwarulislam/jobpulse/internal/http/middleware"
	"github.com/mdmonauwarulislam/jobpulse/internal/repo"
	"github.com/mdmonauwarulislam/jobpulse/internal/services"
	"github.com/mdmonauwarulislam/jobpulse/internal/utils"
)

//
// Service contracts (context-aware)
//

// MessagingService defines conversation and message operations consumed by
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessagingService interface {
	// StartConversation opens the conversation for an application.
	StartConversation(ctx context.Context, caller domain.Identity, applicationID, initialMessage string) (*domain.Conversation, *domain.Message, error)
	// SendMessage appends a participant message.
	SendMessage(ctx context.Context, caller domain.Identity, conversationID string, in services.SendMessageInput) (*domain.Message, error)
	// GetConversation fetches a conversation and marks the caller's side read.
	GetConversation(ctx context.Context, caller domain.Identity, conversationID string) (*domain.Conversation, error)
	// MarkRead zeroes the caller's unread state, returning flipped rows.
	MarkRead(ctx context.Context, caller domain.Identity, conversationID string) (int64, error)
	// Archive sets the caller's archive flag.
	Archive(ctx context.Context, caller domain.Identity, conversationID string) (*domain.Conversation, error)
	// ListConversations returns a page of the caller's conversations.
	ListConversations(ctx context.Context, caller domain.Identity, status domain.ConversationStatus, page, pageSize int) ([]domain.Conversation, int64, error)
	// ListMessages returns one chronological page of a conversation's messages.
	ListMessages(ctx context.Context, caller domain.Identity, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
	// UnreadSummary aggregates the caller's unread counts.
	UnreadSummary(ctx context.Context, caller domain.Identity) (totalUnread int64, conversations int64, err error)
}

// NotificationService defines notification operations consumed by HTTP
// handlers.
type NotificationService interface {
	// ListPage returns a page of the recipient's notifications.
	ListPage(ctx context.Context, recipient domain.Identity, typeFilter domain.NotificationType, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error)
	// UnreadCount returns the recipient's unread notification count.
	UnreadCount(ctx context.Context, recipient domain.Identity) (int64, error)
	// MarkRead marks one notification as read.
	MarkRead(ctx context.Context, recipient domain.Identity, id string) error
	// MarkAllRead marks every unread notification, returning the count.
	MarkAllRead(ctx context.Context, recipient domain.Identity) (int64, error)
	// DeleteOne removes one notification owned by the recipient.
	DeleteOne(ctx context.Context, recipient domain.Identity, id string) error
	// DeleteAll removes every notification, returning the count.
	DeleteAll(ctx context.Context, recipient domain.Identity) (int64, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for conversations, messages, and
// notifications. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	msgSvc   MessagingService
	notifSvc NotificationService

	// idemTTL bounds how long an Idempotency-Key replays a prior send.
	idemTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(msgSvc MessagingService, notifSvc NotificationService, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{msgSvc: msgSvc, notifSvc: notifSvc, idemTTL: idemTTL}
}

// identity extracts the authenticated caller from Gin context (set by the
// auth middleware). If absent, it falls back to the "X-User-ID" and
// "X-User-Kind" headers (tests use them), and finally to a demo applicant.
// It never touches c.Request if it's nil.
func identity(c *gin.Context) domain.Identity {
	if id, ok := middleware.IdentityFrom(c); ok {
		return id
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			kind := domain.ParticipantApplicant
			if strings.EqualFold(c.GetHeader("X-User-Kind"), "employer") {
				kind = domain.ParticipantEmployer
			}
			return domain.Identity{ID: h, Kind: kind}
		}
	}
	return domain.Identity{ID: "demo-user", Kind: domain.ParticipantApplicant}
}

// db surfaces the GORM handle from the concrete service, for ETag stats and
// idempotency records. Nil when the service is a test fake.
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.msgSvc.(*services.MessagingService); ok {
		return svc.DB
	}
	return nil
}

//
// DTOs
//

// StartConversationRequest is the JSON payload for opening a conversation.
type StartConversationRequest struct {
	// ApplicationID names the job application the conversation binds to.
	ApplicationID string `json:"applicationId" binding:"required"`
	// Message optionally seeds the conversation with a first message.
	Message string `json:"message"`
}

// LastMessageView is the denormalized preview embedded in conversation views.
type LastMessageView struct {
	Content    string                 `json:"content"`
	SenderKind domain.ParticipantKind `json:"senderKind"`
	SenderID   string                 `json:"senderId,omitempty"`
	SentAt     *time.Time             `json:"sentAt,omitempty"`
}

// ConversationView is the caller-relative projection of a conversation: the
// unread counter and archive flag are the caller's own side.
type ConversationView struct {
	ID            string                    `json:"id"`
	ApplicationID string                    `json:"applicationId"`
	JobID         string                    `json:"jobId"`
	EmployerID    string                    `json:"employerId"`
	ApplicantID   string                    `json:"applicantId"`
	LastMessage   *LastMessageView          `json:"lastMessage,omitempty"`
	UnreadCount   int                       `json:"unreadCount"`
	Archived      bool                      `json:"archived"`
	Status        domain.ConversationStatus `json:"status"`
	InitiatedBy   domain.ParticipantKind    `json:"initiatedBy"`

	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// conversationView projects a conversation for the given side.
func conversationView(cv domain.Conversation, side domain.ParticipantKind) ConversationView {
	v := ConversationView{
		ID:             cv.ID,
		ApplicationID:  cv.ApplicationID,
		JobID:          cv.JobID,
		EmployerID:     cv.EmployerID,
		ApplicantID:    cv.ApplicantID,
		UnreadCount:    cv.UnreadFor(side),
		Archived:       cv.ArchivedFor(side),
		Status:         cv.Status,
		InitiatedBy:    cv.InitiatedBy,
		LastActivityAt: cv.LastActivityAt,
		CreatedAt:      cv.CreatedAt,
	}
	if cv.LastMessageAt != nil {
		v.LastMessage = &LastMessageView{
			Content:    cv.LastMessageContent,
			SenderKind: cv.LastMessageSenderKind,
			SenderID:   cv.LastMessageSenderID,
			SentAt:     cv.LastMessageAt,
		}
	}
	return v
}

// ConversationListData is the data payload of the conversation listing.
type ConversationListData struct {
	Conversations []ConversationView `json:"conversations"`
	Pagination    Pagination         `json:"pagination"`
}

// UnreadSummaryData reports aggregate unread message state.
type UnreadSummaryData struct {
	TotalUnread   int64 `json:"totalUnread"`
	Conversations int64 `json:"conversations"`
}

//
// Helpers
//

// clampPagination parses and bounds the pagination query params to sane
// defaults and limits, returning (page, pageSize). The documented param is
// `limit`; `page_size` is accepted as an alias.
func clampPagination(c *gin.Context, defaultSize int) (page, pageSize int) {
	const maxPageSize = 100
	page = utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("page_size")
	}
	pageSize = utils.AtoiDefault(raw, defaultSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// StartConversation opens a conversation for a job application on behalf of
// the owning employer, optionally appending a first message.
//
// Responses:
//   - 201 with the new conversation (and initial message, when provided)
//   - 403 when the caller is not the application's employer
//   - 404 when the application does not exist
//   - 400 conflict with the existing conversation id when one already exists
func (h *Handlers) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ApplicationID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "applicationId required")
		return
	}

	caller := identity(c)
	conv, first, err := h.msgSvc.StartConversation(c.Request.Context(), caller, strings.TrimSpace(req.ApplicationID), req.Message)
	if err != nil {
		var exists *services.ConversationExistsError
		switch {
		case errors.As(err, &exists):
			failWith(c, http.StatusBadRequest, ErrCodeConflict,
				"conversation already exists for this application",
				gin.H{"conversationId": exists.ConversationID})
		case errors.Is(err, services.ErrApplicationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
		case errors.Is(err, services.ErrForbidden):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "only the application's employer may start a conversation")
		case errors.Is(err, services.ErrEmptyContent), errors.Is(err, services.ErrContentTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	data := gin.H{"conversation": conversationView(*conv, caller.Kind)}
	if first != nil {
		data["message"] = first
	}
	ok(c, http.StatusCreated, data)
}

// ListConversations returns a page of the caller's conversations, newest
// activity first. Supports a status filter (active by default) and weak ETags
// via If-None-Match.
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	caller := identity(c)
	page, pageSize := clampPagination(c, 20)

	status := domain.ConversationStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	if status != "" && !domain.ValidConversationStatus(status) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be one of: active, archived, closed")
		return
	}

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.ConversationsStats(ctx, db, caller.ID, caller.Kind)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"conversations:%s:%d:%d"`, caller.ID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.msgSvc.ListConversations(ctx, caller, status, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	views := lo.Map(items, func(cv domain.Conversation, _ int) ConversationView {
		return conversationView(cv, caller.Kind)
	})
	ok(c, http.StatusOK, ConversationListData{
		Conversations: views,
		Pagination:    pageMeta(page, pageSize, total),
	})
}

// GetConversation returns one conversation the caller participates in,
// together with the requested page of its messages. Opening a conversation
// is the read action: the caller's unread counter resets as a side effect.
func (h *Handlers) GetConversation(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	caller := identity(c)
	conv, err := h.msgSvc.GetConversation(ctx, caller, conversationID)
	if err != nil {
		failConversation(c, err)
		return
	}

	page, pageSize := clampPagination(c, 50)
	msgs, total, err := h.msgSvc.ListMessages(ctx, caller, conversationID, page, pageSize)
	if err != nil {
		failConversation(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"conversation": conversationView(*conv, caller.Kind),
		"messages":     msgs,
		"pagination":   pageMeta(page, pageSize, total),
	})
}

// MarkConversationRead zeroes the caller's unread state for a conversation.
// Repeating the call is a harmless no-op.
func (h *Handlers) MarkConversationRead(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	n, err := h.msgSvc.MarkRead(c.Request.Context(), identity(c), conversationID)
	if err != nil {
		failConversation(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"markedRead": n})
}

// ArchiveConversation sets the caller's archive flag. The conversation drops
// out of the caller's default listing; its status flips to archived only when
// both sides have archived.
func (h *Handlers) ArchiveConversation(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	caller := identity(c)
	conv, err := h.msgSvc.Archive(c.Request.Context(), caller, conversationID)
	if err != nil {
		failConversation(c, err)
		return
	}
	ok(c, http.StatusOK, conversationView(*conv, caller.Kind))
}

// UnreadSummary reports the caller's total unread message count and how many
// conversations hold unread messages.
func (h *Handlers) UnreadSummary(c *gin.Context) {
	total, convs, err := h.msgSvc.UnreadSummary(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, UnreadSummaryData{TotalUnread: total, Conversations: convs})
}

// failConversation maps shared conversation-access errors onto HTTP results.
func failConversation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this conversation")
	case errors.Is(err, services.ErrConversationClosed):
		fail(c, http.StatusBadRequest, ErrCodeConversationClosed, "conversation is not active")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
