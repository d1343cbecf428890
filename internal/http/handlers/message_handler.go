// Message HTTP handlers.
//
// This file exposes REST endpoints for the messages within a conversation:
//   - GET  /conversations/{id}/messages  (chronological page, ETag support)
//   - POST /conversations/{id}/messages  (send; Idempotency-Key aware)
//
// Sending is idempotent when the client supplies an Idempotency-Key header:
// a repeated key within the TTL replays the previously persisted message
// instead of appending a duplicate.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
	"github.com/mdmonauwarulislam/jobpulse/internal/http/middleware"
	"github.com/mdmonauwarulislam/jobpulse/internal/repo"
	"github.com/mdmonauwarulislam/jobpulse/internal/services"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for appending a message.
type SendMessageRequest struct {
	// Content is the message body (1–5000 runes after trimming).
	Content string `json:"content" binding:"required"`
	// Type classifies the payload: text (default), file, or image.
	Type string `json:"type"`
	// Attachment metadata, honored when Type != text.
	AttachmentURL  string `json:"attachmentUrl"`
	AttachmentName string `json:"attachmentName"`
	AttachmentSize int64  `json:"attachmentSize"`
}

// MessageListData is the data payload of the message history listing.
type MessageListData struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Handlers
//

// ListMessages returns one chronological page of a conversation's messages.
// Page 1 holds the most recent messages; each page is ordered oldest to
// newest. Supports weak ETags via If-None-Match.
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	caller := identity(c)
	page, pageSize := clampPagination(c, 50)

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, db, conversationID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, conversationID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.msgSvc.ListMessages(ctx, caller, conversationID, page, pageSize)
	if err != nil {
		failConversation(c, err)
		return
	}
	ok(c, http.StatusOK, MessageListData{
		Messages:   items,
		Pagination: pageMeta(page, pageSize, total),
	})
}

// SendMessage appends a message to a conversation on behalf of the caller.
//
// When the request carries a valid Idempotency-Key that matches a prior
// successful send within the TTL, the stored message is replayed with 200
// instead of creating a duplicate.
//
// Responses:
//   - 201 with the persisted message
//   - 200 with the prior message on idempotent replay
//   - 400 conversation_closed when the conversation is not active
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	caller := identity(c)

	// Idempotent replay: serve the previously persisted message when the key
	// was already completed.
	key, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey {
		if db := h.db(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, caller.ID, conversationID, key, time.Now().UTC()); err == nil {
				if m, gerr := repo.GetMessage(db.WithContext(ctx), rec.MessageID); gerr == nil {
					ok(c, http.StatusOK, m)
					return
				}
			}
		}
	}

	m, err := h.msgSvc.SendMessage(ctx, caller, conversationID, services.SendMessageInput{
		Content:        req.Content,
		Type:           domain.MessageType(strings.ToLower(strings.TrimSpace(req.Type))),
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
		AttachmentSize: req.AttachmentSize,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyContent):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		case errors.Is(err, services.ErrContentTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content exceeds the maximum length")
		case errors.Is(err, services.ErrInvalidMessageType):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be one of: text, file, image")
		default:
			failConversation(c, err)
		}
		return
	}

	// Record the completed key so retries replay instead of duplicating.
	if hasKey {
		if db := h.db(); db != nil {
			if _, ierr := repo.CreateIdempotency(ctx, db, caller.ID, conversationID, key, m.ID, http.StatusCreated, h.idemTTL); ierr != nil && !errors.Is(ierr, repo.ErrDuplicate) {
				middleware.LoggerFrom(c).Warn().Err(ierr).Msg("idempotency record write failed")
			}
		}
	}

	ok(c, http.StatusCreated, m)
}
