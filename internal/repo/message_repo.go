// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. Soft-deleted rows are filtered out of every read path; read-state
// changes are bulk UPDATEs rather than per-row writes.
package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
)

// CreateMessage inserts a new message row. Validation (content length,
// conversation state) lives in the service layer; this function only
// persists.
func CreateMessage(db *gorm.DB, conversationID, senderID string, senderKind domain.ParticipantKind, content string, msgType domain.MessageType, sysType domain.SystemMessageType) (*domain.Message, error) {
	m := &domain.Message{
		ID:                uuid.NewString(),
		ConversationID:    conversationID,
		SenderID:          senderID,
		SenderKind:        senderKind,
		Content:           content,
		Type:              msgType,
		SystemMessageType: sysType,
		CreatedAt:         time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListMessagesPage returns one page of non-deleted messages: the page is
// selected newest-first (CreatedAt DESC, ID DESC) so page 1 holds the most
// recent messages, then reversed so callers always receive chronological
// (ascending) order within the page.
func ListMessagesPage(db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error
// (as tests expect). Soft-deleted messages are excluded.
func CountMessages(db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND is_deleted = ?", conversationID, false).Scan(&total).Error
	return total, err
}

// MarkAllRead flips is_read/read_at on every unread, non-deleted message in
// the conversation that was not sent by readerID, in a single bulk UPDATE.
// It returns the number of rows touched; repeating the call affects zero
// rows and is not an error.
func MarkAllRead(db *gorm.DB, conversationID, readerID string) (int64, error) {
	now := time.Now().UTC()
	res := db.
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ? AND is_deleted = ?",
			conversationID, readerID, false, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	return res.RowsAffected, res.Error
}

// SoftDeleteMessage flags a message as deleted. The row is retained; every
// read path filters it out from then on. Returns ErrNotFound when the
// message does not exist or was already deleted.
func SoftDeleteMessage(db *gorm.DB, messageID string) error {
	now := time.Now().UTC()
	res := db.
		Model(&domain.Message{}).
		Where("id = ? AND is_deleted = ?", messageID, false).
		Updates(map[string]any{"is_deleted": true, "deleted_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMessage fetches a non-deleted message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ? AND is_deleted = ?", id, false).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountUnreadBySender counts unread, non-deleted messages in a conversation
// authored by the given side. Used to cross-check the conversation's
// denormalized unread counters.
func CountUnreadBySender(db *gorm.DB, conversationID string, senderKind domain.ParticipantKind) (int64, error) {
	var total int64
	err := db.
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_kind = ? AND is_read = ? AND is_deleted = ?",
			conversationID, senderKind, false, false).
		Count(&total).Error
	return total, err
}
