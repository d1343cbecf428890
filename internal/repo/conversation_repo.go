// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a conversation is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Concurrency notes:
//   - The one-conversation-per-application invariant is enforced by the
//     unique index on application_id; FindOrCreateConversation resolves the
//     create race by re-fetching when the insert loses to a concurrent one.
//   - Unread counters are mutated exclusively through SQL expressions
//     (col = col + 1 / col = 0) so concurrent sends and reads never lose
//     updates to read-modify-write interleavings.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// unreadColumn maps a participant side to its unread counter column.
func unreadColumn(side domain.ParticipantKind) string {
	if side == domain.ParticipantEmployer {
		return "unread_employer"
	}
	return "unread_applicant"
}

// archivedColumn maps a participant side to its archive flag column.
func archivedColumn(side domain.ParticipantKind) string {
	if side == domain.ParticipantEmployer {
		return "archived_by_employer"
	}
	return "archived_by_applicant"
}

// participantColumn maps a participant side to its id column.
func participantColumn(side domain.ParticipantKind) string {
	if side == domain.ParticipantEmployer {
		return "employer_id"
	}
	return "applicant_id"
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// glebarez/sqlite sometimes reports these as plain-text errors, so the
// translated sentinel is checked alongside the raw message.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// FindOrCreateConversation returns the existing conversation for
// applicationID if present, otherwise creates one with status active, zero
// unread counts, and cleared archive flags. The boolean reports whether a
// new row was created.
//
// Two concurrent calls for the same application converge on one record: the
// loser of the insert race detects the unique-constraint violation and
// re-fetches instead of erroring.
func FindOrCreateConversation(ctx context.Context, db *gorm.DB, applicationID, jobID, employerID, applicantID string, initiatedBy domain.ParticipantKind) (*domain.Conversation, bool, error) {
	if existing, err := GetConversationByApplication(ctx, db, applicationID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:             uuid.NewString(),
		ApplicationID:  applicationID,
		JobID:          jobID,
		EmployerID:     employerID,
		ApplicantID:    applicantID,
		Status:         domain.ConversationActive,
		InitiatedBy:    initiatedBy,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicateKey(err) {
			existing, gerr := GetConversationByApplication(ctx, db, applicationID)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return c, true, nil
}

// GetConversation fetches a conversation by id, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversationByApplication fetches the unique conversation bound to an
// application, or ErrNotFound.
func GetConversationByApplication(ctx context.Context, db *gorm.DB, applicationID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateLastMessage refreshes the conversation's denormalized preview and
// last-activity timestamp from the given message. The preview content is
// truncated to domain.PreviewMaxRunes. Called after every successful
// message write; the preview is a cache derivable from the message store.
func UpdateLastMessage(ctx context.Context, db *gorm.DB, conversationID string, m *domain.Message) error {
	sentAt := m.CreatedAt
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"last_message_content":     m.PreviewContent(),
			"last_message_sender_kind": m.SenderKind,
			"last_message_sender_id":   m.SenderID,
			"last_message_at":          sentAt,
			"last_activity_at":         sentAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUnread atomically adds one to the given side's unread counter.
// The increment happens inside the UPDATE statement so concurrent sends
// never lose counts.
func IncrementUnread(ctx context.Context, db *gorm.DB, conversationID string, side domain.ParticipantKind) error {
	col := unreadColumn(side)
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn(col, gorm.Expr(col+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetUnread atomically zeroes the given side's unread counter. Only the
// owning side's "mark as read" action calls this; repeating it is a no-op.
func ResetUnread(ctx context.Context, db *gorm.DB, conversationID string, side domain.ParticipantKind) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn(unreadColumn(side), 0)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkArchived sets the side's archive flag and promotes the conversation to
// archived status once both flags are set. Both statements are conditional
// single-row updates, so two participants archiving concurrently still
// converge on status == archived.
func MarkArchived(ctx context.Context, db *gorm.DB, conversationID string, side domain.ParticipantKind) (*domain.Conversation, error) {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn(archivedColumn(side), true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	// Promote only when both flags are set; closed conversations stay closed.
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND archived_by_employer = ? AND archived_by_applicant = ? AND status = ?",
			conversationID, true, true, domain.ConversationActive).
		UpdateColumn("status", domain.ConversationArchived).Error
	if err != nil {
		return nil, err
	}

	return GetConversation(ctx, db, conversationID)
}

// ListConversationsPage returns a page of conversations where the identity
// is the side's participant, the side's archive flag is clear, and the
// status matches, ordered by last activity descending.
func ListConversationsPage(ctx context.Context, db *gorm.DB, identityID string, side domain.ParticipantKind, status domain.ConversationStatus, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where(participantColumn(side)+" = ?", identityID).
		Where(archivedColumn(side)+" = ?", false).
		Where("status = ?", status).
		Order("last_activity_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountConversations returns the total matching ListConversationsPage's
// filter, for pagination metadata.
func CountConversations(ctx context.Context, db *gorm.DB, identityID string, side domain.ParticipantKind, status domain.ConversationStatus) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where(participantColumn(side)+" = ?", identityID).
		Where(archivedColumn(side)+" = ?", false).
		Where("status = ?", status).
		Count(&total).Error
	return total, err
}

// UnreadSummary aggregates the identity's unread state across active,
// non-self-archived conversations: the total unread message count and the
// number of conversations holding at least one unread message.
func UnreadSummary(ctx context.Context, db *gorm.DB, identityID string, side domain.ParticipantKind) (totalUnread int64, conversations int64, err error) {
	col := unreadColumn(side)
	var row struct {
		Total         int64
		Conversations int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Select("COALESCE(SUM("+col+"), 0) AS total, COALESCE(SUM(CASE WHEN "+col+" > 0 THEN 1 ELSE 0 END), 0) AS conversations").
		Where(participantColumn(side)+" = ?", identityID).
		Where(archivedColumn(side)+" = ?", false).
		Where("status = ?", domain.ConversationActive).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Conversations, nil
}
