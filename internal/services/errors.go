// Package services defines the business logic for conversations, messages,
// and notifications. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import (
	"errors"
	"fmt"
)

// Conversation-related errors.
var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or is not accessible to the current identity.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrApplicationNotFound indicates that the referenced job application
	// does not exist.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrForbidden is returned when an identity attempts an operation on a
	// conversation it does not participate in, or attempts to start a
	// conversation for an application it does not own.
	ErrForbidden = errors.New("not a participant of this conversation")

	// ErrConversationClosed is returned when a message is appended to a
	// conversation that is no longer active.
	ErrConversationClosed = errors.New("conversation is not active")

	// ErrEmptyContent is returned when a message body is blank after trimming.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrContentTooLong is returned when a message body exceeds the maximum
	// configured rune length.
	ErrContentTooLong = errors.New("message content too long")

	// ErrInvalidMessageType is returned when the message type is not one a
	// participant may send.
	ErrInvalidMessageType = errors.New("invalid message type")

	// ErrMessageNotFound indicates that the requested message does not exist
	// or was deleted.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotificationNotFound indicates that the requested notification does
	// not exist or belongs to another recipient.
	ErrNotificationNotFound = errors.New("notification not found")
)

// ConversationExistsError is returned by StartConversation when the
// application already has a conversation. It carries the existing id so
// handlers can point the caller at it.
type ConversationExistsError struct {
	ConversationID string
}

// Error implements the error interface.
func (e *ConversationExistsError) Error() string {
	return fmt.Sprintf("conversation already exists: %s", e.ConversationID)
}
