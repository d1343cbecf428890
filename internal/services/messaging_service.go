// Package services – MessagingService
//
// This file implements MessagingService, the application-level component that
// owns conversation lifecycle and message exchange between an employer and an
// applicant. It validates inputs, resolves which side of a conversation the
// caller occupies, enforces the active-status gate on appends, and keeps the
// denormalized conversation preview and unread counters in step with the
// message store.
//
// Notification fan-out is best effort: persisting the message is the
// transaction boundary, and recipient alerts are dispatched asynchronously
// afterwards. A failed alert is logged and counted but never fails the send.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// conversation/caller identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
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

// ConversationRepo defines the conversation persistence contract required by
// MessagingService.
type ConversationRepo interface {
	// FindOrCreateConversation returns the application's conversation,
	// creating it when absent. The boolean reports creation.
	FindOrCreateConversation(ctx context.Context, db *gorm.DB, applicationID, jobID, employerID, applicantID string, initiatedBy domain.ParticipantKind) (*domain.Conversation, bool, error)

	// GetConversation fetches a conversation by id.
	GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error)

	// UpdateLastMessage refreshes the denormalized preview columns.
	UpdateLastMessage(ctx context.Context, db *gorm.DB, conversationID string, m *domain.Message) error

	// IncrementUnread atomically bumps one side's unread counter.
	IncrementUnread(ctx context.Context, db *gorm.DB, conversationID string, side domain.ParticipantKind) error

	// ResetUnread atomically zeroes one side's unread counter.
	ResetUnread(ctx context.Context, db *gorm.DB, conversationID string, side domain.ParticipantKind) error

	// MarkArchived sets one side's archive flag, promoting the status when
	// both flags are set, and returns the refreshed row.
	MarkArchived(ctx context.Context, db *gorm.DB, conversationID string, side domain.ParticipantKind) (*domain.Conversation, error)

	// ListConversationsPage returns a page of the identity's conversations.
	ListConversationsPage(ctx context.Context, db *gorm.DB, identityID string, side domain.ParticipantKind, status domain.ConversationStatus, offset, limit int) ([]domain.Conversation, error)

	// CountConversations returns the total matching the same filter.
	CountConversations(ctx context.Context, db *gorm.DB, identityID string, side domain.ParticipantKind, status domain.ConversationStatus) (int64, error)

	// UnreadSummary aggregates unread counts across the identity's active
	// conversations.
	UnreadSummary(ctx context.Context, db *gorm.DB, identityID string, side domain.ParticipantKind) (totalUnread int64, conversations int64, err error)
}

// MessageRepo defines the message persistence contract required by
// MessagingService.
type MessageRepo interface {
	// CreateMessage inserts a message row.
	CreateMessage(db *gorm.DB, conversationID, senderID string, senderKind domain.ParticipantKind, content string, msgType domain.MessageType, sysType domain.SystemMessageType) (*domain.Message, error)

	// ListMessagesPage returns one chronological page of messages.
	ListMessagesPage(db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error)

	// CountMessages returns the conversation's non-deleted message count.
	CountMessages(db *gorm.DB, conversationID string) (int64, error)

	// MarkAllRead bulk-marks messages not sent by readerID as read.
	MarkAllRead(db *gorm.DB, conversationID, readerID string) (int64, error)
}

// ApplicationRepo defines the read-only application lookup required by
// MessagingService.
type ApplicationRepo interface {
	// GetApplication fetches an application row by id.
	GetApplication(ctx context.Context, db *gorm.DB, id string) (*domain.Application, error)
}

// Notifier is the alert sink used by MessagingService. NotificationService
// satisfies it; tests substitute recording fakes.
type Notifier interface {
	// NewMessage alerts the receiving participant about a fresh message.
	NewMessage(ctx context.Context, recipient domain.Identity, conversationID, senderName, preview string) error

	// ConversationStarted alerts the applicant that a conversation opened on
	// their application.
	ConversationStarted(ctx context.Context, applicantID, conversationID, applicationID, employerName string) error
}

// gormConversationRepo adapts the package-level repo functions to the
// ConversationRepo interface.
type gormConversationRepo struct{}

func (gormConversationRepo) FindOrCreateConversation(ctx context.Context, db *gorm.DB, applicationID, jobID, employerID, applicantID string, initiatedBy domain.ParticipantKind) (*domain.Conversation, bool, error) {
	return repo.FindOrCreateConversation(ctx, db, applicationID, jobID, employerID, applicantID, initiatedBy)
}

func (gormConversationRepo) GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	return repo.GetConversation(ctx, db, id)
}

func (gormConversationRepo) UpdateLastMessage(ctx context.Context, db *gorm.DB, conversationID string, m *domain.Message) error {
	return repo.UpdateLastMessage(ctx, db, conversationID, m)
}

func (gormConversationRepo) IncrementUnread(ctx context.Context, db *gorm.DB, conversationID string, side domain.ParticipantKind) error {
	return repo.IncrementUnread(ctx, db, conversationID, side)
}

func (gormConversationRepo) ResetUnread(ctx context.Context, db *gorm.DB, conversationID string, side domain.ParticipantKind) error {
	return repo.ResetUnread(ctx, db, conversationID, side)
}

func (gormConversationRepo) MarkArchived(ctx context.Context, db *gorm.DB, conversationID string, side domain.ParticipantKind) (*domain.Conversation, error) {
	return repo.MarkArchived(ctx, db, conversationID, side)
}

func (gormConversationRepo) ListConversationsPage(ctx context.Context, db *gorm.DB, identityID string, side domain.ParticipantKind, status domain.ConversationStatus, offset, limit int) ([]domain.Conversation, error) {
	return repo.ListConversationsPage(ctx, db, identityID, side, status, offset, limit)
}

func (gormConversationRepo) CountConversations(ctx context.Context, db *gorm.DB, identityID string, side domain.ParticipantKind, status domain.ConversationStatus) (int64, error) {
	return repo.CountConversations(ctx, db, identityID, side, status)
}

func (gormConversationRepo) UnreadSummary(ctx context.Context, db *gorm.DB, identityID string, side domain.ParticipantKind) (int64, int64, error) {
	return repo.UnreadSummary(ctx, db, identityID, side)
}

// gormMessageRepo adapts the package-level repo functions to the MessageRepo
// interface.
type gormMessageRepo struct{}

func (gormMessageRepo) CreateMessage(db *gorm.DB, conversationID, senderID string, senderKind domain.ParticipantKind, content string, msgType domain.MessageType, sysType domain.SystemMessageType) (*domain.Message, error) {
	return repo.CreateMessage(db, conversationID, senderID, senderKind, content, msgType, sysType)
}

func (gormMessageRepo) ListMessagesPage(db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	return repo.ListMessagesPage(db, conversationID, offset, limit)
}

func (gormMessageRepo) CountMessages(db *gorm.DB, conversationID string) (int64, error) {
	return repo.CountMessages(db, conversationID)
}

func (gormMessageRepo) MarkAllRead(db *gorm.DB, conversationID, readerID string) (int64, error) {
	return repo.MarkAllRead(db, conversationID, readerID)
}

// gormApplicationRepo adapts the application lookup to ApplicationRepo.
type gormApplicationRepo struct{}

func (gormApplicationRepo) GetApplication(ctx context.Context, db *gorm.DB, id string) (*domain.Application, error) {
	return repo.GetApplication(ctx, db, id)
}

// SendMessageInput carries the caller-supplied fields of a send request.
type SendMessageInput struct {
	Content        string
	Type           domain.MessageType
	AttachmentURL  string
	AttachmentName string
	AttachmentSize int64
}

// MessagingService coordinates conversation lifecycle, message appends, read
// state, and notification fan-out.
type MessagingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Conversations is the conversation repository used by this service.
	Conversations ConversationRepo
	// Messages is the message repository used by this service.
	Messages MessageRepo
	// Applications resolves application ownership on conversation start.
	Applications ApplicationRepo
	// Notifier receives best-effort recipient alerts. May be nil.
	Notifier Notifier

	// MaxContentRunes caps message bodies by rune length.
	MaxContentRunes int
	// NotifyTimeout bounds each asynchronous notification attempt.
	NotifyTimeout time.Duration

	// Log receives structured records for swallowed side-effect failures.
	Log zerolog.Logger

	// dispatch runs notification work. Defaults to a goroutine; tests
	// substitute a synchronous runner.
	dispatch func(func())
}

// NewMessagingService constructs a MessagingService with default limits.
func NewMessagingService(db *gorm.DB, notifier Notifier, log zerolog.Logger) *MessagingService {
	return &MessagingService{
		DB:              db,
		Conversations:   gormConversationRepo{},
		Messages:        gormMessageRepo{},
		Applications:    gormApplicationRepo{},
		Notifier:        notifier,
		MaxContentRunes: 5000,
		NotifyTimeout:   5 * time.Second,
		Log:             log,
	}
}

// SetDispatch overrides the notification dispatch function. Passing nil
// restores the default goroutine dispatch.
func (s *MessagingService) SetDispatch(fn func(func())) { s.dispatch = fn }

// notifyAsync runs fn on the dispatch path with a bounded context. Failures
// are logged and counted, never returned.
func (s *MessagingService) notifyAsync(kind string, fn func(ctx context.Context) error) {
	if s.Notifier == nil {
		return
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.Log.Warn().Err(err).Str("kind", kind).Msg("notification dispatch failed")
		}
	}
	if s.dispatch != nil {
		s.dispatch(run)
		return
	}
	go run()
}

// senderLabel renders a participant side for notification text.
func senderLabel(side domain.ParticipantKind) string {
	if side == domain.ParticipantEmployer {
		return "The employer"
	}
	return "The applicant"
}

// StartConversation opens (or surfaces) the conversation for an application.
// Only the employer owning the application may start one; the applicant's
// channel opens when the employer reaches out. When the application already
// has a conversation, a ConversationExistsError carrying its id is returned.
//
// An optional initial message is appended after creation; the applicant is
// alerted asynchronously.
func (s *MessagingService) StartConversation(ctx context.Context, caller domain.Identity, applicationID, initialMessage string) (*domain.Conversation, *domain.Message, error) {
	tr := otel.Tracer("services/MessagingService")
	ctx, span := tr.Start(ctx, "StartConversation",
		trace.WithAttributes(
			attribute.String("application.id", applicationID),
			attribute.String("caller.id", caller.ID),
		),
	)
	defer span.End()

	if caller.Kind != domain.ParticipantEmployer {
		return nil, nil, ErrForbidden
	}

	app, err := s.Applications.GetApplication(ctx, s.DB, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrApplicationNotFound
		}
		return nil, nil, err
	}
	if app.EmployerID != caller.ID {
		return nil, nil, ErrForbidden
	}

	// Validate the optional first message up front: an oversized body must
	// reject the whole request before any conversation row exists, or the
	// retry after fixing it would surface as Conflict.
	initial := strings.TrimSpace(initialMessage)
	if initial != "" && s.MaxContentRunes > 0 && utf8.RuneCountInString(initial) > s.MaxContentRunes {
		return nil, nil, ErrContentTooLong
	}

	conv, created, err := s.Conversations.FindOrCreateConversation(ctx, s.DB, app.ID, app.JobID, app.EmployerID, app.ApplicantID, domain.ParticipantEmployer)
	if err != nil {
		return nil, nil, err
	}
	if !created {
		return conv, nil, &ConversationExistsError{ConversationID: conv.ID}
	}

	var first *domain.Message
	if initial != "" {
		first, err = s.appendMessage(ctx, conv, caller, SendMessageInput{Content: initial, Type: domain.MessageText})
		if err != nil {
			return conv, nil, err
		}
	}

	s.notifyAsync("conversation_started", func(ctx context.Context) error {
		return s.Notifier.ConversationStarted(ctx, conv.ApplicantID, conv.ID, conv.ApplicationID, senderLabel(domain.ParticipantEmployer))
	})
	return conv, first, nil
}

// SendMessage validates and appends a participant message, updates the
// conversation preview, bumps the receiving side's unread counter, and alerts
// the recipient asynchronously. Preview and counter updates are advisory:
// failures after the message row is written are logged, not returned.
func (s *MessagingService) SendMessage(ctx context.Context, caller domain.Identity, conversationID string, in SendMessageInput) (*domain.Message, error) {
	tr := otel.Tracer("services/MessagingService")
	ctx, span := tr.Start(ctx, "SendMessage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("caller.id", caller.ID),
		),
	)
	defer span.End()

	conv, _, err := s.authorize(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status != domain.ConversationActive {
		return nil, ErrConversationClosed
	}

	return s.appendMessage(ctx, conv, caller, in)
}

// appendMessage is the shared persistence path for participant messages.
// Callers have already authorized the identity and checked conversation
// status.
func (s *MessagingService) appendMessage(ctx context.Context, conv *domain.Conversation, caller domain.Identity, in SendMessageInput) (*domain.Message, error) {
	if in.Type == "" {
		in.Type = domain.MessageText
	}
	if !domain.ValidMessageType(in.Type) {
		return nil, ErrInvalidMessageType
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}

	m, err := s.Messages.CreateMessage(s.DB.WithContext(ctx), conv.ID, caller.ID, caller.Kind, content, in.Type, "")
	if err != nil {
		return nil, err
	}
	if in.Type != domain.MessageText {
		m.AttachmentURL = in.AttachmentURL
		m.AttachmentName = in.AttachmentName
		m.AttachmentSize = in.AttachmentSize
		if uerr := s.DB.WithContext(ctx).Model(&domain.Message{}).Where("id = ?", m.ID).
			Updates(map[string]any{
				"attachment_url":  in.AttachmentURL,
				"attachment_name": in.AttachmentName,
				"attachment_size": in.AttachmentSize,
			}).Error; uerr != nil {
			s.Log.Warn().Err(uerr).Str("message_id", m.ID).Msg("attachment metadata update failed")
		}
	}
	messagesSent.WithLabelValues(string(caller.Kind)).Inc()

	if err := s.Conversations.UpdateLastMessage(ctx, s.DB, conv.ID, m); err != nil {
		s.Log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("preview update failed")
	}
	other := caller.Kind.Other()
	if err := s.Conversations.IncrementUnread(ctx, s.DB, conv.ID, other); err != nil {
		s.Log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("unread increment failed")
	}

	recipient := domain.Identity{ID: conv.ParticipantID(other), Kind: other}
	preview := m.PreviewContent()
	s.notifyAsync("new_message", func(ctx context.Context) error {
		return s.Notifier.NewMessage(ctx, recipient, conv.ID, senderLabel(caller.Kind), preview)
	})
	return m, nil
}

// AppendSystemMessage records a platform-authored entry in the transcript.
// System messages update the preview but never bump unread counters and never
// emit message notifications; the triggering workflow decides what to alert.
func (s *MessagingService) AppendSystemMessage(ctx context.Context, conversationID, content string, sysType domain.SystemMessageType) (*domain.Message, error) {
	tr := otel.Tracer("services/MessagingService")
	ctx, span := tr.Start(ctx, "AppendSystemMessage",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	conv, err := s.Conversations.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.Status != domain.ConversationActive {
		return nil, ErrConversationClosed
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if sysType == "" {
		sysType = domain.SystemGeneral
	}

	m, err := s.Messages.CreateMessage(s.DB.WithContext(ctx), conv.ID, "", domain.ParticipantSystem, content, domain.MessageSystem, sysType)
	if err != nil {
		return nil, err
	}
	if err := s.Conversations.UpdateLastMessage(ctx, s.DB, conv.ID, m); err != nil {
		s.Log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("preview update failed")
	}
	return m, nil
}

// GetConversation returns the conversation and marks the caller's side as
// read: their unread counter resets and the other side's messages flip to
// read. Opening a conversation is the read action; LastActivityAt is not
// touched.
func (s *MessagingService) GetConversation(ctx context.Context, caller domain.Identity, conversationID string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/MessagingService")
	ctx, span := tr.Start(ctx, "GetConversation",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("caller.id", caller.ID),
		),
	)
	defer span.End()

	conv, side, err := s.authorize(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.markRead(ctx, conv, caller, side); err != nil {
		return nil, err
	}
	return s.Conversations.GetConversation(ctx, s.DB, conv.ID)
}

// MarkRead zeroes the caller's unread counter and marks the other side's
// messages as read, returning the number of message rows flipped. Calling it
// again is a harmless no-op.
func (s *MessagingService) MarkRead(ctx context.Context, caller domain.Identity, conversationID string) (int64, error) {
	tr := otel.Tracer("services/MessagingService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("caller.id", caller.ID),
		),
	)
	defer span.End()

	conv, side, err := s.authorize(ctx, caller, conversationID)
	if err != nil {
		return 0, err
	}
	return s.markRead(ctx, conv, caller, side)
}

// markRead performs the two read-state writes for an authorized caller.
func (s *MessagingService) markRead(ctx context.Context, conv *domain.Conversation, caller domain.Identity, side domain.ParticipantKind) (int64, error) {
	n, err := s.Messages.MarkAllRead(s.DB.WithContext(ctx), conv.ID, caller.ID)
	if err != nil {
		return 0, err
	}
	if err := s.Conversations.ResetUnread(ctx, s.DB, conv.ID, side); err != nil {
		return n, err
	}
	return n, nil
}

// Archive sets the caller's archive flag. The conversation leaves the
// caller's default listing immediately; its status flips to archived only
// when both sides have archived.
func (s *MessagingService) Archive(ctx context.Context, caller domain.Identity, conversationID string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/MessagingService")
	ctx, span := tr.Start(ctx, "Archive",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("caller.id", caller.ID),
		),
	)
	defer span.End()

	_, side, err := s.authorize(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	return s.Conversations.MarkArchived(ctx, s.DB, conversationID, side)
}

// ListConversations returns a page of the caller's conversations with the
// given status (active by default), newest activity first, excluding those
// the caller has archived.
func (s *MessagingService) ListConversations(ctx context.Context, caller domain.Identity, status domain.ConversationStatus, page, pageSize int) ([]domain.Conversation, int64, error) {
	tr := otel.Tracer("services/MessagingService")
	ctx, span := tr.Start(ctx, "ListConversations",
		trace.WithAttributes(
			attribute.String("caller.id", caller.ID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if status == "" {
		status = domain.ConversationActive
	}
	if !domain.ValidConversationStatus(status) {
		return []domain.Conversation{}, 0, nil
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Conversations.CountConversations(ctx, s.DB, caller.ID, caller.Kind, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}

	items, err := s.Conversations.ListConversationsPage(ctx, s.DB, caller.ID, caller.Kind, status, offset, pageSize)
	return items, total, err
}

// ListMessages returns one chronological page of the conversation's messages
// for an authorized caller. Page 1 holds the most recent messages.
func (s *MessagingService) ListMessages(ctx context.Context, caller domain.Identity, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessagingService")
	ctx, span := tr.Start(ctx, "ListMessages",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if _, _, err := s.authorize(ctx, caller, conversationID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	total, err := s.Messages.CountMessages(s.DB.WithContext(ctx), conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := s.Messages.ListMessagesPage(s.DB.WithContext(ctx), conversationID, offset, pageSize)
	return items, total, err
}

// UnreadSummary aggregates the caller's unread message count and the number
// of conversations holding unread messages, across active conversations the
// caller has not archived.
func (s *MessagingService) UnreadSummary(ctx context.Context, caller domain.Identity) (totalUnread int64, conversations int64, err error) {
	tr := otel.Tracer("services/MessagingService")
	ctx, span := tr.Start(ctx, "UnreadSummary",
		trace.WithAttributes(attribute.String("caller.id", caller.ID)),
	)
	defer span.End()

	return s.Conversations.UnreadSummary(ctx, s.DB, caller.ID, caller.Kind)
}

// authorize fetches the conversation and resolves which side the caller
// occupies. Unknown conversations map to ErrConversationNotFound;
// non-participants get ErrForbidden.
func (s *MessagingService) authorize(ctx context.Context, caller domain.Identity, conversationID string) (*domain.Conversation, domain.ParticipantKind, error) {
	conv, err := s.Conversations.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrConversationNotFound
		}
		return nil, "", err
	}
	side, ok := conv.SideOf(caller)
	if !ok {
		return nil, "", ErrForbidden
	}
	return conv, side, nil
}
