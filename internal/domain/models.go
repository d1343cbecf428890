// Package domain defines the persistence models for conversations, messages,
// and notifications. These types are mapped with GORM and form the core data
// layer of the JobPulse messaging subsystem.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"
)

// ParticipantKind names one of the two fixed sides of a conversation.
// System is reserved for platform-authored messages and is never a
// conversation participant.
type ParticipantKind string

const (
	ParticipantApplicant ParticipantKind = "applicant"
	ParticipantEmployer  ParticipantKind = "employer"
	ParticipantSystem    ParticipantKind = "system"
)

// Valid reports whether k names a conversation side (system excluded).
func (k ParticipantKind) Valid() bool {
	return k == ParticipantApplicant || k == ParticipantEmployer
}

// Other returns the opposite conversation side. It is only meaningful for
// valid participant kinds.
func (k ParticipantKind) Other() ParticipantKind {
	if k == ParticipantEmployer {
		return ParticipantApplicant
	}
	return ParticipantEmployer
}

// RecipientKind maps a participant side to the notification recipient
// naming used by the notification subsystem (applicant-side alerts are
// addressed to "user" recipients).
func (k ParticipantKind) RecipientKind() RecipientKind {
	if k == ParticipantEmployer {
		return RecipientEmployer
	}
	return RecipientUser
}

// Identity is the resolved caller of an operation: one concrete id plus the
// side it acts as. The two kinds form a closed sum; there is no open-ended
// runtime lookup behind this type.
type Identity struct {
	ID   string
	Kind ParticipantKind
}

// ConversationStatus is the conversation state machine value.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
	ConversationClosed   ConversationStatus = "closed"
)

// ValidConversationStatus reports whether s is a known status value.
func ValidConversationStatus(s ConversationStatus) bool {
	switch s {
	case ConversationActive, ConversationArchived, ConversationClosed:
		return true
	}
	return false
}

// MessageType classifies message payloads.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageFile   MessageType = "file"
	MessageImage  MessageType = "image"
	MessageSystem MessageType = "system"
)

// ValidMessageType reports whether t is a participant-sendable type.
// System messages are appended by the platform, not by participants.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageText, MessageFile, MessageImage:
		return true
	}
	return false
}

// SystemMessageType tags machine-generated transcript entries.
type SystemMessageType string

const (
	SystemStatusChange       SystemMessageType = "status_change"
	SystemInterviewScheduled SystemMessageType = "interview_scheduled"
	SystemOfferMade          SystemMessageType = "offer_made"
	SystemGeneral            SystemMessageType = "general"
)

// PreviewMaxRunes caps the denormalized last-message preview stored on a
// conversation. The preview is a cache; the message row keeps the full text.
const PreviewMaxRunes = 100

// Conversation is the persistent channel bound 1:1 to a job application,
// through which exactly two identities (one employer-side, one
// applicant-side) exchange messages.
//
// Invariants:
//   - at most one conversation per ApplicationID (unique index).
//   - Status == archived iff both ArchivedBy flags are true.
//   - UnreadEmployer/UnreadApplicant are mutated only through atomic SQL
//     expressions, never read-modify-write in application code.
type Conversation struct {
	ID            string `json:"id"            gorm:"type:char(36);primaryKey"`
	ApplicationID string `json:"applicationId" gorm:"type:char(36);not null;uniqueIndex:ux_conversation_application"`
	JobID         string `json:"jobId"         gorm:"type:char(36);not null;index"`
	EmployerID    string `json:"employerId"    gorm:"type:char(36);not null;index:idx_conv_employer"`
	ApplicantID   string `json:"applicantId"   gorm:"type:char(36);not null;index:idx_conv_applicant"`

	// Denormalized preview of the most recent non-deleted message.
	LastMessageContent    string          `json:"lastMessageContent,omitempty"    gorm:"type:varchar(120)"`
	LastMessageSenderKind ParticipantKind `json:"lastMessageSenderKind,omitempty" gorm:"type:varchar(16)"`
	LastMessageSenderID   string          `json:"lastMessageSenderId,omitempty"   gorm:"type:char(36)"`
	LastMessageAt         *time.Time      `json:"lastMessageAt,omitempty"`

	UnreadEmployer  int `json:"unreadEmployer"  gorm:"not null;default:0"`
	UnreadApplicant int `json:"unreadApplicant" gorm:"not null;default:0"`

	Status              ConversationStatus `json:"status" gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','archived','closed')"`
	ArchivedByEmployer  bool               `json:"archivedByEmployer"  gorm:"not null;default:false"`
	ArchivedByApplicant bool               `json:"archivedByApplicant" gorm:"not null;default:false"`

	InitiatedBy    ParticipantKind `json:"initiatedBy" gorm:"type:varchar(16);not null;check:initiated_by IN ('employer','applicant')"`
	LastActivityAt time.Time       `json:"lastActivityAt" gorm:"not null;index"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// ParticipantID returns the id occupying the given side.
func (c *Conversation) ParticipantID(side ParticipantKind) string {
	if side == ParticipantEmployer {
		return c.EmployerID
	}
	return c.ApplicantID
}

// SideOf resolves which side the identity occupies in this conversation.
// The boolean is false when the identity is not a participant.
func (c *Conversation) SideOf(id Identity) (ParticipantKind, bool) {
	switch {
	case id.Kind == ParticipantEmployer && id.ID == c.EmployerID:
		return ParticipantEmployer, true
	case id.Kind == ParticipantApplicant && id.ID == c.ApplicantID:
		return ParticipantApplicant, true
	}
	return "", false
}

// UnreadFor returns the unread counter belonging to side.
func (c *Conversation) UnreadFor(side ParticipantKind) int {
	if side == ParticipantEmployer {
		return c.UnreadEmployer
	}
	return c.UnreadApplicant
}

// ArchivedFor returns the archive flag belonging to side.
func (c *Conversation) ArchivedFor(side ParticipantKind) bool {
	if side == ParticipantEmployer {
		return c.ArchivedByEmployer
	}
	return c.ArchivedByApplicant
}

// Message is a single utterance within a conversation, authored by one of
// the two participants or by the platform (system messages).
//
// Invariant: messages are only appended while the conversation is active,
// and are soft-deleted rather than removed.
type Message struct {
	ID             string          `json:"id"             gorm:"type:char(36);primaryKey"`
	ConversationID string          `json:"conversationId" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	SenderID       string          `json:"senderId"       gorm:"type:char(36);index"`
	SenderKind     ParticipantKind `json:"senderKind"     gorm:"type:varchar(16);not null;check:sender_kind IN ('applicant','employer','system')"`

	Content string      `json:"content" gorm:"type:text;not null"`
	Type    MessageType `json:"type"    gorm:"type:varchar(16);not null;default:'text';check:type IN ('text','file','image','system')"`

	// Attachment metadata, populated when Type != text.
	AttachmentURL  string `json:"attachmentUrl,omitempty"  gorm:"type:varchar(512)"`
	AttachmentName string `json:"attachmentName,omitempty" gorm:"type:varchar(255)"`
	AttachmentSize int64  `json:"attachmentSize,omitempty"`

	IsRead bool       `json:"isRead" gorm:"not null;default:false;index"`
	ReadAt *time.Time `json:"readAt,omitempty"`

	SystemMessageType SystemMessageType `json:"systemMessageType,omitempty" gorm:"type:varchar(32)"`

	IsDeleted bool       `json:"isDeleted" gorm:"not null;default:false;index"`
	DeletedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// PreviewContent returns the message content truncated to PreviewMaxRunes,
// suitable for the conversation's denormalized preview columns.
func (m *Message) PreviewContent() string {
	if utf8.RuneCountInString(m.Content) <= PreviewMaxRunes {
		return m.Content
	}
	return string([]rune(m.Content)[:PreviewMaxRunes])
}

// RecipientKind names the two notification recipient namespaces. The split
// mirrors the participant sides but is named independently: applicant-side
// recipients are "user" records, employer-side recipients are "employer"
// records.
type RecipientKind string

const (
	RecipientUser     RecipientKind = "user"
	RecipientEmployer RecipientKind = "employer"
)

// ValidRecipientKind reports whether k is a known recipient namespace.
func ValidRecipientKind(k RecipientKind) bool {
	return k == RecipientUser || k == RecipientEmployer
}

// NotificationPriority orders notification urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// NotificationType is the closed enum of notification categories.
type NotificationType string

const (
	// Application lifecycle.
	NotifApplicationReceived      NotificationType = "application_received"
	NotifApplicationStatusChanged NotificationType = "application_status_changed"
	NotifApplicationWithdrawn     NotificationType = "application_withdrawn"

	// Messaging.
	NotifNewMessage          NotificationType = "new_message"
	NotifConversationStarted NotificationType = "conversation_started"

	// Job lifecycle.
	NotifJobPosted   NotificationType = "job_posted"
	NotifJobUpdated  NotificationType = "job_updated"
	NotifJobClosed   NotificationType = "job_closed"
	NotifJobExpiring NotificationType = "job_expiring"

	// Account.
	NotifAccountVerified   NotificationType = "account_verified"
	NotifAccountSuspended  NotificationType = "account_suspended"
	NotifPasswordChanged   NotificationType = "password_changed"
	NotifProfileIncomplete NotificationType = "profile_incomplete"

	// Interviews.
	NotifInterviewScheduled NotificationType = "interview_scheduled"
	NotifInterviewReminder  NotificationType = "interview_reminder"
	NotifInterviewCancelled NotificationType = "interview_cancelled"

	// System.
	NotifSystemAnnouncement NotificationType = "system_announcement"
	NotifSystemMaintenance  NotificationType = "system_maintenance"
)

// notificationTypes is the closed set used for validation.
var notificationTypes = map[NotificationType]struct{}{
	NotifApplicationReceived: {}, NotifApplicationStatusChanged: {}, NotifApplicationWithdrawn: {},
	NotifNewMessage: {}, NotifConversationStarted: {},
	NotifJobPosted: {}, NotifJobUpdated: {}, NotifJobClosed: {}, NotifJobExpiring: {},
	NotifAccountVerified: {}, NotifAccountSuspended: {}, NotifPasswordChanged: {}, NotifProfileIncomplete: {},
	NotifInterviewScheduled: {}, NotifInterviewReminder: {}, NotifInterviewCancelled: {},
	NotifSystemAnnouncement: {}, NotifSystemMaintenance: {},
}

// ValidNotificationType reports whether t belongs to the closed enum.
func ValidNotificationType(t NotificationType) bool {
	_, ok := notificationTypes[t]
	return ok
}

// Metadata is a free-form key/value bag serialized as JSON text.
type Metadata map[string]string

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("metadata: unsupported scan source")
}

// Notification is a standalone alert record delivered to one recipient
// identity. It is decoupled from conversations except by the optional
// related-entity references, which exist purely for client navigation.
type Notification struct {
	ID            string        `json:"id"            gorm:"type:char(36);primaryKey"`
	RecipientID   string        `json:"recipientId"   gorm:"type:char(36);not null;index:idx_notif_recipient,priority:1"`
	RecipientKind RecipientKind `json:"recipientKind" gorm:"type:varchar(16);not null;index:idx_notif_recipient,priority:2;check:recipient_kind IN ('user','employer')"`

	Type    NotificationType `json:"type"    gorm:"type:varchar(48);not null;index"`
	Title   string           `json:"title"   gorm:"type:varchar(200);not null"`
	Message string           `json:"message" gorm:"type:varchar(1000);not null"`

	// Optional related-entity references for client-side navigation.
	// Referential integrity is not enforced here.
	JobID          string `json:"jobId,omitempty"          gorm:"type:char(36)"`
	ApplicationID  string `json:"applicationId,omitempty"  gorm:"type:char(36)"`
	ConversationID string `json:"conversationId,omitempty" gorm:"type:char(36)"`
	UserID         string `json:"userId,omitempty"         gorm:"type:char(36)"`
	EmployerID     string `json:"employerId,omitempty"     gorm:"type:char(36)"`

	ActionURL string `json:"actionUrl,omitempty" gorm:"type:varchar(512)"`

	IsRead bool       `json:"isRead" gorm:"not null;default:false;index"`
	ReadAt *time.Time `json:"readAt,omitempty"`

	Priority  NotificationPriority `json:"priority" gorm:"type:varchar(16);not null;default:'normal';check:priority IN ('low','normal','high','urgent')"`
	ExpiresAt *time.Time           `json:"expiresAt,omitempty" gorm:"index"`
	Metadata  Metadata             `json:"metadata,omitempty"  gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Application is a read-only view of the externally-owned applications
// table. The messaging core consumes it only to answer "does this
// application exist and who are its parties"; all application workflow
// lives outside this service.
type Application struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	JobID       string    `json:"jobId"       gorm:"type:char(36);not null;index"`
	EmployerID  string    `json:"employerId"  gorm:"type:char(36);not null;index"`
	ApplicantID string    `json:"applicantId" gorm:"type:char(36);not null;index"`
	Status      string    `json:"status"      gorm:"type:varchar(32);not null"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Application.
func (Application) TableName() string { return "applications" }
