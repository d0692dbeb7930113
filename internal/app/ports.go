package app

import (
	"context"
	"time"

	"shopadmin-livechat/internal/model"
)

// SessionStore persists chat sessions. Transition is the only way a status
// changes. AppendMessage checks the session status and inserts the message
// atomically with respect to Transition.
type SessionStore interface {
	Create(ctx context.Context, session *model.ChatSession) error
	GetByID(ctx context.Context, id uint) (*model.ChatSession, error)
	FindOpenByUserID(ctx context.Context, userID uint) (*model.ChatSession, error)
	ListWithUnread(ctx context.Context, statuses []model.ChatStatus) ([]model.ChatSessionSummary, error)
	Transition(ctx context.Context, id uint, from, to model.ChatStatus, fields map[string]interface{}) (bool, error)
	AppendMessage(ctx context.Context, message *model.ChatMessage, statuses ...model.ChatStatus) (bool, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.ChatSession, error)
}

type MessageStore interface {
	Create(ctx context.Context, message *model.ChatMessage) error
	ListSince(ctx context.Context, sessionID, sinceID uint) ([]model.ChatMessage, error)
	MarkRead(ctx context.Context, sessionID, upToID uint, senders ...model.SenderType) (int64, error)
}

// SessionListCache holds the rendered admin session list between mutations.
// Invalidate bumps a version; SetSessions stores a list only when the version
// read before the query is still current.
type SessionListCache interface {
	GetSessions(ctx context.Context) ([]model.ChatSessionSummary, bool, error)
	Version(ctx context.Context) (int64, error)
	SetSessions(ctx context.Context, sessions []model.ChatSessionSummary, version int64) (bool, error)
	Invalidate(ctx context.Context) error
}

const (
	AuditChatAccepted = "chat.accepted"
	AuditChatDeclined = "chat.declined"
	AuditChatClosed   = "chat.closed"
	AuditChatExpired  = "chat.expired"
)

// ChatEvent is the audit notification emitted after a lifecycle transition.
type ChatEvent struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	SessionID  uint      `json:"session_id"`
	AdminID    uint      `json:"admin_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ChatEventPublisher delivers audit events. Delivery is best effort.
type ChatEventPublisher interface {
	Publish(ctx context.Context, event ChatEvent) error
}
