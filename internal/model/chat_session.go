package model

import "time"

type ChatStatus string

const (
	ChatStatusPending  ChatStatus = "pending"
	ChatStatusActive   ChatStatus = "active"
	ChatStatusDeclined ChatStatus = "declined"
	ChatStatusClosed   ChatStatus = "closed"
)

// Valid reports whether s is one of the four known statuses.
func (s ChatStatus) Valid() bool {
	switch s {
	case ChatStatusPending, ChatStatusActive, ChatStatusDeclined, ChatStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s ChatStatus) Terminal() bool {
	return s == ChatStatusDeclined || s == ChatStatusClosed
}

type ChatPriority string

const (
	ChatPriorityLow    ChatPriority = "low"
	ChatPriorityMedium ChatPriority = "medium"
	ChatPriorityHigh   ChatPriority = "high"
)

func (p ChatPriority) Valid() bool {
	return p == ChatPriorityLow || p == ChatPriorityMedium || p == ChatPriorityHigh
}

// ChatSession is a customer support conversation. AdminID stays nil while the
// session is pending and is never reassigned once set.
//
// OpenUserID equals UserID while the session is pending or active and is NULL
// once it is terminal; its unique index allows one open session per customer.
type ChatSession struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UserID       uint         `gorm:"not null;index" json:"user_id"`
	OpenUserID   *uint        `gorm:"uniqueIndex" json:"-"`
	AdminID      *uint        `gorm:"index" json:"admin_id"`
	Status       ChatStatus   `gorm:"size:16;not null;index" json:"status"`
	Subject      string       `gorm:"size:255" json:"subject"`
	Priority     ChatPriority `gorm:"size:16;not null;default:medium" json:"priority"`
	CreatedAt    time.Time    `json:"created_at"`
	AcceptedAt   *time.Time   `json:"accepted_at"`
	ClosedAt     *time.Time   `json:"closed_at"`
	LastActivity time.Time    `gorm:"not null;index" json:"last_activity"`
}

// ChatSessionSummary is a session row as shown in the admin session list.
type ChatSessionSummary struct {
	ChatSession
	UnreadCount int64 `json:"unread_count"`
}
