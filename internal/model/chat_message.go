package model

import "time"

type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderAdmin  SenderType = "admin"
	SenderSystem SenderType = "system"
)

type MessageType string

const (
	MessageTypeNormal MessageType = "normal"
	MessageTypeSystem MessageType = "system"
)

// ChatMessage is append-only; IsRead is the only field ever updated. It
// tracks whether the other party's role has seen the message.
type ChatMessage struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	SessionID   uint        `gorm:"not null;index" json:"session_id"`
	SenderType  SenderType  `gorm:"size:16;not null;index" json:"sender_type"`
	SenderID    *uint       `json:"sender_id"`
	Message     string      `gorm:"type:text;not null" json:"message"`
	MessageType MessageType `gorm:"size:16;not null;default:normal" json:"message_type"`
	IsRead      bool        `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt   time.Time   `gorm:"index" json:"created_at"`
}
