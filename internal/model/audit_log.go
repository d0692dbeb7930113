package model

import "time"

// AuditLog records a chat lifecycle event delivered through the audit queue.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"size:36;not null;uniqueIndex" json:"event_id"`
	Action     string    `gorm:"size:32;not null;index" json:"action"`
	SessionID  uint      `gorm:"not null;index" json:"session_id"`
	AdminID    uint      `gorm:"index" json:"admin_id"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "chat_audit_logs"
}
