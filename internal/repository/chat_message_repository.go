package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"shopadmin-livechat/internal/model"
)

type ChatMessageRepository struct {
	db *gorm.DB
}

func NewChatMessageRepository(db *gorm.DB) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

func (r *ChatMessageRepository) Create(ctx context.Context, message *model.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("create chat message failed: %w", err)
	}
	return nil
}

// ListSince returns the session's messages with id greater than sinceID in
// delivery order.
func (r *ChatMessageRepository) ListSince(ctx context.Context, sessionID, sinceID uint) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND id > ?", sessionID, sinceID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list chat messages failed: %w", err)
	}
	return messages, nil
}

// MarkRead flags unread messages from the given senders with id up to upToID
// as read and returns how many rows changed.
func (r *ChatMessageRepository) MarkRead(ctx context.Context, sessionID, upToID uint, senders ...model.SenderType) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("session_id = ? AND id <= ? AND sender_type IN ? AND is_read = ?", sessionID, upToID, senders, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark chat messages read failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
