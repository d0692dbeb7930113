package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopadmin-livechat/internal/model"
)

// statusRankOrder sorts pending first, then active, then everything else.
const statusRankOrder = "CASE chat_sessions.status WHEN 'pending' THEN 0 WHEN 'active' THEN 1 ELSE 2 END"

type ChatSessionRepository struct {
	db *gorm.DB
}

func NewChatSessionRepository(db *gorm.DB) *ChatSessionRepository {
	return &ChatSessionRepository{db: db}
}

// Create inserts the session. An open session claims its customer's open slot,
// so a second open session for the same customer fails on the unique index.
func (r *ChatSessionRepository) Create(ctx context.Context, session *model.ChatSession) error {
	session.OpenUserID = nil
	if !session.Status.Terminal() {
		userID := session.UserID
		session.OpenUserID = &userID
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create chat session failed: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) GetByID(ctx context.Context, id uint) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat session failed: %w", err)
	}
	return &session, nil
}

// FindOpenByUserID returns the customer's newest pending or active session.
func (r *ChatSessionRepository) FindOpenByUserID(ctx context.Context, userID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []model.ChatStatus{model.ChatStatusPending, model.ChatStatusActive}).
		Order("id DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open chat session failed: %w", err)
	}
	return &session, nil
}

// ListWithUnread returns sessions in the given statuses ordered by status rank
// and most recent activity, each carrying its count of unread customer messages.
func (r *ChatSessionRepository) ListWithUnread(ctx context.Context, statuses []model.ChatStatus) ([]model.ChatSessionSummary, error) {
	unread := r.db.Model(&model.ChatMessage{}).
		Select("COUNT(*)").
		Where("chat_messages.session_id = chat_sessions.id AND chat_messages.sender_type = ? AND chat_messages.is_read = ?", model.SenderUser, false)

	var list []model.ChatSessionSummary
	err := r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Select("chat_sessions.*, (?) AS unread_count", unread).
		Where("chat_sessions.status IN ?", statuses).
		Order(statusRankOrder).
		Order("chat_sessions.last_activity DESC").
		Order("chat_sessions.id DESC").
		Scan(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list chat sessions failed: %w", err)
	}
	return list, nil
}

// Transition moves a session from one status to another in a single
// conditional update. It reports false when the row was not in the expected
// status (or does not exist) at the moment of the write.
func (r *ChatSessionRepository) Transition(ctx context.Context, id uint, from, to model.ChatStatus, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	if to.Terminal() {
		updates["open_user_id"] = nil
	}

	res := r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("transition chat session failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AppendMessage inserts message only while its session is in one of statuses
// and moves the session's last_activity to the message time. The session row
// stays locked until commit, so a Transition on it either lands before the
// check or waits for the insert.
func (r *ChatSessionRepository) AppendMessage(ctx context.Context, message *model.ChatMessage, statuses ...model.ChatStatus) (bool, error) {
	appended := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session model.ChatSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").
			Where("id = ? AND status IN ?", message.SessionID, statuses).
			Take(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&model.ChatSession{}).Where("id = ?", session.ID).Update("last_activity", message.CreatedAt).Error; err != nil {
			return err
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		appended = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("append chat message failed: %w", err)
	}
	return appended, nil
}

func (r *ChatSessionRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.ChatSession, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var list []model.ChatSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.ChatStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list expired pending sessions failed: %w", err)
	}
	return list, nil
}
