package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopadmin-livechat/internal/model"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// CreateIfAbsent inserts the entry unless one with the same event id exists.
// It reports whether a row was written.
func (r *AuditLogRepository) CreateIfAbsent(ctx context.Context, entry *model.AuditLog) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("create audit log failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *AuditLogRepository) ListBySessionID(ctx context.Context, sessionID uint) ([]model.AuditLog, error) {
	var list []model.AuditLog
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("occurred_at ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list audit logs failed: %w", err)
	}
	return list, nil
}
