package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clinilab/labtrail/internal/model"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

type PostgresNotificationRepo struct {
	db *gorm.DB
}

func NewPostgresNotificationRepo(db *gorm.DB) *PostgresNotificationRepo {
	repo := &PostgresNotificationRepo{db: db}
	_ = repo.ensureSchema()
	return repo
}

func (r *PostgresNotificationRepo) Insert(ctx context.Context, n *model.UserNotification) error {
	if n == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(n).Error
}

// Exists 是 (AuditLogID, UserID) 去重检查, 在插入前调用。
func (r *PostgresNotificationRepo) Exists(ctx context.Context, auditLogID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("audit_log_id = ? AND user_id = ?", auditLogID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresNotificationRepo) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*model.UserNotification, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := r.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("user_id = ? AND is_dismissed = false", userID)
	if unreadOnly {
		q = q.Where("is_read = false")
	}

	records := make([]*model.UserNotification, 0, limit)
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *PostgresNotificationRepo) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("user_id = ? AND is_read = false AND is_dismissed = false", userID).
		Count(&count).Error
	return count, err
}

// MarkRead 仅允许接收人本人更新自己的通知。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, id, userID int64) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresNotificationRepo) MarkDismissed(ctx context.Context, id, userID int64) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"is_dismissed": true, "dismissed_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresNotificationRepo) ensureSchema() error {
	return r.db.AutoMigrate(&model.UserNotification{})
}
