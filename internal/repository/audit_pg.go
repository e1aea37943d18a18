package repository

import (
	"context"
	"time"

	"github.com/clinilab/labtrail/internal/model"
	"gorm.io/gorm"
)

// PostgresAuditRepo 写审计行时始终走自己的 gorm 会话, 不参与 Handler 打开的事务;
// 审计记录一经写入即持久, 与业务事务的结局无关。
type PostgresAuditRepo struct {
	db *gorm.DB
}

func NewPostgresAuditRepo(db *gorm.DB) *PostgresAuditRepo {
	repo := &PostgresAuditRepo{db: db}
	_ = repo.ensureSchema()
	return repo
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// InsertBatch 一次写入多条记录 (data 数组与重发扇出共用)。
func (r *PostgresAuditRepo) InsertBatch(ctx context.Context, entries []*model.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

func (r *PostgresAuditRepo) List(ctx context.Context, labID *int64, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Model(&model.AuditLog{})
	if labID != nil {
		q = q.Where("lab_id = ?", *labID)
	}
	if from != nil {
		q = q.Where("created_at >= ?", from.Unix())
	}
	if to != nil {
		q = q.Where("created_at <= ?", to.Unix())
	}

	records := make([]*model.AuditLog, 0, limit)
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan).Unix()
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.AuditLog{}).Error
}

func (r *PostgresAuditRepo) ensureSchema() error {
	return r.db.AutoMigrate(&model.AuditLog{})
}
