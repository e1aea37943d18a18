package service

import (
	"context"
	"time"

	"github.com/clinilab/labtrail/internal/model"
	"github.com/clinilab/labtrail/internal/pkg/logger"
	"github.com/clinilab/labtrail/internal/pkg/metrics"
)

type NotificationRepo interface {
	Insert(ctx context.Context, n *model.UserNotification) error
	Exists(ctx context.Context, auditLogID, userID int64) (bool, error)
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*model.UserNotification, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkDismissed(ctx context.Context, id, userID int64) error
}

type Pusher interface {
	Enqueue(notificationID, userID int64)
}

type NotificationService struct {
	repo   NotificationRepo
	pusher Pusher
}

func NewNotificationService(repo NotificationRepo, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Materialize 为一条已持久化的审计记录创建对应的用户通知, 至多一条。
// 审计历史优先于通知投递: 这里的任何失败只记日志, 不回滚审计记录。
func (s *NotificationService) Materialize(ctx context.Context, entry *model.AuditLog, priority int) {
	if entry == nil || entry.ID == 0 {
		return
	}
	if entry.SentToUserID == nil || *entry.SentToUserID <= 0 {
		// 大多数审计行只做记录, 没有终端接收人
		return
	}
	userID := *entry.SentToUserID

	// (AuditLogID, UserID) 去重: 防止同一逻辑事件被写两次
	exists, err := s.repo.Exists(ctx, entry.ID, userID)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		logger.Error("failed to check for existing user notification",
			"audit_log_id", entry.ID, "user_id", userID, "error", err.Error())
		return
	}
	if exists {
		metrics.NotificationsTotal.WithLabelValues("duplicate").Inc()
		logger.Warn("user notification already exists, skipping",
			"audit_log_id", entry.ID, "user_id", userID)
		return
	}

	if priority == 0 {
		priority = model.PriorityNormal
	}
	n := &model.UserNotification{
		UserID:     userID,
		AuditLogID: entry.ID,
		Priority:   priority,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		logger.Error("failed to create user notification",
			"audit_log_id", entry.ID, "user_id", userID, "error", err.Error())
		return
	}
	metrics.NotificationsTotal.WithLabelValues("created").Inc()

	if s.pusher != nil {
		s.pusher.Enqueue(n.ID, n.UserID)
	}
}

func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*model.UserNotification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkDismissed(ctx context.Context, id, userID int64) error {
	return s.repo.MarkDismissed(ctx, id, userID)
}
