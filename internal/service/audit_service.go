package service

import (
	"context"
	"fmt"
	"time"

	"github.com/clinilab/labtrail/internal/model"
	"github.com/clinilab/labtrail/internal/pkg/logger"
	"github.com/clinilab/labtrail/internal/pkg/metrics"
)

type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
	InsertBatch(ctx context.Context, entries []*model.AuditLog) error
	List(ctx context.Context, labID *int64, limit int, from, to *time.Time) ([]*model.AuditLog, error)
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// AuditMirror 是可选的近期记录镜像 (Redis), 主库不可用时的降级读路径。
type AuditMirror interface {
	Push(ctx context.Context, entry *model.AuditLog) error
	Recent(ctx context.Context, labID *int64, limit int) ([]*model.AuditLog, error)
}

// RequestMeta 携带一次请求里与身份无关的审计上下文。
type RequestMeta struct {
	Entity   string // 路由对应的资源名
	Category string // Handler 设置的分类标签
	IP       string
	URL      string
	Method   string
}

type AuditService struct {
	repo          AuditRepo
	mirror        AuditMirror
	notifications *NotificationService
}

func NewAuditService(repo AuditRepo, mirror AuditMirror, notifications *NotificationService) *AuditService {
	return &AuditService{
		repo:          repo,
		mirror:        mirror,
		notifications: notifications,
	}
}

// LogResponse 把一次成功的变更响应落成审计记录与用户通知。
// 整条管道的失败只记日志, 永远不影响已经发给客户端的响应。
func (s *AuditService) LogResponse(ctx context.Context, actor model.Actor, meta RequestMeta, body []byte, recipient *int64, priority int) {
	env, err := model.DecodeEnvelope(body)
	if err != nil {
		logger.Error("audit: failed to decode response envelope",
			"url", meta.URL, "method", meta.Method, "error", err.Error())
		return
	}

	switch {
	case env.Object != nil:
		s.logObject(ctx, actor, meta, env.Object, body, recipient, priority)
	case len(env.Objects) > 0:
		s.logArray(ctx, actor, meta, env.Objects, recipient, priority)
	}
}

// logObject 处理 data 为单对象的响应: 先插主记录拿到生成 ID, 再物化通知,
// 最后检查同一对象上的重发扇出数组 (与主记录叠加, 不互斥)。
func (s *AuditService) logObject(ctx context.Context, actor model.Actor, meta RequestMeta, obj *model.EnvelopeObject, body []byte, recipient *int64, priority int) {
	entry := s.buildRecord(actor, meta, obj, model.ClampDetails(string(body)), recipient)
	if err := s.repo.Insert(ctx, entry); err != nil {
		logger.Error("audit: failed to persist audit record",
			"url", meta.URL, "error", err.Error())
		return
	}
	metrics.AuditRecordsTotal.WithLabelValues("object").Inc()
	s.mirrorPush(ctx, entry)

	s.notifications.Materialize(ctx, entry, effectivePriority(priority, obj.Priority))

	if obj.HasResend() {
		s.logResendFanOut(ctx, actor, meta, obj)
	}
}

// logArray 处理 data 为数组的响应: 每个对象元素一条记录, 批量落库后逐条物化。
func (s *AuditService) logArray(ctx context.Context, actor model.Actor, meta RequestMeta, objects []model.EnvelopeObject, recipient *int64, priority int) {
	entries := make([]*model.AuditLog, 0, len(objects))
	for i := range objects {
		obj := &objects[i]
		entries = append(entries, s.buildRecord(actor, meta, obj, model.ClampDetails(string(obj.Raw)), recipient))
	}
	if err := s.repo.InsertBatch(ctx, entries); err != nil {
		logger.Error("audit: failed to persist audit batch",
			"url", meta.URL, "count", len(entries), "error", err.Error())
		return
	}
	metrics.AuditRecordsTotal.WithLabelValues("array").Add(float64(len(entries)))

	for i, entry := range entries {
		s.mirrorPush(ctx, entry)
		s.notifications.Materialize(ctx, entry, effectivePriority(priority, objects[i].Priority))
	}
}

// logResendFanOut 把平行数组展开成逐元素的独立记录。这些记录只做日志,
// 不生成用户通知。
func (s *AuditService) logResendFanOut(ctx context.Context, actor model.Actor, meta RequestMeta, obj *model.EnvelopeObject) {
	n := len(obj.ResendMessages)
	if len(obj.ResendBranches) < n {
		n = len(obj.ResendBranches)
	}

	entries := make([]*model.AuditLog, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, &model.AuditLog{
			LabID:                   actor.LabID,
			UserID:                  actor.UserID,
			Role:                    actor.Role,
			SessionID:               actor.SessionID,
			BranchID:                branchFor(actor, obj.ResendBranches[i]),
			Entity:                  meta.Entity,
			Category:                meta.Category,
			Details:                 fmt.Sprintf("Resend Notification %d", i+1),
			Notifications:           obj.ResendMessages[i],
			SentToUserNotifications: obj.ResendMessages[i],
			IP:                      meta.IP,
			URL:                     meta.URL,
			Method:                  meta.Method,
			CreatedAt:               time.Now().Unix(),
		})
	}
	if err := s.repo.InsertBatch(ctx, entries); err != nil {
		logger.Error("audit: failed to persist resend fan-out batch",
			"url", meta.URL, "count", len(entries), "error", err.Error())
		return
	}
	metrics.AuditRecordsTotal.WithLabelValues("resend").Add(float64(len(entries)))
	for _, entry := range entries {
		s.mirrorPush(ctx, entry)
	}
}

func (s *AuditService) buildRecord(actor model.Actor, meta RequestMeta, obj *model.EnvelopeObject, details string, recipient *int64) *model.AuditLog {
	return &model.AuditLog{
		LabID:                   actor.LabID,
		UserID:                  actor.UserID,
		Role:                    actor.Role,
		SessionID:               actor.SessionID,
		BranchID:                branchFor(actor, obj.BranchID),
		Entity:                  meta.Entity,
		Category:                meta.Category,
		Details:                 details,
		Notifications:           obj.Message,
		SentToUserID:            recipient,
		SentToUserNotifications: obj.UserMessage,
		IP:                      meta.IP,
		URL:                     meta.URL,
		Method:                  meta.Method,
		CreatedAt:               time.Now().Unix(),
	}
}

func (s *AuditService) mirrorPush(ctx context.Context, entry *model.AuditLog) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Push(ctx, entry); err != nil {
		logger.Debug("audit: failed to mirror record to redis", "error", err.Error())
	}
}

// List 查询审计记录, 主库出错时降级到 Redis 镜像。
func (s *AuditService) List(ctx context.Context, labID *int64, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, labID, limit, from, to)
		if err == nil {
			return records, nil
		}
		logger.Warn("audit: primary list query failed, falling back to mirror", "error", err.Error())
	}
	if s.mirror == nil {
		return nil, nil
	}
	return s.mirror.Recent(ctx, labID, limit)
}

// StartRetentionLoop 周期性清理过期审计记录, 返回停止函数。
func (s *AuditService) StartRetentionLoop(interval, retention time.Duration) func() {
	stop := make(chan struct{})
	if interval <= 0 || retention <= 0 {
		return func() {}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.repo.Cleanup(context.Background(), retention); err != nil {
					logger.Error("audit: retention cleanup failed", "error", err.Error())
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}

// branchFor 只在目标分支不同于操作方自身时记录分支 ID, 避免冗余噪音。
func branchFor(actor model.Actor, branch *int64) *int64 {
	if branch == nil {
		return nil
	}
	if actor.LabID != nil && *actor.LabID == *branch {
		return nil
	}
	b := *branch
	return &b
}

// effectivePriority: Handler 在请求上下文里显式指定的优先级优先于响应体字段。
func effectivePriority(contextPriority, envelopePriority int) int {
	if contextPriority != 0 {
		return contextPriority
	}
	if envelopePriority != 0 {
		return envelopePriority
	}
	return model.PriorityNormal
}
