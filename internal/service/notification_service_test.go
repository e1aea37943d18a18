package service

import (
	"context"
	"testing"

	"github.com/clinilab/labtrail/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditEntry(id int64, recipient *int64) *model.AuditLog {
	return &model.AuditLog{ID: id, SentToUserID: recipient}
}

func TestMaterializeCreatesNotificationOnce(t *testing.T) {
	repo := &fakeNotificationRepo{}
	pusher := &fakePusher{}
	svc := NewNotificationService(repo, pusher)

	recipient := int64(42)
	entry := auditEntry(10, &recipient)

	svc.Materialize(context.Background(), entry, 0)
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, int64(42), repo.notifications[0].UserID)
	assert.Equal(t, int64(10), repo.notifications[0].AuditLogID)
	assert.Equal(t, model.PriorityNormal, repo.notifications[0].Priority)
	assert.Len(t, pusher.enqueued, 1)

	// 幂等: 第二次调用是 no-op
	svc.Materialize(context.Background(), entry, 0)
	assert.Len(t, repo.notifications, 1)
	assert.Len(t, pusher.enqueued, 1)
}

func TestMaterializeSkipsWithoutRecipient(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, &fakePusher{})

	svc.Materialize(context.Background(), auditEntry(1, nil), 0)

	zero := int64(0)
	svc.Materialize(context.Background(), auditEntry(2, &zero), 0)

	negative := int64(-3)
	svc.Materialize(context.Background(), auditEntry(3, &negative), 0)

	assert.Empty(t, repo.notifications)
}

func TestMaterializeSkipsUnpersistedRecord(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, &fakePusher{})

	recipient := int64(5)
	svc.Materialize(context.Background(), auditEntry(0, &recipient), 0)
	assert.Empty(t, repo.notifications)
}

func TestMaterializeKeepsAuditOnInsertFailure(t *testing.T) {
	repo := &fakeNotificationRepo{failInsert: true}
	pusher := &fakePusher{}
	svc := NewNotificationService(repo, pusher)

	recipient := int64(5)
	// 通知写入失败只记日志: 不 panic, 不入推送队列
	svc.Materialize(context.Background(), auditEntry(9, &recipient), 0)
	assert.Empty(t, repo.notifications)
	assert.Empty(t, pusher.enqueued)
}

func TestMaterializePriority(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, nil)

	recipient := int64(5)
	svc.Materialize(context.Background(), auditEntry(1, &recipient), model.PriorityHigh)
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, model.PriorityHigh, repo.notifications[0].Priority)
}

func TestEffectivePriority(t *testing.T) {
	assert.Equal(t, model.PriorityNormal, effectivePriority(0, 0))
	assert.Equal(t, model.PriorityHigh, effectivePriority(0, model.PriorityHigh))
	// Handler 显式指定的优先级覆盖响应体字段
	assert.Equal(t, model.PriorityLow, effectivePriority(model.PriorityLow, model.PriorityHigh))
}
