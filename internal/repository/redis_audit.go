package repository

import (
	"context"
	"encoding/json"

	"github.com/clinilab/labtrail/internal/model"
)

// RedisAuditMirror 在 Redis 里维护一份近期审计记录的镜像 (定长列表),
// 供 "最近动态" 读路径使用; Postgres 始终是事实来源。
type RedisAuditMirror struct {
	client  *RedisClient
	listKey string
	listMax int
}

func NewRedisAuditMirror(client *RedisClient, listKey string, listMax int) *RedisAuditMirror {
	if listKey == "" {
		listKey = "audit_logs"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisAuditMirror{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisAuditMirror) Push(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := r.client.Client.LPush(ctx, r.listKey, string(payload)).Err(); err != nil {
		return err
	}
	return r.client.Client.LTrim(ctx, r.listKey, 0, int64(r.listMax-1)).Err()
}

// Recent 返回指定诊所最近的审计记录, 最多 limit 条。
func (r *RedisAuditMirror) Recent(ctx context.Context, labID *int64, limit int) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}

	raw, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*model.AuditLog, 0, limit)
	for _, item := range raw {
		var entry model.AuditLog
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		if labID != nil && (entry.LabID == nil || *entry.LabID != *labID) {
			continue
		}
		records = append(records, &entry)
		if len(records) >= limit {
			break
		}
	}
	return records, nil
}
