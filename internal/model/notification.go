package model

import "time"

// 通知优先级
const (
	PriorityLow    = 1
	PriorityNormal = 2
	PriorityHigh   = 3
)

// UserNotification 是面向终端用户的通知行, 每条关联一条审计记录。
// 同一 (AuditLogID, UserID) 至多存在一行。
type UserNotification struct {
	ID         int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID     int64 `json:"user_id" gorm:"index:idx_user_notifications_user"`
	AuditLogID int64 `json:"audit_log_id" gorm:"index:idx_user_notifications_audit"`

	IsRead      bool `json:"is_read"`
	IsDismissed bool `json:"is_dismissed"`
	Priority    int  `json:"priority"` // 默认 PriorityNormal

	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
}

func (UserNotification) TableName() string { return "user_notifications" }
