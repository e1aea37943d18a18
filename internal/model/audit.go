package model

import "unicode/utf8"

const (
	// DetailsMaxLen caps the response snapshot stored on an audit row.
	DetailsMaxLen    = 3000
	TruncationSuffix = " ...[truncated]"
	EmptyDetails     = "Empty"

	// NoNotificationMessage is stored when a handler response carried no
	// usable notificationMessage field.
	NoNotificationMessage = "No notification message found."
)

// AuditLog 代表一次成功变更请求的审计记录
type AuditLog struct {
	ID       int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	LabID    *int64 `json:"lab_id" gorm:"index:idx_audit_logs_lab,priority:1"` // 操作方诊所/实验室 ID
	UserID   *int64 `json:"user_id"`                                          // 操作人 (管理员) ID
	Role     string `json:"role"`
	BranchID *int64 `json:"branch_id"` // 仅当目标分支不同于操作方自身时设置

	Entity   string `json:"entity"`   // 资源/控制器名, 取自路由
	Category string `json:"category"` // Handler 通过请求上下文设置的分类标签
	Details  string `json:"details"`  // 截断后的响应快照

	// 通知内容
	Notifications           string `json:"notifications"`              // 面向操作方诊所日志的消息
	SentToUserID            *int64 `json:"sent_to_user_id"`            // 目标接收人 (如有)
	SentToUserNotifications string `json:"sent_to_user_notifications"` // 面向接收人的消息

	// 请求元信息
	IP        string `json:"ip"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Method    string `json:"method"`

	CreatedAt int64 `json:"created_at" gorm:"index:idx_audit_logs_lab,priority:2"` // Unix 秒
}

func (AuditLog) TableName() string { return "audit_logs" }

// ClampDetails enforces the storage cap on a response snapshot. Empty input is
// stored as a literal marker so the column is never blank. The cut never splits
// a multibyte rune: Postgres rejects text that is not valid UTF-8.
func ClampDetails(s string) string {
	if s == "" {
		return EmptyDetails
	}
	if len(s) <= DetailsMaxLen {
		return s
	}
	cut := DetailsMaxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationSuffix
}
