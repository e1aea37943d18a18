package model

import "time"

// Appointment 是演示审计管道入站契约的最小预约模型。
// 完整的就诊/处方/账单域模型由上游仓库维护, 不在本服务范围内。
type Appointment struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	LabID         int64     `json:"lab_id" gorm:"index:idx_appointments_lab"`
	BranchID      int64     `json:"branch_id"`
	PatientUserID int64     `json:"patient_user_id"`
	PatientName   string    `json:"patient_name"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Appointment) TableName() string { return "appointments" }
