package service

import (
	"context"
	"fmt"
	"time"

	"github.com/clinilab/labtrail/internal/model"
)

type AppointmentRepo interface {
	Create(ctx context.Context, appt *model.Appointment) error
	GetByID(ctx context.Context, id int64) (*model.Appointment, error)
}

// AppointmentService 是一个最小的业务切片, 用来演示变更类 Handler 与
// 审计管道之间的入站契约。完整的诊疗域逻辑在上游仓库里。
type AppointmentService struct {
	repo AppointmentRepo
}

func NewAppointmentService(repo AppointmentRepo) *AppointmentService {
	return &AppointmentService{repo: repo}
}

func (s *AppointmentService) Create(ctx context.Context, appt *model.Appointment) error {
	if appt.ScheduledAt.IsZero() {
		appt.ScheduledAt = time.Now().UTC()
	}
	appt.CreatedAt = time.Now().UTC()
	return s.repo.Create(ctx, appt)
}

func (s *AppointmentService) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// ReminderMessages 为重发请求逐分支生成提醒文案, 与分支 ID 平行。
func (s *AppointmentService) ReminderMessages(appt *model.Appointment, branchIDs []int64) []string {
	msgs := make([]string, 0, len(branchIDs))
	for range branchIDs {
		msgs = append(msgs, fmt.Sprintf("Reminder resent for appointment of %s on %s",
			appt.PatientName, appt.ScheduledAt.Format("2006-01-02 15:04")))
	}
	return msgs
}
