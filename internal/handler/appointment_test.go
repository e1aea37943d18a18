package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clinilab/labtrail/internal/config"
	"github.com/clinilab/labtrail/internal/middleware"
	"github.com/clinilab/labtrail/internal/model"
	"github.com/clinilab/labtrail/internal/repository"
	"github.com/clinilab/labtrail/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAppointmentRepo struct {
	appointments map[int64]*model.Appointment
	nextID       int64
}

func newStubAppointmentRepo() *stubAppointmentRepo {
	return &stubAppointmentRepo{appointments: make(map[int64]*model.Appointment)}
}

func (r *stubAppointmentRepo) Create(_ context.Context, appt *model.Appointment) error {
	r.nextID++
	appt.ID = r.nextID
	r.appointments[appt.ID] = appt
	return nil
}

func (r *stubAppointmentRepo) GetByID(_ context.Context, id int64) (*model.Appointment, error) {
	appt, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrAppointmentNotFound
	}
	return appt, nil
}

type stubAuditRepo struct {
	records []*model.AuditLog
	nextID  int64
}

func (r *stubAuditRepo) Insert(_ context.Context, entry *model.AuditLog) error {
	r.nextID++
	entry.ID = r.nextID
	r.records = append(r.records, entry)
	return nil
}

func (r *stubAuditRepo) InsertBatch(ctx context.Context, entries []*model.AuditLog) error {
	for _, entry := range entries {
		_ = r.Insert(ctx, entry)
	}
	return nil
}

func (r *stubAuditRepo) List(_ context.Context, _ *int64, _ int, _, _ *time.Time) ([]*model.AuditLog, error) {
	return r.records, nil
}

func (r *stubAuditRepo) Cleanup(_ context.Context, _ time.Duration) error { return nil }

type stubNotificationRepo struct {
	notifications []*model.UserNotification
	nextID        int64
}

func (r *stubNotificationRepo) Insert(_ context.Context, n *model.UserNotification) error {
	r.nextID++
	n.ID = r.nextID
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *stubNotificationRepo) Exists(_ context.Context, auditLogID, userID int64) (bool, error) {
	for _, n := range r.notifications {
		if n.AuditLogID == auditLogID && n.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubNotificationRepo) ListByUser(_ context.Context, _ int64, _ bool, _, _ int) ([]*model.UserNotification, error) {
	return r.notifications, nil
}

func (r *stubNotificationRepo) CountUnread(_ context.Context, _ int64) (int64, error) { return 0, nil }
func (r *stubNotificationRepo) MarkRead(_ context.Context, _, _ int64) error          { return nil }
func (r *stubNotificationRepo) MarkDismissed(_ context.Context, _, _ int64) error     { return nil }

type pipelineFixture struct {
	router    *gin.Engine
	audit     *stubAuditRepo
	notif     *stubNotificationRepo
	appts     *stubAppointmentRepo
	authToken string
}

// newPipelineFixture 搭起完整链路: Auth -> Audit 中间件 -> 预约 Handler,
// 服务层用内存仓库替身。
func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "pipeline-test-secret"

	auditRepo := &stubAuditRepo{}
	notifRepo := &stubNotificationRepo{}
	apptRepo := newStubAppointmentRepo()

	auditSvc := service.NewAuditService(auditRepo, nil, service.NewNotificationService(notifRepo, nil))
	apptHandler := NewAppointmentHandler(service.NewAppointmentService(apptRepo))

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.AuditMiddleware(auditSvc))
	api := r.Group("/api", middleware.AuthMiddleware(cfg))
	api.POST("/clinic/appointments", apptHandler.Create)
	api.POST("/clinic/appointments/:id/resend", apptHandler.Resend)

	token, err := middleware.GenerateToken(cfg.Auth.JWTSecret, &model.ActorClaims{
		LabID:      7,
		LabAdminID: 12,
		Role:       "Admin",
		SessionID:  "sess-1",
	})
	require.NoError(t, err)

	return &pipelineFixture{router: r, audit: auditRepo, notif: notifRepo, appts: apptRepo, authToken: token}
}

func (f *pipelineFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.authToken)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAppointmentCreateFlowsThroughAuditPipeline(t *testing.T) {
	f := newPipelineFixture(t)

	w := f.do(http.MethodPost, "/api/clinic/appointments", `{
		"branch_lab_id": 33,
		"patient_user_id": 99,
		"patient_name": "Jane Roe",
		"scheduled_at": "2026-09-10T09:30:00Z",
		"priority": 3
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, f.audit.records, 1)
	entry := f.audit.records[0]
	assert.Equal(t, "Appointments", entry.Category)
	assert.Equal(t, "appointments", entry.Entity)
	require.NotNil(t, entry.LabID)
	assert.Equal(t, int64(7), *entry.LabID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, int64(12), *entry.UserID)
	require.NotNil(t, entry.BranchID)
	assert.Equal(t, int64(33), *entry.BranchID)
	require.NotNil(t, entry.SentToUserID)
	assert.Equal(t, int64(99), *entry.SentToUserID)
	assert.Contains(t, entry.Notifications, "Appointment created for Jane Roe")
	assert.Contains(t, entry.SentToUserNotifications, "Your appointment is booked")
	assert.Equal(t, http.MethodPost, entry.Method)

	require.Len(t, f.notif.notifications, 1)
	n := f.notif.notifications[0]
	assert.Equal(t, int64(99), n.UserID)
	assert.Equal(t, entry.ID, n.AuditLogID)
	assert.Equal(t, model.PriorityHigh, n.Priority)
}

func TestAppointmentCreateOwnBranchOmitsBranchID(t *testing.T) {
	f := newPipelineFixture(t)

	// branch_lab_id 缺省时落到操作方自身的 lab, 审计记录不再冗余记分支
	w := f.do(http.MethodPost, "/api/clinic/appointments", `{
		"patient_user_id": 55,
		"patient_name": "John Doe",
		"scheduled_at": "2026-09-11T14:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, f.audit.records, 1)
	assert.Nil(t, f.audit.records[0].BranchID)
	require.Len(t, f.notif.notifications, 1)
	assert.Equal(t, model.PriorityNormal, f.notif.notifications[0].Priority)
}

func TestAppointmentResendFansOutPerBranch(t *testing.T) {
	f := newPipelineFixture(t)

	w := f.do(http.MethodPost, "/api/clinic/appointments", `{
		"patient_user_id": 99,
		"patient_name": "Jane Roe",
		"scheduled_at": "2026-09-10T09:30:00Z"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	baseRecords := len(f.audit.records)
	baseNotifs := len(f.notif.notifications)

	w = f.do(http.MethodPost, fmt.Sprintf("/api/clinic/appointments/%d/resend", created.Data.ID), `{"branch_lab_ids": [7, 33, 44]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 主记录 1 条 + 逐分支扇出 3 条
	require.Len(t, f.audit.records, baseRecords+4)
	fanOut := f.audit.records[baseRecords+1:]
	for i, entry := range fanOut {
		assert.Equal(t, fmt.Sprintf("Resend Notification %d", i+1), entry.Details)
		assert.Contains(t, entry.Notifications, "Reminder resent")
	}
	// 分支 7 与操作方自身相同, 不记分支; 33 和 44 保留
	assert.Nil(t, fanOut[0].BranchID)
	require.NotNil(t, fanOut[1].BranchID)
	assert.Equal(t, int64(33), *fanOut[1].BranchID)
	require.NotNil(t, fanOut[2].BranchID)
	assert.Equal(t, int64(44), *fanOut[2].BranchID)

	// 重发扇出只做日志, 不新增用户通知
	assert.Len(t, f.notif.notifications, baseNotifs)
}

func TestAppointmentResendRejectsForeignTenant(t *testing.T) {
	f := newPipelineFixture(t)

	f.appts.appointments[1] = &model.Appointment{
		ID: 1, LabID: 999, BranchID: 999,
		PatientUserID: 5, PatientName: "Other", ScheduledAt: time.Now(),
	}
	f.appts.nextID = 1

	w := f.do(http.MethodPost, "/api/clinic/appointments/1/resend", `{"branch_lab_ids": [7]}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 失败响应不进审计管道
	assert.Empty(t, f.audit.records)
}
