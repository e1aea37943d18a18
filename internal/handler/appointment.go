package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/clinilab/labtrail/internal/middleware"
	"github.com/clinilab/labtrail/internal/model"
	"github.com/clinilab/labtrail/internal/pkg/apperrors"
	"github.com/clinilab/labtrail/internal/repository"
	"github.com/clinilab/labtrail/internal/service"
	"github.com/gin-gonic/gin"
)

// AppointmentHandler 是审计管道入站契约的参照实现: 变更成功后设置
// 审计上下文 (分类/接收人/优先级) 并返回标准响应信封。
type AppointmentHandler struct {
	svc *service.AppointmentService
}

func NewAppointmentHandler(svc *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type AppointmentCreateRequest struct {
	BranchLabID   int64     `json:"branch_lab_id"`
	PatientUserID int64     `json:"patient_user_id" binding:"required"`
	PatientName   string    `json:"patient_name" binding:"required"`
	ScheduledAt   time.Time `json:"scheduled_at" binding:"required"`
	Notes         string    `json:"notes"`
	Priority      int       `json:"priority"`
}

func (h *AppointmentHandler) Create(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if actor.LabID == nil {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing tenant claim", nil))
		return
	}

	var req AppointmentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	branchID := req.BranchLabID
	if branchID == 0 {
		branchID = *actor.LabID
	}
	appt := &model.Appointment{
		LabID:         *actor.LabID,
		BranchID:      branchID,
		PatientUserID: req.PatientUserID,
		PatientName:   req.PatientName,
		ScheduledAt:   req.ScheduledAt,
		Notes:         req.Notes,
	}
	if err := h.svc.Create(c.Request.Context(), appt); err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}

	// 审计契约: 分类标签 + 目标接收人 + 可选优先级
	middleware.SetCategory(c, "Appointments")
	middleware.SetRecipient(c, appt.PatientUserID)
	if req.Priority != 0 {
		middleware.SetPriority(c, req.Priority)
	}

	when := appt.ScheduledAt.Format("2006-01-02 15:04")
	c.JSON(http.StatusCreated, gin.H{
		"data": gin.H{
			"id":                      appt.ID,
			"branchLabId":             appt.BranchID,
			"scheduledAt":             appt.ScheduledAt,
			"notificationMessage":     fmt.Sprintf("Appointment created for %s on %s", appt.PatientName, when),
			"userNotificationMessage": fmt.Sprintf("Your appointment is booked for %s", when),
		},
	})
}

type AppointmentResendRequest struct {
	BranchLabIDs []int64 `json:"branch_lab_ids" binding:"required,min=1"`
}

// Resend 重发预约提醒, 响应携带平行数组供审计管道逐分支扇出。
func (h *AppointmentHandler) Resend(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if actor.LabID == nil {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing tenant claim", nil))
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperrors.NewInvalidRequest("invalid appointment id"))
		return
	}

	var req AppointmentResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	appt, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAppointmentNotFound) {
			c.Error(apperrors.NewNotFound("appointment not found"))
			return
		}
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	if appt.LabID != *actor.LabID {
		c.Error(apperrors.New(apperrors.ErrForbidden, "appointment belongs to another clinic", nil))
		return
	}

	middleware.SetCategory(c, "Appointments")

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"id":                  appt.ID,
			"notificationMessage": h.svc.ReminderMessages(appt, req.BranchLabIDs),
			"labBranchId":         req.BranchLabIDs,
		},
	})
}
