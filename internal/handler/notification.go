package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clinilab/labtrail/internal/middleware"
	"github.com/clinilab/labtrail/internal/pkg/apperrors"
	"github.com/clinilab/labtrail/internal/repository"
	"github.com/clinilab/labtrail/internal/service"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List 返回当前登录用户的通知收件箱, 默认不含已忽略的。
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.svc.List(c.Request.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	count, err := h.svc.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"count": count}})
}

// MarkRead 只允许接收人本人操作自己的通知。
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := notificationID(c)
	if !ok {
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), id, userID); err != nil {
		mapNotificationErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "isRead": true}})
}

func (h *NotificationHandler) MarkDismissed(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := notificationID(c)
	if !ok {
		return
	}
	if err := h.svc.MarkDismissed(c.Request.Context(), id, userID); err != nil {
		mapNotificationErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "isDismissed": true}})
}

func (h *NotificationHandler) currentUser(c *gin.Context) (int64, bool) {
	actor := middleware.ActorFromContext(c)
	if actor.UserID == nil {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing user claim", nil))
		return 0, false
	}
	return *actor.UserID, true
}

func notificationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperrors.NewInvalidRequest("invalid notification id"))
		return 0, false
	}
	return id, true
}

func mapNotificationErr(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotificationNotFound) {
		c.Error(apperrors.NewNotFound("notification not found"))
		return
	}
	c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
}
