package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/clinilab/labtrail/internal/pkg/logger"
	"github.com/clinilab/labtrail/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ContextAuditKey = "audit_context"

// AuditContext 是 Handler 与审计中间件之间的窄契约: Handler 在返回前
// 通过下面的 Set 助手声明分类标签、目标接收人与优先级, 中间件在响应
// 写出后读取。字段全部可选。
type AuditContext struct {
	Category        string
	RecipientUserID *int64
	Priority        int
}

func auditContextFrom(c *gin.Context) *AuditContext {
	if val, exists := c.Get(ContextAuditKey); exists {
		if ac, ok := val.(*AuditContext); ok {
			return ac
		}
	}
	ac := &AuditContext{}
	c.Set(ContextAuditKey, ac)
	return ac
}

// SetCategory 设置本次请求审计记录的分类标签。
func SetCategory(c *gin.Context, category string) {
	auditContextFrom(c).Category = category
}

// SetRecipient 声明本次变更的目标接收人, 审计记录落库后会为其物化通知。
func SetRecipient(c *gin.Context, userID int64) {
	auditContextFrom(c).RecipientUserID = &userID
}

// SetPriority 覆盖通知优先级, 0 表示沿用响应体或默认值。
func SetPriority(c *gin.Context, priority int) {
	auditContextFrom(c).Priority = priority
}

// bodyLogWriter 包装 ResponseWriter 以捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// AuditMiddleware 包裹每个路由: 只审计非 GET 且响应为 2xx 的请求。
// 审计管道自身的任何失败都被吞掉, 客户端响应不受影响。
func AuditMiddleware(auditSvc *service.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.New().String()
		c.Header("X-Request-ID", reqID)

		// 只读操作不审计
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		// 包装 ResponseWriter 以捕获响应
		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		// === 执行业务逻辑 ===
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		// 错误路径 (ErrorHandler 在本中间件之后才写响应体) 和空响应体
		// 都没有可审计的信封
		if len(c.Errors) > 0 || blw.body.Len() == 0 {
			return
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("audit: logging pipeline panicked",
						"path", c.Request.URL.Path, "panic", r)
				}
			}()

			actor := ActorFromContext(c)
			ac := auditContextFrom(c)
			meta := service.RequestMeta{
				Entity:   routeEntity(c.FullPath(), c.Request.URL.Path),
				Category: ac.Category,
				IP:       c.ClientIP(),
				URL:      c.Request.URL.Path,
				Method:   c.Request.Method,
			}
			auditSvc.LogResponse(c.Request.Context(), actor, meta, blw.body.Bytes(), ac.RecipientUserID, ac.Priority)
		}()
	}
}

// routeEntity 从路由模式推导资源名: 取最后一个非参数段。
// 例如 /api/clinic/appointments/:id/resend → "resend",
// /api/clinic/appointments → "appointments"。
func routeEntity(fullPath, rawPath string) string {
	path := fullPath
	if path == "" {
		path = rawPath
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" || strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			continue
		}
		return seg
	}
	return ""
}
