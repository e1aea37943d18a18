package middleware

import (
	"github.com/clinilab/labtrail/internal/pkg/apperrors"
	"github.com/clinilab/labtrail/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorHandler 把 Handler 通过 c.Error 上报的错误统一翻译成 JSON 响应。
// 失败的请求不进审计管道, 所以这里是错误路径唯一的落日志处。
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := apperrors.Wrap(c.Errors.Last().Err)

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
			"request_id", c.Writer.Header().Get("X-Request-ID"),
		}

		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "request failed", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		c.JSON(appErr.HTTPStatus, appErr)
	}
}
