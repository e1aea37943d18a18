package middleware

import (
	"time"

	"github.com/clinilab/labtrail/internal/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware 记录每个端点的请求时延。
// 标签用路由模板而不是原始路径, 路径参数不会撑爆标签基数。
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.LatencyBucket.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
