package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiters 按诊所维护令牌桶, 懒加载。
type RateLimiters struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	qps      rate.Limit
	burst    int
}

func NewRateLimiters(qps float64, burst int) *RateLimiters {
	if qps <= 0 {
		qps = 25
	}
	if burst <= 0 {
		burst = 50
	}
	return &RateLimiters{
		limiters: make(map[int64]*rate.Limiter),
		qps:      rate.Limit(qps),
		burst:    burst,
	}
}

func (r *RateLimiters) Get(labID int64) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.limiters[labID]
	if !ok {
		limiter = rate.NewLimiter(r.qps, r.burst)
		r.limiters[labID] = limiter
	}
	return limiter
}

func RateLimitMiddleware(limiters *RateLimiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 必须在 AuthMiddleware 之后使用
		actor := ActorFromContext(c)
		if actor.LabID == nil {
			// 没有租户身份时由 Auth 拦截, 这里放行
			c.Next()
			return
		}

		if !limiters.Get(*actor.LabID).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
