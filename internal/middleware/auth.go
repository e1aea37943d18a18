package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/clinilab/labtrail/internal/config"
	"github.com/clinilab/labtrail/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ContextClaimsKey = "actor_claims"

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
			c.Abort()
			return
		}

		claims := &model.ActorClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(cfg.Auth.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		// 将操作人信息存入上下文
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// ActorFromContext 读取当前请求的操作人视图。claims 缺失或类型不符时
// 降级为空 Actor, 绝不让身份提取失败影响请求。
func ActorFromContext(c *gin.Context) model.Actor {
	if val, exists := c.Get(ContextClaimsKey); exists {
		if claims, ok := val.(*model.ActorClaims); ok {
			return claims.ToActor()
		}
	}
	return model.Actor{}
}

// GenerateToken 用平台密钥签发 HS256 令牌, 供运维工具与测试使用。
func GenerateToken(secret string, claims *model.ActorClaims) (string, error) {
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(24 * time.Hour))
	}
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(time.Now())
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
