package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/fed_comment_server/internal/pkg/jwt"
	"github.com/qs3c/fed_comment_server/internal/pkg/response"
)

const (
	PersonIDKey = "personID"
)

// Auth JWT 认证中间件，只有本地用户能拿到令牌
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearer(c)
		if !ok {
			response.AuthError(c, "请提供 Bearer 令牌")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}

		c.Set(PersonIDKey, claims.PersonID)
		c.Next()
	}
}

// OptionalAuth 可选认证中间件，令牌无效时按匿名处理
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearer(c); ok {
			if claims, err := jwt.ParseToken(tokenString, jwtSecret); err == nil {
				c.Set(PersonIDKey, claims.PersonID)
			}
		}
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// GetPersonID 从上下文获取本地用户 ID
func GetPersonID(c *gin.Context) (int64, bool) {
	personID, exists := c.Get(PersonIDKey)
	if !exists {
		return 0, false
	}
	id, ok := personID.(int64)
	return id, ok
}
