package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDKey 是认证后写入 gin.Context 的用户 ID 键。
const UserIDKey = "userID"

// IdentityResolver 将 bearer token 解析为用户 ID，由 auth.AuthService 实现。
type IdentityResolver interface {
	ResolveIdentity(token string) (uint, error)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
}

// AuthMiddleware 校验 Authorization: Bearer <token> 并将 userID 注入上下文。
func AuthMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		userID, err := resolver.ResolveIdentity(parts[1])
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}
