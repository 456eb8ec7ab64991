package middleware

import (
	"github.com/gin-gonic/gin"
)

// CORS は指定されたオリジンからのクロスオリジンリクエストにCORSヘッダーを付与するGinミドルウェアを返す。
// プリフライトを含むすべてのリクエストはそのまま後続のミドルウェアに渡されるため、
// OPTIONSリクエストも認証を通過しなければならない。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := originsSet[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "POST, PUT, DELETE")
			c.Header("Access-Control-Allow-Headers", "Authorization, X-API-Token, Content-Type")
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}

		c.Next()
	}
}
