package middleware

import (
	"crypto/subtle"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

const (
	// headerAuthorization はBearerトークンを運ぶヘッダー。
	headerAuthorization = "Authorization"
	// headerAPIToken はトークンをそのまま運ぶ代替ヘッダー。
	headerAPIToken = "X-API-Token"
)

// bearerPattern はAuthorizationヘッダーからトークンを取り出す正規表現。
var bearerPattern = regexp.MustCompile(`(?i)Bearer\s+(\S+)`)

// ExtractToken はリクエストヘッダーから候補トークンを取り出す。
//
// Authorizationヘッダーが存在する場合はBearer形式のトークンのみを採用し、
// 形式が一致しなければ空文字列を返す（X-API-Tokenにはフォールバックしない）。
// Authorizationヘッダーが無い場合はX-API-Tokenの値をそのまま返す。
func ExtractToken(h http.Header) string {
	if values := h.Values(headerAuthorization); len(values) > 0 {
		m := bearerPattern.FindStringSubmatch(values[0])
		if m == nil {
			return ""
		}
		return m[1]
	}
	return h.Get(headerAPIToken)
}

// ValidToken は候補トークンが設定済みのトークンと完全一致するかを返す。
// 空のトークンは常に不一致として扱う。
func ValidToken(candidate, secret string) bool {
	if candidate == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1
}

// APIToken は静的なAPIトークンを検証するGinミドルウェアを返す。
// 検証に失敗した場合は401を返し、ルーティングやボディの解析を一切行わない。
func APIToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ValidToken(ExtractToken(c.Request.Header), secret) {
			AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}
