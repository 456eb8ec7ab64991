package middleware

import (
	"encoding/json"
	"log"

	"github.com/gin-gonic/gin"
)

// contentTypeJSON はすべてのレスポンスに付与するContent-Type。
// Ginの c.JSON は charset を付与するため使用しない。
const contentTypeJSON = "application/json"

// errorBody はエラーエンベロープ {"error": "..."} を表す。
type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON はvをJSONにシリアライズしてステータスコードとともに書き出す。
// 末尾に改行は付与しない。
func WriteJSON(c *gin.Context, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("レスポンスのシリアライズに失敗: %v", err)
		status = 500
		body = []byte(`{"error":"Internal server error"}`)
	}
	c.Data(status, contentTypeJSON, body)
}

// AbortWithError はエラーエンベロープを書き出し、後続のハンドラを中断する。
func AbortWithError(c *gin.Context, status int, message string) {
	WriteJSON(c, status, errorBody{Error: message})
	c.Abort()
}
