package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/plexdns-gateway/pkg/middleware"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// bodyKey はgin.Contextに解析済みボディを格納するキー。
const bodyKey = "gateway.body"

// errInvalidPayload はボディがJSONオブジェクトとして解釈できない場合のエラー。
var errInvalidPayload = errors.New("Invalid JSON payload")

// requestBody は解析済みのJSONオブジェクト。
type requestBody struct {
	// fields はフィールドごとのデコード済みの値。数値はjson.Numberで保持する。
	fields map[string]any
	// raw はフィールドごとの元のJSONテキスト。
	raw map[string]json.RawMessage
}

// parseBody はリクエストボディをJSONオブジェクトとして解析する。空のボディは空のオブジェクトとして扱う。
// UTF-8として不正なバイト列は置換せずに拒否する。
func parseBody(data []byte) (*requestBody, error) {
	body := &requestBody{fields: map[string]any{}, raw: map[string]json.RawMessage{}}
	if len(data) == 0 {
		return body, nil
	}
	if !utf8.Valid(data) {
		return nil, errInvalidPayload
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, errInvalidPayload
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errInvalidPayload
	}

	for k, v := range raw {
		vd := json.NewDecoder(bytes.NewReader(v))
		vd.UseNumber()
		var val any
		if err := vd.Decode(&val); err != nil {
			return nil, errInvalidPayload
		}
		body.fields[k] = val
		body.raw[k] = v
	}
	return body, nil
}

// jsonBody はリクエストボディを解析してgin.Contextに格納するGinミドルウェアを返す。
// 解析に失敗した場合はルーティングより前に400を返す。
func jsonBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		var data []byte
		if c.Request.Body != nil {
			var err error
			data, err = io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
			if err != nil || len(data) > maxBodyBytes {
				middleware.AbortWithError(c, http.StatusBadRequest, errInvalidPayload.Error())
				return
			}
		}

		body, err := parseBody(data)
		if err != nil {
			middleware.AbortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		c.Set(bodyKey, body)
		c.Next()
	}
}

// bodyFrom はjsonBodyが格納した解析済みボディを取り出す。
func bodyFrom(c *gin.Context) *requestBody {
	if v, ok := c.Get(bodyKey); ok {
		if body, ok := v.(*requestBody); ok {
			return body
		}
	}
	return &requestBody{fields: map[string]any{}, raw: map[string]json.RawMessage{}}
}
