package gateway

// statusSuccess は成功レスポンスのstatusフィールドの値。
const statusSuccess = "success"

// messageResponse はメッセージのみを返す成功レスポンス。
type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// domainResponse はドメイン作成の成功レスポンス。
type domainResponse struct {
	Status string `json:"status"`
	Domain any    `json:"domain"`
}

// recordResponse はレコード追加の成功レスポンス。
type recordResponse struct {
	Status   string `json:"status"`
	RecordID any    `json:"record_id"`
}

func success(message string) messageResponse {
	return messageResponse{Status: statusSuccess, Message: message}
}

// errorResponse はエラーエンベロープ。
type errorResponse struct {
	Error string `json:"error"`
}
