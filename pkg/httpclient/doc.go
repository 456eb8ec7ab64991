// Package httpclient はDNSプロバイダのHTTP APIを呼び出すクライアントを提供する。
//
// フォームエンコードされたPOSTを送信し、JSONレスポンスをデシリアライズする
// 共通処理をまとめる。タイムアウトはクライアント単位で設定する。
package httpclient
