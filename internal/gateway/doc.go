// Package gateway はDNS管理APIのHTTPゲートウェイを提供する。
//
// APIトークンによる認証、JSONボディの解析、メソッドとパスによる完全一致の
// ルーティング、操作ごとの宣言的な入力検証を行い、サービスファサードを
// 呼び出した結果を単一のJSONオブジェクトとして返す。
// プロバイダ名とAPIキーはクライアントから受け取らず、常にゲートウェイの設定値で上書きする。
package gateway
