// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// APIトークンによる認証、パニックリカバリ、CORSヘッダーの付与と、
// それらが共通で使用するJSONエンベロープの書き出しを含む。
package middleware
