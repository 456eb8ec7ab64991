// Package database はSQLデータベースへの接続プールを提供する。
//
// リクエストごとに1本の接続をチェックアウトし、すべての終了経路で返却する。
// SQLite、MySQL、PostgreSQLの方言差（プレースホルダと採番IDの取得方法）を吸収する。
package database
