// Package dnsservice はゲートウェイから呼び出されるサービスファサードを実装する。
//
// ドメインとDNSレコードをデータベースに永続化し、プロバイダを通じて
// 実際のDNSへ反映する。すべての操作は接続プールから1本の接続を
// チェックアウトして実行し、変更は監査イベントとして記録する。
package dnsservice
