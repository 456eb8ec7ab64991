// DNS管理APIゲートウェイのエントリポイント。
// APIトークンで認証したリクエストを検証し、ドメインとDNSレコードの操作を
// データベースとDNSプロバイダに反映する。
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
