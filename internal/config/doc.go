// Package config はゲートウェイの設定を読み込む。
//
// 値は優先度の高い順にコマンドラインフラグ、環境変数、.envファイル、既定値から取得する。
// プロバイダ固有の設定はYAMLファイル（PROVIDERS_FILE）で与える。
package config
