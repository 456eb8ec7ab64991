// Package provider はDNSプロバイダの共通インターフェースとレジストリを定義する。
//
// レコード名はゾーン相対で扱う（ゾーン "example.com" のレコード "www" は
// "www.example.com." を表す）。ゾーン頂点は "@" または空文字列で表す。
// すべての実装は並行呼び出しに対して安全でなければならない。
package provider

import (
	"context"
	"strings"
)

// Record はプロバイダに反映するDNSレコードを表す。
type Record struct {
	// ID はプロバイダ側のレコード識別子。追加時はプロバイダが設定する。
	ID string
	// Name はゾーン相対のレコード名。
	Name string
	// Type はレコードタイプ（A, AAAA, CNAME, MX, TXT など）。
	Type string
	// Value はレコードの値。
	Value string
	// TTL は生存時間（秒）。
	TTL int
}

// Provider はDNSプロバイダが実装するインターフェース。
type Provider interface {
	// CreateZone はゾーンをプロバイダに登録する。
	CreateZone(ctx context.Context, zone string) error
	// DeleteZone はゾーンをプロバイダから削除する。
	DeleteZone(ctx context.Context, zone string) error
	// AppendRecord はレコードを追加し、IDを設定したレコードを返す。
	AppendRecord(ctx context.Context, zone string, rec Record) (Record, error)
	// UpdateRecord は既存のレコードoldをrecの内容に置き換える。
	UpdateRecord(ctx context.Context, zone string, old, rec Record) error
	// DeleteRecord はレコードを削除する。
	DeleteRecord(ctx context.Context, zone string, rec Record) error
}

// Settings はプロバイダ固有の設定値。
type Settings map[string]string

// Setting キー。
const (
	// SettingAPIKey はゲートウェイから注入されるAPIキー。
	SettingAPIKey = "apikey"
)

// Merge はsに対してotherの値を上書きした新しいSettingsを返す。空の値は無視する。
func (s Settings) Merge(other Settings) Settings {
	merged := make(Settings, len(s)+len(other))
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range other {
		if v != "" {
			merged[k] = v
		}
	}
	return merged
}

// FQDN はゾーン相対のレコード名を末尾ドット付きの完全修飾名に変換する。
func FQDN(name, zone string) string {
	zone = strings.TrimSuffix(zone, ".")
	switch name {
	case "", "@":
		return zone + "."
	}
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "." + zone + "."
}
