// Package local はDNSサーバーへ反映せず、データベースにのみレコードを保持するプロバイダを提供する。
// 開発環境や、外部の仕組みでデータベースからゾーンを生成する構成で使用する。
package local

import (
	"context"

	"github.com/google/uuid"
	"github.com/nao1215/plexdns-gateway/pkg/provider"
)

// Name はプロバイダの登録名。
const Name = "Local"

// Provider は外部への反映を行わないプロバイダ。
type Provider struct{}

var _ provider.Provider = Provider{}

// New はFactoryとして登録できるコンストラクタ。設定値は使用しない。
func New(_ provider.Settings) (provider.Provider, error) {
	return Provider{}, nil
}

// CreateZone は何もしない。
func (Provider) CreateZone(context.Context, string) error { return nil }

// DeleteZone は何もしない。
func (Provider) DeleteZone(context.Context, string) error { return nil }

// AppendRecord はUUIDをプロバイダ側IDとして割り当てる。
func (Provider) AppendRecord(_ context.Context, _ string, rec provider.Record) (provider.Record, error) {
	rec.ID = uuid.New().String()
	return rec, nil
}

// UpdateRecord は何もしない。
func (Provider) UpdateRecord(context.Context, string, provider.Record, provider.Record) error {
	return nil
}

// DeleteRecord は何もしない。
func (Provider) DeleteRecord(context.Context, string, provider.Record) error { return nil }
