// Package event はドメインとDNSレコードの変更を記録する監査イベントを定義する。
package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeDomain はドメイン（ゾーン）エンティティを表す。
	AggregateTypeDomain AggregateType = "Domain"
	// AggregateTypeRecord はDNSレコードエンティティを表す。
	AggregateTypeRecord AggregateType = "Record"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeDomainCreated はドメインが作成されたことを表す。
	TypeDomainCreated Type = "DomainCreated"
	// TypeDomainDeleted はドメインが削除されたことを表す。
	TypeDomainDeleted Type = "DomainDeleted"

	// TypeRecordAdded はDNSレコードが追加されたことを表す。
	TypeRecordAdded Type = "RecordAdded"
	// TypeRecordUpdated はDNSレコードが更新されたことを表す。
	TypeRecordUpdated Type = "RecordUpdated"
	// TypeRecordDeleted はDNSレコードが削除されたことを表す。
	TypeRecordDeleted Type = "RecordDeleted"
)

// Event は変更履歴として永続化される不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子（例: "domain-1", "record-42"）。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// DomainData はドメイン系イベントのデータ。
type DomainData struct {
	// ClientID はドメインを所有するクライアントのID。
	ClientID int64 `json:"client_id"`
	// Name はドメイン名。
	Name string `json:"name"`
	// Provider はゾーンを管理するDNSプロバイダ名。
	Provider string `json:"provider"`
}

// RecordData はレコード系イベントのデータ。
type RecordData struct {
	// Domain はレコードが属するドメイン名。
	Domain string `json:"domain"`
	// Name はレコード名（ゾーン相対）。
	Name string `json:"name"`
	// Type はレコードタイプ（A, AAAA, MX など）。
	Type string `json:"type"`
	// Value はレコードの値。
	Value string `json:"value"`
	// TTL は生存時間（秒）。
	TTL int64 `json:"ttl"`
	// Provider はレコードを反映したDNSプロバイダ名。
	Provider string `json:"provider"`
	// ProviderRecordID はプロバイダ側のレコード識別子。
	ProviderRecordID string `json:"provider_record_id"`
}
