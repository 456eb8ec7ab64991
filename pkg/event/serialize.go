package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New は新しいイベントを生成する。
// dataにはイベント固有のデータ構造体を渡す。JSON形式にシリアライズされる。
func New(aggregateID string, aggregateType AggregateType, eventType Type, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// DomainAggregateID はドメインIDからイベントの対象識別子を生成する。
func DomainAggregateID(id int64) string {
	return fmt.Sprintf("domain-%d", id)
}

// RecordAggregateID はレコードIDからイベントの対象識別子を生成する。
func RecordAggregateID(id int64) string {
	return fmt.Sprintf("record-%d", id)
}
