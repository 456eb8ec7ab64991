package dnsservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/nao1215/plexdns-gateway/pkg/event"
	"github.com/nao1215/plexdns-gateway/pkg/provider"
)

// recordRow はrecordsテーブルの1行。
type recordRow struct {
	id               int64
	providerRecordID string
	name             string
	typ              string
	value            string
	ttl              int64
}

func (r recordRow) toProvider() provider.Record {
	return provider.Record{ID: r.providerRecordID, Name: r.name, Type: r.typ, Value: r.value, TTL: int(r.ttl)}
}

// recordInput はペイロードから読み取ったレコードの内容。
type recordInput struct {
	domain string
	name   string
	typ    string
	value  string
	ttl    int64
	id     identity
}

// AddRecord はドメインにレコードを追加し、採番されたレコードIDを返す。
func (s *Service) AddRecord(ctx context.Context, p map[string]any) (any, error) {
	in, err := s.readRecord(p)
	if err != nil {
		return nil, err
	}
	prov, err := s.providerFor(in.id)
	if err != nil {
		return nil, err
	}

	var recordID int64
	err = s.mutate(ctx, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.findDomain(ctx, tx, in.domain)
		if err != nil {
			return err
		}

		var added provider.Record
		err = s.callProvider(ctx, func(ctx context.Context) error {
			var err error
			added, err = prov.AppendRecord(ctx, d.name, provider.Record{Name: in.name, Type: in.typ, Value: in.value, TTL: int(in.ttl)})
			return err
		})
		if err != nil {
			return fmt.Errorf("Failed to add record: %w", err)
		}

		now := s.timestamp()
		recordID, err = s.pool.Dialect().InsertReturningID(ctx, tx,
			"INSERT INTO records (domain_id, provider, provider_record_id, name, type, value, ttl, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			d.id, in.id.provider, added.ID, in.name, in.typ, in.value, in.ttl, now, now)
		if err != nil {
			return fmt.Errorf("レコードの保存に失敗: %w", err)
		}

		return s.recordEvent(ctx, tx, event.RecordAggregateID(recordID), event.AggregateTypeRecord, event.TypeRecordAdded,
			in.eventData(added.ID))
	})
	if err != nil {
		return nil, err
	}
	return recordID, nil
}

// UpdateRecord は既存のレコードを置き換える。
func (s *Service) UpdateRecord(ctx context.Context, p map[string]any) error {
	recordID, err := parseRecordID(p)
	if err != nil {
		return err
	}
	in, err := s.readRecord(p)
	if err != nil {
		return err
	}
	prov, err := s.providerFor(in.id)
	if err != nil {
		return err
	}

	return s.mutate(ctx, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.findDomain(ctx, tx, in.domain)
		if err != nil {
			return err
		}
		old, err := s.findRecord(ctx, tx, d.id, recordID)
		if err != nil {
			return err
		}

		next := provider.Record{ID: old.providerRecordID, Name: in.name, Type: in.typ, Value: in.value, TTL: int(in.ttl)}
		if err := s.callProvider(ctx, func(ctx context.Context) error {
			return prov.UpdateRecord(ctx, d.name, old.toProvider(), next)
		}); err != nil {
			return fmt.Errorf("Failed to update record: %w", err)
		}

		_, err = tx.ExecContext(ctx, s.pool.Dialect().Rebind(
			"UPDATE records SET provider = ?, name = ?, type = ?, value = ?, ttl = ?, updated_at = ? WHERE id = ?"),
			in.id.provider, in.name, in.typ, in.value, in.ttl, s.timestamp(), recordID)
		if err != nil {
			return fmt.Errorf("レコードの更新に失敗: %w", err)
		}

		return s.recordEvent(ctx, tx, event.RecordAggregateID(recordID), event.AggregateTypeRecord, event.TypeRecordUpdated,
			in.eventData(old.providerRecordID))
	})
}

// DelRecord はレコードを削除する。
func (s *Service) DelRecord(ctx context.Context, p map[string]any) error {
	recordID, err := parseRecordID(p)
	if err != nil {
		return err
	}
	rawDomain, err := requiredString(p, "domain_name")
	if err != nil {
		return err
	}
	domain, err := normalizeDomain(rawDomain)
	if err != nil {
		return err
	}
	id, err := s.identityFrom(p, s.defaults)
	if err != nil {
		return err
	}
	prov, err := s.providerFor(id)
	if err != nil {
		return err
	}

	return s.mutate(ctx, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.findDomain(ctx, tx, domain)
		if err != nil {
			return err
		}
		old, err := s.findRecord(ctx, tx, d.id, recordID)
		if err != nil {
			return err
		}

		if err := s.callProvider(ctx, func(ctx context.Context) error {
			return prov.DeleteRecord(ctx, d.name, old.toProvider())
		}); err != nil {
			return fmt.Errorf("Failed to delete record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.pool.Dialect().Rebind("DELETE FROM records WHERE id = ?"), recordID); err != nil {
			return fmt.Errorf("レコードの削除に失敗: %w", err)
		}

		return s.recordEvent(ctx, tx, event.RecordAggregateID(recordID), event.AggregateTypeRecord, event.TypeRecordDeleted,
			event.RecordData{
				Domain: d.name, Name: old.name, Type: old.typ, Value: old.value, TTL: old.ttl,
				Provider: id.provider, ProviderRecordID: old.providerRecordID,
			})
	})
}

// readRecord はレコードの追加・更新に共通する項目を読み取って検証する。
func (s *Service) readRecord(p map[string]any) (recordInput, error) {
	var in recordInput

	rawDomain, err := requiredString(p, "domain_name")
	if err != nil {
		return in, err
	}
	if in.domain, err = normalizeDomain(rawDomain); err != nil {
		return in, err
	}
	if in.name, err = requiredString(p, "record_name"); err != nil {
		return in, err
	}
	rawType, err := requiredString(p, "record_type")
	if err != nil {
		return in, err
	}
	if in.typ, err = normalizeType(rawType); err != nil {
		return in, err
	}
	if in.value, err = requiredString(p, "record_value"); err != nil {
		return in, err
	}
	if in.ttl, err = int64Field(p, "record_ttl"); err != nil {
		return in, err
	}
	if in.ttl < 0 || in.ttl > 2147483647 {
		return in, &InvalidFieldError{Field: "record_ttl"}
	}
	if in.id, err = s.identityFrom(p, s.defaults); err != nil {
		return in, err
	}
	return in, nil
}

func (in recordInput) eventData(providerRecordID string) event.RecordData {
	return event.RecordData{
		Domain: in.domain, Name: in.name, Type: in.typ, Value: in.value, TTL: in.ttl,
		Provider: in.id.provider, ProviderRecordID: providerRecordID,
	}
}

// parseRecordID は record_id を10進整数として読み取る。
func parseRecordID(p map[string]any) (int64, error) {
	raw, err := requiredString(p, "record_id")
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &InvalidFieldError{Field: "record_id"}
	}
	return id, nil
}

// findRecord はドメイン配下のレコードをIDで検索する。存在しない場合は *NotFoundError を返す。
func (s *Service) findRecord(ctx context.Context, tx *sql.Tx, domainID, recordID int64) (recordRow, error) {
	var r recordRow
	err := tx.QueryRowContext(ctx, s.pool.Dialect().Rebind(
		"SELECT id, provider_record_id, name, type, value, ttl FROM records WHERE id = ? AND domain_id = ?"),
		recordID, domainID).
		Scan(&r.id, &r.providerRecordID, &r.name, &r.typ, &r.value, &r.ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return recordRow{}, &NotFoundError{Kind: "Record", Key: strconv.FormatInt(recordID, 10)}
	}
	if err != nil {
		return recordRow{}, fmt.Errorf("レコードの検索に失敗: %w", err)
	}
	return r, nil
}
