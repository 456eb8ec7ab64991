package dnsservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/plexdns-gateway/pkg/event"
)

// domainRow はdomainsテーブルの1行。
type domainRow struct {
	id       int64
	clientID int64
	name     string
	provider string
}

// CreateDomain はドメインを作成し、採番されたIDを返す。
//
// ペイロードには client_id（整数）と config（JSON文字列）を含む。
// configの domain_name は必須で、provider と apikey は省略時にサービスの既定値を使う。
func (s *Service) CreateDomain(ctx context.Context, p map[string]any) (any, error) {
	clientID, err := int64Field(p, "client_id")
	if err != nil {
		return nil, err
	}
	cfg, err := decodeConfig(p["config"])
	if err != nil {
		return nil, err
	}
	rawName, err := requiredString(cfg, "domain_name")
	if err != nil {
		return nil, err
	}
	name, err := normalizeDomain(rawName)
	if err != nil {
		return nil, err
	}
	id, err := s.identityFrom(cfg, s.defaults)
	if err != nil {
		return nil, err
	}
	prov, err := s.providerFor(id)
	if err != nil {
		return nil, err
	}

	var domainID int64
	err = s.mutate(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.findDomain(ctx, tx, name); err == nil {
			return &ConflictError{Kind: "Domain", Key: name}
		} else if !errors.As(err, new(*NotFoundError)) {
			return err
		}

		if err := s.callProvider(ctx, func(ctx context.Context) error {
			return prov.CreateZone(ctx, name)
		}); err != nil {
			return fmt.Errorf("Failed to create zone %s: %w", name, err)
		}

		newID, err := s.pool.Dialect().InsertReturningID(ctx, tx,
			"INSERT INTO domains (client_id, name, provider, config, created_at) VALUES (?, ?, ?, ?, ?)",
			clientID, name, id.provider, p["config"], s.timestamp())
		if err != nil {
			return fmt.Errorf("ドメインの保存に失敗: %w", err)
		}
		domainID = newID

		return s.recordEvent(ctx, tx, event.DomainAggregateID(domainID), event.AggregateTypeDomain, event.TypeDomainCreated,
			event.DomainData{ClientID: clientID, Name: name, Provider: id.provider})
	})
	if err != nil {
		return nil, err
	}
	return domainID, nil
}

// DeleteDomain はドメインとその配下のレコードを削除する。
//
// ペイロードの config（JSON文字列）の domain_name で対象を特定する。
// プロバイダは config の指定があればそれを、無ければ作成時のプロバイダを使う。
func (s *Service) DeleteDomain(ctx context.Context, p map[string]any) error {
	cfg, err := decodeConfig(p["config"])
	if err != nil {
		return err
	}
	rawName, err := requiredString(cfg, "domain_name")
	if err != nil {
		return err
	}
	name, err := normalizeDomain(rawName)
	if err != nil {
		return err
	}

	return s.mutate(ctx, func(ctx context.Context, tx *sql.Tx) error {
		d, err := s.findDomain(ctx, tx, name)
		if err != nil {
			return err
		}

		id, err := s.identityFrom(cfg, identity{provider: d.provider, apiKey: s.defaults.apiKey})
		if err != nil {
			return err
		}
		prov, err := s.providerFor(id)
		if err != nil {
			return err
		}
		if err := s.callProvider(ctx, func(ctx context.Context) error {
			return prov.DeleteZone(ctx, name)
		}); err != nil {
			return fmt.Errorf("Failed to delete zone %s: %w", name, err)
		}

		dialect := s.pool.Dialect()
		if _, err := tx.ExecContext(ctx, dialect.Rebind("DELETE FROM records WHERE domain_id = ?"), d.id); err != nil {
			return fmt.Errorf("レコードの削除に失敗: %w", err)
		}
		if _, err := tx.ExecContext(ctx, dialect.Rebind("DELETE FROM domains WHERE id = ?"), d.id); err != nil {
			return fmt.Errorf("ドメインの削除に失敗: %w", err)
		}

		return s.recordEvent(ctx, tx, event.DomainAggregateID(d.id), event.AggregateTypeDomain, event.TypeDomainDeleted,
			event.DomainData{ClientID: d.clientID, Name: d.name, Provider: id.provider})
	})
}

// findDomain は名前でドメインを検索する。存在しない場合は *NotFoundError を返す。
func (s *Service) findDomain(ctx context.Context, tx *sql.Tx, name string) (domainRow, error) {
	var d domainRow
	err := tx.QueryRowContext(ctx, s.pool.Dialect().Rebind(
		"SELECT id, client_id, name, provider FROM domains WHERE name = ?"), name).
		Scan(&d.id, &d.clientID, &d.name, &d.provider)
	if errors.Is(err, sql.ErrNoRows) {
		return domainRow{}, &NotFoundError{Kind: "Domain", Key: name}
	}
	if err != nil {
		return domainRow{}, fmt.Errorf("ドメインの検索に失敗: %w", err)
	}
	return d, nil
}

// identityFrom はペイロードの provider と apikey を読み取る。省略された値はfallbackで補う。
func (s *Service) identityFrom(p map[string]any, fallback identity) (identity, error) {
	prov, err := stringField(p, "provider")
	if err != nil {
		return identity{}, err
	}
	key, err := stringField(p, "apikey")
	if err != nil {
		return identity{}, err
	}
	if prov == "" {
		prov = fallback.provider
	}
	if key == "" {
		key = fallback.apiKey
	}
	return identity{provider: prov, apiKey: key}, nil
}
