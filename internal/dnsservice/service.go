package dnsservice

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/plexdns-gateway/pkg/database"
	"github.com/nao1215/plexdns-gateway/pkg/event"
	"github.com/nao1215/plexdns-gateway/pkg/migration"
	"github.com/nao1215/plexdns-gateway/pkg/provider"
)

//go:embed migrations
var migrationsFS embed.FS

// Config はサービスの設定。
type Config struct {
	// Registry は利用可能なDNSプロバイダ。
	Registry *provider.Registry
	// ProviderSettings はプロバイダ名ごとの設定値。キーは大文字小文字を区別しない。
	ProviderSettings map[string]provider.Settings
	// DefaultProvider はドメイン設定でプロバイダが省略された場合に使用するプロバイダ名。
	DefaultProvider string
	// DefaultAPIKey はドメイン設定でapikeyが省略された場合に使用するAPIキー。
	DefaultAPIKey string
	// ProviderTimeout はプロバイダ呼び出し1回あたりのタイムアウト。0以下の場合は15秒。
	ProviderTimeout time.Duration
}

// defaultProviderTimeout はプロバイダ呼び出しの既定のタイムアウト。
const defaultProviderTimeout = 15 * time.Second

// Service はドメインとレコードを管理するサービスファサード。
type Service struct {
	pool     *database.Pool
	migrator *migration.Migrator
	registry *provider.Registry
	settings map[string]provider.Settings
	defaults identity
	// providerTimeout はプロバイダ呼び出し中に接続とトランザクションを保持する時間の上限。
	providerTimeout time.Duration
	now             func() time.Time
}

// identity はプロバイダ名とAPIキーの組。
type identity struct {
	provider string
	apiKey   string
}

// New は接続プールと設定からサービスを生成する。
func New(pool *database.Pool, cfg Config) *Service {
	settings := make(map[string]provider.Settings, len(cfg.ProviderSettings))
	for name, s := range cfg.ProviderSettings {
		settings[strings.ToLower(name)] = s
	}

	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	return &Service{
		pool:            pool,
		migrator:        migration.New(migrationsFS, "migrations/"+string(pool.Dialect()), pool.Dialect()),
		registry:        cfg.Registry,
		settings:        settings,
		defaults:        identity{provider: cfg.DefaultProvider, apiKey: cfg.DefaultAPIKey},
		providerTimeout: timeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Install はデータベースのスキーマを構築する。
func (s *Service) Install(ctx context.Context) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return s.migrator.Install(ctx, conn)
	})
}

// Uninstall はデータベースのスキーマを撤去する。
func (s *Service) Uninstall(ctx context.Context) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return s.migrator.Uninstall(ctx, conn)
	})
}

// mutate は接続を1本チェックアウトし、スキーマが構築済みであることを確認してから
// トランザクション内でfnを実行する。
func (s *Service) mutate(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if !s.migrator.Installed(ctx, conn) {
			return ErrNotInstalled
		}
		return database.InTx(ctx, conn, fn)
	})
}

// providerFor は名前とAPIキーからプロバイダを生成する。
// 設定ファイルの値にAPIキーを上書きして渡す。
func (s *Service) providerFor(id identity) (provider.Provider, error) {
	if id.provider == "" {
		return nil, errors.New("Missing field: provider")
	}
	base := s.settings[strings.ToLower(id.provider)]
	return s.registry.New(id.provider, base.Merge(provider.Settings{provider.SettingAPIKey: id.apiKey}))
}

// callProvider はタイムアウト付きのコンテキストでプロバイダを呼び出す。
func (s *Service) callProvider(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	return fn(ctx)
}

// timestamp は永続化用の現在時刻文字列を返す。
func (s *Service) timestamp() string {
	return s.now().Format(time.RFC3339)
}

// recordEvent は監査イベントをトランザクション内で記録する。
func (s *Service) recordEvent(ctx context.Context, tx *sql.Tx, aggregateID string, aggregateType event.AggregateType, eventType event.Type, data any) error {
	ev, err := event.New(aggregateID, aggregateType, eventType, data)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, s.pool.Dialect().Rebind(
		"INSERT INTO dns_events (id, aggregate_id, aggregate_type, event_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
		ev.ID, ev.AggregateID, string(ev.AggregateType), string(ev.EventType), string(ev.Data), ev.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("イベントの記録に失敗: %w", err)
	}
	return nil
}
