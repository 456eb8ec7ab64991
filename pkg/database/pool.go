package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Querier は *sql.Conn と *sql.Tx に共通するクエリ実行メソッド。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config は接続プールの設定。
type Config struct {
	// Dialect はデータベースの種類。
	Dialect Dialect
	// DSN はドライバに渡す接続文字列。
	DSN string
	// MaxOpenConns は同時に開く接続数の上限。0以下の場合は10。
	MaxOpenConns int
	// MaxIdleConns はアイドル状態で保持する接続数。
	MaxIdleConns int
	// ConnMaxLifetime は接続を再利用する最大時間。0の場合は無制限。
	ConnMaxLifetime time.Duration
}

// Pool は上限付きの接続プール。
type Pool struct {
	db      *sql.DB
	dialect Dialect
}

// Open は接続プールを生成し、疎通を確認する。
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	db, err := sql.Open(cfg.Dialect.driverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}

	return &Pool{db: db, dialect: cfg.Dialect}, nil
}

// Dialect はプールのデータベース種類を返す。
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// Stats はプールの統計情報を返す。
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Close はプールを閉じる。
func (p *Pool) Close() error {
	return p.db.Close()
}

// WithConn はプールから接続を1本チェックアウトしてfnを実行する。
// 接続はfnの結果やpanicにかかわらず必ずプールに返却される。
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("接続の取得に失敗: %w", err)
	}
	defer conn.Close()

	return fn(ctx, conn)
}

// InTx はチェックアウト済みの接続上でトランザクションを実行する。
// fnがエラーを返した場合はロールバックし、成功した場合はコミットする。
func InTx(ctx context.Context, conn *sql.Conn, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}
