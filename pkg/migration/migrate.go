// Package migration はデータベースのスキーマ構築と撤去を管理する。
// embed.FSからSQLファイルを読み込み、バージョン管理テーブルで適用状態を追跡する。
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/plexdns-gateway/pkg/database"
)

var (
	// ErrAlreadyInstalled はスキーマが既に構築済みの場合のエラー。
	ErrAlreadyInstalled = errors.New("Database structure is already installed")
	// ErrNotInstalled はスキーマが構築されていない場合のエラー。
	ErrNotInstalled = errors.New("Database structure is not installed")
)

// Migrator は1つの方言向けのマイグレーションファイル群を適用する。
// ファイル名形式: 000001_description.up.sql / 000001_description.down.sql
type Migrator struct {
	fsys    fs.FS
	dir     string
	dialect database.Dialect
}

// New はfsysのdir配下にあるマイグレーションを扱うMigratorを生成する。
func New(fsys fs.FS, dir string, dialect database.Dialect) *Migrator {
	return &Migrator{fsys: fsys, dir: dir, dialect: dialect}
}

type migrationFile struct {
	version int
	name    string
	up      string
	down    string
}

// Installed はバージョン管理テーブルが存在し、適用済みのマイグレーションがあるかを返す。
// テーブルが存在しない場合のエラーは方言ごとに異なるため、問い合わせの失敗は未構築として扱う。
func (m *Migrator) Installed(ctx context.Context, conn *sql.Conn) bool {
	var n int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// Install はすべてのマイグレーションをバージョン順に適用する。
// 既に構築済みの場合はErrAlreadyInstalledを返す。
func (m *Migrator) Install(ctx context.Context, conn *sql.Conn) error {
	if m.Installed(ctx, conn) {
		return ErrAlreadyInstalled
	}

	migrations, err := m.collect()
	if err != nil {
		return fmt.Errorf("マイグレーションファイルの収集に失敗: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at VARCHAR(64) NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}

	for _, mf := range migrations {
		if err := m.apply(ctx, conn, mf.up, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, m.dialect.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
				mf.version, time.Now().UTC().Format(time.RFC3339))
			return err
		}); err != nil {
			return fmt.Errorf("マイグレーション %06d の適用に失敗: %w", mf.version, err)
		}
		log.Printf("[Migration] マイグレーション %06d_%s を適用しました", mf.version, mf.name)
	}
	return nil
}

// Uninstall は適用済みのマイグレーションを逆順に取り消し、バージョン管理テーブルを削除する。
// 構築されていない場合はErrNotInstalledを返す。
func (m *Migrator) Uninstall(ctx context.Context, conn *sql.Conn) error {
	if !m.Installed(ctx, conn) {
		return ErrNotInstalled
	}

	applied, err := m.appliedVersions(ctx, conn)
	if err != nil {
		return fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}
	migrations, err := m.collect()
	if err != nil {
		return fmt.Errorf("マイグレーションファイルの収集に失敗: %w", err)
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		mf := migrations[i]
		if !applied[mf.version] {
			continue
		}
		if err := m.apply(ctx, conn, mf.down, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, m.dialect.Rebind("DELETE FROM schema_migrations WHERE version = ?"), mf.version)
			return err
		}); err != nil {
			return fmt.Errorf("マイグレーション %06d の取り消しに失敗: %w", mf.version, err)
		}
		log.Printf("[Migration] マイグレーション %06d_%s を取り消しました", mf.version, mf.name)
	}

	if _, err := conn.ExecContext(ctx, "DROP TABLE schema_migrations"); err != nil {
		return fmt.Errorf("マイグレーション管理テーブルの削除に失敗: %w", err)
	}
	return nil
}

// appliedVersions は適用済みのマイグレーションバージョンを取得する。
func (m *Migrator) appliedVersions(ctx context.Context, conn *sql.Conn) (map[int]bool, error) {
	rows, err := conn.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// collect はディレクトリからup/downのSQLファイルを収集してバージョン順にソートする。
// up.sqlが無いバージョンは無視する。
func (m *Migrator) collect() ([]migrationFile, error) {
	entries, err := fs.ReadDir(m.fsys, m.dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*migrationFile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		var direction string
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			direction = "up"
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			direction = "down"
		default:
			continue
		}

		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		mf, ok := byVersion[version]
		if !ok {
			mf = &migrationFile{version: version}
			byVersion[version] = mf
		}
		path := m.dir + "/" + entry.Name()
		if direction == "up" {
			mf.up = path
			mf.name = strings.TrimSuffix(parts[1], ".up.sql")
		} else {
			mf.down = path
		}
	}

	migrations := make([]migrationFile, 0, len(byVersion))
	for _, mf := range byVersion {
		if mf.up == "" {
			continue
		}
		migrations = append(migrations, *mf)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}

// apply は1つのSQLファイルとバージョン記録をトランザクション内で実行する。
// pathが空の場合はバージョン記録のみを行う。
func (m *Migrator) apply(ctx context.Context, conn *sql.Conn, path string, record func(*sql.Tx) error) error {
	var statements []string
	if path != "" {
		content, err := fs.ReadFile(m.fsys, path)
		if err != nil {
			return fmt.Errorf("ファイル読み込みに失敗: %w", err)
		}
		statements = splitStatements(string(content))
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("SQL実行に失敗: %w", err)
		}
	}
	if err := record(tx); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}
	return tx.Commit()
}

// splitStatements はSQLファイルを文単位に分割する。
// "--" で始まる行はコメントとして除去する。ドライバによって複数文の一括実行可否が異なるため1文ずつ実行する。
func splitStatements(content string) []string {
	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var statements []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
