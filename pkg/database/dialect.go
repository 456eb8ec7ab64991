package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Dialect はデータベースの種類を表す。
type Dialect string

const (
	// DialectSQLite はSQLite（modernc.org/sqlite）。
	DialectSQLite Dialect = "sqlite"
	// DialectMySQL はMySQL/MariaDB（go-sql-driver/mysql）。
	DialectMySQL Dialect = "mysql"
	// DialectPostgres はPostgreSQL（pgx）。
	DialectPostgres Dialect = "pgsql"
)

// ParseDialect は文字列からDialectを解釈する。
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "pgsql", "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// driverName はdatabase/sqlに登録されたドライバ名を返す。
func (d Dialect) driverName() string {
	switch d {
	case DialectMySQL:
		return "mysql"
	case DialectPostgres:
		return "pgx"
	default:
		return "sqlite"
	}
}

// Rebind は "?" プレースホルダを方言に合わせて書き換える。
// PostgreSQLでは $1, $2, ... に置き換える。
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertReturningID はINSERT文を実行し、採番されたIDを返す。
// PostgreSQLでは RETURNING id を付与し、それ以外ではLastInsertIdを使用する。
func (d Dialect) InsertReturningID(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	query = d.Rebind(query)
	if d == DialectPostgres {
		var id int64
		if err := q.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SQLiteDSN はSQLiteファイルへの接続文字列を返す。
// トランザクションはBEGIN IMMEDIATEで開始し、最初の読み取りの時点で書き込みロックを取得する。
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}
