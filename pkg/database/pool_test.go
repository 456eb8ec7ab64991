package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

// openTestPool はテスト用の一時ファイルSQLiteで接続プールを生成する。
func openTestPool(t *testing.T) *Pool {
	t.Helper()

	dsn := SQLiteDSN(filepath.Join(t.TempDir(), "test.db"))
	pool, err := Open(context.Background(), Config{Dialect: DialectSQLite, DSN: dsn, MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("接続プールの生成に失敗: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := pool.WithConn(context.Background(), func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)")
		return err
	}); err != nil {
		t.Fatalf("テーブル作成に失敗: %v", err)
	}
	return pool
}

func countItems(t *testing.T, pool *Pool) int {
	t.Helper()

	var n int
	if err := pool.WithConn(context.Background(), func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n)
	}); err != nil {
		t.Fatalf("件数の取得に失敗: %v", err)
	}
	return n
}

// inTx はプールから接続を取得してInTxを実行する。
func inTx(pool *Pool, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return pool.WithConn(context.Background(), func(ctx context.Context, conn *sql.Conn) error {
		return InTx(ctx, conn, fn)
	})
}

// TestInTx はトランザクションのコミットとロールバックを検証する。
func TestInTx(t *testing.T) {
	t.Parallel()

	t.Run("成功時にコミットされ採番IDが返ること", func(t *testing.T) {
		t.Parallel()

		pool := openTestPool(t)
		var id int64
		err := inTx(pool, func(ctx context.Context, tx *sql.Tx) error {
			var err error
			id, err = pool.Dialect().InsertReturningID(ctx, tx, "INSERT INTO items (name) VALUES (?)", "a")
			return err
		})
		if err != nil {
			t.Fatalf("InTx()でエラーが発生: %v", err)
		}
		if id != 1 {
			t.Errorf("id = %d, want 1", id)
		}
		if n := countItems(t, pool); n != 1 {
			t.Errorf("件数 = %d, want 1", n)
		}
	})

	t.Run("エラー時にロールバックされること", func(t *testing.T) {
		t.Parallel()

		pool := openTestPool(t)
		errBoom := errors.New("boom")
		err := inTx(pool, func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO items (name) VALUES (?)", "a"); err != nil {
				return err
			}
			return errBoom
		})
		if !errors.Is(err, errBoom) {
			t.Fatalf("err = %v, want %v", err, errBoom)
		}
		if n := countItems(t, pool); n != 0 {
			t.Errorf("件数 = %d, want 0", n)
		}
	})
}

// TestWithConn は接続が必ず返却されることを検証する。
func TestWithConn(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)

	t.Run("panic後も接続が返却されること", func(t *testing.T) {
		func() {
			defer func() { _ = recover() }()
			_ = pool.WithConn(context.Background(), func(context.Context, *sql.Conn) error {
				panic("テスト用パニック")
			})
		}()

		if inUse := pool.Stats().InUse; inUse != 0 {
			t.Errorf("使用中の接続数 = %d, want 0", inUse)
		}
	})

	t.Run("上限を超えて繰り返し取得できること", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			if err := pool.WithConn(context.Background(), func(ctx context.Context, conn *sql.Conn) error {
				return conn.PingContext(ctx)
			}); err != nil {
				t.Fatalf("%d回目の取得に失敗: %v", i, err)
			}
		}
		if open := pool.Stats().OpenConnections; open > 2 {
			t.Errorf("開いている接続数 = %d, want <= 2", open)
		}
	})
}
