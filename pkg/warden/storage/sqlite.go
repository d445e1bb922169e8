package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/warden/pkg/warden/types"
)

// SQLiteBackend persists snapshots in a SQLite database.
type SQLiteBackend struct {
	db        *sql.DB
	path      string
	closeOnce sync.Once

	insertValueStmt      *sql.Stmt
	insertInfractionStmt *sql.Stmt
}

// SQLiteConfig configures a SQLiteBackend.
type SQLiteConfig struct {
	// Path is the database file.
	Path string

	// BusyTimeout is how long to wait for locks. Default: 5s
	BusyTimeout time.Duration
}

// NewSQLiteBackend opens (and creates if needed) the database at path.
func NewSQLiteBackend(cfg SQLiteConfig) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &SQLiteBackend{db: db, path: cfg.Path}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := b.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS usage_values (
		policy_id INTEGER NOT NULL,
		user_name TEXT NOT NULL,
		value REAL NOT NULL,
		saved_at INTEGER NOT NULL,
		PRIMARY KEY (policy_id, user_name)
	);

	CREATE TABLE IF NOT EXISTS infractions (
		policy_id INTEGER NOT NULL,
		user_name TEXT NOT NULL,
		expiration INTEGER,
		payload TEXT NOT NULL,
		saved_at INTEGER NOT NULL,
		PRIMARY KEY (policy_id, user_name)
	);
	`
	_, err := b.db.Exec(schema)
	return err
}

func (b *SQLiteBackend) prepareStatements() error {
	var err error

	b.insertValueStmt, err = b.db.Prepare(`
		INSERT INTO usage_values (policy_id, user_name, value, saved_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare value insert: %w", err)
	}

	b.insertInfractionStmt, err = b.db.Prepare(`
		INSERT INTO infractions (policy_id, user_name, expiration, payload, saved_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare infraction insert: %w", err)
	}
	return nil
}

// SaveValues implements Backend.
func (b *SQLiteBackend) SaveValues(ctx context.Context, values map[types.Key]float64) error {
	now := time.Now().UnixMilli()
	return b.replace(ctx, "usage_values", func(tx *sql.Tx) error {
		stmt := tx.StmtContext(ctx, b.insertValueStmt)
		for k, v := range values {
			if _, err := stmt.ExecContext(ctx, k.PolicyID, k.User, v, now); err != nil {
				return fmt.Errorf("insert value %s: %w", k, err)
			}
		}
		return nil
	})
}

// LoadValues implements Backend.
func (b *SQLiteBackend) LoadValues(ctx context.Context) (map[types.Key]float64, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT policy_id, user_name, value FROM usage_values`)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	values := make(map[types.Key]float64)
	for rows.Next() {
		var k types.Key
		var v float64
		if err := rows.Scan(&k.PolicyID, &k.User, &v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		values[k] = v
	}
	return values, rows.Err()
}

// SaveInfractions implements Backend.
func (b *SQLiteBackend) SaveInfractions(ctx context.Context, infractions []types.Infraction) error {
	now := time.Now().UnixMilli()
	return b.replace(ctx, "infractions", func(tx *sql.Tx) error {
		stmt := tx.StmtContext(ctx, b.insertInfractionStmt)
		for i := range infractions {
			inf := &infractions[i]
			payload, err := json.Marshal(inf)
			if err != nil {
				return fmt.Errorf("encode infraction %s: %w", inf.Key(), err)
			}
			var expiration sql.NullInt64
			if exp, ok := inf.Expiration(); ok {
				expiration = sql.NullInt64{Int64: exp, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, inf.PolicyID, inf.Username, expiration, string(payload), now); err != nil {
				return fmt.Errorf("insert infraction %s: %w", inf.Key(), err)
			}
		}
		return nil
	})
}

// LoadInfractions implements Backend.
func (b *SQLiteBackend) LoadInfractions(ctx context.Context) ([]types.Infraction, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT payload FROM infractions ORDER BY policy_id, user_name`)
	if err != nil {
		return nil, fmt.Errorf("query infractions: %w", err)
	}
	defer rows.Close()

	var out []types.Infraction
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan infraction: %w", err)
		}
		var inf types.Infraction
		if err := json.Unmarshal([]byte(payload), &inf); err != nil {
			return nil, fmt.Errorf("decode infraction: %w", err)
		}
		out = append(out, inf)
	}
	return out, rows.Err()
}

// PruneExpired deletes stored suspensions that ended before now.
func (b *SQLiteBackend) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM infractions WHERE expiration IS NOT NULL AND expiration > 0 AND expiration < ?`,
		now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune infractions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.insertValueStmt != nil {
			b.insertValueStmt.Close()
		}
		if b.insertInfractionStmt != nil {
			b.insertInfractionStmt.Close()
		}
		err = b.db.Close()
	})
	return err
}

func (b *SQLiteBackend) replace(ctx context.Context, table string, fill func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s snapshot: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := fill(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s snapshot: %w", table, err)
	}
	return nil
}
