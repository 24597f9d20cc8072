package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	settings "github.com/goliatone/go-settings"
)

//go:embed schema.sql
var sqliteSchema string

// SQLiteStore persists snapshots in an embedded SQLite database: one row per
// (ref, key) in settings_values and one metadata row per ref in
// settings_meta.
type SQLiteStore struct {
	db   atomic.Pointer[sql.DB]
	opts options
}

// OpenSQLite opens (and creates when missing) the database at path. Use
// ":memory:" for a private in-memory database. The caller must Close it.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	s := &SQLiteStore{opts: applyOptions(opts)}
	s.db.Store(db)
	return s, nil
}

// Close releases the database handle. Calls racing with Close fail with
// ErrStoreClosed or a closed-database error.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	db := s.db.Swap(nil)
	if db == nil {
		return nil
	}
	return db.Close()
}

func (s *SQLiteStore) handle() (*sql.DB, error) {
	db := s.db.Load()
	if db == nil {
		return nil, ErrStoreClosed
	}
	return db, nil
}

// Load reads the metadata row and the values of ref in one read transaction,
// so the ETag always matches the values returned with it.
func (s *SQLiteStore) Load(ctx context.Context, ref Ref) (map[string]string, Meta, bool, error) {
	db, err := s.handle()
	if err != nil {
		return nil, Meta{}, false, err
	}
	id, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("store: begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	meta, ok, err := readMeta(ctx, tx, id)
	if err != nil || !ok {
		return nil, Meta{}, false, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT key, value FROM settings_values WHERE ref = ?`, id)
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("store: query values for %s: %w", id, err)
	}
	defer rows.Close()

	snapshot := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, Meta{}, false, fmt.Errorf("store: scan value for %s: %w", id, err)
		}
		snapshot[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, Meta{}, false, fmt.Errorf("store: iterate values for %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, Meta{}, false, fmt.Errorf("store: commit load: %w", err)
	}
	return snapshot, meta, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, ref Ref, changes []settings.Change, meta Meta) (Meta, error) {
	db, err := s.handle()
	if err != nil {
		return Meta{}, err
	}
	id, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("store: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, exists, err := readMeta(ctx, tx, id)
	if err != nil {
		return Meta{}, err
	}
	next, err := s.opts.nextMeta(stored, exists, meta)
	if err != nil {
		return stored, err
	}

	updatedAt := next.UpdatedAt.Format(time.RFC3339Nano)
	for _, change := range changes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings_values (ref, key, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (ref, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			id, change.Key, change.Value, updatedAt,
		); err != nil {
			return Meta{}, fmt.Errorf("store: upsert %s/%s: %w", id, change.Key, err)
		}
	}
	if err := writeMeta(ctx, tx, id, next); err != nil {
		return Meta{}, err
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("store: commit save: %w", err)
	}
	return cloneMeta(next), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ref Ref, keys ...string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	id, err := ref.Identifier()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(keys) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings_values WHERE ref = ?`, id); err != nil {
			return fmt.Errorf("store: delete values for %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings_meta WHERE ref = ?`, id); err != nil {
			return fmt.Errorf("store: delete meta for %s: %w", id, err)
		}
		return tx.Commit()
	}

	stored, exists, err := readMeta(ctx, tx, id)
	if err != nil || !exists {
		return err
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings_values WHERE ref = ? AND key = ?`, id, key); err != nil {
			return fmt.Errorf("store: delete %s/%s: %w", id, key, err)
		}
	}
	stored.SnapshotID = s.opts.nextID()
	stored.ETag = nextETag(stored.ETag)
	stored.UpdatedAt = s.opts.clock()
	if err := writeMeta(ctx, tx, id, stored); err != nil {
		return err
	}
	return tx.Commit()
}

func readMeta(ctx context.Context, q *sql.Tx, id string) (Meta, bool, error) {
	var (
		meta      Meta
		updatedAt string
		extra     sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT snapshot_id, etag, updated_at, extra FROM settings_meta WHERE ref = ?`, id,
	).Scan(&meta.SnapshotID, &meta.ETag, &updatedAt, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, fmt.Errorf("store: query meta for %s: %w", id, err)
	}
	if meta.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Meta{}, false, fmt.Errorf("store: parse updated_at for %s: %w", id, err)
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &meta.Extra); err != nil {
			return Meta{}, false, fmt.Errorf("store: parse extra for %s: %w", id, err)
		}
	}
	return meta, true, nil
}

func writeMeta(ctx context.Context, tx *sql.Tx, id string, meta Meta) error {
	var extra sql.NullString
	if meta.Extra != nil {
		raw, err := json.Marshal(meta.Extra)
		if err != nil {
			return fmt.Errorf("store: encode extra for %s: %w", id, err)
		}
		extra = sql.NullString{String: string(raw), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settings_meta (ref, snapshot_id, etag, updated_at, extra)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ref) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			etag = excluded.etag,
			updated_at = excluded.updated_at,
			extra = excluded.extra`,
		id, meta.SnapshotID, meta.ETag, meta.UpdatedAt.Format(time.RFC3339Nano), extra,
	)
	if err != nil {
		return fmt.Errorf("store: upsert meta for %s: %w", id, err)
	}
	return nil
}
