package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite stores document groups in a single table keyed by
// (entity, field, key, ord). The documents themselves are opaque JSON.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	entity TEXT    NOT NULL,
	field  TEXT    NOT NULL,
	key    TEXT    NOT NULL,
	ord    INTEGER NOT NULL,
	doc    TEXT    NOT NULL,
	PRIMARY KEY (entity, field, key, ord)
);`

// OpenSQLite opens (creating if needed) a document store at path. The
// path ":memory:" gives a private in-memory store.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store %q: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating document table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Load replaces the stored groups for every document in docs. The whole
// load is one transaction, so readers never observe a half-written group.
func (s *SQLite) Load(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE entity = ? AND field = ? AND key = ?`)
	if err != nil {
		return err
	}
	defer del.Close()
	ins, err := tx.PrepareContext(ctx, `INSERT INTO documents (entity, field, key, ord, doc) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, d := range docs {
		if _, err := del.ExecContext(ctx, d.Entity, d.Field, d.Key); err != nil {
			return err
		}
		for ord, rec := range d.Docs {
			raw, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encoding %s/%s %q: %w", d.Entity, d.Field, d.Key, err)
			}
			if _, err := ins.ExecContext(ctx, d.Entity, d.Field, d.Key, ord, string(raw)); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLite) Fetch(ctx context.Context, entity, field string, keys []string) ([]Group, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	query := fmt.Sprintf(
		`SELECT key, doc FROM documents WHERE entity = ? AND field = ? AND key IN (%s) ORDER BY key, ord`,
		placeholders[:len(placeholders)-1],
	)
	args := make([]any, 0, len(keys)+2)
	args = append(args, entity, field)
	for _, k := range keys {
		args = append(args, k)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", entity, field, err)
	}
	defer rows.Close()

	byKey := map[string]Group{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decoding %s/%s %q: %w", entity, field, key, err)
		}
		byKey[key] = append(byKey[key], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups := make([]Group, len(keys))
	for i, key := range keys {
		groups[i] = byKey[key]
	}
	return groups, nil
}
