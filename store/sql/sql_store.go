// Package sql provides SQL-based store implementations for MySQL and SQLite.
package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	autoimply "github.com/boorubot/autoimply"
)

// Dialect represents the SQL dialect.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite3"
)

// Config holds the configuration for the SQL store.
type Config struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns the default SQL store configuration.
func DefaultConfig() Config {
	return Config{
		Dialect:         DialectSQLite,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Store implements the store.Store interface using database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New creates a new SQL store and verifies connectivity.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open(string(cfg.Dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, dialect: cfg.Dialect}, nil
}

// NewWithDB creates a new SQL store with an existing database connection.
func NewWithDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// InitSchema creates the mirror tables if they do not exist. Timestamps
// are stored as unix millis so both dialects share the same schema.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tags (
			id INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			post_count INTEGER NOT NULL DEFAULT 0,
			is_deprecated BOOLEAN NOT NULL DEFAULT FALSE,
			has_wiki BOOLEAN NOT NULL DEFAULT FALSE,
			has_antecedents BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS burs (
			id INTEGER PRIMARY KEY,
			script TEXT NOT NULL,
			status VARCHAR(32) NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS related_tags (
			name VARCHAR(255) PRIMARY KEY,
			copyrights_json TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tags_name ON tags (name)`,
		`CREATE INDEX IF NOT EXISTS idx_burs_status ON burs (status)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return autoimply.NewStoreError("init", "schema", err)
		}
	}
	return nil
}

// UpsertTags inserts or refreshes tag mirror rows.
func (s *Store) UpsertTags(ctx context.Context, tags []autoimply.Tag) error {
	if len(tags) == 0 {
		return nil
	}

	query := s.upsertTagQuery()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return autoimply.NewStoreError("begin", "tags", err)
	}
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx, query,
			t.ID, t.Name, t.PostCount, t.IsDeprecated, t.HasWiki, t.HasAntecedents,
			t.UpdatedAt.UnixMilli()); err != nil {
			tx.Rollback()
			return autoimply.NewStoreError("upsert", "tags", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return autoimply.NewStoreError("commit", "tags", err)
	}
	return nil
}

func (s *Store) upsertTagQuery() string {
	switch s.dialect {
	case DialectMySQL:
		return `INSERT INTO tags (id, name, post_count, is_deprecated, has_wiki, has_antecedents, updated_at)
	            VALUES (?, ?, ?, ?, ?, ?, ?)
	            ON DUPLICATE KEY UPDATE
	            name = VALUES(name), post_count = VALUES(post_count), is_deprecated = VALUES(is_deprecated),
	            has_wiki = VALUES(has_wiki), has_antecedents = VALUES(has_antecedents), updated_at = VALUES(updated_at)`
	default: // SQLite
		return `INSERT INTO tags (id, name, post_count, is_deprecated, has_wiki, has_antecedents, updated_at)
	            VALUES (?, ?, ?, ?, ?, ?, ?)
	            ON CONFLICT (id) DO UPDATE SET
	            name = excluded.name, post_count = excluded.post_count, is_deprecated = excluded.is_deprecated,
	            has_wiki = excluded.has_wiki, has_antecedents = excluded.has_antecedents, updated_at = excluded.updated_at`
	}
}

// TagsByNames returns the mirrored tags for the given names, keyed by name.
// Names without a mirror row are absent from the result.
func (s *Store) TagsByNames(ctx context.Context, names []string) (map[string]autoimply.Tag, error) {
	out := make(map[string]autoimply.Tag, len(names))
	if len(names) == 0 {
		return out, nil
	}

	const batchSize = 500
	for start := 0; start < len(names); start += batchSize {
		end := min(start+batchSize, len(names))
		batch := names[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		query := `SELECT id, name, post_count, is_deprecated, has_wiki, has_antecedents, updated_at
	              FROM tags WHERE name IN (` + placeholders + `)`

		args := make([]any, len(batch))
		for i, n := range batch {
			args[i] = n
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, autoimply.NewStoreError("list", "tags", err)
		}
		for rows.Next() {
			t, err := scanTag(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[t.Name] = t
		}
		rows.Close()
	}
	return out, nil
}

// TagsByPrefix returns mirrored tags whose name starts with prefix.
func (s *Store) TagsByPrefix(ctx context.Context, prefix string) ([]autoimply.Tag, error) {
	query := `SELECT id, name, post_count, is_deprecated, has_wiki, has_antecedents, updated_at
	          FROM tags WHERE name LIKE ? ESCAPE '\' ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, autoimply.NewStoreError("list", "tags", err)
	}
	defer rows.Close()

	var tags []autoimply.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// LastTagUpdate returns the newest updated_at among mirrored tags, zero if
// the mirror is empty.
func (s *Store) LastTagUpdate(ctx context.Context) (time.Time, error) {
	return s.maxUpdatedAt(ctx, "tags")
}

// UpsertBURs inserts or refreshes BUR mirror rows.
func (s *Store) UpsertBURs(ctx context.Context, records []autoimply.BURRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := s.upsertBURQuery()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return autoimply.NewStoreError("begin", "burs", err)
	}
	for _, b := range records {
		if _, err := tx.ExecContext(ctx, query,
			b.ID, b.Script, string(b.Status), b.UpdatedAt.UnixMilli()); err != nil {
			tx.Rollback()
			return autoimply.NewStoreError("upsert", "burs", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return autoimply.NewStoreError("commit", "burs", err)
	}
	return nil
}

func (s *Store) upsertBURQuery() string {
	switch s.dialect {
	case DialectMySQL:
		return `INSERT INTO burs (id, script, status, updated_at) VALUES (?, ?, ?, ?)
	            ON DUPLICATE KEY UPDATE
	            script = VALUES(script), status = VALUES(status), updated_at = VALUES(updated_at)`
	default: // SQLite
		return `INSERT INTO burs (id, script, status, updated_at) VALUES (?, ?, ?, ?)
	            ON CONFLICT (id) DO UPDATE SET
	            script = excluded.script, status = excluded.status, updated_at = excluded.updated_at`
	}
}

// LastBURUpdate returns the newest updated_at among mirrored BURs.
func (s *Store) LastBURUpdate(ctx context.Context) (time.Time, error) {
	return s.maxUpdatedAt(ctx, "burs")
}

// RequestedImplications returns every implication pair appearing in a
// non-rejected mirrored BUR, mapped to the request's status.
func (s *Store) RequestedImplications(ctx context.Context) (map[autoimply.ImplicationKey]autoimply.BURStatus, error) {
	query := `SELECT script, status FROM burs WHERE status != ?`

	rows, err := s.db.QueryContext(ctx, query, string(autoimply.BURRejected))
	if err != nil {
		return nil, autoimply.NewStoreError("list", "burs", err)
	}
	defer rows.Close()

	requested := make(map[autoimply.ImplicationKey]autoimply.BURStatus)
	for rows.Next() {
		var b autoimply.BURRecord
		var status string
		if err := rows.Scan(&b.Script, &status); err != nil {
			return nil, autoimply.NewStoreError("scan", "burs", err)
		}
		b.Status = autoimply.BURStatus(status)
		for _, key := range b.Implications() {
			// Pending wins over processed so callers can see what is
			// still in flight.
			if prev, ok := requested[key]; !ok || prev != autoimply.BURPending {
				requested[key] = b.Status
			}
		}
	}
	return requested, rows.Err()
}

// RelatedCopyrights returns the cached copyrights for a tag. The second
// return value is false on a cache miss.
func (s *Store) RelatedCopyrights(ctx context.Context, name string) ([]string, bool, error) {
	query := `SELECT copyrights_json FROM related_tags WHERE name = ?`

	var payload string
	err := s.db.QueryRowContext(ctx, query, name).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, autoimply.NewStoreError("get", "related_tags", err)
	}

	var copyrights []string
	if err := json.Unmarshal([]byte(payload), &copyrights); err != nil {
		return nil, false, autoimply.NewStoreError("decode", "related_tags", err)
	}
	return copyrights, true, nil
}

// SaveRelatedCopyrights caches the copyrights for a tag.
func (s *Store) SaveRelatedCopyrights(ctx context.Context, name string, copyrights []string) error {
	payload, err := json.Marshal(copyrights)
	if err != nil {
		return autoimply.NewStoreError("encode", "related_tags", err)
	}

	var query string
	switch s.dialect {
	case DialectMySQL:
		query = `INSERT INTO related_tags (name, copyrights_json, updated_at) VALUES (?, ?, ?)
	             ON DUPLICATE KEY UPDATE copyrights_json = VALUES(copyrights_json), updated_at = VALUES(updated_at)`
	default: // SQLite
		query = `INSERT INTO related_tags (name, copyrights_json, updated_at) VALUES (?, ?, ?)
	             ON CONFLICT (name) DO UPDATE SET copyrights_json = excluded.copyrights_json, updated_at = excluded.updated_at`
	}

	if _, err := s.db.ExecContext(ctx, query, name, string(payload), time.Now().UnixMilli()); err != nil {
		return autoimply.NewStoreError("upsert", "related_tags", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) maxUpdatedAt(ctx context.Context, table string) (time.Time, error) {
	query := `SELECT COALESCE(MAX(updated_at), 0) FROM ` + table

	var millis int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&millis); err != nil {
		return time.Time{}, autoimply.NewStoreError("get", table, err)
	}
	if millis == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(millis).UTC(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (autoimply.Tag, error) {
	var t autoimply.Tag
	var millis int64
	if err := row.Scan(&t.ID, &t.Name, &t.PostCount, &t.IsDeprecated, &t.HasWiki, &t.HasAntecedents, &millis); err != nil {
		return autoimply.Tag{}, autoimply.NewStoreError("scan", "tags", err)
	}
	t.UpdatedAt = time.UnixMilli(millis).UTC()
	return t, nil
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
