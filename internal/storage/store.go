// Package storage is the client's local storage: small key/value
// preferences and the persisted session cookies, kept in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"financeflow/internal/log"

	_ "modernc.org/sqlite"
)

// Well-known keys.
const (
	KeyLastTab      = "last_tab"
	KeyLastEmail    = "last_email"
	KeyReportPeriod = "report_period"
	KeyUser         = "user"
	KeyTokenExpiry  = "token_expires_at"
)

// Cookie is one persisted session cookie, keyed by the URL it was set for.
type Cookie struct {
	URL      string
	Name     string
	Value    string
	Path     string
	Domain   string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
}

type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

// Open creates the database file if needed and applies migrations.
func Open(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Debug("Local store ready", "path", dbPath)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Clear wipes local storage: every key and every persisted cookie.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("clear kv: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	s.logger.Info("Local storage cleared")
	return nil
}

// SaveCookie inserts or replaces a cookie.
func (s *SQLiteStore) SaveCookie(ctx context.Context, c Cookie) error {
	var expires int64
	if !c.Expires.IsZero() {
		expires = c.Expires.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cookies (url, name, value, path, domain, expires_at, secure, http_only)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url, name) DO UPDATE SET
			value = excluded.value, path = excluded.path, domain = excluded.domain,
			expires_at = excluded.expires_at, secure = excluded.secure, http_only = excluded.http_only`,
		c.URL, c.Name, c.Value, c.Path, c.Domain, expires, c.Secure, c.HTTPOnly)
	if err != nil {
		return fmt.Errorf("save cookie %s: %w", c.Name, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCookie(ctx context.Context, url, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE url = ? AND name = ?`, url, name); err != nil {
		return fmt.Errorf("delete cookie %s: %w", name, err)
	}
	return nil
}

// LoadCookies returns the cookies that have not expired at now. Expired
// rows are removed.
func (s *SQLiteStore) LoadCookies(ctx context.Context, now time.Time) ([]Cookie, error) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cookies WHERE expires_at > 0 AND expires_at <= ?`, now.Unix()); err != nil {
		return nil, fmt.Errorf("purge expired cookies: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT url, name, value, path, domain, expires_at, secure, http_only
		FROM cookies ORDER BY url, name`)
	if err != nil {
		return nil, fmt.Errorf("query cookies: %w", err)
	}
	defer rows.Close()

	var out []Cookie
	for rows.Next() {
		var (
			c       Cookie
			expires int64
		)
		if err := rows.Scan(&c.URL, &c.Name, &c.Value, &c.Path, &c.Domain, &expires, &c.Secure, &c.HTTPOnly); err != nil {
			return nil, fmt.Errorf("scan cookie: %w", err)
		}
		if expires > 0 {
			c.Expires = time.Unix(expires, 0).UTC()
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cookies: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ClearCookies(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}
