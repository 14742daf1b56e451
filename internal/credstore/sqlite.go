package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps credentials in a single-row SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const credentialsTable = "credentials"

var credentialColumns = []string{"token", "session_id", "username", "expires_at"}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
// Use ":memory:" in tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("credstore: open database: %w", err)
	}
	// one connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("credstore: ping database: %w", err)
	}
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS credentials (
			id          INTEGER PRIMARY KEY CHECK (id = 1),
			token       TEXT NOT NULL,
			session_id  TEXT NOT NULL DEFAULT '',
			username    TEXT NOT NULL DEFAULT '',
			expires_at  TEXT NOT NULL DEFAULT '',
			updated_at  TEXT NOT NULL
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("credstore: create table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Credentials, error) {
	query, args, err := sq.Select(credentialColumns...).
		From(credentialsTable).
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return Credentials{}, fmt.Errorf("credstore: build query: %w", err)
	}
	var c Credentials
	var expires string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&c.Token, &c.SessionID, &c.Username, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("credstore: load: %w", err)
	}
	if expires != "" {
		if t, err := time.Parse(time.RFC3339, expires); err == nil {
			c.ExpiresAt = t
		}
	}
	return c, nil
}

func (s *SQLiteStore) Save(ctx context.Context, c Credentials) error {
	expires := ""
	if !c.ExpiresAt.IsZero() {
		expires = c.ExpiresAt.UTC().Format(time.RFC3339)
	}
	query, args, err := sq.Insert(credentialsTable).
		Columns("id", "token", "session_id", "username", "expires_at", "updated_at").
		Values(1, c.Token, c.SessionID, c.Username, expires, time.Now().UTC().Format(time.RFC3339)).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			token      = excluded.token,
			session_id = excluded.session_id,
			username   = excluded.username,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("credstore: build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("credstore: save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	query, args, err := sq.Delete(credentialsTable).Where(sq.Eq{"id": 1}).ToSql()
	if err != nil {
		return fmt.Errorf("credstore: build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("credstore: clear: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
