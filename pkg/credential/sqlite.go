package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS gauth_meta (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS gauth_credentials (
	namespace TEXT NOT NULL,
	account TEXT NOT NULL,
	payload BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, account)
);`

// SQLiteStorage stores sealed records in a SQLite database.
type SQLiteStorage struct {
	sqlDB  *sql.DB
	sealer *Sealer
	now    func() time.Time
}

// OpenSQLiteStorage opens (or creates) the database at path.
func OpenSQLiteStorage(ctx context.Context, path, passphrase string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	salt, err := sqliteSalt(ctx, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	sealer, err := NewSealer(passphrase, salt)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &SQLiteStorage{sqlDB: sqlDB, sealer: sealer, now: time.Now}, nil
}

func sqliteSalt(ctx context.Context, sqlDB *sql.DB) ([]byte, error) {
	fresh, err := NewSalt()
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.ExecContext(ctx,
		`INSERT INTO gauth_meta (key, value) VALUES ('salt', ?) ON CONFLICT(key) DO NOTHING`, fresh,
	); err != nil {
		return nil, fmt.Errorf("store salt: %w", err)
	}

	var salt []byte
	if err := sqlDB.QueryRowContext(ctx, `SELECT value FROM gauth_meta WHERE key = 'salt'`).Scan(&salt); err != nil {
		return nil, fmt.Errorf("load salt: %w", err)
	}
	return salt, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStorage) Get(ctx context.Context, namespace, account string) (Record, error) {
	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM gauth_credentials WHERE namespace = ? AND account = ?`,
		namespace, account,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return s.sealer.Open(namespace, account, payload)
}

func (s *SQLiteStorage) Create(ctx context.Context, namespace, account string, record Record) error {
	payload, err := s.sealer.Seal(namespace, account, record)
	if err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO gauth_credentials (namespace, account, payload, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, account) DO NOTHING`,
		namespace, account, payload, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *SQLiteStorage) Update(ctx context.Context, namespace, account string, record Record) error {
	payload, err := s.sealer.Seal(namespace, account, record)
	if err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE gauth_credentials SET payload = ?, updated_at = ? WHERE namespace = ? AND account = ?`,
		payload, s.now().UTC().UnixMilli(), namespace, account,
	)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
