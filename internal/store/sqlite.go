package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/aniverse/backend/internal/model"
)

// SQLiteStore implements CatalogStore, ListStore, and UserStore over a
// single SQLite database.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog (
		id          INTEGER PRIMARY KEY,
		media       TEXT NOT NULL,
		title       TEXT NOT NULL,
		format      TEXT,
		genres      TEXT,
		score       REAL,
		popularity  INTEGER,
		episodes    INTEGER,
		synopsis    TEXT,
		image_url   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_catalog_media ON catalog(media);
	CREATE INDEX IF NOT EXISTS idx_catalog_title ON catalog(title);
	CREATE INDEX IF NOT EXISTS idx_catalog_score ON catalog(score DESC);

	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS list_entries (
		user_id     TEXT NOT NULL REFERENCES users(id),
		entry_id    INTEGER NOT NULL,
		media       TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'planned',
		rating      REAL,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		added_at    TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (user_id, entry_id)
	);
	CREATE INDEX IF NOT EXISTS idx_list_user_status ON list_entries(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_list_user_media ON list_entries(user_id, media);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*model.User, error) {
	now := time.Now().UTC()
	u := &model.User{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, now.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("username or email already taken")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByName(ctx context.Context, username string) (*model.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username))
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var createdAt string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
