package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"synbot/internal/config"
	"synbot/internal/models"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the relational backend selected by the storage config.
func Open(cfg config.StorageConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				username TEXT PRIMARY KEY,
				password TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS threads (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL,
				name TEXT NOT NULL,
				UNIQUE(username, name)
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				thread_id INTEGER NOT NULL,
				position INTEGER NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY(thread_id) REFERENCES threads(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_threads_username ON threads(username)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, position)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				username VARCHAR(255) NOT NULL,
				password TEXT NOT NULL,
				PRIMARY KEY (username)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS threads (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				username VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_user_thread (username, name),
				INDEX idx_threads_username (username)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS messages (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				thread_id BIGINT UNSIGNED NOT NULL,
				position INT NOT NULL,
				role VARCHAR(50) NOT NULL,
				content MEDIUMTEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_messages_thread (thread_id, position),
				CONSTRAINT fk_messages_thread FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}

// SQLCredentialStore implements CredentialStore on a relational backend.
type SQLCredentialStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLCredentialStore(db *sql.DB) *SQLCredentialStore {
	return &SQLCredentialStore{db: db}
}

func (s *SQLCredentialStore) Register(ctx context.Context, username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password) VALUES (?, ?)`, username, password,
	); err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return true, nil
}

func (s *SQLCredentialStore) Validate(ctx context.Context, username, password string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT password FROM users WHERE username = ?`, username,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return stored == password, nil
}

func (s *SQLCredentialStore) ResetPassword(ctx context.Context, username, newPassword string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = ? WHERE username = ?`, newPassword, username,
	)
	if err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SQLTranscriptStore implements TranscriptStore on a relational backend.
// Save keeps the wholesale-replace semantics of the file backend: the
// user's rows are deleted and re-inserted inside one transaction.
type SQLTranscriptStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLTranscriptStore(db *sql.DB) *SQLTranscriptStore {
	return &SQLTranscriptStore{db: db}
}

func (s *SQLTranscriptStore) Load(ctx context.Context, username string) (*models.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.name, m.role, m.content, m.created_at
		 FROM threads t
		 LEFT JOIN messages m ON m.thread_id = t.id
		 WHERE t.username = ?
		 ORDER BY t.name, m.position`, username,
	)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	defer rows.Close()

	tr := &models.Transcript{Owner: username, Threads: map[string]*models.Thread{}}
	for rows.Next() {
		var (
			name    string
			role    sql.NullString
			content sql.NullString
			created sql.NullTime
		)
		if err := rows.Scan(&name, &role, &content, &created); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		th := tr.Threads[name]
		if th == nil {
			th = &models.Thread{Name: name}
			tr.Threads[name] = th
		}
		if role.Valid {
			th.Messages = append(th.Messages, models.Message{
				Role:      models.Role(role.String),
				Content:   content.String,
				CreatedAt: created.Time,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript rows: %w", err)
	}
	tr.EnsureDefault()
	return tr, nil
}

func (s *SQLTranscriptStore) Save(ctx context.Context, username string, tr *models.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE thread_id IN (SELECT id FROM threads WHERE username = ?)`, username,
	); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE username = ?`, username); err != nil {
		return fmt.Errorf("clear threads: %w", err)
	}

	for _, name := range tr.ThreadNames() {
		th := tr.Threads[name]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO threads (username, name) VALUES (?, ?)`, username, name,
		)
		if err != nil {
			return fmt.Errorf("insert thread: %w", err)
		}
		threadID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("thread id: %w", err)
		}
		for i, msg := range th.Messages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (thread_id, position, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
				threadID, i, msg.Role, msg.Content, msg.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transcript: %w", err)
	}
	return nil
}
