package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/firstprinciples/internal/domain"
	"github.com/ashureev/firstprinciples/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers while a report is being recorded.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		report_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		path TEXT,
		content TEXT NOT NULL,
		degraded_json TEXT,
		save_error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_user_created ON reports(user_id, created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	err := shared.RetryOnConflict(ctx, writeAttempts, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username, user.LastSeenAt.Unix(),
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`

	var result sql.Result
	err := shared.RetryOnConflict(ctx, writeAttempts, writeBaseDelay, func() error {
		var err error
		result, err = s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// SaveReport records an emitted report.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *domain.Report) error {
	query := `
	INSERT INTO reports (report_id, user_id, session_id, filename, path, content,
	                     degraded_json, save_error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var degraded interface{}
	if len(report.Degraded) > 0 {
		data, err := json.Marshal(report.Degraded)
		if err != nil {
			return fmt.Errorf("encode degraded operations: %w", err)
		}
		degraded = string(data)
	}

	var path, saveError interface{}
	if report.Path != "" {
		path = report.Path
	}
	if report.SaveError != "" {
		saveError = report.SaveError
	}

	err := shared.RetryOnConflict(ctx, writeAttempts, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			report.ID, report.UserID, report.SessionID, report.Filename, path,
			report.Content, degraded, saveError, report.CreatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// ListReports returns a user's reports, newest first, without content.
func (s *SQLiteStore) ListReports(ctx context.Context, userID string, limit int) ([]*domain.Report, error) {
	if limit <= 0 {
		limit = DefaultReportListLimit
	}

	query := `
		SELECT report_id, user_id, session_id, filename, path, degraded_json, save_error, created_at
		FROM reports WHERE user_id = ?
		ORDER BY created_at DESC, report_id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close report rows", "error", closeErr)
		}
	}()

	var reports []*domain.Report
	for rows.Next() {
		var report domain.Report
		var path, degraded, saveError sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&report.ID, &report.UserID, &report.SessionID, &report.Filename,
			&path, &degraded, &saveError, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		if err := fillReport(&report, path, degraded, saveError, createdAt); err != nil {
			return nil, err
		}
		reports = append(reports, &report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return reports, nil
}

// GetReport retrieves one of a user's reports with its content.
func (s *SQLiteStore) GetReport(ctx context.Context, userID, reportID string) (*domain.Report, error) {
	query := `
		SELECT report_id, user_id, session_id, filename, path, content,
		       degraded_json, save_error, created_at
		FROM reports WHERE user_id = ? AND report_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID, reportID)

	var report domain.Report
	var path, degraded, saveError sql.NullString
	var createdAt int64

	err := row.Scan(
		&report.ID, &report.UserID, &report.SessionID, &report.Filename,
		&path, &report.Content, &degraded, &saveError, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}
	if err := fillReport(&report, path, degraded, saveError, createdAt); err != nil {
		return nil, err
	}

	return &report, nil
}

func fillReport(report *domain.Report, path, degraded, saveError sql.NullString, createdAt int64) error {
	report.Path = path.String
	report.SaveError = saveError.String
	report.CreatedAt = time.Unix(createdAt, 0)
	if degraded.Valid && degraded.String != "" {
		if err := json.Unmarshal([]byte(degraded.String), &report.Degraded); err != nil {
			return fmt.Errorf("decode degraded operations for %s: %w", report.ID, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
