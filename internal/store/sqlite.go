package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aurasense/companion/internal/domain"
	"github.com/aurasense/companion/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed session store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS onboarding_sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		state TEXT NOT NULL,
		profile_json TEXT NOT NULL,
		prompt_log_json TEXT NOT NULL,
		prompt_counts_json TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_state ON onboarding_sessions(user_id, state);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON onboarding_sessions(updated_at);
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

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const sessionColumns = `session_id, user_id, state, profile_json, prompt_log_json, prompt_counts_json, version, created_at, updated_at`

// Load retrieves a session by ID.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM onboarding_sessions WHERE session_id = ?`
	return scanSession(s.db.QueryRowContext(ctx, query, sessionID))
}

// Save persists a session with optimistic versioning. Version 0 inserts,
// anything else updates only if the stored version matches.
func (s *SQLiteStore) Save(ctx context.Context, session *domain.Session) error {
	profileJSON, promptLogJSON, promptCountsJSON, err := marshalSession(session)
	if err != nil {
		return err
	}

	if session.Version == 0 {
		query := `
		INSERT INTO onboarding_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := s.db.ExecContext(ctx, query,
			session.ID, session.UserID, string(session.State),
			profileJSON, promptLogJSON, promptCountsJSON,
			int64(1), session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert session: %w", err)
		}
		session.Version = 1
		return nil
	}

	query := `
	UPDATE onboarding_sessions SET
		user_id = ?, state = ?, profile_json = ?, prompt_log_json = ?,
		prompt_counts_json = ?, version = ?, updated_at = ?
	WHERE session_id = ? AND version = ?`
	result, err := s.db.ExecContext(ctx, query,
		session.UserID, string(session.State),
		profileJSON, promptLogJSON, promptCountsJSON,
		session.Version+1, session.UpdatedAt.Unix(),
		session.ID, session.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	session.Version++
	return nil
}

// Delete removes a session. Retries on SQLITE_BUSY with exponential backoff.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		_, err := s.db.ExecContext(ctx, `DELETE FROM onboarding_sessions WHERE session_id = ?`, sessionID)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) {
			if i < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
				slog.Debug("session delete failed with SQLITE_BUSY, retrying",
					"session_id", sessionID,
					"attempt", i+1,
					"delay", delay)
				time.Sleep(delay)
				continue
			}
		}

		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}

	return nil
}

// ActiveForUser returns the user's non-terminal session, or nil.
func (s *SQLiteStore) ActiveForUser(ctx context.Context, userID string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM onboarding_sessions
	          WHERE user_id = ? AND state NOT IN (?, ?)
	          ORDER BY created_at DESC LIMIT 1`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, userID,
		string(domain.StateTerminated), string(domain.StateAborted)))
	if err == domain.ErrSessionNotFound {
		return nil, nil
	}
	return session, err
}

// SweepExpired aborts idle non-terminal sessions and drops old terminal ones.
func (s *SQLiteStore) SweepExpired(ctx context.Context, ttl, retention time.Duration) (int64, int64, error) {
	now := time.Now()
	var aborted, deleted int64

	if ttl > 0 {
		threshold := now.Add(-ttl).Unix()
		query := `
		UPDATE onboarding_sessions
		SET state = ?, version = version + 1, updated_at = ?
		WHERE state NOT IN (?, ?) AND updated_at < ?`
		result, err := s.db.ExecContext(ctx, query,
			string(domain.StateAborted), now.Unix(),
			string(domain.StateTerminated), string(domain.StateAborted),
			threshold,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("abort expired sessions: %w", err)
		}
		aborted, err = result.RowsAffected()
		if err != nil {
			return 0, 0, fmt.Errorf("get aborted rows: %w", err)
		}
	}

	if retention > 0 {
		threshold := now.Add(-retention).Unix()
		query := `DELETE FROM onboarding_sessions WHERE state IN (?, ?) AND updated_at < ?`
		result, err := s.db.ExecContext(ctx, query,
			string(domain.StateTerminated), string(domain.StateAborted), threshold)
		if err != nil {
			return aborted, 0, fmt.Errorf("delete retired sessions: %w", err)
		}
		deleted, err = result.RowsAffected()
		if err != nil {
			return aborted, 0, fmt.Errorf("get deleted rows: %w", err)
		}
	}

	return aborted, deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var state, profileJSON, promptLogJSON, promptCountsJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.ID, &session.UserID, &state,
		&profileJSON, &promptLogJSON, &promptCountsJSON,
		&session.Version, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.State = domain.DialogueState(state)
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(profileJSON), &session.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if err := json.Unmarshal([]byte(promptLogJSON), &session.PromptLog); err != nil {
		return nil, fmt.Errorf("unmarshal prompt log: %w", err)
	}
	if err := json.Unmarshal([]byte(promptCountsJSON), &session.PromptCounts); err != nil {
		return nil, fmt.Errorf("unmarshal prompt counts: %w", err)
	}

	return &session, nil
}

func marshalSession(session *domain.Session) (string, string, string, error) {
	profile := session.Profile
	if profile == nil {
		profile = domain.Profile{}
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal profile: %w", err)
	}

	promptLog := session.PromptLog
	if promptLog == nil {
		promptLog = []string{}
	}
	promptLogJSON, err := json.Marshal(promptLog)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal prompt log: %w", err)
	}

	promptCounts := session.PromptCounts
	if promptCounts == nil {
		promptCounts = map[string]int{}
	}
	promptCountsJSON, err := json.Marshal(promptCounts)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal prompt counts: %w", err)
	}

	return string(profileJSON), string(promptLogJSON), string(promptCountsJSON), nil
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)
