package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// SQLiteStore persists sessions in a SQLite database so history survives
// restarts.
type SQLiteStore struct {
	db     *sql.DB
	seed   []Entry
	logger *slog.Logger
}

// NewSQLiteStore opens or creates the session database at dbPath.
func NewSQLiteStore(dbPath string, seed []Entry, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	store := &SQLiteStore{
		db:     db,
		seed:   seed,
		logger: logger.With("component", "session"),
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS session_entries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			role       TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_session_entries_user
			ON session_entries(user_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) History(ctx context.Context, userID string) ([]Entry, error) {
	if err := s.seedIfEmpty(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, text FROM session_entries
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Role, &e.Text); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, userID string, entries ...Entry) error {
	if err := s.seedIfEmpty(ctx, userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, e := range entries {
		if _, err := tx.Exec(`
			INSERT INTO session_entries (user_id, role, text, created_at)
			VALUES (?, ?, ?, ?)
		`, userID, e.Role, e.Text, now); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	// Prune: pin the seed rows, keep the most recent turns, drop the middle.
	var count int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM session_entries WHERE user_id = ?", userID,
	).Scan(&count); err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	if count > maxEntries {
		if _, err := tx.Exec(`
			DELETE FROM session_entries
			WHERE user_id = ?
			  AND id NOT IN (
				SELECT id FROM session_entries WHERE user_id = ? ORDER BY id ASC LIMIT ?
			  )
			  AND id NOT IN (
				SELECT id FROM session_entries WHERE user_id = ? ORDER BY id DESC LIMIT ?
			  )
		`, userID, userID, len(s.seed), userID, keepRecent); err != nil {
			return fmt.Errorf("prune entries: %w", err)
		}
		s.logger.Debug("session pruned", "user", userID, "had", count)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Clear(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM session_entries WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*), MAX(created_at),
			(SELECT text FROM session_entries last
			 WHERE last.user_id = session_entries.user_id
			 ORDER BY last.id DESC LIMIT 1)
		FROM session_entries
		GROUP BY user_id
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		// MAX(created_at) is an expression column, so the driver loses the
		// DATETIME decltype and hands the raw string back.
		var updated string
		if err := rows.Scan(&info.UserID, &info.Entries, &updated, &info.LastText); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		info.UpdatedAt, err = parseStoredTime(updated)
		if err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// storedTimeFormats are the layouts go-sqlite3 writes DATETIME values in,
// most precise first.
var storedTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range storedTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (s *SQLiteStore) Sweep(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxIdle)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var stale int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT user_id FROM session_entries
			GROUP BY user_id
			HAVING MAX(created_at) < ?
		)
	`, cutoff).Scan(&stale); err != nil {
		return 0, fmt.Errorf("count stale sessions: %w", err)
	}
	if stale == 0 {
		return 0, nil
	}

	if _, err := tx.Exec(`
		DELETE FROM session_entries WHERE user_id IN (
			SELECT user_id FROM session_entries
			GROUP BY user_id
			HAVING MAX(created_at) < ?
		)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.Info("idle sessions swept", "removed", stale)
	return stale, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// seedIfEmpty inserts the persona seed for users with no stored history.
func (s *SQLiteStore) seedIfEmpty(ctx context.Context, userID string) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM session_entries WHERE user_id = ?", userID,
	).Scan(&count); err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, e := range s.seed {
		if _, err := tx.Exec(`
			INSERT INTO session_entries (user_id, role, text, created_at)
			VALUES (?, ?, ?, ?)
		`, userID, e.Role, e.Text, now); err != nil {
			return fmt.Errorf("insert seed: %w", err)
		}
	}
	s.logger.Debug("session seeded", "user", userID)
	return tx.Commit()
}
