// Package memory persists session records in SQLite with an FTS5 shadow index.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrInvalidDate is returned by ByDate for input that is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("memory: date must be YYYY-MM-DD")

// Store is a handle on one memory database. Construct it once per process
// and pass it to whoever needs it.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at dbPath.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("memory: create db directory: %w", err)
	}

	// WAL lets the foreground hook read while the background worker writes.
	// _txlock=immediate takes the write lock at BEGIN so upserts never
	// deadlock on a read-to-write upgrade.
	dsn := "file:" + dbPath +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: ping database: %w", err)
	}

	s := &Store{db: db, path: dbPath, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := retryOnBusy(ctx, busyRetries, func() error { return s.initSchema(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		started_at     TEXT NOT NULL,
		last_active    TEXT NOT NULL,
		branch         TEXT NOT NULL DEFAULT '',
		cwd            TEXT NOT NULL DEFAULT '',
		files_modified TEXT NOT NULL DEFAULT '[]',
		summary        TEXT NOT NULL DEFAULT '',
		tags           TEXT NOT NULL DEFAULT '',
		stop_count     INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_scope ON sessions(branch, cwd, last_active);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active);

	-- External-content index; the triggers below keep it exact.
	CREATE VIRTUAL TABLE IF NOT EXISTS sessions_fts USING fts5(
		branch, files_modified, summary, tags,
		content='sessions', content_rowid='rowid'
	);

	CREATE TRIGGER IF NOT EXISTS sessions_ai AFTER INSERT ON sessions BEGIN
		INSERT INTO sessions_fts(rowid, branch, files_modified, summary, tags)
		VALUES (new.rowid, new.branch, new.files_modified, new.summary, new.tags);
	END;

	CREATE TRIGGER IF NOT EXISTS sessions_ad AFTER DELETE ON sessions BEGIN
		INSERT INTO sessions_fts(sessions_fts, rowid, branch, files_modified, summary, tags)
		VALUES ('delete', old.rowid, old.branch, old.files_modified, old.summary, old.tags);
	END;

	CREATE TRIGGER IF NOT EXISTS sessions_au AFTER UPDATE ON sessions BEGIN
		INSERT INTO sessions_fts(sessions_fts, rowid, branch, files_modified, summary, tags)
		VALUES ('delete', old.rowid, old.branch, old.files_modified, old.summary, old.tags);
		INSERT INTO sessions_fts(rowid, branch, files_modified, summary, tags)
		VALUES (new.rowid, new.branch, new.files_modified, new.summary, new.tags);
	END;
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Upsert records a session-end event. If a session for the same branch and
// cwd was active within window, it is extended: files are unioned,
// stop_count is incremented and last_active refreshed. Otherwise a new
// session is created. The lookup and the write share one transaction.
func (s *Store) Upsert(ctx context.Context, branch, cwd string, files []string, window time.Duration) (string, error) {
	var id string
	err := retryOnBusy(ctx, busyRetries, func() error {
		var err error
		id, err = s.upsertTx(ctx, branch, cwd, files, window)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("memory: upsert session: %w", err)
	}
	return id, nil
}

func (s *Store) upsertTx(ctx context.Context, branch, cwd string, files []string, window time.Duration) (string, error) {
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var id, rawFiles string
	err = tx.QueryRowContext(ctx, `
		SELECT id, files_modified FROM sessions
		WHERE branch = ? AND cwd = ? AND last_active > ?
		ORDER BY last_active DESC LIMIT 1`,
		branch, cwd, formatTime(now.Add(-window)),
	).Scan(&id, &rawFiles)

	switch {
	case err == nil:
		merged := unionSorted(decodeFiles(rawFiles), files)
		_, err = tx.ExecContext(ctx, `
			UPDATE sessions
			SET last_active = ?, files_modified = ?, stop_count = stop_count + 1
			WHERE id = ?`,
			formatTime(now), encodeFiles(merged), id)
		if err != nil {
			return "", err
		}
	case errors.Is(err, sql.ErrNoRows):
		id, err = insertSession(ctx, tx, now, branch, cwd, unionSorted(files))
		if err != nil {
			return "", err
		}
	default:
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func insertSession(ctx context.Context, tx *sql.Tx, now time.Time, branch, cwd string, files []string) (string, error) {
	id := now.Format(idLayout)

	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists)
	if err == nil {
		// another scope started a session in the same second
		id = id + "-" + uuid.NewString()[:8]
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	ts := formatTime(now)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, last_active, branch, cwd, files_modified, summary, tags, stop_count)
		VALUES (?, ?, ?, ?, ?, ?, '', '', 1)`,
		id, ts, ts, branch, cwd, encodeFiles(files))
	if err != nil {
		if isConstraint(err) {
			return "", fmt.Errorf("session id %s already taken: %w", id, err)
		}
		return "", err
	}
	return id, nil
}

// UpdateSummary overwrites the summary. It reports false when id is unknown.
func (s *Store) UpdateSummary(ctx context.Context, id, text string) (bool, error) {
	return s.execAffects(ctx, "update summary",
		`UPDATE sessions SET summary = ? WHERE id = ?`, text, id)
}

// FillSummaryIfEmpty writes text only when the session has no summary yet.
// It reports whether the write happened.
func (s *Store) FillSummaryIfEmpty(ctx context.Context, id, text string) (bool, error) {
	return s.execAffects(ctx, "fill summary",
		`UPDATE sessions SET summary = ? WHERE id = ? AND summary = ''`, text, id)
}

func (s *Store) execAffects(ctx context.Context, op, query string, args ...any) (bool, error) {
	var n int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("memory: %s: %w", op, err)
	}
	return n > 0, nil
}

// AddTags unions the comma-separated tags into the session's tag set.
// It reports false when id is unknown.
func (s *Store) AddTags(ctx context.Context, id, tags string) (bool, error) {
	var found bool
	err := retryOnBusy(ctx, busyRetries, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var existing string
		err = tx.QueryRowContext(ctx, `SELECT tags FROM sessions WHERE id = ?`, id).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}

		merged := unionSorted(splitTags(existing), splitTags(tags))
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET tags = ? WHERE id = ?`,
			strings.Join(merged, ","), id); err != nil {
			return err
		}
		found = true
		return tx.Commit()
	})
	if err != nil {
		return false, fmt.Errorf("memory: add tags: %w", err)
	}
	return found, nil
}

const sessionColumns = `s.id, s.started_at, s.last_active, s.branch, s.cwd,
	s.files_modified, s.summary, s.tags, s.stop_count`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var (
		sess                  Session
		startedAt, lastActive string
		rawFiles, rawTags     string
	)
	if err := row.Scan(&sess.ID, &startedAt, &lastActive, &sess.Branch, &sess.Cwd,
		&rawFiles, &sess.Summary, &rawTags, &sess.StopCount); err != nil {
		return nil, err
	}
	sess.StartedAt = parseTime(startedAt)
	sess.LastActive = parseTime(lastActive)
	sess.FilesModified = decodeFiles(rawFiles)
	sess.Tags = splitTags(rawTags)
	return &sess, nil
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: %s: %w", op, err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("memory: %s: scan: %w", op, err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: %s: %w", op, err)
	}
	return sessions, nil
}

func (s *Store) one(ctx context.Context, op, query string, args ...any) (*Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: %s: %w", op, err)
	}
	return sess, nil
}

// Get returns the session with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	return s.one(ctx, "get session",
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
}

// Latest returns the most recently active session, or nil.
func (s *Store) Latest(ctx context.Context) (*Session, error) {
	return s.one(ctx, "latest session",
		`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.last_active DESC LIMIT 1`)
}

// LatestForBranch returns the most recently active session on branch, or nil.
func (s *Store) LatestForBranch(ctx context.Context, branch string) (*Session, error) {
	return s.one(ctx, "latest session for branch",
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.branch = ?
		ORDER BY s.last_active DESC LIMIT 1`, branch)
}

// Recent returns up to limit sessions, most recently active first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Session, error) {
	return s.list(ctx, "recent sessions",
		`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.last_active DESC LIMIT ?`, limit)
}

// ByDate returns sessions started on the given UTC day (YYYY-MM-DD).
func (s *Store) ByDate(ctx context.Context, date string) ([]*Session, error) {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return nil, ErrInvalidDate
	}
	return s.list(ctx, "sessions by date",
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.started_at LIKE ?
		ORDER BY s.last_active DESC`, date+"%")
}

// Search runs a full-text query over branch, files, summary and tags.
// The query is matched as a phrase; results are ordered by relevance,
// then by recency.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*Session, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	phrase := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`

	return s.list(ctx, "search sessions", `
		SELECT `+sessionColumns+`
		FROM sessions_fts
		JOIN sessions s ON s.rowid = sessions_fts.rowid
		WHERE sessions_fts MATCH ?
		ORDER BY sessions_fts.rank, s.last_active DESC
		LIMIT ?`, phrase, limit)
}

// Cleanup deletes sessions whose last activity is older than days and
// returns their ids. The FTS rows go in the same statement via trigger.
func (s *Store) Cleanup(ctx context.Context, days int) ([]string, error) {
	cutoff := formatTime(s.now().UTC().AddDate(0, 0, -days))

	var ids []string
	err := retryOnBusy(ctx, busyRetries, func() error {
		ids = ids[:0]
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `SELECT id FROM sessions WHERE last_active < ?`, cutoff)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE last_active < ?`, cutoff); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("memory: cleanup: %w", err)
	}
	return ids, nil
}

// Stats returns aggregate counts over the store.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st             Stats
		oldest, newest sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN summary != '' THEN 1 ELSE 0 END), 0),
		       MIN(started_at),
		       MAX(last_active)
		FROM sessions`).Scan(&st.Total, &st.WithSummary, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("memory: stats: %w", err)
	}
	if oldest.Valid && len(oldest.String) >= 10 {
		st.OldestDate = oldest.String[:10]
	}
	if newest.Valid && len(newest.String) >= 10 {
		st.NewestDate = newest.String[:10]
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT branch FROM sessions ORDER BY branch`)
	if err != nil {
		return Stats{}, fmt.Errorf("memory: stats branches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return Stats{}, fmt.Errorf("memory: stats branches: %w", err)
		}
		st.Branches = append(st.Branches, b)
	}
	return st, rows.Err()
}
