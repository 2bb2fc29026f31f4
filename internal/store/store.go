package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
)

var (
	// ErrNotFound is returned when a session or revision does not exist.
	ErrNotFound = errors.New("not found")
	// ErrImmutable is returned when writing to a compiled or failed revision.
	ErrImmutable = errors.New("artifact is immutable")
	// ErrBusy is returned when another revision of the session is compiling.
	ErrBusy = errors.New("another revision is compiling")
)

// Store provides SQLite-backed persistence for sessions and artifacts.
type Store struct {
	db          *sql.DB
	sessionsDir string
}

// NewStore opens the SQLite database at dbPath and creates tables if they
// don't exist. Session directories are created under sessionsDir.
func NewStore(dbPath, sessionsDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serialises writers, which keeps revision numbering
	// and the single-compiling check race free.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, sessionsDir: sessionsDir}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		language TEXT NOT NULL,
		theme TEXT NOT NULL,
		toc INTEGER NOT NULL DEFAULT 0,
		figure_dir TEXT NOT NULL,
		dir TEXT NOT NULL,
		plan BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		session_id TEXT NOT NULL,
		revision INTEGER NOT NULL,
		text TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		diagnostics TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL,
		base_revision INTEGER,
		feedback TEXT NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, revision),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		revision INTEGER NOT NULL,
		number INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		diagnostics TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id, revision) REFERENCES artifacts(session_id, revision)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateSession assigns sess an ID and directory, creates the directory and
// persists the session.
func (s *Store) CreateSession(ctx context.Context, sess *Session) (*Session, error) {
	out := *sess
	out.ID = uuid.New().String()
	out.CreatedAt = time.Now().UTC()
	out.Dir = filepath.Join(s.sessionsDir, out.ID)

	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, language, theme, toc, figure_dir, dir, plan, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.Title, out.Language, out.Theme, out.TableOfContents, out.FigureDir, out.Dir, out.Plan, out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return &out, nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, language, theme, toc, figure_dir, dir, plan, created_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	var sess Session
	err := row.Scan(&sess.ID, &sess.Title, &sess.Language, &sess.Theme, &sess.TableOfContents,
		&sess.FigureDir, &sess.Dir, &sess.Plan, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &sess, nil
}

// ListSessions returns summaries of the most recent sessions.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.title, s.created_at,
		        COUNT(a.revision) AS revisions,
		        COALESCE(MAX(CASE WHEN a.status = 'compiled' THEN a.revision END), -1) AS latest
		 FROM sessions s
		 LEFT JOIN artifacts a ON s.id = a.session_id
		 GROUP BY s.id
		 ORDER BY s.created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.CreatedAt, &sum.Revisions, &sum.LatestCompiled); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return summaries, nil
}

// PutArtifact stores a as the next revision of its session in pending
// status. The revision number is assigned here: one more than the highest
// existing revision, so numbering stays gapless.
func (s *Store) PutArtifact(ctx context.Context, a *Artifact) (*Artifact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(revision), -1) + 1 FROM artifacts WHERE session_id = ?`,
		a.SessionID,
	).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("next revision: %w", err)
	}

	out := *a
	out.Revision = next
	out.Status = deck.StatusPending
	out.Attempts = 0
	out.Diagnostics = ""
	out.ErrorKind = ""
	out.OutputPath = ""
	out.CreatedAt = time.Now().UTC()
	out.UpdatedAt = out.CreatedAt

	var base sql.NullInt64
	if out.BaseRevision >= 0 {
		base = sql.NullInt64{Int64: int64(out.BaseRevision), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO artifacts (session_id, revision, text, status, origin, base_revision, feedback, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.SessionID, out.Revision, out.Text, out.Status, out.Origin, base, out.Feedback, out.CreatedAt, out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit artifact: %w", err)
	}
	return &out, nil
}

const artifactColumns = `session_id, revision, text, status, attempts, diagnostics, error_kind,
	origin, base_revision, feedback, output_path, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (*Artifact, error) {
	var a Artifact
	var base sql.NullInt64
	err := row.Scan(&a.SessionID, &a.Revision, &a.Text, &a.Status, &a.Attempts, &a.Diagnostics,
		&a.ErrorKind, &a.Origin, &base, &a.Feedback, &a.OutputPath, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.BaseRevision = -1
	if base.Valid {
		a.BaseRevision = int(base.Int64)
	}
	return &a, nil
}

// GetRevision returns one revision of a session.
func (s *Store) GetRevision(ctx context.Context, sessionID string, revision int) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE session_id = ? AND revision = ?`,
		sessionID, revision,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision %d of session %s: %w", revision, sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	return a, nil
}

// GetLatestCompiled returns the highest compiled revision of a session.
func (s *Store) GetLatestCompiled(ctx context.Context, sessionID string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts
		 WHERE session_id = ? AND status = 'compiled'
		 ORDER BY revision DESC LIMIT 1`,
		sessionID,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("compiled revision of session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	return a, nil
}

// ListRevisions returns every revision of a session in revision order.
func (s *Store) ListRevisions(ctx context.Context, sessionID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE session_id = ? ORDER BY revision`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// UpdateText replaces the text of a revision that is still being built.
// Compiled and failed revisions are immutable.
func (s *Store) UpdateText(ctx context.Context, sessionID string, revision int, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET text = ?, updated_at = ?
		 WHERE session_id = ? AND revision = ? AND status IN ('pending', 'compiling')`,
		text, time.Now().UTC(), sessionID, revision,
	)
	if err != nil {
		return fmt.Errorf("update artifact text: %w", err)
	}
	return s.checkAffected(ctx, res, sessionID, revision)
}

// MarkCompiling moves a pending revision to compiling. It fails with ErrBusy
// when another revision of the same session is already compiling.
func (s *Store) MarkCompiling(ctx context.Context, sessionID string, revision int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var busy int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artifacts WHERE session_id = ? AND status = 'compiling' AND revision != ?`,
		sessionID, revision,
	).Scan(&busy)
	if err != nil {
		return fmt.Errorf("check compiling: %w", err)
	}
	if busy > 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrBusy)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE artifacts SET status = 'compiling', updated_at = ?
		 WHERE session_id = ? AND revision = ? AND status IN ('pending', 'compiling')`,
		time.Now().UTC(), sessionID, revision,
	)
	if err != nil {
		return fmt.Errorf("mark compiling: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("revision %d: %w", revision, ErrImmutable)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit compiling: %w", err)
	}
	return nil
}

// MarkCompiled publishes a compiling revision. The status change and output
// path are written in one statement, so readers never see a compiled
// revision without its final text.
func (s *Store) MarkCompiled(ctx context.Context, sessionID string, revision int, outputPath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET status = 'compiled', output_path = ?, error_kind = '', updated_at = ?
		 WHERE session_id = ? AND revision = ? AND status = 'compiling'`,
		outputPath, time.Now().UTC(), sessionID, revision,
	)
	if err != nil {
		return fmt.Errorf("mark compiled: %w", err)
	}
	return s.checkAffected(ctx, res, sessionID, revision)
}

// MarkFailed records a terminal failure with its kind and last diagnostics.
func (s *Store) MarkFailed(ctx context.Context, sessionID string, revision int, kind, diagnostics string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET status = 'failed', error_kind = ?, diagnostics = ?, updated_at = ?
		 WHERE session_id = ? AND revision = ? AND status IN ('pending', 'compiling')`,
		kind, diagnostics, time.Now().UTC(), sessionID, revision,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return s.checkAffected(ctx, res, sessionID, revision)
}

// RecordAttempt appends a compile attempt to a revision's history and
// updates the revision's attempt counter and last diagnostics.
func (s *Store) RecordAttempt(ctx context.Context, sessionID string, revision int, at Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if at.CreatedAt.IsZero() {
		at.CreatedAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE artifacts SET attempts = ?, diagnostics = ?, updated_at = ?
		 WHERE session_id = ? AND revision = ? AND status = 'compiling'`,
		at.Number, at.Diagnostics, at.CreatedAt, sessionID, revision,
	)
	if err != nil {
		return fmt.Errorf("update attempt counter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("revision %d is not compiling: %w", revision, ErrImmutable)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (session_id, revision, number, outcome, diagnostics, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, revision, at.Number, at.Outcome, at.Diagnostics, at.DurationMs, at.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the compile attempts of a revision in order.
func (s *Store) ListAttempts(ctx context.Context, sessionID string, revision int) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, outcome, diagnostics, duration_ms, created_at
		 FROM attempts WHERE session_id = ? AND revision = ? ORDER BY number`,
		sessionID, revision,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Attempt
	for rows.Next() {
		var at Attempt
		if err := rows.Scan(&at.Number, &at.Outcome, &at.Diagnostics, &at.DurationMs, &at.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// checkAffected turns a zero-row update into ErrNotFound or ErrImmutable.
func (s *Store) checkAffected(ctx context.Context, res sql.Result, sessionID string, revision int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetRevision(ctx, sessionID, revision); err != nil {
		return err
	}
	return fmt.Errorf("revision %d of session %s: %w", revision, sessionID, ErrImmutable)
}
