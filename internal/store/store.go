// Package store persists sessions, runs, and the provenance index log to
// SQLite, grounded on the teacher's internal/store/local_core.go connection
// setup and migrations.go additive-column pattern.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wdl-platform/corewdl/internal/logging"
)

// SessionCommand enumerates the kind of session a caller opened.
type SessionCommand string

const (
	SessionRun     SessionCommand = "run"
	SessionAnalyze SessionCommand = "analyze"
	SessionLSP     SessionCommand = "lsp"
)

// RunStatus is the run lifecycle state (spec.md §4.5 / §6).
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Session is one row of the sessions table.
type Session struct {
	UUID      uuid.UUID
	Command   SessionCommand
	CreatedBy string
	CreatedAt time.Time
}

// Run is one row of the runs table.
type Run struct {
	UUID         uuid.UUID
	SessionUUID  uuid.UUID
	Name         string
	Source       string
	TargetName   string
	Inputs       string
	ExecutionDir string
	Status       RunStatus
	Outputs      *string
	Error        *string
	IndexDir     *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// IndexLogEntry is one append-only row of the index_log table.
type IndexLogEntry struct {
	UUID      uuid.UUID
	RunUUID   uuid.UUID
	LinkPath  string
	TargetPath string
	CreatedAt time.Time
	seq       int64 // sqlite rowid, the insertion-order tie-breaker
}

// DB wraps the SQLite connection. Writes are serialized by SQLite itself
// (db.SetMaxOpenConns(1)), mirroring the teacher's single-writer pattern.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if absent) the SQLite database at path and runs
// migrations. path may be ":memory:" for tests, matching the teacher's
// migrations_benchmark_test.go convention.
func Open(path string) (*DB, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if _, err := sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryStore).Warn("set busy_timeout: %v", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryStore).Warn("set journal_mode=WAL: %v", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.Get(logging.CategoryStore).Warn("enable foreign_keys: %v", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) migrate() error {
	timer := logging.StartTimer(logging.CategoryStore, "migrate")
	defer timer.Stop()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			uuid TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			uuid TEXT PRIMARY KEY,
			session_uuid TEXT NOT NULL REFERENCES sessions(uuid),
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			target_name TEXT NOT NULL,
			inputs TEXT NOT NULL,
			execution_dir TEXT NOT NULL,
			status TEXT NOT NULL,
			outputs TEXT,
			error TEXT,
			index_dir TEXT,
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS index_log (
			uuid TEXT PRIMARY KEY,
			run_uuid TEXT NOT NULL REFERENCES runs(uuid),
			link_path TEXT NOT NULL,
			target_path TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_index_log_link_path ON index_log(link_path)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_uuid)`,
	}
	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Additive-column migrations, in the teacher's pendingMigrations style:
	// future columns are grafted on without a destructive rewrite.
	for _, m := range pendingColumnMigrations {
		if !columnExists(d.db, m.Table, m.Column) {
			q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
			if _, err := d.db.Exec(q); err != nil {
				logging.Get(logging.CategoryStore).Warn("migration %s.%s failed: %v", m.Table, m.Column, err)
			}
		}
	}
	return nil
}

type columnMigration struct {
	Table  string
	Column string
	Def    string
}

// pendingColumnMigrations is currently empty; new columns are appended here
// as the schema grows, never by editing the CREATE TABLE statements above.
var pendingColumnMigrations = []columnMigration{}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

// CreateSession inserts a new session row.
func (d *DB) CreateSession(kind SessionCommand, createdBy string) (Session, error) {
	s := Session{UUID: uuid.New(), Command: kind, CreatedBy: createdBy, CreatedAt: time.Now().UTC()}
	_, err := d.db.Exec(
		`INSERT INTO sessions (uuid, command, created_by, created_at) VALUES (?, ?, ?, ?)`,
		s.UUID.String(), string(s.Command), s.CreatedBy, s.CreatedAt,
	)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// CreateRun inserts a new Pending run row.
func (d *DB) CreateRun(sessionID uuid.UUID, name, source, targetName, inputs, execDir string) (Run, error) {
	r := Run{
		UUID: uuid.New(), SessionUUID: sessionID, Name: name, Source: source,
		TargetName: targetName, Inputs: inputs, ExecutionDir: execDir,
		Status: RunPending, CreatedAt: time.Now().UTC(),
	}
	_, err := d.db.Exec(
		`INSERT INTO runs (uuid, session_uuid, name, source, target_name, inputs, execution_dir, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UUID.String(), r.SessionUUID.String(), r.Name, r.Source, r.TargetName, r.Inputs, r.ExecutionDir,
		string(r.Status), r.CreatedAt,
	)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return r, nil
}

// SetRunStatus transitions a run's status, idempotent on the exact target
// state per spec.md §4.5 failure semantics: moving to a status the run is
// already in is a no-op success, not an error.
func (d *DB) SetRunStatus(id uuid.UUID, status RunStatus, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var current string
	if err := d.db.QueryRow(`SELECT status FROM runs WHERE uuid = ?`, id.String()).Scan(&current); err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	if current == string(status) {
		return nil
	}

	var column string
	switch status {
	case RunRunning:
		column = "started_at"
	case RunCompleted, RunFailed, RunCancelled:
		column = "completed_at"
	default:
		_, err := d.db.Exec(`UPDATE runs SET status = ? WHERE uuid = ?`, string(status), id.String())
		return err
	}

	q := fmt.Sprintf(`UPDATE runs SET status = ?, %s = ? WHERE uuid = ?`, column)
	if _, err := d.db.Exec(q, string(status), at, id.String()); err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	return nil
}

// SetRunOutputs records the serialized outputs and optional index directory
// for a run, called after a successful evaluator dispatch.
func (d *DB) SetRunOutputs(id uuid.UUID, outputs string, indexDir *string) error {
	_, err := d.db.Exec(`UPDATE runs SET outputs = ?, index_dir = ? WHERE uuid = ?`, outputs, indexDir, id.String())
	if err != nil {
		return fmt.Errorf("set run outputs: %w", err)
	}
	return nil
}

// SetRunError records the run's failure text.
func (d *DB) SetRunError(id uuid.UUID, errText string) error {
	_, err := d.db.Exec(`UPDATE runs SET error = ? WHERE uuid = ?`, errText, id.String())
	if err != nil {
		return fmt.Errorf("set run error: %w", err)
	}
	return nil
}

// GetRun fetches a run by id.
func (d *DB) GetRun(id uuid.UUID) (Run, error) {
	row := d.db.QueryRow(
		`SELECT uuid, session_uuid, name, source, target_name, inputs, execution_dir, status,
		        outputs, error, index_dir, created_at, started_at, completed_at
		 FROM runs WHERE uuid = ?`, id.String())
	return scanRun(row)
}

func scanRun(row *sql.Row) (Run, error) {
	var r Run
	var uuidStr, sessStr, status string
	var outputs, errText, indexDir sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(&uuidStr, &sessStr, &r.Name, &r.Source, &r.TargetName, &r.Inputs, &r.ExecutionDir,
		&status, &outputs, &errText, &indexDir, &r.CreatedAt, &startedAt, &completedAt); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.UUID, _ = uuid.Parse(uuidStr)
	r.SessionUUID, _ = uuid.Parse(sessStr)
	r.Status = RunStatus(status)
	if outputs.Valid {
		r.Outputs = &outputs.String
	}
	if errText.Valid {
		r.Error = &errText.String
	}
	if indexDir.Valid {
		r.IndexDir = &indexDir.String
	}
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, nil
}

// AppendIndexLogEntry appends one index-log row. The table is append-only;
// no UNIQUE constraint on link_path, per spec.md §6.
func (d *DB) AppendIndexLogEntry(runID uuid.UUID, linkPath, targetPath string, createdAt time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO index_log (uuid, run_uuid, link_path, target_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), runID.String(), linkPath, targetPath, createdAt,
	)
	if err != nil {
		return fmt.Errorf("append index log entry: %w", err)
	}
	return nil
}

// LatestIndexEntries returns, for every link_path under the given index
// key prefix, the entry with the greatest created_at, ties broken by row
// insertion order (sqlite rowid) -- the tie-breaker test seam called out
// in spec.md §9.
func (d *DB) LatestIndexEntries(indexKeyPrefix string) ([]IndexLogEntry, error) {
	rows, err := d.db.Query(
		`SELECT uuid, run_uuid, link_path, target_path, created_at, rowid FROM index_log
		 WHERE link_path LIKE ? ORDER BY link_path, created_at ASC, rowid ASC`,
		indexKeyPrefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list index log entries: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]IndexLogEntry)
	for rows.Next() {
		var e IndexLogEntry
		var uuidStr, runStr string
		if err := rows.Scan(&uuidStr, &runStr, &e.LinkPath, &e.TargetPath, &e.CreatedAt, &e.seq); err != nil {
			return nil, fmt.Errorf("scan index log entry: %w", err)
		}
		e.UUID, _ = uuid.Parse(uuidStr)
		e.RunUUID, _ = uuid.Parse(runStr)
		// Rows arrive ordered ascending by (created_at, rowid), so the last
		// write for a link_path always wins.
		latest[e.LinkPath] = e
	}

	out := make([]IndexLogEntry, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	return out, nil
}
