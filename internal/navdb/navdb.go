// Package navdb records planner link sessions, replans and reported
// obstacles into a sqlite journal. Nothing in it is read back into
// navigation state.
package navdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/monitoring"
	"github.com/banshee-data/gridnav/internal/planning"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var dbLog = monitoring.Component("NavDB")

var _ planning.Journal = (*DB)(nil)

type DB struct {
	*sql.DB
	path string
}

// Open opens (or creates) the journal at path and applies pending
// migrations.
func Open(path string) (*DB, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the journal was opened from.
func (db *DB) Path() string { return db.path }

// MigrateUp runs all pending migrations. Already being at the latest
// version is not an error.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version, or 0 when nothing has
// been applied yet.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	dbLog.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

func (db *DB) SessionStarted(session string, at time.Time) error {
	_, err := db.Exec(`
		INSERT INTO link_sessions (session_id, started_unix_ns)
		VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET started_unix_ns = excluded.started_unix_ns`,
		session, at.UnixNano())
	if err != nil {
		return fmt.Errorf("record session start: %w", err)
	}
	return nil
}

func (db *DB) SessionEnded(session string, at time.Time, reason string) error {
	res, err := db.Exec(`
		UPDATE link_sessions SET ended_unix_ns = ?, end_reason = ?
		WHERE session_id = ?`,
		at.UnixNano(), reason, session)
	if err != nil {
		return fmt.Errorf("record session end: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record session end: unknown session %q", session)
	}
	return nil
}

func (db *DB) ReplanAttempted(session string, r planning.ReplanResult) error {
	var errText sql.NullString
	if r.Err != nil {
		errText = sql.NullString{String: r.Err.Error(), Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO replans (
			session_id, at_unix_ns, reason,
			start_row, start_col, goal_row, goal_col,
			outcome, path_len, cursor, explored, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session, r.At.UnixNano(), r.Reason,
		r.Start.Row, r.Start.Col, r.Goal.Row, r.Goal.Col,
		string(r.Outcome), r.PathLen, r.Cursor, r.Explored, errText)
	if err != nil {
		return fmt.Errorf("record replan: %w", err)
	}
	return nil
}

func (db *DB) ObstaclesReported(session string, at time.Time, cells []grid.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("record obstacles: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO obstacle_reports (session_id, at_unix_ns, cell_row, cell_col)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("record obstacles: %w", err)
	}
	defer stmt.Close()

	for _, c := range cells {
		if _, err := stmt.Exec(session, at.UnixNano(), c.Row, c.Col); err != nil {
			return fmt.Errorf("record obstacle %v: %w", c, err)
		}
	}
	return tx.Commit()
}

// SessionRecord is one row of link_sessions.
type SessionRecord struct {
	ID        string     `json:"id"`
	Started   time.Time  `json:"started"`
	Ended     *time.Time `json:"ended,omitempty"`
	EndReason string     `json:"end_reason,omitempty"`
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]SessionRecord, error) {
	rows, err := db.Query(`
		SELECT session_id, started_unix_ns, ended_unix_ns, end_reason
		FROM link_sessions
		ORDER BY started_unix_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec     SessionRecord
			started int64
			ended   sql.NullInt64
			reason  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &started, &ended, &reason); err != nil {
			return nil, err
		}
		rec.Started = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			rec.Ended = &t
		}
		rec.EndReason = reason.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Replans returns the replans recorded for session in the order they
// happened.
func (db *DB) Replans(session string) ([]planning.ReplanResult, error) {
	rows, err := db.Query(`
		SELECT at_unix_ns, reason, start_row, start_col, goal_row, goal_col,
		       outcome, path_len, cursor, explored, error
		FROM replans
		WHERE session_id = ?
		ORDER BY replan_id`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []planning.ReplanResult
	for rows.Next() {
		var (
			r       planning.ReplanResult
			at      int64
			outcome string
			errText sql.NullString
		)
		if err := rows.Scan(&at, &r.Reason, &r.Start.Row, &r.Start.Col, &r.Goal.Row, &r.Goal.Col,
			&outcome, &r.PathLen, &r.Cursor, &r.Explored, &errText); err != nil {
			return nil, err
		}
		r.At = time.Unix(0, at).UTC()
		r.Outcome = planning.Outcome(outcome)
		if errText.Valid {
			r.Err = errors.New(errText.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ObstacleCells returns every distinct cell ever reported, ordered by row
// then column.
func (db *DB) ObstacleCells() ([]grid.Cell, error) {
	rows, err := db.Query(`
		SELECT DISTINCT cell_row, cell_col
		FROM obstacle_reports
		ORDER BY cell_row, cell_col`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []grid.Cell
	for rows.Next() {
		var c grid.Cell
		if err := rows.Scan(&c.Row, &c.Col); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
